package vuln

import "time"

// Transition moves v to target and reports whether anything changed.
//
// When v is already in target the record is returned untouched and no
// history entry is added. Otherwise the returned copy has Status set to
// target and exactly one new history entry. The entry is stamped at now,
// or at the previous entry's timestamp if the clock reads earlier than it,
// so history stays chronological.
//
// Any status may follow any other, including Fixed back to New.
// v itself is never modified.
func Transition(v Vulnerability, target Status, now time.Time) (Vulnerability, bool) {
	if v.Status == target {
		return v, false
	}

	at := now
	if last := v.LastChange(); at.Before(last.Timestamp) {
		at = last.Timestamp
	}

	out := v.Clone()
	out.Status = target
	out.StatusHistory = append(out.StatusHistory, StatusChange{
		Status:    target,
		Timestamp: at,
	})
	return out, true
}

// Assign returns a copy of v owned by assignee. An empty assignee clears
// the assignment. The bool is false when the assignee did not change.
func Assign(v Vulnerability, assignee string) (Vulnerability, bool) {
	if v.Assignee == assignee {
		return v, false
	}
	out := v.Clone()
	out.Assignee = assignee
	return out, true
}
