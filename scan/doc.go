// Package scan implements the new-scan flow.
//
// A Wizard walks one session through form entry, an optional confirmation
// step for advanced options, the scan itself and the completion summary.
// Form.Validate reports problems per field as FieldErrors; they block
// progression until corrected.
//
// Scans are executed by a Runner. LocalRunner simulates in process;
// QueueRunner pushes a queue.ScanJob to Redis and waits for a Worker to
// publish the result. Either way a completed scan yields exactly one new
// record, which the wizard hands to its Sink (normally the store).
//
// The Simulator stands in for a real scanner: after a fixed delay it
// reports one Critical finding on the target URL's path.
package scan
