package vuln

// Display is presentation metadata for an enum value.
// Colors are CSS hex strings.
type Display struct {
	Label      string `json:"label"`
	Color      string `json:"color"`
	Background string `json:"background"`
}

// SeverityDisplay maps a severity to its presentation metadata.
func SeverityDisplay(s Severity) Display {
	switch s {
	case SeverityCritical:
		return Display{Label: s.DisplayName(), Color: "#ef4444", Background: "#7f1d1d"}
	case SeverityHigh:
		return Display{Label: s.DisplayName(), Color: "#f97316", Background: "#7c2d12"}
	case SeverityMedium:
		return Display{Label: s.DisplayName(), Color: "#eab308", Background: "#713f12"}
	case SeverityLow:
		return Display{Label: s.DisplayName(), Color: "#3b82f6", Background: "#1e3a8a"}
	case SeverityInfo:
		return Display{Label: s.DisplayName(), Color: "#8b5cf6", Background: "#581c87"}
	default:
		return Display{Label: string(s), Color: "#9ca3af", Background: "#374151"}
	}
}

// StatusDisplay maps a status to its presentation metadata.
func StatusDisplay(s Status) Display {
	switch s {
	case StatusNew:
		return Display{Label: s.DisplayName(), Color: "#60a5fa", Background: "#1e3a8a"}
	case StatusAcknowledged:
		return Display{Label: s.DisplayName(), Color: "#facc15", Background: "#713f12"}
	case StatusFixed:
		return Display{Label: s.DisplayName(), Color: "#4ade80", Background: "#14532d"}
	default:
		return Display{Label: string(s), Color: "#9ca3af", Background: "#374151"}
	}
}
