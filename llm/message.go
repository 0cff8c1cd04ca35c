package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	// RoleSystem carries instructions that frame the whole exchange.
	RoleSystem Role = "system"

	// RoleUser represents the prompt side.
	RoleUser Role = "user"

	// RoleAssistant represents earlier model output.
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage returns a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// IsValid reports whether the message has a known role and content.
func (m Message) IsValid() bool {
	return m.Role.IsValid() && m.Content != ""
}

// String returns a string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}
