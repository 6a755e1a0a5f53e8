package domain

// Role identifies who produced a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message of a conversation
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// Conversation is the ordered history of a chat session. It is owned by the caller.
type Conversation []Turn

// Append returns a new conversation with turns added; c is left untouched.
func (c Conversation) Append(turns ...Turn) Conversation {
	out := make(Conversation, 0, len(c)+len(turns))
	out = append(out, c...)
	return append(out, turns...)
}

// Valid reports whether every turn has a known role
func (c Conversation) Valid() bool {
	for _, t := range c {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return false
		}
	}
	return true
}
