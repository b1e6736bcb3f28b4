package schemas

// -- Conversation Schemas --

// Role is a conversation role in the model chat protocol.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry in a conversation history. Text is always
// present; Images carries base64-encoded screenshots and is only populated on
// the request boundary, never stored in the durable history.
type ConversationTurn struct {
	Role   Role     `json:"role"`
	Text   string   `json:"content"`
	Images []string `json:"images,omitempty"`
}

// ChatMessage is one message in an assistant chat exchange, independent of
// any one provider's wire format.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
