package domain

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContextTurns is how many of the latest turns are replayed to the model.
const ContextTurns = 10

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
