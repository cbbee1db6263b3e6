package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one entry in a session transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient completes one conversation turn. The returned text is the model's
// raw reply; callers must treat it as untrusted (see Reconciler).
//
// Implementations should retry transient transport failures before returning
// an error; the engine surfaces any error as a turn failure.
type LLMClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}
