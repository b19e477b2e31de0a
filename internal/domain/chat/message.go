// Package chat models conversation messages exchanged with the text generator.
package chat

import "fmt"

// Role is the author of a message.
type Role string

// Roles accepted by OpenAI-compatible chat APIs.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validate rejects unknown roles. History from clients may only carry user and
// assistant turns.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant:
		return nil
	}
	return fmt.Errorf("unsupported history role %q", m.Role)
}
