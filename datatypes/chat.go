// Package datatypes defines the wire-level data structures shared across the
// profadvisor service: chat messages, retrieval results, and stream events.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerConversation is the maximum number of messages a single
	// request may carry.
	MaxMessagesPerConversation = 100
)

// Message roles accepted on the wire and understood by every completion
// backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// chatValidate is the shared validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	if err := chatValidate.RegisterValidation("maxbytes", validateMaxBytes); err != nil {
		panic("datatypes: failed to register maxbytes validator: " + err.Error())
	}
}

// validateMaxBytes checks that a string field does not exceed
// MaxMessageContentBytes when encoded.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// Message is a single chat turn. The pipeline treats messages as immutable:
// it only ever appends new ones or slices existing history.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"maxbytes"`
}

// Conversation is the ordered message history supplied with a request. The
// final element is the active query the service answers.
type Conversation []Message

// conversationEnvelope exists so the slice bounds and the per-message tags
// can be validated in a single pass.
type conversationEnvelope struct {
	Messages []Message `validate:"required,min=1,max=100,dive"`
}

// Validate checks the conversation bounds and every message in it. It does
// not inspect ordering or role alternation; backends accept any sequence.
func (c Conversation) Validate() error {
	return chatValidate.Struct(conversationEnvelope{Messages: c})
}
