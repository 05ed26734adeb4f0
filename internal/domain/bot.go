package domain

import "time"

// Bot represents a configured chatbot. Bots are the partition key for all
// retrieval: documents and conversation memory never cross bot boundaries.
type Bot struct {
	ID           int64
	Name         string
	Model        string
	SystemPrompt string
	Temperature  float32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateBot validates a Bot instance
func ValidateBot(b *Bot) error {
	if b == nil {
		return NewDomainError(ErrCodeValidation, "bot cannot be nil")
	}
	if b.Name == "" {
		return NewDomainError(ErrCodeValidation, "bot Name is required")
	}
	if b.Model == "" {
		return NewDomainError(ErrCodeValidation, "bot Model is required")
	}
	return nil
}
