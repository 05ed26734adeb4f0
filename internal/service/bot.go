package service

import (
	"context"
	"time"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/telemetry"
)

// BotRepositoryInterface defines the repository interface for bot persistence
type BotRepositoryInterface interface {
	Create(ctx context.Context, b *domain.Bot) error
	GetByID(ctx context.Context, id int64) (*domain.Bot, error)
	List(ctx context.Context) ([]*domain.Bot, error)
	Update(ctx context.Context, b *domain.Bot) error
	Delete(ctx context.Context, id int64) error
}

// BotService handles business logic for bots
type BotService struct {
	botRepo BotRepositoryInterface
}

// NewBotService creates a new BotService instance
func NewBotService(botRepo BotRepositoryInterface) *BotService {
	return &BotService{botRepo: botRepo}
}

// CreateBotInput represents the input for creating a bot
type CreateBotInput struct {
	Name         string
	Model        string
	SystemPrompt string
	Temperature  float32
}

// UpdateBotInput represents the input for updating a bot
type UpdateBotInput struct {
	BotID        int64
	Name         string
	Model        string
	SystemPrompt string
	Temperature  float32
}

// Create creates a new bot
func (s *BotService) Create(ctx context.Context, input CreateBotInput) (*domain.Bot, error) {
	ctx, span := telemetry.StartSpan(ctx, "BotService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	bot := &domain.Bot{
		Name:         input.Name,
		Model:        input.Model,
		SystemPrompt: input.SystemPrompt,
		Temperature:  input.Temperature,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := domain.ValidateBot(bot); err != nil {
		return nil, err
	}

	if err := s.botRepo.Create(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

// GetByID retrieves a bot by ID
func (s *BotService) GetByID(ctx context.Context, id int64) (*domain.Bot, error) {
	return s.botRepo.GetByID(ctx, id)
}

// List retrieves all bots
func (s *BotService) List(ctx context.Context) ([]*domain.Bot, error) {
	return s.botRepo.List(ctx)
}

// Update modifies a bot's configuration
func (s *BotService) Update(ctx context.Context, input UpdateBotInput) (*domain.Bot, error) {
	ctx, span := telemetry.StartSpan(ctx, "BotService.Update", telemetry.SpanAttributes{
		BotID:     input.BotID,
		Operation: "update",
	})
	defer span.End()

	bot, err := s.botRepo.GetByID(ctx, input.BotID)
	if err != nil {
		return nil, err
	}

	bot.Name = input.Name
	bot.Model = input.Model
	bot.SystemPrompt = input.SystemPrompt
	bot.Temperature = input.Temperature
	bot.UpdatedAt = time.Now().UTC()

	if err := domain.ValidateBot(bot); err != nil {
		return nil, err
	}

	if err := s.botRepo.Update(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

// Delete removes a bot
func (s *BotService) Delete(ctx context.Context, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, "BotService.Delete", telemetry.SpanAttributes{
		BotID:     id,
		Operation: "delete",
	})
	defer span.End()

	return s.botRepo.Delete(ctx, id)
}
