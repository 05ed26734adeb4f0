package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/telemetry"
)

// ChatCompleter runs a chat completion and returns the assistant reply.
type ChatCompleter interface {
	Complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage, temperature float32) (string, error)
}

// ConversationMemoryWriter persists a conversation turn into the vector index.
type ConversationMemoryWriter interface {
	InsertConversationTurn(ctx context.Context, turn *domain.ConversationTurn, embedding []float32) error
}

// ChatBotRepository looks up the bot a conversation belongs to.
type ChatBotRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Bot, error)
}

// ChatService runs one chat turn: retrieve document context and conversation
// memory in parallel, assemble the prompt, call the completion model, and
// write both sides of the exchange back into conversation memory.
type ChatService struct {
	bots      ChatBotRepository
	retriever *RetrieverService
	builder   *ContextBuilder
	completer ChatCompleter
	memory    ConversationMemoryWriter
	embedding EmbeddingClient
	uuidGen   UUIDGenerator
}

// NewChatService creates a new ChatService instance. embedding and memory may
// be nil together, which disables conversation recall and write-back.
func NewChatService(
	bots ChatBotRepository,
	retriever *RetrieverService,
	builder *ContextBuilder,
	completer ChatCompleter,
	memory ConversationMemoryWriter,
	embedding EmbeddingClient,
) *ChatService {
	return &ChatService{
		bots:      bots,
		retriever: retriever,
		builder:   builder,
		completer: completer,
		memory:    memory,
		embedding: embedding,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// ChatInput represents one user turn in a conversation
type ChatInput struct {
	BotID          int64
	ConversationID string
	Message        string
}

// ChatOutput represents the assistant's reply plus the retrieval evidence
// that informed it
type ChatOutput struct {
	Reply          string
	ConversationID string
	SearchMethod   domain.SearchMethod
	Sources        []*domain.SearchResult
}

// Chat executes a single chat turn.
func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Chat", telemetry.SpanAttributes{
		BotID:     input.BotID,
		Operation: "chat",
	})
	defer span.End()

	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message is required")
	}

	bot, err := s.bots.GetByID(ctx, input.BotID)
	if err != nil {
		return nil, err
	}

	conversationID := input.ConversationID
	if conversationID == "" {
		conversationID = s.uuidGen.NewString()
	}

	var (
		wg        sync.WaitGroup
		docsOut   *SearchOutput
		docsErr   error
		recalled  []*domain.ConversationHit
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		docsOut, docsErr = s.retriever.Search(ctx, SearchInput{
			BotID: input.BotID,
			Query: message,
			Limit: DefaultSearchLimit,
		})
	}()
	go func() {
		defer wg.Done()
		// Recall failures already degrade to an empty slice inside.
		recalled, _ = s.retriever.RecallConversation(ctx, input.BotID, message, DefaultSearchLimit)
	}()
	wg.Wait()

	if docsErr != nil {
		return nil, docsErr
	}

	messages := s.buildMessages(bot, docsOut.Results, recalled, message)

	reply, err := s.completer.Complete(ctx, bot.Model, messages, bot.Temperature)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "chat completion failed", err)
	}

	s.rememberTurn(ctx, input.BotID, conversationID, "user", message)
	s.rememberTurn(ctx, input.BotID, conversationID, "assistant", reply)

	return &ChatOutput{
		Reply:          reply,
		ConversationID: conversationID,
		SearchMethod:   docsOut.SearchMethod,
		Sources:        docsOut.Results,
	}, nil
}

func (s *ChatService) buildMessages(bot *domain.Bot, sources []*domain.SearchResult, recalled []*domain.ConversationHit, message string) []openai.ChatCompletionMessage {
	var system strings.Builder
	system.WriteString(bot.SystemPrompt)

	if block := s.builder.BuildContext(sources); block != "" {
		system.WriteString("\n\nUse the following knowledge to answer:\n")
		system.WriteString(block)
	}
	if block := s.builder.BuildConversationContext(recalled); block != "" {
		system.WriteString("\n\nRelevant earlier conversation:\n")
		system.WriteString(block)
	}

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system.String()},
		{Role: openai.ChatMessageRoleUser, Content: message},
	}
}

// rememberTurn embeds and stores one side of the exchange. Memory write
// failures degrade recall quality but never fail the chat turn.
func (s *ChatService) rememberTurn(ctx context.Context, botID int64, conversationID, role, content string) {
	if s.memory == nil || s.embedding == nil {
		return
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, content)
	if err != nil {
		log.Printf("Failed to embed %s turn for conversation %s: %v", role, conversationID, err)
		return
	}

	turn := &domain.ConversationTurn{
		ID:             s.uuidGen.NewString(),
		BotID:          botID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.memory.InsertConversationTurn(ctx, turn, embedding); err != nil {
		log.Printf("Failed to store %s turn for conversation %s: %v", role, conversationID, err)
	}
}
