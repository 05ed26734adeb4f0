package domain

import "time"

// VectorRecord is a row in the vector index. Two record families share the
// index: document chunks carry a DocumentID, conversation turns carry a
// ConversationID. Queries must filter by exactly one family.
type VectorRecord struct {
	ID             string
	BotID          int64
	DocumentID     *int64
	ConversationID *string
	Role           string
	Title          string
	ChunkIndex     int
	TotalChunks    int
	Content        string
	Embedding      []float32
	CreatedAt      time.Time
}

// ConversationTurn represents one message of a conversation, the unit of
// conversation-memory indexing.
type ConversationTurn struct {
	ID             string
	BotID          int64
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}
