package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentChunk is one embedded slice of an admissions document (tuition
// tables, major descriptions, programme pages) used for vector retrieval.
type DocumentChunk struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	Title      string
	Content    string
	Embedding  []float32
	ChunkIndex int
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}
