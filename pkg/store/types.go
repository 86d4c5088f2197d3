package store

// Fragment is a single retrieved piece of admissions context (a document
// chunk from vector search or a node from the knowledge graph).
type Fragment struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Source   string                 `json:"source"` // "vector" | "graph"
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ConversationSession is the in-memory state of an active conversation.
type ConversationSession struct {
	ID         string `json:"id"` // ConversationID
	VisitorKey string `json:"visitor_key"`

	// Snapshot of the last pipeline run, used to cheaply answer ownership
	// checks and to surface degraded-mode state without a DB round trip.
	LastCategory string `json:"last_category"`
	LastQuestion string `json:"last_question"`
	Degraded     bool   `json:"degraded"`
}
