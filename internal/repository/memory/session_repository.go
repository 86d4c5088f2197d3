package memory

import (
	"time"

	"admission-chatbot-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Conversations idle for an hour fall out of memory; ownership checks
	// then fall back to the database.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.ConversationSession) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(conversationID string) (*store.ConversationSession, bool) {
	if x, found := r.cache.Get(conversationID); found {
		return x.(*store.ConversationSession), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(conversationID string) {
	r.cache.Delete(conversationID)
}
