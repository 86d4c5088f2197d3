package delivery

import "sync"

// Registry maps conversation identifiers to a stable channel name. A
// conversation is first addressed by a provisional, client-generated id;
// once the conversation row is persisted it gains a durable id. Reconcile
// makes the durable id an alias of the provisional one, so updates published
// under either id land on the same channel and nothing interleaved during
// the swap is lost.
type Registry struct {
	mu      sync.RWMutex
	aliases map[string]string // any id -> stable channel name
}

func NewRegistry() *Registry {
	return &Registry{aliases: make(map[string]string)}
}

// Channel returns the stable channel name for an id, registering the id as
// its own channel on first sight.
func (r *Registry) Channel(id string) string {
	r.mu.RLock()
	channel, ok := r.aliases[id]
	r.mu.RUnlock()
	if ok {
		return channel
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if channel, ok := r.aliases[id]; ok {
		return channel
	}
	r.aliases[id] = id
	return id
}

// Reconcile aliases durableID onto provisionalID's channel. Safe to call
// more than once with the same pair, and safe concurrently with publishes:
// a publisher resolving either id before, during, or after the call always
// gets the same channel name.
func (r *Registry) Reconcile(provisionalID, durableID string) {
	if provisionalID == durableID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	channel, ok := r.aliases[provisionalID]
	if !ok {
		channel = provisionalID
		r.aliases[provisionalID] = channel
	}
	r.aliases[durableID] = channel
}

// Forget drops every alias resolving to the given id's channel. Called when
// a conversation's subscribers are gone.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channel, ok := r.aliases[id]
	if !ok {
		return
	}
	for alias, ch := range r.aliases {
		if ch == channel {
			delete(r.aliases, alias)
		}
	}
}
