package timeline

import (
	"sync"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
)

// Store holds the views of every open conversation. Events for a
// conversation that is not open are dropped.
type Store struct {
	mu    sync.RWMutex
	views map[string]*View
	opts  Options
}

func NewStore(opts Options) *Store {
	return &Store{
		views: make(map[string]*View),
		opts:  opts.withDefaults(),
	}
}

// Open returns the view for conversationID, creating it on first use.
func (s *Store) Open(conversationID string) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.views[conversationID]; ok {
		return v
	}
	v := NewView(conversationID, s.opts)
	s.views[conversationID] = v
	return v
}

func (s *Store) View(conversationID string) (*View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[conversationID]
	return v, ok
}

func (s *Store) Close(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, conversationID)
}

func (s *Store) Reconcile(msg *entity.Message) bool {
	if msg == nil {
		return false
	}
	v, ok := s.View(msg.ConversationID)
	if !ok {
		return false
	}
	return v.Reconcile(msg)
}

func (s *Store) ApplyMutation(m Mutation) bool {
	v, ok := s.View(m.ConversationID)
	if !ok {
		return false
	}
	return v.ApplyMutation(m)
}
