package bot

import "sync"

// Store holds one conversation per room.
type Store struct {
	mu            sync.Mutex
	conversations map[string]Conversation
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{conversations: make(map[string]Conversation)}
}

// Get returns the conversation of a room; a room never seen is in Greeting.
func (s *Store) Get(roomID string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[roomID]
}

// Apply advances a room's conversation under the store lock, so messages to
// the same room are stepped one at a time. Closed conversations are dropped;
// the next message starts from Greeting.
func (s *Store) Apply(roomID string, step func(Conversation) (Conversation, Reply)) (before, after Conversation, reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before = s.conversations[roomID]
	after, reply = step(before)

	if after.State == Closed {
		delete(s.conversations, roomID)
	} else {
		s.conversations[roomID] = after
	}
	return before, after, reply
}

// Len returns the number of open conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}
