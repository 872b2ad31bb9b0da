package rag

import (
	"slices"
	"sync"

	"pdf-chat/internal/helper"
	"pdf-chat/internal/models"
	"pdf-chat/internal/vectorindex"
)

// indexState is replaced as a whole on every successful upload and never
// mutated afterwards.
type indexState struct {
	index  vectorindex.Index
	chunks []models.Chunk
	corpus string
}

// Session is the per-user context passed to every handler: the current
// index with its chunks, and the chat transcript.
type Session struct {
	ID       string
	Username string

	upload  sync.Mutex
	mu      sync.RWMutex
	state   *indexState
	history []models.ChatTurn
}

func NewSession(id, username string) *Session {
	return &Session{ID: id, Username: username}
}

// Indexed reports whether a document set has been indexed.
func (s *Session) Indexed() bool {
	st := s.snapshot()
	return st != nil && st.index.Len() > 0
}

// Chunks returns the chunks of the current index.
func (s *Session) Chunks() []models.Chunk {
	st := s.snapshot()
	if st == nil {
		return nil
	}
	return slices.Clone(st.chunks)
}

// History returns a copy of the transcript, oldest turn first.
func (s *Session) History() []models.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

func (s *Session) snapshot() *indexState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) replaceIndex(st *indexState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Session) setHistory(turns []models.ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = slices.Clone(turns)
}

// appendTurns adds turns and returns the resulting transcript.
func (s *Session) appendTurns(turns ...models.ChatTurn) []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turns...)
	return slices.Clone(s.history)
}

// Sessions keeps the live sessions of the host process.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Open starts a new session for username.
func (s *Sessions) Open(username string) (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	sess := NewSession(id, username)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
	return sess, nil
}

func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Close forgets the session; its index becomes garbage.
func (s *Sessions) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
