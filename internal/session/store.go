// File: internal/session/store.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/config"
)

// uuidNewString is swappable for deterministic tests.
var uuidNewString = uuid.NewString

// Store holds conversation sessions. Implementations must be safe for
// concurrent use; eviction policy is the implementation's concern.
type Store interface {
	// Get returns the session for id, or false when unknown or evicted.
	Get(id string) (*Session, bool)
	// Create makes a fresh session seeded with the system prompt. An empty
	// id gets a generated one.
	Create(id, systemPrompt string) *Session
	// GetOrCreate returns the existing session or creates it.
	GetOrCreate(id, systemPrompt string) *Session
	// Delete removes the session. Unknown ids are a no-op.
	Delete(id string)
	// Close stops any background maintenance.
	Close()
}

// Session is one conversation: an append-only transcript plus the step log of
// the most recent turn. All access goes through the methods; the zero value
// is not usable.
type Session struct {
	id        string
	createdAt time.Time

	// turnMu serializes whole turns: only one caller may drive the
	// conversation loop for a session at a time.
	turnMu sync.Mutex

	mu         sync.Mutex
	lastActive time.Time
	transcript []schemas.Message
	stepLog    []schemas.StepLogEntry
}

// LockTurn blocks until this caller owns the session's turn.
func (s *Session) LockTurn() { s.turnMu.Lock() }

// UnlockTurn releases turn ownership.
func (s *Session) UnlockTurn() { s.turnMu.Unlock() }

// ID returns the immutable session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Append adds messages to the transcript. Messages are never modified or
// removed afterwards.
func (s *Session) Append(msgs ...schemas.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, msgs...)
	s.lastActive = time.Now()
}

// Transcript returns a copy of the transcript in order.
func (s *Session) Transcript() []schemas.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the transcript length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// BeginTurn clears the step log for a new turn.
func (s *Session) BeginTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepLog = s.stepLog[:0]
	s.lastActive = time.Now()
}

// LogStep records one step of the current turn.
func (s *Session) LogStep(step schemas.StepLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepLog = append(s.stepLog, step)
}

// Steps returns a copy of the current turn's step log.
func (s *Session) Steps() []schemas.StepLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.StepLogEntry, len(s.stepLog))
	copy(out, s.stepLog)
	return out
}

func (s *Session) lastActiveTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// MemoryStore is the in-process Store backed by a mutex-guarded map. A zero
// TTL disables eviction; otherwise a janitor goroutine drops sessions idle
// longer than the TTL.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl    time.Duration
	stop   chan struct{}
	closed sync.Once
	logger *zap.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds the store and starts the janitor when eviction is
// enabled.
func NewMemoryStore(cfg config.SessionConfig, logger *zap.Logger) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      cfg.TTL,
		stop:     make(chan struct{}),
		logger:   logger.Named("session_store"),
	}
	if cfg.TTL > 0 {
		go s.janitor(cfg.JanitorInterval)
	}
	return s
}

func (s *MemoryStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *MemoryStore) Create(id, systemPrompt string) *Session {
	if id == "" {
		id = uuidNewString()
	}
	now := time.Now()
	sess := &Session{
		id:         id,
		createdAt:  now,
		lastActive: now,
	}
	if systemPrompt != "" {
		sess.transcript = append(sess.transcript, schemas.Message{
			Role:    schemas.RoleSystem,
			Content: systemPrompt,
		})
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Debug("Session created", zap.String("session_id", id))
	return sess
}

func (s *MemoryStore) GetOrCreate(id, systemPrompt string) *Session {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess
		}
	}
	return s.Create(id, systemPrompt)
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Close stops the janitor. Safe to call more than once.
func (s *MemoryStore) Close() {
	s.closed.Do(func() { close(s.stop) })
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

// evictExpired drops sessions idle past the TTL.
func (s *MemoryStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActiveTime()) > s.ttl {
			delete(s.sessions, id)
			s.logger.Debug("Session evicted", zap.String("session_id", id))
		}
	}
}
