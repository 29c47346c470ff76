package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"homechat/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyName       = errors.New("empty user name")
)

type Stage string

const (
	StageNaming Stage = "naming"
	StageChat   Stage = "chat"
)

// Session is the per-user conversation context. It is created when a user
// arrives, mutated only by turn processing and discarded when the user leaves
// or goes idle.
type Session struct {
	ID        string
	CreatedAt time.Time

	turnMu sync.Mutex

	mu       sync.RWMutex
	userName string
	stage    Stage
	turns    []domain.Turn
	lastSeen time.Time
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		stage:     StageNaming,
		lastSeen:  now,
	}
}

// Start records the user's first name, moves the session to the chat stage
// and seeds the greeting.
func (s *Session) Start(name string) error {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.userName = fields[0]
	s.stage = StageChat
	s.turns = append(s.turns, domain.Turn{
		Role:    domain.RoleAssistant,
		Content: fmt.Sprintf("Merhaba %s! Emirlerini bekliyorum.", s.userName),
	})
	return nil
}

func (s *Session) UserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userName
}

func (s *Session) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

func (s *Session) Append(role domain.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, domain.Turn{Role: role, Content: content})
}

// Turns returns a copy of the whole conversation.
func (s *Session) Turns() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Turn, len(s.turns))
	copy(result, s.turns)
	return result
}

// Recent returns a copy of the last n turns.
func (s *Session) Recent(n int) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if len(s.turns) > n {
		start = len(s.turns) - n
	}
	result := make([]domain.Turn, len(s.turns)-start)
	copy(result, s.turns[start:])
	return result
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// beginTurn serializes turn processing on one session.
func (s *Session) beginTurn() func() {
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

type SessionStore struct {
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	onRemove []func(id string)
}

// NewSessionStore creates a store whose idle sessions expire after ttl.
// A zero ttl disables expiry.
func NewSessionStore(ttl time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		logger:   logger,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (st *SessionStore) Create() *Session {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	sess := NewSession(id.String(), st.now())

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	st.logger.Debug("session created", "session", sess.ID)
	return sess
}

// Get returns the session and marks it as active.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(st.now())
	return sess, nil
}

// OnRemove registers fn to run after a session is deleted or expires.
func (st *SessionStore) OnRemove(fn func(id string)) {
	st.mu.Lock()
	st.onRemove = append(st.onRemove, fn)
	st.mu.Unlock()
}

func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	hooks := st.onRemove
	st.mu.Unlock()
	if ok {
		st.logger.Debug("session ended", "session", id)
		runHooks(hooks, id)
	}
}

func runHooks(hooks []func(id string), id string) {
	for _, fn := range hooks {
		fn(id)
	}
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than the ttl and returns how many
// were removed.
func (st *SessionStore) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	var expired []string
	for id, sess := range st.sessions {
		if sess.LastSeen().Before(cutoff) {
			delete(st.sessions, id)
			expired = append(expired, id)
		}
	}
	hooks := st.onRemove
	st.mu.Unlock()

	for _, id := range expired {
		runHooks(hooks, id)
	}
	return len(expired)
}

func (st *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := st.Sweep(); n > 0 {
					st.logger.Info("expired idle sessions", "count", n)
				}
			}
		}
	}()
}
