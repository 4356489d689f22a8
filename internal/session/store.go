package session

import (
	"context"
	"sync"
	"time"

	"github.com/ekosmy/portfolio/internal/quiz"
)

// Progress is what a controller needs to resume a session after a restart.
type Progress struct {
	SessionID string              `json:"session_id"`
	QuizID    string              `json:"quiz_id"`
	Index     int                 `json:"current_index"`
	Answers   map[int]quiz.Answer `json:"answers"`
	Reported  map[int]quiz.Answer `json:"reported"`
	TimeLeft  *int                `json:"time_left,omitempty"` // nil when untimed
	UpdatedAt time.Time           `json:"updated_at"`
}

// ProgressStore persists Progress. Load reports ok=false when nothing is
// saved for the session.
type ProgressStore interface {
	Save(ctx context.Context, p Progress) error
	Load(ctx context.Context, sessionID string) (p Progress, ok bool, err error)
	Delete(ctx context.Context, sessionID string) error
}

const (
	EventSessionStarted  = "SessionStarted"
	EventAnswerSubmitted = "AnswerSubmitted"
	EventSessionExpired  = "SessionExpired"
	EventSessionFinished = "SessionFinished"
)

type Event struct {
	Type      string
	SessionID string
	Data      any
	At        time.Time
}

type EventSink interface {
	Record(ctx context.Context, e Event) error
}

// MemoryEvents keeps events in memory.
type MemoryEvents struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryEvents) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryEvents) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types lists recorded event types in order.
func (m *MemoryEvents) Types() []string {
	var out []string
	for _, e := range m.Events() {
		out = append(out, e.Type)
	}
	return out
}
