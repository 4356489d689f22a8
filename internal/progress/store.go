// Package progress persists in-flight quiz sessions so they can be resumed
// after the client restarts.
package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/session"
)

// SQLStore keeps progress in the session_progress table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

var _ session.ProgressStore = (*SQLStore)(nil)

func (s *SQLStore) Save(ctx context.Context, p session.Progress) error {
	answers, err := json.Marshal(nonNil(p.Answers))
	if err != nil {
		return fmt.Errorf("progress: encode answers: %w", err)
	}
	reported, err := json.Marshal(nonNil(p.Reported))
	if err != nil {
		return fmt.Errorf("progress: encode reported: %w", err)
	}
	var timeLeft sql.NullInt64
	if p.TimeLeft != nil {
		timeLeft = sql.NullInt64{Int64: int64(*p.TimeLeft), Valid: true}
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_progress (session_id, quiz_id, current_index, answers_json, reported_json, time_left, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (session_id) DO UPDATE SET
		  quiz_id=EXCLUDED.quiz_id, current_index=EXCLUDED.current_index,
		  answers_json=EXCLUDED.answers_json, reported_json=EXCLUDED.reported_json,
		  time_left=EXCLUDED.time_left, updated_at=EXCLUDED.updated_at`,
		p.SessionID, p.QuizID, p.Index, string(answers), string(reported), timeLeft, updated.Unix())
	if err != nil {
		return fmt.Errorf("progress: save %s: %w", p.SessionID, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, sessionID string) (session.Progress, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, quiz_id, current_index, answers_json, reported_json, time_left, updated_at
		FROM session_progress WHERE session_id=$1`, sessionID)
	p, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Progress{}, false, nil
	}
	if err != nil {
		return session.Progress{}, false, fmt.Errorf("progress: load %s: %w", sessionID, err)
	}
	return p, true, nil
}

func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_progress WHERE session_id=$1`, sessionID)
	return err
}

// List returns saved sessions, most recently updated first.
func (s *SQLStore) List(ctx context.Context) ([]session.Progress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, quiz_id, current_index, answers_json, reported_json, time_left, updated_at
		FROM session_progress ORDER BY updated_at DESC, session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []session.Progress
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (session.Progress, error) {
	var (
		p                 session.Progress
		answers, reported string
		timeLeft          sql.NullInt64
		updated           int64
	)
	if err := r.Scan(&p.SessionID, &p.QuizID, &p.Index, &answers, &reported, &timeLeft, &updated); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(answers), &p.Answers); err != nil {
		return p, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal([]byte(reported), &p.Reported); err != nil {
		return p, fmt.Errorf("decode reported: %w", err)
	}
	if timeLeft.Valid {
		t := int(timeLeft.Int64)
		p.TimeLeft = &t
	}
	p.UpdatedAt = time.Unix(updated, 0)
	return p, nil
}

func nonNil(m map[int]quiz.Answer) map[int]quiz.Answer {
	if m == nil {
		return map[int]quiz.Answer{}
	}
	return m
}

// MemoryStore is an in-process ProgressStore.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]session.Progress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]session.Progress{}}
}

var _ session.ProgressStore = (*MemoryStore)(nil)

func (m *MemoryStore) Save(_ context.Context, p session.Progress) error {
	p.Answers = quiz.Clone(p.Answers)
	p.Reported = quiz.Clone(p.Reported)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[p.SessionID] = p
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (session.Progress, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[sessionID]
	if !ok {
		return session.Progress{}, false, nil
	}
	p.Answers = quiz.Clone(p.Answers)
	p.Reported = quiz.Clone(p.Reported)
	return p, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, sessionID)
	return nil
}

func (m *MemoryStore) List(context.Context) ([]session.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]session.Progress, 0, len(m.items))
	for _, p := range m.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}
