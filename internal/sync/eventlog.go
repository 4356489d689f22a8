// Package syncx is the local append-only log of session lifecycle events.
package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ekosmy/portfolio/internal/session"
)

const DefaultSiteID = "local"

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Ref       string // session id
	DataJSON  string
	CreatedAt int64
}

func (e Event) Time() time.Time { return time.Unix(e.CreatedAt, 0) }

type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = DefaultSiteID
	}
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	if e.DataJSON == "" {
		e.DataJSON = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, ref, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Ref, e.DataJSON, e.CreatedAt)
	return err
}

// Recent returns up to n events, newest first.
func (r *EventRepo) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 20
	}
	return r.query(ctx, `SELECT seq, site_id, typ, ref, data, created_at FROM event_log
		ORDER BY seq DESC LIMIT $1`, n)
}

// ForSession returns one session's events in order.
func (r *EventRepo) ForSession(ctx context.Context, sessionID string) ([]Event, error) {
	return r.query(ctx, `SELECT seq, site_id, typ, ref, data, created_at FROM event_log
		WHERE ref=$1 ORDER BY seq`, sessionID)
}

func (r *EventRepo) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Ref, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Record implements session.EventSink.
func (r *EventRepo) Record(ctx context.Context, e session.Event) error {
	data := "{}"
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("event %s: encode: %w", e.Type, err)
		}
		data = string(b)
	}
	var at int64
	if !e.At.IsZero() {
		at = e.At.Unix()
	}
	return r.Append(ctx, Event{Type: e.Type, Ref: e.SessionID, DataJSON: data, CreatedAt: at})
}
