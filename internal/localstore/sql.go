package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQL stores values in the local_storage table, one namespace per session id.
type SQL struct{ db *sqlx.DB }

func NewSQL(db *sqlx.DB) *SQL { return &SQL{db: db} }

// For returns the storage namespace of one session.
func (s *SQL) For(sessionID string) *Session { return &Session{db: s.db, sid: sessionID} }

type Session struct {
	db  *sqlx.DB
	sid string
}

func (s *Session) GetItem(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.GetContext(ctx, &v, s.db.Rebind(`SELECT item_value FROM local_storage WHERE session_id = ? AND item_key = ?`), s.sid, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("local storage get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Session) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO local_storage(session_id, item_key, item_value, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(session_id, item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at
	`), s.sid, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("local storage set %s: %w", key, err)
	}
	return nil
}

func (s *Session) RemoveItem(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM local_storage WHERE session_id = ? AND item_key = ?`), s.sid, key)
	if err != nil {
		return fmt.Errorf("local storage remove %s: %w", key, err)
	}
	return nil
}
