package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meetsync/internal/database"
	"meetsync/internal/models"
)

// SQLSessionBackend stores sessions in MySQL or SQLite
type SQLSessionBackend struct {
	db *database.DB
}

// NewSQLSessionBackend creates a backend over an initialized database
func NewSQLSessionBackend(db *database.DB) *SQLSessionBackend {
	return &SQLSessionBackend{db: db}
}

func (b *SQLSessionBackend) LoadSession(ctx context.Context, userID string) (*StoredSession, error) {
	var (
		stored      StoredSession
		uploadedAt  int64
		keepAliveAt sql.NullInt64
	)
	err := b.db.QueryRowContext(ctx, `
		SELECT user_id, cookies, uploaded_at, last_keepalive_at, active
		FROM sessions WHERE user_id = ?
	`, userID).Scan(&stored.UserID, &stored.CookieJar, &uploadedAt, &keepAliveAt, &stored.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	stored.UploadedAt = time.UnixMilli(uploadedAt).UTC()
	if keepAliveAt.Valid {
		t := time.UnixMilli(keepAliveAt.Int64).UTC()
		stored.LastKeepAliveAt = &t
	}
	return &stored, nil
}

func (b *SQLSessionBackend) SaveSession(ctx context.Context, session *StoredSession) error {
	var keepAliveAt sql.NullInt64
	if session.LastKeepAliveAt != nil {
		keepAliveAt = sql.NullInt64{Int64: session.LastKeepAliveAt.UnixMilli(), Valid: true}
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, session.UserID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (user_id, cookies, uploaded_at, last_keepalive_at, active)
			VALUES (?, ?, ?, ?, ?)
		`, session.UserID, session.CookieJar, session.UploadedAt.UnixMilli(), keepAliveAt, session.Active)
		return err
	})
}

func (b *SQLSessionBackend) DeleteSession(ctx context.Context, userID string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// AppendExecution inserts the record and deletes everything past the newest limit entries
func (b *SQLSessionBackend) AppendExecution(ctx context.Context, userID string, record models.ExecutionRecord, limit int) error {
	return b.inTx(ctx, func(tx *sql.Tx) error {
		var latest int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(recorded_at), 0) FROM executions WHERE user_id = ?`, userID,
		).Scan(&latest); err != nil {
			return err
		}
		recordedAt := time.Now().UnixNano()
		if recordedAt <= latest {
			recordedAt = latest + 1
		}

		var errMsg sql.NullString
		if record.Error != "" {
			errMsg = sql.NullString{String: record.Error, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO executions (id, user_id, recorded_at, started_at, completed_at, duration_ms,
				success, clips_count, meetings_count, transcripts_extracted, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, record.ID, userID, recordedAt, record.StartedAt.UnixMilli(), record.CompletedAt.UnixMilli(), record.DurationMs,
			record.Success, record.ClipsCount, record.MeetingsCount, record.TranscriptsExtracted, errMsg); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM executions WHERE user_id = ? ORDER BY recorded_at DESC`, userID)
		if err != nil {
			return err
		}
		var evict []string
		for i := 0; rows.Next(); i++ {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			if i >= limit {
				evict = append(evict, id)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, id := range evict {
			if _, err := tx.ExecContext(ctx, `DELETE FROM executions WHERE id = ?`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *SQLSessionBackend) ListExecutions(ctx context.Context, userID string) ([]models.ExecutionRecord, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, duration_ms, success,
			clips_count, meetings_count, transcripts_extracted, error_message
		FROM executions WHERE user_id = ?
		ORDER BY recorded_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.ExecutionRecord{}
	for rows.Next() {
		var (
			rec                  models.ExecutionRecord
			startedAt, completed int64
			errMsg               sql.NullString
		)
		if err := rows.Scan(&rec.ID, &startedAt, &completed, &rec.DurationMs, &rec.Success,
			&rec.ClipsCount, &rec.MeetingsCount, &rec.TranscriptsExtracted, &errMsg); err != nil {
			return nil, err
		}
		rec.StartedAt = time.UnixMilli(startedAt).UTC()
		rec.CompletedAt = time.UnixMilli(completed).UTC()
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (b *SQLSessionBackend) DeleteExecutions(ctx context.Context, userID string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM executions WHERE user_id = ?`, userID)
	return err
}

func (b *SQLSessionBackend) ActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT user_id FROM sessions WHERE active = ?`, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (b *SQLSessionBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *SQLSessionBackend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
