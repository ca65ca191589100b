package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the ProfileStore interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS preferences (
	pref_key TEXT PRIMARY KEY,
	pref_value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sender_profiles (
	sender_key TEXT PRIMARY KEY,
	importance REAL NOT NULL,
	correction_count INTEGER NOT NULL DEFAULT 0,
	email_count INTEGER NOT NULL DEFAULT 0,
	vip BOOLEAN NOT NULL DEFAULT 0,
	last_updated TIMESTAMP
);
CREATE TABLE IF NOT EXISTS classification_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT,
	sender TEXT NOT NULL,
	priority INTEGER NOT NULL,
	corrected BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_classification_created ON classification_log(created_at);
CREATE INDEX IF NOT EXISTS idx_classification_sender ON classification_log(sender);
CREATE TABLE IF NOT EXISTS correction_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL,
	sender TEXT NOT NULL,
	original_priority INTEGER NOT NULL,
	original_confidence REAL NOT NULL,
	user_priority INTEGER NOT NULL,
	reason TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_correction_created ON correction_log(created_at);
CREATE INDEX IF NOT EXISTS idx_correction_sender ON correction_log(sender);
`

// NewSQLiteStore creates a new SQLite profile store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger,
	}, nil
}

// GetPreference retrieves a stored preference value
func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT pref_value FROM preferences WHERE pref_key = ?
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query preference: %w", err)
	}
	return value, nil
}

// SetPreference stores a preference value
func (s *SQLiteStore) SetPreference(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO preferences (pref_key, pref_value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store preference: %w", err)
	}
	return nil
}

// GetProfile retrieves the profile for a sender, or nil if none exists
func (s *SQLiteStore) GetProfile(ctx context.Context, senderKey string) (*core.SenderProfile, error) {
	var profile core.SenderProfile
	var lastUpdated sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT sender_key, importance, correction_count, email_count, vip, last_updated
		FROM sender_profiles
		WHERE sender_key = ?
	`, senderKey).Scan(
		&profile.SenderKey,
		&profile.Importance,
		&profile.CorrectionCount,
		&profile.EmailCount,
		&profile.VIP,
		&lastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sender profile: %w", err)
	}

	if lastUpdated.Valid {
		ts, err := time.Parse(time.RFC3339, lastUpdated.String)
		if err != nil {
			s.logger.Warn("Failed to parse last_updated timestamp",
				zap.String("sender", senderKey), zap.Error(err))
		} else {
			profile.LastUpdated = ts
		}
	}

	return &profile, nil
}

// UpsertProfile creates or updates a sender profile. The email counter
// is owned by IncrementEmailCount and left untouched.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile *core.SenderProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_profiles (sender_key, importance, correction_count, email_count, vip, last_updated)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT(sender_key) DO UPDATE SET
			importance = excluded.importance,
			correction_count = excluded.correction_count,
			vip = excluded.vip,
			last_updated = excluded.last_updated
	`, profile.SenderKey, profile.Importance, profile.CorrectionCount,
		profile.VIP, profile.LastUpdated.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert sender profile: %w", err)
	}
	return nil
}

// IncrementEmailCount atomically bumps a sender's email counter,
// creating a neutral profile row if none exists
func (s *SQLiteStore) IncrementEmailCount(ctx context.Context, senderKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_profiles (sender_key, importance, correction_count, email_count, vip, last_updated)
		VALUES (?, 0.5, 0, 1, 0, ?)
		ON CONFLICT(sender_key) DO UPDATE SET
			email_count = email_count + 1
	`, senderKey, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to increment email count: %w", err)
	}
	return nil
}

// AppendClassification appends one classification log row
func (s *SQLiteStore) AppendClassification(ctx context.Context, rec *core.ClassificationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_log (message_id, sender, priority, corrected, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.MessageID, rec.Sender, int(rec.Priority), rec.Corrected,
		rec.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append classification record: %w", err)
	}
	return nil
}

// AppendCorrection appends one correction event
func (s *SQLiteStore) AppendCorrection(ctx context.Context, event *core.CorrectionEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correction_log
			(message_id, sender, original_priority, original_confidence, user_priority, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.MessageID, event.Sender, int(event.OriginalPriority), event.OriginalConfidence,
		int(event.UserPriority), event.Reason, event.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append correction event: %w", err)
	}
	return nil
}

// QueryClassifications returns classification rows within [from, to)
func (s *SQLiteStore) QueryClassifications(ctx context.Context, from, to time.Time) ([]core.ClassificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, sender, priority, corrected, created_at
		FROM classification_log
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at
	`, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query classification log: %w", err)
	}
	defer rows.Close()

	var out []core.ClassificationRecord
	for rows.Next() {
		var rec core.ClassificationRecord
		var priority int
		var createdAt string
		if err := rows.Scan(&rec.MessageID, &rec.Sender, &priority, &rec.Corrected, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan classification row: %w", err)
		}
		rec.Priority = core.Priority(priority)
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.Timestamp = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryCorrections returns correction events within [from, to),
// optionally restricted to one sender
func (s *SQLiteStore) QueryCorrections(ctx context.Context, sender string, from, to time.Time) ([]core.CorrectionEvent, error) {
	query := `
		SELECT message_id, sender, original_priority, original_confidence, user_priority, reason, created_at
		FROM correction_log
		WHERE created_at >= ? AND created_at < ?`
	args := []any{from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}
	if sender != "" {
		query += ` AND sender = ?`
		args = append(args, sender)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query correction log: %w", err)
	}
	defer rows.Close()

	var out []core.CorrectionEvent
	for rows.Next() {
		var ev core.CorrectionEvent
		var original, user int
		var createdAt string
		if err := rows.Scan(&ev.MessageID, &ev.Sender, &original, &ev.OriginalConfidence,
			&user, &ev.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction row: %w", err)
		}
		ev.OriginalPriority = core.Priority(original)
		ev.UserPriority = core.Priority(user)
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			ev.Timestamp = ts
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stop closes the database connection
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
