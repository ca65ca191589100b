package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the ProfileStore interface
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS preferences (
		pref_key VARCHAR(255) PRIMARY KEY,
		pref_value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sender_profiles (
		sender_key VARCHAR(255) PRIMARY KEY,
		importance DOUBLE NOT NULL,
		correction_count INT NOT NULL DEFAULT 0,
		email_count INT NOT NULL DEFAULT 0,
		vip BOOLEAN NOT NULL DEFAULT FALSE,
		last_updated TIMESTAMP NULL
	)`,
	`CREATE TABLE IF NOT EXISTS classification_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		message_id VARCHAR(255),
		sender VARCHAR(255) NOT NULL,
		priority INT NOT NULL,
		corrected BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		INDEX idx_classification_created (created_at),
		INDEX idx_classification_sender (sender)
	)`,
	`CREATE TABLE IF NOT EXISTS correction_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		message_id VARCHAR(255) NOT NULL,
		sender VARCHAR(255) NOT NULL,
		original_priority INT NOT NULL,
		original_confidence DOUBLE NOT NULL,
		user_priority INT NOT NULL,
		reason TEXT,
		created_at TIMESTAMP NOT NULL,
		INDEX idx_correction_created (created_at),
		INDEX idx_correction_sender (sender)
	)`,
}

// NewMySQLStore creates a new MySQL profile store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	// Timestamps scan as time.Time only with parseTime enabled
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	for _, stmt := range mysqlSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &MySQLStore{
		db:     db,
		logger: logger,
	}, nil
}

// GetPreference retrieves a stored preference value
func (s *MySQLStore) GetPreference(ctx context.Context, key string) (string, error) {
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
func (s *MySQLStore) SetPreference(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (pref_key, pref_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE pref_value = VALUES(pref_value)
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store preference: %w", err)
	}
	return nil
}

// GetProfile retrieves the profile for a sender, or nil if none exists
func (s *MySQLStore) GetProfile(ctx context.Context, senderKey string) (*core.SenderProfile, error) {
	var profile core.SenderProfile
	var lastUpdated sql.NullTime

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
		profile.LastUpdated = lastUpdated.Time
	}

	return &profile, nil
}

// UpsertProfile creates or updates a sender profile. The email counter
// is owned by IncrementEmailCount and left untouched.
func (s *MySQLStore) UpsertProfile(ctx context.Context, profile *core.SenderProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_profiles (sender_key, importance, correction_count, email_count, vip, last_updated)
		VALUES (?, ?, ?, 0, ?, ?)
		ON DUPLICATE KEY UPDATE
			importance = VALUES(importance),
			correction_count = VALUES(correction_count),
			vip = VALUES(vip),
			last_updated = VALUES(last_updated)
	`, profile.SenderKey, profile.Importance, profile.CorrectionCount,
		profile.VIP, profile.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert sender profile: %w", err)
	}
	return nil
}

// IncrementEmailCount atomically bumps a sender's email counter,
// creating a neutral profile row if none exists
func (s *MySQLStore) IncrementEmailCount(ctx context.Context, senderKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_profiles (sender_key, importance, correction_count, email_count, vip, last_updated)
		VALUES (?, 0.5, 0, 1, FALSE, ?)
		ON DUPLICATE KEY UPDATE email_count = email_count + 1
	`, senderKey, time.Now())
	if err != nil {
		return fmt.Errorf("failed to increment email count: %w", err)
	}
	return nil
}

// AppendClassification appends one classification log row
func (s *MySQLStore) AppendClassification(ctx context.Context, rec *core.ClassificationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_log (message_id, sender, priority, corrected, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.MessageID, rec.Sender, int(rec.Priority), rec.Corrected, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append classification record: %w", err)
	}
	return nil
}

// AppendCorrection appends one correction event
func (s *MySQLStore) AppendCorrection(ctx context.Context, event *core.CorrectionEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correction_log
			(message_id, sender, original_priority, original_confidence, user_priority, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.MessageID, event.Sender, int(event.OriginalPriority), event.OriginalConfidence,
		int(event.UserPriority), event.Reason, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append correction event: %w", err)
	}
	return nil
}

// QueryClassifications returns classification rows within [from, to)
func (s *MySQLStore) QueryClassifications(ctx context.Context, from, to time.Time) ([]core.ClassificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, sender, priority, corrected, created_at
		FROM classification_log
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification log: %w", err)
	}
	defer rows.Close()

	var out []core.ClassificationRecord
	for rows.Next() {
		var rec core.ClassificationRecord
		var priority int
		if err := rows.Scan(&rec.MessageID, &rec.Sender, &priority, &rec.Corrected, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan classification row: %w", err)
		}
		rec.Priority = core.Priority(priority)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryCorrections returns correction events within [from, to),
// optionally restricted to one sender
func (s *MySQLStore) QueryCorrections(ctx context.Context, sender string, from, to time.Time) ([]core.CorrectionEvent, error) {
	query := `
		SELECT message_id, sender, original_priority, original_confidence, user_priority, reason, created_at
		FROM correction_log
		WHERE created_at >= ? AND created_at < ?`
	args := []any{from, to}
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
		if err := rows.Scan(&ev.MessageID, &ev.Sender, &original, &ev.OriginalConfidence,
			&user, &ev.Reason, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan correction row: %w", err)
		}
		ev.OriginalPriority = core.Priority(original)
		ev.UserPriority = core.Priority(user)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stop closes the database connection
func (s *MySQLStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
