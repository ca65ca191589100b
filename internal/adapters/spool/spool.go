package spool

import (
	"bufio"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

// Spool feeds the triage engine from a drop directory. Messages land
// in the incoming directory as RFC-822 files and are moved to the
// processed or failed directory once a batch has handled them.
type Spool struct {
	incoming  string
	processed string
	failed    string
	logger    *zap.Logger
}

// New creates a spool over the given directories, creating any that
// do not exist yet
func New(incoming, processed, failed string, logger *zap.Logger) (*Spool, error) {
	for _, dir := range []string{incoming, processed, failed} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create spool directory %s: %w", dir, err)
		}
	}
	return &Spool{
		incoming:  incoming,
		processed: processed,
		failed:    failed,
		logger:    logger,
	}, nil
}

// Scan parses every message waiting in the incoming directory and
// returns the emails alongside their file paths, index-aligned.
// Unparseable files are moved to the failed directory immediately.
func (s *Spool) Scan() ([]*core.Email, []string, error) {
	entries, err := os.ReadDir(s.incoming)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read spool directory: %w", err)
	}

	var emails []*core.Email
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(s.incoming, entry.Name())

		email, err := parseFile(path)
		if err != nil {
			s.logger.Warn("Discarding unparseable spool file",
				zap.String("file", path), zap.Error(err))
			if moveErr := s.move(path, s.failed); moveErr != nil {
				s.logger.Error("Failed to move spool file",
					zap.String("file", path), zap.Error(moveErr))
			}
			continue
		}
		emails = append(emails, email)
		paths = append(paths, path)
	}
	return emails, paths, nil
}

// Archive moves a handled spool file to the processed or failed
// directory depending on its outcome
func (s *Spool) Archive(path string, ok bool) error {
	dest := s.processed
	if !ok {
		dest = s.failed
	}
	return s.move(path, dest)
}

func (s *Spool) move(path, destDir string) error {
	dest := filepath.Join(destDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to archive spool file: %w", err)
	}
	return nil
}

func parseFile(path string) (*core.Email, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseMessage(file, path)
}

// ParseMessage parses an RFC-822 message. fallbackID is used as the
// email ID when the message carries no Message-Id header.
func ParseMessage(r io.Reader, fallbackID string) (*core.Email, error) {
	msg, err := mail.ReadMessage(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read email body: %w", err)
	}

	email := &core.Email{
		ID:      fallbackID,
		From:    msg.Header.Get("From"),
		To:      strings.Split(msg.Header.Get("To"), ","),
		Subject: msg.Header.Get("Subject"),
		Body:    string(bodyBytes),
		Headers: make(map[string][]string),
	}
	if id := msg.Header.Get("Message-Id"); id != "" {
		email.ID = id
	}
	for k, v := range msg.Header {
		email.Headers[k] = v
	}
	return email, nil
}
