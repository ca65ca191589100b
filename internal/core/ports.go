package core

import (
	"context"
	"time"
)

// GenerateOptions carries per-request generation parameters
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BackendClient is one reusable connection to the inference backend.
// A client is exclusively owned by whichever caller currently holds it.
type BackendClient interface {
	// ListModels returns the model identifiers the backend serves
	ListModels(ctx context.Context) ([]string, error)

	// Generate runs a single text generation request
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Close releases the underlying connection
	Close() error
}

// BackendDialer establishes connections to the inference backend
type BackendDialer interface {
	// Connect establishes a new backend connection
	Connect(ctx context.Context) (BackendClient, error)
}

// ProfileStore is the persistence capability for sender profiles,
// preferences and the append-only classification and correction logs
type ProfileStore interface {
	// GetPreference retrieves a stored preference value
	GetPreference(ctx context.Context, key string) (string, error)

	// SetPreference stores a preference value
	SetPreference(ctx context.Context, key string, value string) error

	// GetProfile retrieves the profile for a sender, or nil if none exists
	GetProfile(ctx context.Context, senderKey string) (*SenderProfile, error)

	// UpsertProfile creates or updates a sender profile. The email
	// counter is owned by IncrementEmailCount and is not written here.
	UpsertProfile(ctx context.Context, profile *SenderProfile) error

	// IncrementEmailCount atomically bumps a sender's email counter,
	// creating a default profile row if none exists
	IncrementEmailCount(ctx context.Context, senderKey string) error

	// AppendClassification appends one classification log row
	AppendClassification(ctx context.Context, rec *ClassificationRecord) error

	// AppendCorrection appends one correction event
	AppendCorrection(ctx context.Context, event *CorrectionEvent) error

	// QueryClassifications returns classification rows within [from, to)
	QueryClassifications(ctx context.Context, from, to time.Time) ([]ClassificationRecord, error)

	// QueryCorrections returns correction events within [from, to),
	// optionally restricted to one sender (empty sender matches all)
	QueryCorrections(ctx context.Context, sender string, from, to time.Time) ([]CorrectionEvent, error)
}
