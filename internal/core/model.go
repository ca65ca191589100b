package core

import (
	"strings"
	"time"
)

// Email represents an email message handed to the triage core
type Email struct {
	ID      string
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// Priority is an ordinal triage tier
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String returns the display name of the tier
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Indicator returns the visual marker shown next to a tier
func (p Priority) Indicator() string {
	switch p {
	case PriorityLow:
		return "🟢"
	case PriorityMedium:
		return "🟡"
	case PriorityHigh:
		return "🔴"
	default:
		return "⚪"
	}
}

// Raise returns the next tier up, capped at High
func (p Priority) Raise() Priority {
	if p >= PriorityHigh {
		return PriorityHigh
	}
	return p + 1
}

// Lower returns the next tier down, capped at Low
func (p Priority) Lower() Priority {
	if p <= PriorityLow {
		return PriorityLow
	}
	return p - 1
}

// ParsePriority converts a tier name to a Priority. Matching is
// case-insensitive since model output is not reliably cased; unknown
// names fall back to Medium with ok=false.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	default:
		return PriorityMedium, false
	}
}

// BaseResult represents the raw triage verdict from the model,
// before any per-sender adjustment
type BaseResult struct {
	Priority    Priority
	Confidence  float64
	Summary     string
	ActionItems []string
	AnalyzedAt  time.Time
	ModelUsed   string
}

// EnrichedResult is a BaseResult adjusted by the classifier
type EnrichedResult struct {
	Priority     Priority
	BasePriority Priority
	Indicator    string
	Confidence   float64
	Summary      string
	ActionItems  []string
	Sender       string
	VIPApplied   bool
	AnalyzedAt   time.Time
	ModelUsed    string
}

// ItemStatus tags the outcome of a single batch item
type ItemStatus int

const (
	ItemSuccess ItemStatus = iota
	ItemError
	ItemTimeout
)

// ItemResult is the per-item outcome slot in a BatchResult.
// Failures and timeouts are values here, never propagated errors.
type ItemResult struct {
	ItemID  string
	Status  ItemStatus
	Result  *EnrichedResult
	Error   string
	Timeout bool
}

// BatchResult aggregates a full batch run.
// Total == Success+Failed == len(Results) always holds.
type BatchResult struct {
	Total      int
	Success    int
	Failed     int
	Results    []ItemResult
	Elapsed    time.Duration
	Throughput float64 // items per minute
}

// SenderProfile is the persisted learning state for one sender
type SenderProfile struct {
	SenderKey       string
	Importance      float64 // always within [0,1]
	CorrectionCount int
	EmailCount      int
	VIP             bool
	LastUpdated     time.Time
}

// CorrectionEvent records a single user override, append-only
type CorrectionEvent struct {
	MessageID          string
	Sender             string
	OriginalPriority   Priority
	OriginalConfidence float64
	UserPriority       Priority
	Reason             string
	Timestamp          time.Time
}

// ClassificationRecord is one row of the append-only classification log
type ClassificationRecord struct {
	MessageID string
	Sender    string
	Priority  Priority
	Corrected bool
	Timestamp time.Time
}

// AccuracyReport summarizes classification accuracy over a trailing window
type AccuracyReport struct {
	TotalClassified    int
	TotalCorrected     int
	AccuracyPercentage float64
	TargetMet          bool
	Trend              string // "improving", "stable" or "declining"
}
