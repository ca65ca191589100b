package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

// DefaultImportance is the neutral score assigned to senders with no history
const DefaultImportance = 0.5

// Config holds the classifier tuning knobs
type Config struct {
	// UpperThreshold and LowerThreshold bound the neutral importance
	// band; outside it the base tier is bumped up or down one step
	UpperThreshold float64
	LowerThreshold float64

	// BaseRate is the first-correction importance step. Each further
	// correction moves the score by BaseRate/(1+corrections), so the
	// step shrinks as evidence accumulates.
	BaseRate float64

	// AccuracyTarget is the percentage the accuracy report checks against
	AccuracyTarget float64
}

// DefaultConfig returns the standard tuning
func DefaultConfig() Config {
	return Config{
		UpperThreshold: 0.7,
		LowerThreshold: 0.3,
		BaseRate:       0.3,
		AccuracyTarget: 85.0,
	}
}

// Classifier adjusts model triage verdicts using learned per-sender
// importance and records feedback to converge that score over time.
// Reads never wait on correction writes; corrections for the same
// sender are serialized.
type Classifier struct {
	store  core.ProfileStore
	logger *zap.Logger
	cfg    Config

	mu          sync.Mutex
	senderLocks map[string]*sync.Mutex
}

// New creates a classifier backed by the given store
func New(store core.ProfileStore, cfg Config, logger *zap.Logger) *Classifier {
	if cfg.UpperThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Classifier{
		store:       store,
		logger:      logger,
		cfg:         cfg,
		senderLocks: make(map[string]*sync.Mutex),
	}
}

// senderLock returns the write lock for one sender
func (c *Classifier) senderLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.senderLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.senderLocks[key] = lock
	}
	return lock
}

// SenderKey normalizes an address for profile lookup
func SenderKey(sender string) string {
	return strings.ToLower(strings.TrimSpace(sender))
}

// ClassifyPriority enriches a base verdict with the sender's learned
// importance. A VIP sender is bumped one tier regardless of importance;
// otherwise importance outside the neutral band bumps the tier up or
// down one step. Confidence passes through untouched. Every call counts
// the email against the sender and appends a classification log row.
func (c *Classifier) ClassifyPriority(ctx context.Context, email *core.Email, base *core.BaseResult) (*core.EnrichedResult, error) {
	if email == nil || strings.TrimSpace(email.From) == "" {
		return nil, core.NewValidationError("sender", "must not be empty")
	}
	if base == nil {
		return nil, core.NewValidationError("base result", "must not be nil")
	}

	key := SenderKey(email.From)

	profile, err := c.store.GetProfile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load sender profile: %w", err)
	}

	importance := DefaultImportance
	vip := false
	if profile != nil {
		importance = profile.Importance
		vip = profile.VIP
	}

	priority := base.Priority
	switch {
	case vip:
		priority = priority.Raise()
	case importance > c.cfg.UpperThreshold:
		priority = priority.Raise()
	case importance < c.cfg.LowerThreshold:
		priority = priority.Lower()
	}

	if err := c.store.IncrementEmailCount(ctx, key); err != nil {
		c.logger.Error("Failed to count email for sender",
			zap.String("sender", key), zap.Error(err))
	}

	rec := &core.ClassificationRecord{
		MessageID: email.ID,
		Sender:    key,
		Priority:  priority,
		Timestamp: time.Now(),
	}
	if err := c.store.AppendClassification(ctx, rec); err != nil {
		c.logger.Error("Failed to append classification record",
			zap.String("sender", key), zap.Error(err))
	}

	c.logger.Debug("Classified email",
		zap.String("message_id", email.ID),
		zap.String("sender", key),
		zap.String("base_priority", base.Priority.String()),
		zap.String("priority", priority.String()),
		zap.Float64("importance", importance),
		zap.Bool("vip", vip))

	return &core.EnrichedResult{
		Priority:     priority,
		BasePriority: base.Priority,
		Indicator:    priority.Indicator(),
		Confidence:   base.Confidence,
		Summary:      base.Summary,
		ActionItems:  base.ActionItems,
		Sender:       key,
		VIPApplied:   vip,
		AnalyzedAt:   base.AnalyzedAt,
		ModelUsed:    base.ModelUsed,
	}, nil
}

// RecordUserOverride appends a correction event and nudges the sender's
// importance toward the direction of the override. The nudge magnitude
// is BaseRate/(1+correctionCount), so an established profile moves less
// per correction than a fresh one.
func (c *Classifier) RecordUserOverride(
	ctx context.Context,
	messageID string,
	sender string,
	originalPriority core.Priority,
	originalConfidence float64,
	userPriority core.Priority,
	reason string,
) error {
	if strings.TrimSpace(messageID) == "" {
		return core.NewValidationError("message id", "must not be empty")
	}
	if strings.TrimSpace(sender) == "" {
		return core.NewValidationError("sender", "must not be empty")
	}
	if originalPriority < core.PriorityLow || originalPriority > core.PriorityHigh {
		return core.NewValidationError("original priority", "unknown tier")
	}
	if userPriority < core.PriorityLow || userPriority > core.PriorityHigh {
		return core.NewValidationError("user priority", "unknown tier")
	}

	key := SenderKey(sender)

	lock := c.senderLock(key)
	lock.Lock()
	defer lock.Unlock()

	event := &core.CorrectionEvent{
		MessageID:          messageID,
		Sender:             key,
		OriginalPriority:   originalPriority,
		OriginalConfidence: originalConfidence,
		UserPriority:       userPriority,
		Reason:             reason,
		Timestamp:          time.Now(),
	}
	if err := c.store.AppendCorrection(ctx, event); err != nil {
		return fmt.Errorf("failed to append correction event: %w", err)
	}

	direction := 0.0
	switch {
	case userPriority > originalPriority:
		direction = 1.0
	case userPriority < originalPriority:
		direction = -1.0
	}

	profile, err := c.store.GetProfile(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load sender profile: %w", err)
	}
	if profile == nil {
		profile = &core.SenderProfile{
			SenderKey:  key,
			Importance: DefaultImportance,
		}
	}

	if direction != 0 {
		step := c.cfg.BaseRate / float64(1+profile.CorrectionCount)
		profile.Importance = clamp(profile.Importance+direction*step, 0, 1)
	}
	profile.CorrectionCount++
	profile.LastUpdated = time.Now()

	if err := c.store.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to persist sender profile: %w", err)
	}

	c.logger.Info("Recorded priority override",
		zap.String("message_id", messageID),
		zap.String("sender", key),
		zap.String("original", originalPriority.String()),
		zap.String("corrected", userPriority.String()),
		zap.Float64("importance", profile.Importance),
		zap.Int("correction_count", profile.CorrectionCount))

	return nil
}

// SetSenderVIP sets or clears the VIP flag. It does not touch the
// learned importance score and is safe to call repeatedly.
func (c *Classifier) SetSenderVIP(ctx context.Context, sender string, flag bool) error {
	if strings.TrimSpace(sender) == "" {
		return core.NewValidationError("sender", "must not be empty")
	}

	key := SenderKey(sender)

	lock := c.senderLock(key)
	lock.Lock()
	defer lock.Unlock()

	profile, err := c.store.GetProfile(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load sender profile: %w", err)
	}
	if profile == nil {
		profile = &core.SenderProfile{
			SenderKey:  key,
			Importance: DefaultImportance,
		}
	}

	profile.VIP = flag
	profile.LastUpdated = time.Now()

	if err := c.store.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to persist sender profile: %w", err)
	}

	c.logger.Info("Updated VIP flag",
		zap.String("sender", key),
		zap.Bool("vip", flag))

	return nil
}

// GetSenderStats returns the persisted profile for a sender, or the
// neutral default when the sender has never been seen
func (c *Classifier) GetSenderStats(ctx context.Context, sender string) (*core.SenderProfile, error) {
	if strings.TrimSpace(sender) == "" {
		return nil, core.NewValidationError("sender", "must not be empty")
	}

	key := SenderKey(sender)

	profile, err := c.store.GetProfile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load sender profile: %w", err)
	}
	if profile == nil {
		return &core.SenderProfile{
			SenderKey:  key,
			Importance: DefaultImportance,
		}, nil
	}
	return profile, nil
}

// GetClassificationAccuracy reports accuracy over the trailing window
// of the given number of days. Accuracy is the share of classifications
// the user did not correct; the trend compares the older half of the
// window against the newer half.
func (c *Classifier) GetClassificationAccuracy(ctx context.Context, days int) (*core.AccuracyReport, error) {
	if days <= 0 {
		return nil, core.NewValidationError("days", "must be positive")
	}

	now := time.Now()
	from := now.AddDate(0, 0, -days)

	classifications, err := c.store.QueryClassifications(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification log: %w", err)
	}
	corrections, err := c.store.QueryCorrections(ctx, "", from, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query correction log: %w", err)
	}

	report := &core.AccuracyReport{
		TotalClassified: len(classifications),
		TotalCorrected:  len(corrections),
		Trend:           "stable",
	}
	if report.TotalClassified == 0 {
		report.AccuracyPercentage = 0
		return report, nil
	}

	report.AccuracyPercentage = float64(report.TotalClassified-report.TotalCorrected) /
		float64(report.TotalClassified) * 100
	report.TargetMet = report.AccuracyPercentage >= c.cfg.AccuracyTarget
	report.Trend = trend(classifications, corrections, from, now)

	return report, nil
}

// trendDeadBand is the accuracy delta, in percentage points, below
// which the two window halves are considered equivalent
const trendDeadBand = 2.0

func trend(classifications []core.ClassificationRecord, corrections []core.CorrectionEvent, from, to time.Time) string {
	mid := from.Add(to.Sub(from) / 2)

	var earlyClassified, lateClassified int
	for _, rec := range classifications {
		if rec.Timestamp.Before(mid) {
			earlyClassified++
		} else {
			lateClassified++
		}
	}
	var earlyCorrected, lateCorrected int
	for _, ev := range corrections {
		if ev.Timestamp.Before(mid) {
			earlyCorrected++
		} else {
			lateCorrected++
		}
	}

	if earlyClassified < 2 || lateClassified < 2 {
		return "stable"
	}

	early := float64(earlyClassified-earlyCorrected) / float64(earlyClassified) * 100
	late := float64(lateClassified-lateCorrected) / float64(lateClassified) * 100

	switch {
	case late-early > trendDeadBand:
		return "improving"
	case early-late > trendDeadBand:
		return "declining"
	default:
		return "stable"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
