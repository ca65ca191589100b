package classifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/adapters/store"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

func newTestClassifier(t *testing.T) (*Classifier, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore(zap.NewNop())
	return New(s, DefaultConfig(), zap.NewNop()), s
}

func email(from string) *core.Email {
	return &core.Email{ID: "msg-1", From: from, Subject: "hello"}
}

func baseResult(p core.Priority) *core.BaseResult {
	return &core.BaseResult{
		Priority:   p,
		Confidence: 0.8,
		Summary:    "a summary",
		AnalyzedAt: time.Now(),
		ModelUsed:  "test-model",
	}
}

func TestClassifyUnknownSenderKeepsBaseTier(t *testing.T) {
	t.Parallel()

	c, _ := newTestClassifier(t)
	ctx := context.Background()

	result, err := c.ClassifyPriority(ctx, email("new@example.com"), baseResult(core.PriorityMedium))
	if err != nil {
		t.Fatalf("ClassifyPriority failed: %v", err)
	}
	if result.Priority != core.PriorityMedium {
		t.Errorf("unknown sender should keep base tier, got %s", result.Priority)
	}
	if result.BasePriority != core.PriorityMedium {
		t.Errorf("base priority not retained: %s", result.BasePriority)
	}
	if result.Confidence != 0.8 {
		t.Errorf("confidence must pass through unmodified, got %v", result.Confidence)
	}
	if result.Indicator == "" {
		t.Error("indicator missing")
	}
}

func TestClassifyVIPBumpsOneTier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		base core.Priority
		want core.Priority
	}{
		{core.PriorityLow, core.PriorityMedium},
		{core.PriorityMedium, core.PriorityHigh},
		{core.PriorityHigh, core.PriorityHigh}, // capped
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.base.String(), func(t *testing.T) {
			t.Parallel()

			c, _ := newTestClassifier(t)
			ctx := context.Background()

			if err := c.SetSenderVIP(ctx, "boss@example.com", true); err != nil {
				t.Fatalf("SetSenderVIP failed: %v", err)
			}

			result, err := c.ClassifyPriority(ctx, email("boss@example.com"), baseResult(tc.base))
			if err != nil {
				t.Fatalf("ClassifyPriority failed: %v", err)
			}
			if result.Priority != tc.want {
				t.Errorf("VIP %s -> %s, want %s", tc.base, result.Priority, tc.want)
			}
			if !result.VIPApplied {
				t.Error("VIPApplied not set")
			}
		})
	}
}

func TestClassifyImportanceThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		importance float64
		want       core.Priority
	}{
		{"above_upper_upgrades", 0.9, core.PriorityHigh},
		{"below_lower_downgrades", 0.1, core.PriorityLow},
		{"neutral_band_keeps", 0.5, core.PriorityMedium},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, s := newTestClassifier(t)
			ctx := context.Background()

			sender := fmt.Sprintf("%s@example.com", tc.name)
			if err := s.UpsertProfile(ctx, &core.SenderProfile{
				SenderKey:  sender,
				Importance: tc.importance,
			}); err != nil {
				t.Fatalf("UpsertProfile failed: %v", err)
			}

			result, err := c.ClassifyPriority(ctx, email(sender), baseResult(core.PriorityMedium))
			if err != nil {
				t.Fatalf("ClassifyPriority failed: %v", err)
			}
			if result.Priority != tc.want {
				t.Errorf("importance %.1f: got %s, want %s", tc.importance, result.Priority, tc.want)
			}
		})
	}
}

func TestClassifyCountsEmails(t *testing.T) {
	t.Parallel()

	c, _ := newTestClassifier(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.ClassifyPriority(ctx, email("busy@example.com"), baseResult(core.PriorityLow)); err != nil {
			t.Fatalf("ClassifyPriority failed: %v", err)
		}
	}

	profile, err := c.GetSenderStats(ctx, "busy@example.com")
	if err != nil {
		t.Fatalf("GetSenderStats failed: %v", err)
	}
	if profile.EmailCount != 3 {
		t.Errorf("EmailCount = %d, want 3", profile.EmailCount)
	}
}

func TestClassifyValidation(t *testing.T) {
	t.Parallel()

	c, _ := newTestClassifier(t)
	ctx := context.Background()

	if _, err := c.ClassifyPriority(ctx, email("  "), baseResult(core.PriorityLow)); !core.IsValidationError(err) {
		t.Errorf("blank sender: expected validation error, got %v", err)
	}
	if _, err := c.ClassifyPriority(ctx, email("a@b.c"), nil); !core.IsValidationError(err) {
		t.Errorf("nil base: expected validation error, got %v", err)
	}
}

func TestOverridesConvergeWithDiminishingSteps(t *testing.T) {
	t.Parallel()

	c, _ := newTestClassifier(t)
	ctx := context.Background()

	sender := "learner@example.com"
	prev, err := c.GetSenderStats(ctx, sender)
	if err != nil {
		t.Fatalf("GetSenderStats failed: %v", err)
	}
	if prev.Importance != 0.5 {
		t.Fatalf("fresh sender importance = %v, want 0.5", prev.Importance)
	}

	lastStep := 2.0
	for i := 0; i < 5; i++ {
		msgID := fmt.Sprintf("msg-%d", i)
		if err := c.RecordUserOverride(ctx, msgID, sender,
			core.PriorityLow, 0.7, core.PriorityHigh, "this matters"); err != nil {
			t.Fatalf("RecordUserOverride failed: %v", err)
		}

		profile, err := c.GetSenderStats(ctx, sender)
		if err != nil {
			t.Fatalf("GetSenderStats failed: %v", err)
		}

		step := profile.Importance - prev.Importance
		if step <= 0 {
			t.Fatalf("correction %d did not increase importance: %v -> %v",
				i+1, prev.Importance, profile.Importance)
		}
		if step >= lastStep {
			t.Fatalf("correction %d step %v not smaller than previous %v", i+1, step, lastStep)
		}
		if profile.Importance < 0 || profile.Importance > 1 {
			t.Fatalf("importance out of range: %v", profile.Importance)
		}
		if profile.CorrectionCount != i+1 {
			t.Fatalf("CorrectionCount = %d, want %d", profile.CorrectionCount, i+1)
		}

		lastStep = step
		prev = profile
	}
}

func TestOverrideDowngradeMovesTowardZero(t *testing.T) {
	t.Parallel()

	c, _ := newTestClassifier(t)
	ctx := context.Background()

	sender := "noisy@example.com"
	if err := c.RecordUserOverride(ctx, "msg-1", sender,
		core.PriorityHigh, 0.9, core.PriorityLow, "newsletter"); err != nil {
		t.Fatalf("RecordUserOverride failed: %v", err)
	}

	profile, err := c.GetSenderStats(ctx, sender)
	if err != nil {
		t.Fatalf("GetSenderStats failed: %v", err)
	}
	if profile.Importance >= 0.5 {
		t.Errorf("downgrade should reduce importance, got %v", profile.Importance)
	}
}

func TestOverrideEqualTierRecordsWithoutNudge(t *testing.T) {
	t.Parallel()

	c, s := newTestClassifier(t)
	ctx := context.Background()

	sender := "same@example.com"
	if err := c.RecordUserOverride(ctx, "msg-1", sender,
		core.PriorityMedium, 0.6, core.PriorityMedium, ""); err != nil {
		t.Fatalf("RecordUserOverride failed: %v", err)
	}

	profile, err := c.GetSenderStats(ctx, sender)
	if err != nil {
		t.Fatalf("GetSenderStats failed: %v", err)
	}
	if profile.Importance != 0.5 {
		t.Errorf("equal-tier override must not move importance, got %v", profile.Importance)
	}
	if profile.CorrectionCount != 1 {
		t.Errorf("CorrectionCount = %d, want 1", profile.CorrectionCount)
	}

	events, err := s.QueryCorrections(ctx, sender, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("QueryCorrections failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("correction event not appended, got %d", len(events))
	}
}

func TestSetSenderVIPLeavesImportanceAlone(t *testing.T) {
	t.Parallel()

	c, _ := newTestClassifier(t)
	ctx := context.Background()

	if err := c.SetSenderVIP(ctx, "ceo@example.com", true); err != nil {
		t.Fatalf("SetSenderVIP failed: %v", err)
	}
	// Repeat to confirm idempotency
	if err := c.SetSenderVIP(ctx, "ceo@example.com", true); err != nil {
		t.Fatalf("second SetSenderVIP failed: %v", err)
	}

	profile, err := c.GetSenderStats(ctx, "ceo@example.com")
	if err != nil {
		t.Fatalf("GetSenderStats failed: %v", err)
	}
	if !profile.VIP {
		t.Error("VIP flag not set")
	}
	if profile.Importance != 0.5 {
		t.Errorf("importance should stay 0.5 until first correction, got %v", profile.Importance)
	}
}

func TestGetClassificationAccuracy(t *testing.T) {
	t.Parallel()

	c, s := newTestClassifier(t)
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 100; i++ {
		rec := &core.ClassificationRecord{
			MessageID: fmt.Sprintf("msg-%d", i),
			Sender:    "bulk@example.com",
			Priority:  core.PriorityMedium,
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
		}
		if err := s.AppendClassification(ctx, rec); err != nil {
			t.Fatalf("AppendClassification failed: %v", err)
		}
	}
	for i := 0; i < 20; i++ {
		ev := &core.CorrectionEvent{
			MessageID:        fmt.Sprintf("msg-%d", i),
			Sender:           "bulk@example.com",
			OriginalPriority: core.PriorityMedium,
			UserPriority:     core.PriorityHigh,
			Timestamp:        now.Add(-time.Duration(i) * time.Hour),
		}
		if err := s.AppendCorrection(ctx, ev); err != nil {
			t.Fatalf("AppendCorrection failed: %v", err)
		}
	}

	report, err := c.GetClassificationAccuracy(ctx, 30)
	if err != nil {
		t.Fatalf("GetClassificationAccuracy failed: %v", err)
	}
	if report.TotalClassified != 100 || report.TotalCorrected != 20 {
		t.Fatalf("counts: %d/%d, want 100/20", report.TotalClassified, report.TotalCorrected)
	}
	if report.AccuracyPercentage != 80.0 {
		t.Errorf("accuracy = %v, want 80.0", report.AccuracyPercentage)
	}
	if report.TargetMet {
		t.Error("80%% must not meet an 85%% target")
	}
}

func TestAccuracyTrend(t *testing.T) {
	t.Parallel()

	c, s := newTestClassifier(t)
	ctx := context.Background()
	now := time.Now()

	// Older half: half the classifications corrected. Newer half: none.
	for i := 0; i < 10; i++ {
		ts := now.Add(-25 * 24 * time.Hour).Add(time.Duration(i) * time.Hour)
		if err := s.AppendClassification(ctx, &core.ClassificationRecord{
			MessageID: fmt.Sprintf("old-%d", i), Sender: "s@x", Timestamp: ts,
		}); err != nil {
			t.Fatal(err)
		}
		if i < 5 {
			if err := s.AppendCorrection(ctx, &core.CorrectionEvent{
				MessageID: fmt.Sprintf("old-%d", i), Sender: "s@x", Timestamp: ts,
			}); err != nil {
				t.Fatal(err)
			}
		}
	}
	for i := 0; i < 10; i++ {
		ts := now.Add(-2 * 24 * time.Hour).Add(time.Duration(i) * time.Hour)
		if err := s.AppendClassification(ctx, &core.ClassificationRecord{
			MessageID: fmt.Sprintf("new-%d", i), Sender: "s@x", Timestamp: ts,
		}); err != nil {
			t.Fatal(err)
		}
	}

	report, err := c.GetClassificationAccuracy(ctx, 30)
	if err != nil {
		t.Fatalf("GetClassificationAccuracy failed: %v", err)
	}
	if report.Trend != "improving" {
		t.Errorf("trend = %q, want improving", report.Trend)
	}
}

func TestAccuracyValidation(t *testing.T) {
	t.Parallel()

	c, _ := newTestClassifier(t)
	if _, err := c.GetClassificationAccuracy(context.Background(), 0); !core.IsValidationError(err) {
		t.Errorf("expected validation error for days=0, got %v", err)
	}
}
