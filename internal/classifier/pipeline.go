package classifier

import (
	"context"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
)

// Pipeline runs the model verdict and the per-sender enrichment as one
// step. It is what the dispatcher executes for each batch item.
type Pipeline struct {
	service    *core.TriageService
	classifier *Classifier
}

// NewPipeline creates the per-item processing pipeline
func NewPipeline(service *core.TriageService, classifier *Classifier) *Pipeline {
	return &Pipeline{
		service:    service,
		classifier: classifier,
	}
}

// Process analyzes one email on a leased backend connection and
// enriches the verdict with the sender's learned importance
func (p *Pipeline) Process(ctx context.Context, client core.BackendClient, email *core.Email) (*core.EnrichedResult, error) {
	base, err := p.service.Analyze(ctx, client, email)
	if err != nil {
		return nil, err
	}
	return p.classifier.ClassifyPriority(ctx, email, base)
}
