package content

import (
	"time"

	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/tracking"
)

// SendContext carries everything a stage may need to render one email for
// one recipient. Missing fields render as empty strings, never as errors.
type SendContext struct {
	CampaignID   int64
	CampaignName string
	Contact      model.Contact
	// Recipients are the co-recipients at the contact's company, used by
	// the {{recipients}} placeholder on company-wide campaigns.
	Recipients []model.Contact
	// Now overrides the clock for {{date}}; zero means time.Now().
	Now time.Time
}

func (ctx SendContext) now() time.Time {
	if ctx.Now.IsZero() {
		return time.Now()
	}
	return ctx.Now
}

// Stage is one content transformation. Stages are pure: same input, same
// output, no side effects.
type Stage func(content string, ctx SendContext) string

// Pipeline folds an ordered list of stages over raw template content.
type Pipeline struct {
	stages []Stage
}

// New builds a pipeline from an explicit stage chain.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Default builds the standard chain: sanitize, placeholder substitution,
// tracking injection, footer injection, in that fixed order. Running the
// default pipeline on its own output is a no-op.
func Default(codec *tracking.Codec, appName string) *Pipeline {
	return New(
		Sanitize,
		Substitute,
		InjectTracking(codec),
		InjectFooter(codec, appName),
	)
}

// Append adds a stage after the existing chain.
func (p *Pipeline) Append(s Stage) *Pipeline {
	p.stages = append(p.stages, s)
	return p
}

// Render applies every stage in order and returns the final HTML.
func (p *Pipeline) Render(raw string, ctx SendContext) string {
	out := raw
	for _, s := range p.stages {
		out = s(out, ctx)
	}
	return out
}
