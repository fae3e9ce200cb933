package orchestrator

// Option adjusts pipeline behavior.
type Option func(*Pipeline)

// WithWorkers caps how many variations run concurrently. Values below 1
// are ignored and the pipeline stays sequential.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithTemplate overrides the default prompt template.
func WithTemplate(template string) Option {
	return func(p *Pipeline) {
		p.template = template
	}
}
