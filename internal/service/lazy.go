package service

import (
	"context"
	"sync"
)

// Lazy defers pipeline construction to the first question and reuses the
// result for the process lifetime. It replaces a package-level singleton: the
// handle is created explicitly and passed to whoever needs the pipeline, and
// sync.Once guarantees exactly one construction even under concurrent first
// callers.
//
// A construction error is sticky: every subsequent call returns the same
// error until the process restarts. Likewise an index rebuilt on disk after
// construction is not picked up until restart.
type Lazy struct {
	build func(ctx context.Context) (*Pipeline, error)

	once     sync.Once
	pipeline *Pipeline
	err      error
}

// NewLazy wraps the given constructor. The constructor runs at most once.
func NewLazy(build func(ctx context.Context) (*Pipeline, error)) *Lazy {
	return &Lazy{build: build}
}

// Get returns the pipeline, constructing it on the first call.
func (l *Lazy) Get(ctx context.Context) (*Pipeline, error) {
	l.once.Do(func() {
		l.pipeline, l.err = l.build(ctx)
	})
	return l.pipeline, l.err
}

// Ask resolves the pipeline and answers the question with it.
func (l *Lazy) Ask(ctx context.Context, question string) (Answer, error) {
	p, err := l.Get(ctx)
	if err != nil {
		return Answer{}, err
	}
	return p.Ask(ctx, question)
}

// Close releases the pipeline if it was ever constructed.
func (l *Lazy) Close() error {
	if l.pipeline == nil {
		return nil
	}
	return l.pipeline.Close()
}
