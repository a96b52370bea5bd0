package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ProbingEngine starts the primary engine and falls back to the secondary one
// when the primary reports ErrCapability. Permission errors are not retried.
type ProbingEngine struct {
	primary  Engine
	fallback Engine

	mu     sync.Mutex
	active Engine
}

func NewProbingEngine(primary, fallback Engine) *ProbingEngine {
	return &ProbingEngine{primary: primary, fallback: fallback, mu: sync.Mutex{}, active: nil}
}

func (p *ProbingEngine) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil && p.active.Active() {
		return ErrAlreadyCapturing
	}

	err := p.primary.Start(ctx)
	if err == nil {
		p.active = p.primary
		return nil
	}

	if !errors.Is(err, ErrCapability) || p.fallback == nil {
		return err
	}

	slog.Warn("primary capture unavailable, using fallback", "error", err)

	if err := p.fallback.Start(ctx); err != nil {
		return err
	}

	p.active = p.fallback

	return nil
}

func (p *ProbingEngine) Stop(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return Result{}, ErrNotCapturing
	}

	return p.active.Stop(ctx)
}

func (p *ProbingEngine) Discard(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil {
		p.active.Discard(ctx)
	}
}

func (p *ProbingEngine) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active != nil && p.active.Active()
}

func (p *ProbingEngine) Levels() []int16 {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active == nil {
		return nil
	}

	return active.Levels()
}
