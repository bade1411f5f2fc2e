package internal

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrCaptionTimeout = errors.New("timed out waiting for caption")

type CaptionService interface {
	Create(ctx context.Context, imageURL string) (*CaptionJob, error)
	Get(ctx context.Context, id string) (*CaptionJob, error)
}

// CaptionPoller drives one caption job from creation to a terminal status.
type CaptionPoller struct {
	service     CaptionService
	period      time.Duration
	maxAttempts int
	timeout     time.Duration
}

func NewCaptionPoller(service CaptionService, config CaptionConfig) *CaptionPoller {
	period := config.PollInterval
	if period <= 0 {
		period = time.Second
	}

	return &CaptionPoller{
		service:     service,
		period:      period,
		maxAttempts: config.MaxAttempts,
		timeout:     config.Timeout,
	}
}

// Run creates the job and re-fetches it every period until it succeeds or
// fails. onUpdate sees every applied job state, in issue order. The returned
// error is a *RemoteError, ErrCaptionTimeout, a context error or a transport
// failure.
func (p *CaptionPoller) Run(ctx context.Context, imageURL string, onUpdate func(*CaptionJob)) (*CaptionJob, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	job, err := p.service.Create(ctx, imageURL)
	if err != nil {
		return nil, p.wrap(ctx, err)
	}
	onUpdate(job)

	attempts := 0
	for !job.Status.Terminal() {
		if p.maxAttempts > 0 && attempts >= p.maxAttempts {
			return job, ErrCaptionTimeout
		}

		// The wait starts after the previous response, however long it took.
		timer := time.NewTimer(p.period)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return job, p.wrap(ctx, ctx.Err())
		}

		attempts++
		next, err := p.service.Get(ctx, job.ID)
		if err != nil {
			return job, p.wrap(ctx, err)
		}

		slog.Info("Polled caption job", slog.String("id", job.ID), slog.String("status", string(next.Status)), slog.Int("attempt", attempts))

		job = next
		onUpdate(job)
	}

	return job, nil
}

// wrap maps the poller's own deadline onto ErrCaptionTimeout so callers can
// tell it apart from cancellation by the owner.
func (p *CaptionPoller) wrap(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrCaptionTimeout
	}
	return err
}
