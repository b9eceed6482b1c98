package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

type observerFake struct {
	mu       sync.Mutex
	started  int
	finished []error
	lags     int
}

func (o *observerFake) StartJob() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *observerFake) FinishJob(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
}

func (o *observerFake) ObserveQueueLag(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lags++
}

func waitFor(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for job")
		return nil
	}
}

func TestPoolRunsDispatchedJobs(t *testing.T) {
	done := make(chan error, 2)
	observer := &observerFake{}
	pool := NewPool(func(_ context.Context, spec domain.JobSpec) error {
		if spec.JobID == "bad" {
			return errors.New("boom")
		}
		return nil
	}, Options{Concurrency: 1, QueueSize: 4, Observer: observer})

	wrapped := pool.handler
	pool.handler = func(ctx context.Context, spec domain.JobSpec) error {
		err := wrapped(ctx, spec)
		done <- err
		return err
	}

	pool.Start(context.Background())
	defer pool.Stop()

	if err := pool.Dispatch(context.Background(), domain.JobSpec{JobID: "good", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := pool.Dispatch(context.Background(), domain.JobSpec{JobID: "bad"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if err := waitFor(t, done); err != nil {
		t.Fatalf("first job error = %v", err)
	}
	if err := waitFor(t, done); err == nil {
		t.Fatalf("expected second job to fail")
	}
	pool.Stop()

	if observer.started != 2 || len(observer.finished) != 2 || observer.lags != 1 {
		t.Fatalf("unexpected observer state: %+v", observer)
	}
}

func TestPoolDispatchFailsWhenQueueIsFull(t *testing.T) {
	pool := NewPool(func(context.Context, domain.JobSpec) error { return nil }, Options{QueueSize: 1})

	if err := pool.Dispatch(context.Background(), domain.JobSpec{JobID: "a"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	err := pool.Dispatch(context.Background(), domain.JobSpec{JobID: "b"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestPoolDispatchAfterStop(t *testing.T) {
	pool := NewPool(func(context.Context, domain.JobSpec) error { return nil }, Options{})
	pool.Start(context.Background())
	pool.Stop()

	err := pool.Dispatch(context.Background(), domain.JobSpec{JobID: "a"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestPoolCancelRunningJob(t *testing.T) {
	running := make(chan struct{})
	done := make(chan error, 1)
	pool := NewPool(func(ctx context.Context, _ domain.JobSpec) error {
		close(running)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}, Options{JobTimeout: time.Minute})
	pool.Start(context.Background())
	defer pool.Stop()

	if err := pool.Dispatch(context.Background(), domain.JobSpec{JobID: "job-1"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	<-running
	if err := pool.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if err := waitFor(t, done); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPoolCancelQueuedJob(t *testing.T) {
	done := make(chan error, 1)
	pool := NewPool(func(ctx context.Context, _ domain.JobSpec) error {
		done <- ctx.Err()
		return ctx.Err()
	}, Options{})

	if err := pool.Dispatch(context.Background(), domain.JobSpec{JobID: "job-1"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := pool.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	pool.Start(context.Background())
	defer pool.Stop()

	if err := waitFor(t, done); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPoolJobTimeout(t *testing.T) {
	done := make(chan error, 1)
	pool := NewPool(func(ctx context.Context, _ domain.JobSpec) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}, Options{JobTimeout: 20 * time.Millisecond})
	pool.Start(context.Background())
	defer pool.Stop()

	_ = pool.Dispatch(context.Background(), domain.JobSpec{JobID: "slow"})
	if err := waitFor(t, done); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestPoolCancelUnknownJob(t *testing.T) {
	pool := NewPool(func(context.Context, domain.JobSpec) error { return nil }, Options{})
	err := pool.Cancel(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestPoolRecoversHandlerPanic(t *testing.T) {
	observer := &observerFake{}
	finished := make(chan struct{})
	pool := NewPool(func(context.Context, domain.JobSpec) error {
		defer close(finished)
		panic("broken pdf")
	}, Options{Observer: observer})
	pool.Start(context.Background())

	_ = pool.Dispatch(context.Background(), domain.JobSpec{JobID: "job-1"})
	<-finished
	pool.Stop()

	if len(observer.finished) != 1 || observer.finished[0] == nil {
		t.Fatalf("expected panic to be reported as error, got %+v", observer.finished)
	}
}
