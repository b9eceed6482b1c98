package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/infrastructure/resilience"
)

const (
	workerQueueGroup = "workers"
	ackOK            = "ok"
	ackErrorPrefix   = "error: "
)

// Queue carries jobs to workers on subject, status updates back on
// subject.status and cancel requests on subject.cancel. Jobs and cancels are
// requests: a worker replies once it has taken the job or stopped it.
type Queue struct {
	conn       *nats.Conn
	subject    string
	ackTimeout time.Duration
	executor   *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	// AckTimeout bounds the wait for a worker to accept a job or a cancel.
	AckTimeout         time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	ackTimeout := options.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 2 * time.Second
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("pdf-qa-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:       conn,
		subject:    subject,
		ackTimeout: ackTimeout,
		executor:   options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func statusSubject(subject string) string { return subject + ".status" }

func cancelSubject(subject string) string { return subject + ".cancel" }

// PublishJob hands spec to one worker and waits for it to accept the job.
// No subscribed worker, no reply, or a rejection is ErrTemporary.
func (q *Queue) PublishJob(ctx context.Context, spec domain.JobSpec) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encode job spec: %w", err)
	}
	reply, err := q.request(ctx, q.subject, data)
	if err == nil {
		err = ackError(reply)
	}
	return jobAckError(err)
}

func (q *Queue) PublishStatus(ctx context.Context, update domain.JobUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode job update: %w", err)
	}
	return q.publish(ctx, statusSubject(q.subject), data)
}

// PublishCancel asks the worker that owns jobID to stop it. When no worker
// answers the job is not running anywhere and ErrJobNotFound is returned.
func (q *Queue) PublishCancel(ctx context.Context, jobID string) error {
	reply, err := q.request(ctx, cancelSubject(q.subject), []byte(jobID))
	if err == nil {
		err = ackError(reply)
	}
	return cancelAckError(jobID, err)
}

// SubscribeJobs delivers each job to one member of the worker queue group and
// blocks until ctx is done. The handler's result is sent back as the ack.
func (q *Queue) SubscribeJobs(ctx context.Context, handler func(context.Context, domain.JobSpec) error) error {
	return q.subscribe(ctx, q.subject, workerQueueGroup, func(msgCtx context.Context, msg *nats.Msg) error {
		var spec domain.JobSpec
		err := json.Unmarshal(msg.Data, &spec)
		if err != nil {
			err = fmt.Errorf("decode job spec: %w", err)
		} else {
			err = handler(msgCtx, spec)
		}
		respond(msg, err)
		return err
	})
}

// SubscribeStatus delivers every status update and blocks until ctx is done.
func (q *Queue) SubscribeStatus(ctx context.Context, handler func(context.Context, domain.JobUpdate) error) error {
	return q.subscribe(ctx, statusSubject(q.subject), "", func(msgCtx context.Context, msg *nats.Msg) error {
		var update domain.JobUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			return fmt.Errorf("decode job update: %w", err)
		}
		return handler(msgCtx, update)
	})
}

// SubscribeCancels delivers cancel requests to every worker. Only a worker
// whose handler succeeds replies; ErrJobNotFound means the job is not ours.
func (q *Queue) SubscribeCancels(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, cancelSubject(q.subject), "", func(msgCtx context.Context, msg *nats.Msg) error {
		err := handler(msgCtx, string(msg.Data))
		if domain.IsKind(err, domain.ErrJobNotFound) {
			return nil
		}
		respond(msg, err)
		return err
	})
}

func respond(msg *nats.Msg, err error) {
	if msg.Reply == "" {
		return
	}
	payload := ackOK
	if err != nil {
		payload = ackErrorPrefix + err.Error()
	}
	if respondErr := msg.Respond([]byte(payload)); respondErr != nil {
		slog.Warn("nats_respond_failed", "subject", msg.Subject, "error", respondErr)
	}
}

func ackError(reply []byte) error {
	text := string(reply)
	if text == ackOK {
		return nil
	}
	return errors.New(strings.TrimPrefix(text, ackErrorPrefix))
}

func jobAckError(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary):
		return err
	case errors.Is(err, nats.ErrNoResponders):
		return domain.WrapError(domain.ErrTemporary, "dispatch job", fmt.Errorf("no worker is subscribed: %w", err))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
		return domain.WrapError(domain.ErrTemporary, "dispatch job", fmt.Errorf("no worker accepted the job: %w", err))
	default:
		return domain.WrapError(domain.ErrTemporary, "dispatch job", fmt.Errorf("worker rejected the job: %w", err))
	}
}

func cancelAckError(jobID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, nats.ErrTimeout):
		return domain.WrapError(domain.ErrJobNotFound, "cancel job", fmt.Errorf("no worker owns %s: %w", jobID, err))
	default:
		return wrapTemporaryIfNeeded(fmt.Errorf("cancel job %s: %w", jobID, err))
	}
}

func (q *Queue) request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	var reply []byte
	call := func(callCtx context.Context) error {
		reqCtx, cancel := context.WithTimeout(callCtx, q.ackTimeout)
		defer cancel()
		msg, err := q.conn.RequestWithContext(reqCtx, subject, data)
		if err != nil {
			return fmt.Errorf("nats request %s: %w", subject, err)
		}
		reply = msg.Data
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.request", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return reply, err
}

func (q *Queue) publish(ctx context.Context, subject string, data []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *Queue) subscribe(ctx context.Context, subject, group string, handler func(context.Context, *nats.Msg) error) error {
	callback := func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		if err := handler(ctx, msg); err != nil {
			slog.Error("nats_handler_failed", "subject", subject, "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group != "" {
		sub, err = q.conn.QueueSubscribe(subject, group, callback)
	} else {
		sub, err = q.conn.Subscribe(subject, callback)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
