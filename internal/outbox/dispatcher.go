package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/kestrelpay/banking-backend/internal/data/repos"
	"github.com/kestrelpay/banking-backend/internal/observability"
	"github.com/kestrelpay/banking-backend/internal/platform/dbctx"
	"github.com/kestrelpay/banking-backend/internal/platform/logger"
	"github.com/kestrelpay/banking-backend/internal/platform/pointers"
	"github.com/kestrelpay/banking-backend/internal/types"
)

var (
	ErrRepoRequired      = errors.New("outbox repo is required")
	ErrRegistryRequired  = errors.New("event registry is required")
	ErrPublisherRequired = errors.New("publisher is required")
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultBatchSize      = 20
	DefaultMaxRetries     = 3
	DefaultPublishTimeout = 10 * time.Second
)

type DispatcherConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxRetries     int
	PublishTimeout time.Duration
}

func (c *DispatcherConfig) normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
}

// CycleResult captures one dispatch cycle outcome. The buckets are
// exclusive: Failed counts publish failures that will be retried, Abandoned
// counts messages that became terminal this cycle (undecodable payload or
// retry ceiling reached).
type CycleResult struct {
	Fetched   int
	Published int
	Failed    int
	Abandoned int
}

// Dispatcher is the single background consumer of the outbox table. One
// instance runs per process; a cycle always completes its storage write
// before the next one starts, so cycles never overlap.
type Dispatcher struct {
	repo      repos.OutboxRepo
	registry  *Registry
	publisher Publisher
	log       *logger.Logger
	metrics   *observability.Metrics
	cfg       DispatcherConfig
}

func NewDispatcher(
	repo repos.OutboxRepo,
	registry *Registry,
	publisher Publisher,
	log *logger.Logger,
	metrics *observability.Metrics,
	cfg DispatcherConfig,
) (*Dispatcher, error) {
	if repo == nil {
		return nil, ErrRepoRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if publisher == nil {
		return nil, ErrPublisherRequired
	}
	cfg.normalize()
	return &Dispatcher{
		repo:      repo,
		registry:  registry,
		publisher: publisher,
		log:       log.With("worker", "OutboxDispatcher"),
		metrics:   metrics,
		cfg:       cfg,
	}, nil
}

// Run polls until ctx is cancelled. An initial cycle fires immediately so a
// fresh process drains backlog without waiting one full interval.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("outbox dispatcher started",
		"poll_interval", d.cfg.PollInterval.String(),
		"batch_size", d.cfg.BatchSize,
		"max_retries", d.cfg.MaxRetries,
	)
	defer d.log.Info("outbox dispatcher stopped")

	d.runCycleLogged(ctx)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.runCycleLogged(ctx)
		}
	}
}

func (d *Dispatcher) runCycleLogged(ctx context.Context) {
	res, err := d.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		d.log.Error("outbox cycle failed", "error", err)
		return
	}
	if res.Fetched > 0 {
		d.log.Info("outbox cycle complete",
			"fetched", res.Fetched,
			"published", res.Published,
			"failed", res.Failed,
			"abandoned", res.Abandoned,
		)
	}
}

// RunCycle processes one batch: fetch due messages oldest first, decode,
// publish, then persist every row mutation in one storage write. Messages
// that exhaust the retry ceiling stay in the table unprocessed for manual
// inspection; the retry filter excludes them from future batches.
func (d *Dispatcher) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	var res CycleResult

	dbc := dbctx.Context{Ctx: ctx}
	due, err := d.repo.ListDue(dbc, d.cfg.BatchSize, d.cfg.MaxRetries)
	if err != nil {
		return res, err
	}
	res.Fetched = len(due)
	if len(due) == 0 {
		return res, nil
	}

	touched := make([]*types.OutboxMessage, 0, len(due))
	for _, msg := range due {
		// Stop before starting a new message, never mid-write.
		if ctx.Err() != nil {
			break
		}
		d.processMessage(ctx, msg, &res)
		touched = append(touched, msg)
	}

	if err := d.repo.MarkBatch(dbc, touched); err != nil {
		return res, err
	}
	if d.metrics != nil {
		d.metrics.ObserveDispatchCycle(res.Fetched, res.Published, res.Failed, res.Abandoned, time.Since(start))
	}
	return res, ctx.Err()
}

func (d *Dispatcher) processMessage(ctx context.Context, msg *types.OutboxMessage, res *CycleResult) {
	event, err := d.registry.Decode(msg.EventType, msg.Payload)
	if err != nil {
		// An undecodable payload can never succeed; burn the remaining
		// retries instead of recycling it every interval.
		d.abandon(msg, err)
		res.Abandoned++
		d.log.Error("outbox message abandoned",
			"message_id", msg.ID.String(),
			"event_type", msg.EventType,
			"error", err,
		)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	err = d.publisher.Publish(pubCtx, event)
	cancel()
	if err != nil {
		msg.RetryCount++
		msg.LastError = pointers.String(err.Error())
		if msg.RetryCount >= d.cfg.MaxRetries {
			res.Abandoned++
		} else {
			res.Failed++
		}
		d.log.Warn("outbox publish failed",
			"message_id", msg.ID.String(),
			"event_type", msg.EventType,
			"retry_count", msg.RetryCount,
			"error", err,
		)
		return
	}

	now := time.Now().UTC()
	msg.ProcessedAt = &now
	msg.LastError = nil
	res.Published++
}

func (d *Dispatcher) abandon(msg *types.OutboxMessage, cause error) {
	msg.RetryCount = d.cfg.MaxRetries
	msg.LastError = pointers.String(cause.Error())
}
