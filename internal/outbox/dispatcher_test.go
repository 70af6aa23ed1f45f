package outbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kestrelpay/banking-backend/internal/domain/banking"
	"github.com/kestrelpay/banking-backend/internal/platform/dbctx"
	"github.com/kestrelpay/banking-backend/internal/platform/logger"
	"github.com/kestrelpay/banking-backend/internal/types"
)

type fakeOutboxRepo struct {
	rows       []*types.OutboxMessage
	markCalls  int
	markErr    error
	listErr    error
	lastMarked []*types.OutboxMessage
}

func (f *fakeOutboxRepo) CreateBatch(_ dbctx.Context, rows []*types.OutboxMessage) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeOutboxRepo) ListDue(_ dbctx.Context, batchSize, maxRetries int) ([]*types.OutboxMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*types.OutboxMessage
	for _, row := range f.rows {
		if row.ProcessedAt == nil && row.RetryCount < maxRetries {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	if len(out) > batchSize {
		out = out[:batchSize]
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkBatch(_ dbctx.Context, rows []*types.OutboxMessage) error {
	if f.markErr != nil {
		return f.markErr
	}
	if len(rows) > 0 {
		f.markCalls++
		f.lastMarked = rows
	}
	return nil
}

func (f *fakeOutboxRepo) ListBacklog(_ dbctx.Context, limit int) ([]*types.OutboxMessage, error) {
	var out []*types.OutboxMessage
	for _, row := range f.rows {
		if row.ProcessedAt == nil {
			out = append(out, row)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePublisher struct {
	published []banking.Event
	failTimes int
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, event banking.Event) error {
	if f.failTimes > 0 {
		f.failTimes--
		if f.err != nil {
			return f.err
		}
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, event)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestDispatcher(t *testing.T, repo *fakeOutboxRepo, pub Publisher, cfg DispatcherConfig) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(repo, NewRegistry(), pub, testLogger(t), nil, cfg)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func pendingRow(t *testing.T, occurredAt time.Time) *types.OutboxMessage {
	t.Helper()
	row, err := Encode(banking.AccountCreatedEvent{
		ID:            uuid.New(),
		OccurredAt:    occurredAt,
		AccountID:     uuid.New(),
		AccountNumber: "ACC1234567890",
		CustomerID:    uuid.New(),
		AccountType:   "checking",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return row
}

func TestRunCyclePublishesOldestFirst(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRepo{}
	newer := pendingRow(t, base.Add(time.Minute))
	older := pendingRow(t, base)
	repo.rows = []*types.OutboxMessage{newer, older}

	pub := &fakePublisher{}
	d := newTestDispatcher(t, repo, pub, DispatcherConfig{})

	res, err := d.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if res.Fetched != 2 || res.Published != 2 || res.Failed != 0 {
		t.Fatalf("cycle result: got=%+v", res)
	}
	if len(pub.published) != 2 {
		t.Fatalf("published: want=2 got=%d", len(pub.published))
	}
	if !pub.published[0].EventOccurredAt().Equal(base) {
		t.Fatal("older event must publish first")
	}
	for _, row := range repo.rows {
		if row.ProcessedAt == nil {
			t.Fatalf("row %s not marked processed", row.ID)
		}
		if row.LastError != nil {
			t.Fatalf("row %s kept stale error", row.ID)
		}
	}
	if repo.markCalls != 1 {
		t.Fatalf("mark calls: want=1 got=%d", repo.markCalls)
	}
}

func TestRunCycleRetriesUntilCeiling(t *testing.T) {
	repo := &fakeOutboxRepo{rows: []*types.OutboxMessage{pendingRow(t, time.Now().UTC())}}
	pub := &fakePublisher{failTimes: 10, err: fmt.Errorf("connection refused")}
	d := newTestDispatcher(t, repo, pub, DispatcherConfig{MaxRetries: 3})

	for i := 1; i <= 3; i++ {
		res, err := d.RunCycle(context.Background())
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if res.Fetched != 1 {
			t.Fatalf("cycle %d fetched: got=%+v", i, res)
		}
		// A message counts in exactly one bucket per cycle: retryable
		// failure until the last attempt, abandoned on the one that
		// exhausts the ceiling.
		if i < 3 {
			if res.Failed != 1 || res.Abandoned != 0 {
				t.Fatalf("cycle %d result: got=%+v", i, res)
			}
		} else {
			if res.Failed != 0 || res.Abandoned != 1 {
				t.Fatalf("cycle %d result: got=%+v", i, res)
			}
		}
		row := repo.rows[0]
		if row.RetryCount != i {
			t.Fatalf("cycle %d retry count: want=%d got=%d", i, i, row.RetryCount)
		}
		if row.LastError == nil || *row.LastError != "connection refused" {
			t.Fatalf("cycle %d last error: got=%v", i, row.LastError)
		}
	}

	// Past the ceiling the row stays in the table but leaves the batch.
	res, err := d.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("post-ceiling cycle: %v", err)
	}
	if res.Fetched != 0 {
		t.Fatalf("post-ceiling fetched: want=0 got=%d", res.Fetched)
	}
	if repo.rows[0].ProcessedAt != nil {
		t.Fatal("abandoned row must stay unprocessed for inspection")
	}

	backlog, err := repo.ListBacklog(dbctx.Context{Ctx: context.Background()}, 10)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(backlog) != 1 {
		t.Fatalf("backlog: want=1 got=%d", len(backlog))
	}
}

func TestRunCycleRecoversAfterTransientFailure(t *testing.T) {
	repo := &fakeOutboxRepo{rows: []*types.OutboxMessage{pendingRow(t, time.Now().UTC())}}
	pub := &fakePublisher{failTimes: 1}
	d := newTestDispatcher(t, repo, pub, DispatcherConfig{})

	if _, err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if repo.rows[0].RetryCount != 1 {
		t.Fatalf("retry count: want=1 got=%d", repo.rows[0].RetryCount)
	}

	res, err := d.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if res.Published != 1 {
		t.Fatalf("published: want=1 got=%d", res.Published)
	}
	row := repo.rows[0]
	if row.ProcessedAt == nil {
		t.Fatal("row must be processed after successful retry")
	}
	if row.LastError != nil {
		t.Fatalf("last error must clear on success, got=%v", *row.LastError)
	}
	if row.RetryCount != 1 {
		t.Fatalf("retry count survives success for audit: want=1 got=%d", row.RetryCount)
	}
}

func TestRunCycleAbandonsUndecodableMessage(t *testing.T) {
	bad := &types.OutboxMessage{
		ID:         uuid.New(),
		EventType:  "account.retired_event",
		Payload:    datatypes.JSON([]byte(`{}`)),
		OccurredAt: time.Now().UTC(),
	}
	repo := &fakeOutboxRepo{rows: []*types.OutboxMessage{bad}}
	pub := &fakePublisher{}
	d := newTestDispatcher(t, repo, pub, DispatcherConfig{MaxRetries: 3})

	res, err := d.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if res.Abandoned != 1 || res.Published != 0 {
		t.Fatalf("cycle result: got=%+v", res)
	}
	if bad.RetryCount != 3 {
		t.Fatalf("retry count must jump to ceiling: want=3 got=%d", bad.RetryCount)
	}
	if bad.LastError == nil {
		t.Fatal("abandon reason must be recorded")
	}
	if len(pub.published) != 0 {
		t.Fatal("undecodable message must never publish")
	}

	// The burned retries keep it out of every later batch.
	res, err = d.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if res.Fetched != 0 {
		t.Fatalf("second cycle fetched: want=0 got=%d", res.Fetched)
	}
}

func TestRunCycleStopsBetweenMessagesOnCancel(t *testing.T) {
	base := time.Now().UTC()
	repo := &fakeOutboxRepo{}
	for i := 0; i < 3; i++ {
		repo.rows = append(repo.rows, pendingRow(t, base.Add(time.Duration(i)*time.Second)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	pub := &cancelAfterFirstPublisher{cancel: cancel}
	d := newTestDispatcher(t, repo, pub, DispatcherConfig{})

	res, err := d.RunCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got=%v", err)
	}
	if res.Published != 1 {
		t.Fatalf("published before cancel: want=1 got=%d", res.Published)
	}
	// The finished message still gets its outcome written.
	if repo.markCalls != 1 {
		t.Fatalf("mark calls: want=1 got=%d", repo.markCalls)
	}
	if len(repo.lastMarked) != 1 {
		t.Fatalf("marked rows: want=1 got=%d", len(repo.lastMarked))
	}
}

type cancelAfterFirstPublisher struct {
	cancel context.CancelFunc
	calls  int
}

func (p *cancelAfterFirstPublisher) Publish(context.Context, banking.Event) error {
	p.calls++
	p.cancel()
	return nil
}

func TestNewDispatcherValidatesDeps(t *testing.T) {
	log := testLogger(t)
	if _, err := NewDispatcher(nil, NewRegistry(), &fakePublisher{}, log, nil, DispatcherConfig{}); !errors.Is(err, ErrRepoRequired) {
		t.Fatalf("want=%v got=%v", ErrRepoRequired, err)
	}
	if _, err := NewDispatcher(&fakeOutboxRepo{}, nil, &fakePublisher{}, log, nil, DispatcherConfig{}); !errors.Is(err, ErrRegistryRequired) {
		t.Fatalf("want=%v got=%v", ErrRegistryRequired, err)
	}
	if _, err := NewDispatcher(&fakeOutboxRepo{}, NewRegistry(), nil, log, nil, DispatcherConfig{}); !errors.Is(err, ErrPublisherRequired) {
		t.Fatalf("want=%v got=%v", ErrPublisherRequired, err)
	}
}
