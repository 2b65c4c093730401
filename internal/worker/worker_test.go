package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"labcaja/internal/infra"
	"labcaja/internal/model"
	"labcaja/internal/repository"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { retryUnit = time.Millisecond }

func encodedJob(t *testing.T, jobType string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	out, err := json.Marshal(Job{Type: jobType, Payload: data})
	require.NoError(t, err)
	return out
}

// ── Dispatcher ───────────────────────────────────────────────────────────────

func TestDispatcher_EnqueueClosingReport(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	payload := ClosingReportPayload{SessionID: uuid.NewString()}
	mock.ExpectLPush(QueueClosingReport, encodedJob(t, JobClosingReport, payload)).SetVal(1)

	err := NewDispatcher(rdb).EnqueueClosingReport(context.Background(), payload)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcher_EnqueueFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	payload := EmailJobPayload{ToEmail: "admin@laboratorio.test", Subject: "Cierre"}
	mock.ExpectLPush(QueueEmail, encodedJob(t, JobEmail, payload)).SetErr(errors.New("connection refused"))

	err := NewDispatcher(rdb).EnqueueEmail(context.Background(), payload)
	assert.ErrorContains(t, err, "enqueue email")
}

// ── Pool routing ─────────────────────────────────────────────────────────────

type recordingHandler struct {
	got []json.RawMessage
	err error
}

func (h *recordingHandler) Process(_ context.Context, raw json.RawMessage) error {
	h.got = append(h.got, raw)
	return h.err
}

func TestPool_RoutesByType(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	reports := &recordingHandler{}
	emails := &recordingHandler{}
	p := NewPool(rdb, map[string]Handler{JobClosingReport: reports, JobEmail: emails}, nil)

	raw := encodedJob(t, JobClosingReport, ClosingReportPayload{SessionID: "abc"})
	p.processJob(context.Background(), QueueClosingReport, string(raw))

	require.Len(t, reports.got, 1)
	assert.JSONEq(t, `{"session_id":"abc"}`, string(reports.got[0]))
	assert.Empty(t, emails.got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ── ClosingReportWorker ──────────────────────────────────────────────────────

type reportRepo struct {
	repository.CajaRepository
	sess *model.CashSession
	reg  *model.CashRegister
	movs []model.Movement
}

func (r *reportRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	if r.sess == nil || r.sess.ID != id {
		return nil, errors.New("record not found")
	}
	return r.sess, nil
}

func (r *reportRepo) FindRegister(_ context.Context, _ uuid.UUID) (*model.CashRegister, error) {
	return r.reg, nil
}

func (r *reportRepo) ListMovements(_ context.Context, _ uuid.UUID) ([]model.Movement, error) {
	return r.movs, nil
}

func closedSession() (*model.CashRegister, *model.CashSession) {
	reg := &model.CashRegister{ID: uuid.New(), DisplayName: "Caja Recepción"}
	final := decimal.RequireFromString("940.00")
	system := decimal.RequireFromString("950.50")
	diff := decimal.RequireFromString("-10.50")
	closedAt := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	sess := &model.CashSession{
		ID:           uuid.New(),
		RegisterID:   reg.ID,
		InitialCash:  decimal.RequireFromString("1000.00"),
		FinalCash:    &final,
		SystemAmount: &system,
		Difference:   &diff,
		Status:       model.SessionClosed,
		OpenedAt:     closedAt.Add(-8 * time.Hour),
		ClosedAt:     &closedAt,
	}
	return reg, sess
}

func TestClosingReportWorker_RendersAndEnqueuesEmail(t *testing.T) {
	reg, sess := closedSession()
	rdb, mock := redismock.NewClientMock()

	w := NewClosingReportWorker(&reportRepo{sess: sess, reg: reg}, NewDispatcher(rdb), t.TempDir(), "admin@laboratorio.test", nil)
	attempts := 0
	w.render = func(_ *model.CashRegister, s *model.CashSession, _ []model.Movement, _ string) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("disk full")
		}
		return "/tmp/cierre_" + s.ID.String() + ".pdf", nil
	}

	mock.ExpectLPush(QueueEmail, encodedJob(t, JobEmail, EmailJobPayload{
		ToEmail: "admin@laboratorio.test",
		Subject: "Cierre de caja Caja Recepción",
		Body:    reportBody(reg, sess),
		PDFPath: "/tmp/cierre_" + sess.ID.String() + ".pdf",
	})).SetVal(1)

	raw, _ := json.Marshal(ClosingReportPayload{SessionID: sess.ID.String()})
	require.NoError(t, w.Process(context.Background(), raw))
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, reportBody(reg, sess), "Diferencia: -$ 10,50")
}

func TestClosingReportWorker_SkipsOpenSession(t *testing.T) {
	reg, sess := closedSession()
	sess.Status = model.SessionOpen

	w := NewClosingReportWorker(&reportRepo{sess: sess, reg: reg}, nil, t.TempDir(), "", nil)
	w.render = func(*model.CashRegister, *model.CashSession, []model.Movement, string) (string, error) {
		t.Fatal("render must not run for an open session")
		return "", nil
	}
	raw, _ := json.Marshal(ClosingReportPayload{SessionID: sess.ID.String()})
	assert.NoError(t, w.Process(context.Background(), raw))
}

func TestClosingReportWorker_InvalidPayload(t *testing.T) {
	w := NewClosingReportWorker(&reportRepo{}, nil, t.TempDir(), "", nil)
	assert.Error(t, w.Process(context.Background(), json.RawMessage(`{"session_id":"nope"}`)))
	assert.Error(t, w.Process(context.Background(), json.RawMessage(`not json`)))
}

// ── EmailWorker ──────────────────────────────────────────────────────────────

type flakyMailer struct {
	failures int
	sent     []string
}

func (m *flakyMailer) SendReport(to, _, _, _ string) error {
	if m.failures > 0 {
		m.failures--
		return errors.New("smtp timeout")
	}
	m.sent = append(m.sent, to)
	return nil
}

func TestEmailWorker_RetriesUntilSent(t *testing.T) {
	m := &flakyMailer{failures: 2}
	raw, _ := json.Marshal(EmailJobPayload{ToEmail: "admin@laboratorio.test"})

	require.NoError(t, NewEmailWorker(m).Process(context.Background(), raw))
	assert.Equal(t, []string{"admin@laboratorio.test"}, m.sent)
}

func TestEmailWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	m := &flakyMailer{failures: maxAttempts}
	raw, _ := json.Marshal(EmailJobPayload{ToEmail: "admin@laboratorio.test"})

	assert.ErrorContains(t, NewEmailWorker(m).Process(context.Background(), raw), "smtp timeout")
	assert.Empty(t, m.sent)
}

// ── Dead letters ─────────────────────────────────────────────────────────────

func TestPool_UnknownTypeIsDeadLettered(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	p := NewPool(rdb, map[string]Handler{}, infra.NewMetrics())
	failedAt := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return failedAt }

	raw := encodedJob(t, "desconocido", map[string]string{"a": "b"})
	entry, err := json.Marshal(DeadLetter{
		Queue:    QueueEmail,
		Type:     "desconocido",
		Payload:  json.RawMessage(`{"a":"b"}`),
		Error:    "no handler",
		FailedAt: failedAt,
	})
	require.NoError(t, err)
	mock.ExpectLPush(DLQPrefix+QueueEmail, entry).SetVal(1)

	p.processJob(context.Background(), QueueEmail, string(raw))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.DeadLettered.WithLabelValues(QueueEmail, "desconocido")))
}

func TestPool_FailedHandlerIsDeadLettered(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	failing := &recordingHandler{err: errors.New("pdf: disk full")}
	p := NewPool(rdb, map[string]Handler{JobClosingReport: failing}, nil)
	failedAt := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return failedAt }

	raw := encodedJob(t, JobClosingReport, ClosingReportPayload{SessionID: "abc"})
	entry, err := json.Marshal(DeadLetter{
		Queue:    QueueClosingReport,
		Type:     JobClosingReport,
		Payload:  json.RawMessage(`{"session_id":"abc"}`),
		Error:    "pdf: disk full",
		Attempts: maxAttempts,
		FailedAt: failedAt,
	})
	require.NoError(t, err)
	mock.ExpectLPush(DLQPrefix+QueueClosingReport, entry).SetVal(1)

	p.processJob(context.Background(), QueueClosingReport, string(raw))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplay_MovesDeadLettersBack(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	entry, err := json.Marshal(DeadLetter{
		Queue:   QueueClosingReport,
		Type:    JobClosingReport,
		Payload: json.RawMessage(`{"session_id":"abc"}`),
		Error:   "pdf: disk full",
	})
	require.NoError(t, err)

	mock.ExpectRPop(DLQPrefix + QueueClosingReport).SetVal(string(entry))
	mock.ExpectLPush(QueueClosingReport, encodedJob(t, JobClosingReport, ClosingReportPayload{SessionID: "abc"})).SetVal(1)
	mock.ExpectRPop(DLQPrefix + QueueClosingReport).RedisNil()

	moved, err := Replay(context.Background(), rdb, QueueClosingReport, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplay_StopsAtEntryWithoutPayload(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	entry, err := json.Marshal(DeadLetter{Queue: QueueEmail, Error: "invalid envelope"})
	require.NoError(t, err)

	mock.ExpectRPop(DLQPrefix + QueueEmail).SetVal(string(entry))
	mock.ExpectLPush(DLQPrefix+QueueEmail, string(entry)).SetVal(1)

	moved, err := Replay(context.Background(), rdb, QueueEmail, 10)
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// brpopCounter counts BRPOP commands sent by a client.
type brpopCounter struct{ n atomic.Int32 }

func (h *brpopCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *brpopCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "brpop" {
			h.n.Add(1)
		}
		return next(ctx, cmd)
	}
}

func (h *brpopCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestPool_BacksOffWhenRedisIsUnreachable(t *testing.T) {
	prev := popBackoff
	popBackoff = time.Hour
	defer func() { popBackoff = prev }()

	// Nothing listens on port 1: every dial is refused immediately.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer rdb.Close()
	counter := &brpopCounter{}
	rdb.AddHook(counter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewPool(rdb, map[string]Handler{}, nil).run(ctx, 1)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), counter.n.Load(), "a failed dequeue must wait before retrying")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop while backing off")
	}
}
