//go:build integration

package router_test

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"labcaja/internal/apierror"
	"labcaja/internal/cashdesk"
	"labcaja/internal/client"
	"labcaja/internal/config"
	"labcaja/internal/infra"
	"labcaja/internal/ledger"
	"labcaja/internal/middleware"
	"labcaja/internal/model"
	"labcaja/internal/router"
	"labcaja/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testSecret = "test-secret-key"

type testEnv struct {
	server    *httptest.Server
	branch    uuid.UUID
	main      uuid.UUID
	reception uuid.UUID
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx,
		"postgres:16-alpine",
		tcPostgres.WithDatabase("labcaja_test"),
		tcPostgres.WithUsername("labcaja"),
		tcPostgres.WithPassword("labcaja"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		JWTSecret:          testSecret,
		JWTExpirationHours: 8,
		RateLimit:          "1000-M",
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		WorkerPoolSize:     1,
		ReportStoragePath:  t.TempDir(),
	}

	// NewDatabase runs the embedded migrations.
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{branch: uuid.New(), main: uuid.New(), reception: uuid.New()}
	require.NoError(t, db.Create(&[]model.CashRegister{
		{ID: env.main, BranchID: env.branch, DisplayName: "Caja principal", Main: true, CurrentTotal: decimal.RequireFromString("5000.00"), UpdatedAt: time.Now()},
		{ID: env.reception, BranchID: env.branch, DisplayName: "Caja recepción", UpdatedAt: time.Now()},
	}).Error)

	r, err := router.New(router.Deps{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Metrics:    infra.NewMetrics(),
		Events:     infra.NopPublisher{},
		Dispatcher: worker.NewDispatcher(rdb),
	})
	require.NoError(t, err)

	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) token(t *testing.T, operator uuid.UUID, rol string) string {
	t.Helper()
	tok, err := middleware.IssueToken(testSecret, middleware.JWTClaims{
		OperatorID: operator.String(),
		Username:   "e2e",
		Rol:        rol,
		BranchID:   e.branch.String(),
	}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) desk(t *testing.T, register, operator uuid.UUID, rol string) *cashdesk.Desk {
	t.Helper()
	tr := client.NewHTTPTransport(client.Options{
		BaseURL: e.server.URL,
		Token:   e.token(t, operator, rol),
		Timeout: 10 * time.Second,
	})
	return cashdesk.NewDesk(tr, register, operator)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestE2E_SessionLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	operator := uuid.New()
	d := env.desk(t, env.reception, operator, middleware.RoleSupervisor)

	cur, err := d.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	sess, err := d.Open(ctx, dec("1000.00"))
	require.NoError(t, err)
	assert.Equal(t, model.SessionOpen, sess.Status)

	dep, err := d.RecordDeposit(ctx, cashdesk.MovementInput{
		PaymentMethod:         model.Cash,
		Amount:                dec("250.50"),
		Concept:               "Atención paciente",
		FromClinicalAttention: true,
	})
	require.NoError(t, err)
	assert.True(t, dec("1250.50").Equal(dep.NewAmount))

	wd, err := d.RecordWithdrawal(ctx, cashdesk.MovementInput{
		PaymentMethod: model.Cash,
		Amount:        dec("300.00"),
		Concept:       "Compra insumos",
	})
	require.NoError(t, err)
	assert.True(t, dec("950.50").Equal(wd.NewAmount))

	extra, err := d.RecordDeposit(ctx, cashdesk.MovementInput{
		PaymentMethod: model.QR,
		Amount:        dec("100.00"),
		Concept:       "Cargado por error",
	})
	require.NoError(t, err)
	require.NoError(t, d.CancelMovement(ctx, extra.ID))

	sum, err := d.RefreshSummary(ctx)
	require.NoError(t, err)
	assert.True(t, dec("950.50").Equal(sum.TotalCash))
	assert.Equal(t, 2, sum.MovementCount)

	ms, err := d.ListMovements(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, ms, 3)

	res, err := d.Close(ctx, dec("940.00"), nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, res.Session.Status)
	require.NotNil(t, res.Reconciliation)
	assert.True(t, dec("-10.50").Equal(res.Reconciliation.Difference))
	assert.Equal(t, ledger.ClassWarning, res.Reconciliation.Classification())

	cur, err = d.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestE2E_SecondOpenConflicts(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	first := env.desk(t, env.reception, uuid.New(), middleware.RoleCajero)
	_, err := first.Open(ctx, dec("100.00"))
	require.NoError(t, err)

	// A second desk that never loaded the session only learns about it from the backend.
	second := env.desk(t, env.reception, uuid.New(), middleware.RoleCajero)
	_, err = second.Open(ctx, dec("100.00"))
	require.Error(t, err)
	assert.True(t, apierror.IsConflict(err))
}

func TestE2E_TransferToMain(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	d := env.desk(t, env.reception, uuid.New(), middleware.RoleCajero)

	_, err := d.Open(ctx, dec("950.50"))
	require.NoError(t, err)

	res, err := d.Transfer(ctx, dec("500.00"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.TransferID)
	assert.True(t, dec("450.50").Equal(res.ReportedTotal))

	mainTotal, err := d.RefreshRegister(ctx, env.main)
	require.NoError(t, err)
	assert.True(t, dec("5500.00").Equal(mainTotal.Amount))
	assert.Equal(t, cashdesk.PhaseConfirmed, mainTotal.Phase)

	// The transfer is booked as an outflow of the open session.
	sum, err := d.RefreshSummary(ctx)
	require.NoError(t, err)
	assert.True(t, dec("450.50").Equal(sum.TotalCash))

	_, err = d.Transfer(ctx, dec("1000.00"))
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}

func TestE2E_IdempotencyKeyReplay(t *testing.T) {
	env := setupTestEnv(t)
	tok := env.token(t, uuid.New(), middleware.RoleCajero)

	body, err := json.Marshal(map[string]any{"register_id": env.reception.String(), "initial_cash": 10})
	require.NoError(t, err)

	post := func() *http.Response {
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/caja/sesiones", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set(client.IdempotencyHeader, "open-"+env.reception.String())
		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusCreated, post().StatusCode)
	assert.Equal(t, http.StatusConflict, post().StatusCode)
}

func TestE2E_CancelRequiresSupervisor(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	d := env.desk(t, env.reception, uuid.New(), middleware.RoleCajero)

	_, err := d.Open(ctx, dec("100.00"))
	require.NoError(t, err)
	m, err := d.RecordDeposit(ctx, cashdesk.MovementInput{PaymentMethod: model.Cash, Amount: dec("10.00"), Concept: "Cobro"})
	require.NoError(t, err)

	err = d.CancelMovement(ctx, m.ID)
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestE2E_Health(t *testing.T) {
	env := setupTestEnv(t)
	resp, err := env.server.Client().Get(env.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
