package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"labcaja/internal/apierror"
	"labcaja/internal/dto"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// IdempotencyHeader carries one key per logical submission of a mutating request.
const IdempotencyHeader = "Idempotency-Key"

type idempotencyKeyCtx struct{}

// WithIdempotencyKey pins the key sent by mutating requests made with ctx, so resubmitting
// the same operation is recognized by the backend.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKeyFrom returns the key pinned with WithIdempotencyKey.
func IdempotencyKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyCtx{}).(string)
	return key, ok && key != ""
}

// Options configures an HTTPTransport.
type Options struct {
	BaseURL string
	Token   string        // bearer JWT of the operator
	Timeout time.Duration // default 15s

	// Breaker tuning; zero values take the defaults below.
	FailureThreshold uint32        // consecutive transport failures to trip (default 5)
	OpenTimeout      time.Duration // how long to stay open before probing (default 30s)

	HTTPClient *http.Client
}

// HTTPTransport implements Transport over the backend REST API.
// Transport-level failures (network errors, 5xx) trip a circuit breaker so a downed
// backend fails fast instead of stacking requests behind the timeout.
type HTTPTransport struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func NewHTTPTransport(opts Options) *HTTPTransport {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	threshold := opts.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "caja-api",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only transport failures count against the backend; a 409 or an abandoned call
		// is a healthy answer.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return apierror.KindOf(err) != apierror.KindTransport
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &HTTPTransport{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: hc,
		cb:         cb,
	}
}

func (t *HTTPTransport) OpenSession(ctx context.Context, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	var out dto.SessionResponse
	if err := t.do(ctx, http.MethodPost, "/v1/caja/sesiones", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) GetCurrentSession(ctx context.Context, registerID uuid.UUID) (*dto.SessionResponse, error) {
	var out dto.SessionResponse
	path := "/v1/caja/sesiones/actual?register_id=" + url.QueryEscape(registerID.String())
	if err := t.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) CloseSession(ctx context.Context, sessionID uuid.UUID, req dto.CloseSessionRequest) error {
	return t.do(ctx, http.MethodPost, "/v1/caja/sesiones/"+sessionID.String()+"/cerrar", req, nil)
}

func (t *HTTPTransport) RecordDeposit(ctx context.Context, req dto.MovementRequest) (*dto.MovementResponse, error) {
	return t.postMovement(ctx, "/v1/caja/movimientos/depositos", req)
}

func (t *HTTPTransport) RecordWithdrawal(ctx context.Context, req dto.MovementRequest) (*dto.MovementResponse, error) {
	return t.postMovement(ctx, "/v1/caja/movimientos/extracciones", req)
}

func (t *HTTPTransport) RecordLiquidationDeposit(ctx context.Context, req dto.LiquidationDepositRequest) (*dto.MovementResponse, error) {
	return t.postMovement(ctx, "/v1/caja/movimientos/liquidaciones", req)
}

func (t *HTTPTransport) postMovement(ctx context.Context, path string, req interface{}) (*dto.MovementResponse, error) {
	var out dto.MovementResponse
	if err := t.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error) {
	var out []dto.MovementResponse
	if err := t.do(ctx, http.MethodGet, "/v1/caja/sesiones/"+sessionID.String()+"/movimientos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *HTTPTransport) GetSummary(ctx context.Context, sessionID uuid.UUID) (*dto.SummaryResponse, error) {
	var out dto.SummaryResponse
	if err := t.do(ctx, http.MethodGet, "/v1/caja/sesiones/"+sessionID.String()+"/resumen", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) CancelMovement(ctx context.Context, movementID uuid.UUID) error {
	return t.do(ctx, http.MethodPost, "/v1/caja/movimientos/"+movementID.String()+"/anular", nil, nil)
}

func (t *HTTPTransport) TransferToMain(ctx context.Context, sourceRegisterID uuid.UUID, req dto.TransferRequest) (*dto.TransferResponse, error) {
	var out dto.TransferResponse
	if err := t.do(ctx, http.MethodPost, "/v1/caja/registradoras/"+sourceRegisterID.String()+"/vaciar", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) GetRegister(ctx context.Context, registerID uuid.UUID) (*dto.RegisterResponse, error) {
	var out dto.RegisterResponse
	if err := t.do(ctx, http.MethodGet, "/v1/caja/registradoras/"+registerID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request through the breaker and decodes a 2xx body into out (when non-nil).
func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := t.cb.Execute(func() (interface{}, error) {
		return nil, t.roundTrip(ctx, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apierror.NewTransportError(err)
	}
	return err
}

func (t *HTTPTransport) roundTrip(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &apierror.Error{Kind: apierror.KindUnexpected, Err: fmt.Errorf("caja: marshal request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return &apierror.Error{Kind: apierror.KindUnexpected, Err: fmt.Errorf("caja: create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		key, ok := IdempotencyKeyFrom(ctx)
		if !ok {
			key = uuid.NewString()
		}
		req.Header.Set(IdempotencyHeader, key)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return apierror.NewTransportError(fmt.Errorf("caja: backend unreachable: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apierror.NewTransportError(fmt.Errorf("caja: read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apierror.FromResponse(resp.StatusCode, raw)
		log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("kind", apiErr.Kind.String()).
			Msg("caja backend returned failure")
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apierror.Error{Kind: apierror.KindUnexpected, Status: resp.StatusCode, Err: fmt.Errorf("caja: decode response: %w", err)}
	}
	return nil
}

var _ Transport = (*HTTPTransport)(nil)
