package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"labcaja/internal/apierror"
	"labcaja/internal/dto"
	"labcaja/internal/middleware"
	"labcaja/internal/model"
	"labcaja/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// ── Stub service ─────────────────────────────────────────────────────────────

type stubCaja struct {
	service.CajaService

	openReq    dto.OpenSessionRequest
	openOp     uuid.UUID
	closeReq   dto.CloseSessionRequest
	movType    model.MovementType
	movReq     dto.MovementRequest
	liqID      *string
	transferOp uuid.UUID
	err        error
}

func (s *stubCaja) OpenSession(_ context.Context, op uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	s.openOp, s.openReq = op, req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.SessionResponse{SessionID: uuid.NewString(), RegisterID: req.RegisterID, Status: "OPEN", InitialCash: req.InitialCash}, nil
}

func (s *stubCaja) CurrentSession(_ context.Context, _ uuid.UUID) (*dto.SessionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.SessionResponse{Status: "OPEN"}, nil
}

func (s *stubCaja) CloseSession(_ context.Context, _ uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error) {
	s.closeReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.SessionResponse{Status: "CLOSED"}, nil
}

func (s *stubCaja) RecordMovement(_ context.Context, typ model.MovementType, req dto.MovementRequest, liq *string) (*dto.MovementResponse, error) {
	s.movType, s.movReq, s.liqID = typ, req, liq
	if s.err != nil {
		return nil, s.err
	}
	return &dto.MovementResponse{Type: string(typ), Amount: req.Amount}, nil
}

func (s *stubCaja) CancelMovement(_ context.Context, _ uuid.UUID) error { return s.err }

func (s *stubCaja) TransferToMain(_ context.Context, _ uuid.UUID, op uuid.UUID, req dto.TransferRequest) (*dto.TransferResponse, error) {
	s.transferOp = op
	if s.err != nil {
		return nil, s.err
	}
	return &dto.TransferResponse{TransferID: "t-1", NewTotal: decimal.RequireFromString("450.50")}, nil
}

// ── Harness ──────────────────────────────────────────────────────────────────

var operatorID = uuid.MustParse("0b6f3a52-7c1e-4d5e-9a3b-1f2e3d4c5b6a")

func newEngine(svc service.CajaService, rol string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	g := r.Group("/v1", func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{OperatorID: operatorID.String(), Rol: rol})
		c.Next()
	})
	caja := g.Group("/caja")
	h := NewCajaHandler(svc)
	caja.POST("/sesiones", h.AbrirSesion)
	caja.GET("/sesiones/actual", h.SesionActual)
	caja.POST("/sesiones/:id/cerrar", h.CerrarSesion)
	caja.POST("/movimientos/depositos", h.Deposito)
	caja.POST("/movimientos/extracciones", h.Extraccion)
	caja.POST("/movimientos/liquidaciones", h.Liquidacion)
	caja.POST("/movimientos/:id/anular", h.AnularMovimiento)
	caja.POST("/registradoras/:id/vaciar", h.Vaciar)
	return r
}

func call(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── Sessions ─────────────────────────────────────────────────────────────────

func TestAbrirSesion(t *testing.T) {
	svc := &stubCaja{}
	r := newEngine(svc, "cajero")
	reg := uuid.NewString()

	w := call(r, http.MethodPost, "/v1/caja/sesiones", `{"register_id":"`+reg+`","initial_cash":1000.5}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, operatorID, svc.openOp)
	assert.True(t, svc.openReq.InitialCash.Equal(decimal.RequireFromString("1000.5")))

	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OPEN", resp.Status)
}

func TestAbrirSesion_ValidationErrors(t *testing.T) {
	r := newEngine(&stubCaja{}, "cajero")

	w := call(r, http.MethodPost, "/v1/caja/sesiones", `{"register_id":"no-uuid","initial_cash":10.123}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body apierror.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "uuid", body.Fields["RegisterID"])
	assert.Equal(t, "money2", body.Fields["InitialCash"])

	w = call(r, http.MethodPost, "/v1/caja/sesiones", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAbrirSesion_Conflict(t *testing.T) {
	r := newEngine(&stubCaja{err: apierror.Conflict("Ya hay una sesión de caja abierta")}, "cajero")

	w := call(r, http.MethodPost, "/v1/caja/sesiones", `{"register_id":"`+uuid.NewString()+`","initial_cash":0}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"detail":"Ya hay una sesión de caja abierta"}`, w.Body.String())
}

func TestSesionActual(t *testing.T) {
	r := newEngine(&stubCaja{err: apierror.NotFound("No hay una sesión de caja abierta")}, "cajero")

	w := call(r, http.MethodGet, "/v1/caja/sesiones/actual?register_id="+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodGet, "/v1/caja/sesiones/actual?register_id=x", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCerrarSesion(t *testing.T) {
	svc := &stubCaja{}
	r := newEngine(svc, "cajero")

	w := call(r, http.MethodPost, "/v1/caja/sesiones/"+uuid.NewString()+"/cerrar", `{"final_cash":"950.50","observations":null}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "950.50", svc.closeReq.FinalCash)
	assert.Empty(t, w.Body.String(), "blind count: nothing is echoed back")

	w = call(r, http.MethodPost, "/v1/caja/sesiones/"+uuid.NewString()+"/cerrar", `{"final_cash":"950.5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = call(r, http.MethodPost, "/v1/caja/sesiones/abc/cerrar", `{"final_cash":"950.50"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// ── Movements ────────────────────────────────────────────────────────────────

func movement(sessionID string) string {
	return `{"session_id":"` + sessionID + `","payment_method":"CASH","amount":250.5,"concept":"  Pago  ","destination":"BRANCH_REGISTER"}`
}

func TestDepositoYExtraccion(t *testing.T) {
	svc := &stubCaja{}
	r := newEngine(svc, "cajero")

	w := call(r, http.MethodPost, "/v1/caja/movimientos/depositos", movement(uuid.NewString()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, model.Inflow, svc.movType)
	assert.Equal(t, "Pago", svc.movReq.Concept)
	assert.Nil(t, svc.liqID)

	w = call(r, http.MethodPost, "/v1/caja/movimientos/extracciones", movement(uuid.NewString()))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, model.Outflow, svc.movType)
}

func TestDeposito_UnknownPaymentMethod(t *testing.T) {
	r := newEngine(&stubCaja{}, "cajero")
	body := `{"session_id":"` + uuid.NewString() + `","payment_method":"BITCOIN","amount":1,"concept":"x","destination":"BRANCH_REGISTER"}`

	w := call(r, http.MethodPost, "/v1/caja/movimientos/depositos", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExtraccion_InsufficientBalance(t *testing.T) {
	r := newEngine(&stubCaja{err: apierror.Invalid("Saldo insuficiente en la caja")}, "cajero")

	w := call(r, http.MethodPost, "/v1/caja/movimientos/extracciones", movement(uuid.NewString()))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"detail":"Saldo insuficiente en la caja"}`, w.Body.String())
}

func TestLiquidacion(t *testing.T) {
	svc := &stubCaja{}
	r := newEngine(svc, "cajero")
	body := `{"session_id":"` + uuid.NewString() + `","payment_method":"TRANSFER","amount":1200,"concept":"Obra social","destination":"BRANCH_REGISTER","liquidation_id":" LIQ-42 "}`

	w := call(r, http.MethodPost, "/v1/caja/movimientos/liquidaciones", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, svc.liqID)
	assert.Equal(t, "LIQ-42", *svc.liqID)
	assert.Equal(t, model.Inflow, svc.movType)
}

func TestAnularMovimiento(t *testing.T) {
	r := newEngine(&stubCaja{}, "supervisor")
	assert.Equal(t, http.StatusNoContent, call(r, http.MethodPost, "/v1/caja/movimientos/"+uuid.NewString()+"/anular", "").Code)

	r = newEngine(&stubCaja{err: apierror.Conflict("El movimiento ya fue anulado")}, "supervisor")
	assert.Equal(t, http.StatusConflict, call(r, http.MethodPost, "/v1/caja/movimientos/"+uuid.NewString()+"/anular", "").Code)
}

// ── Registers ────────────────────────────────────────────────────────────────

func TestVaciar(t *testing.T) {
	svc := &stubCaja{}
	r := newEngine(svc, "cajero")

	w := call(r, http.MethodPost, "/v1/caja/registradoras/"+uuid.NewString()+"/vaciar", `{"amount":500}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"transfer_id":"t-1","new_total":450.5}`, w.Body.String())
	assert.Equal(t, operatorID, svc.transferOp)

	w = call(r, http.MethodPost, "/v1/caja/registradoras/"+uuid.NewString()+"/vaciar", `{"amount":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInternalErrorIsNotLeaked(t *testing.T) {
	r := newEngine(&stubCaja{err: errors.New("pq: connection reset by peer")}, "cajero")

	w := call(r, http.MethodPost, "/v1/caja/registradoras/"+uuid.NewString()+"/vaciar", `{"amount":5}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
	assert.JSONEq(t, `{"detail":"Error interno del servidor"}`, w.Body.String())
}

// ── Health ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/health", Health(map[string]Check{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("down") },
	}))

	w := call(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"ok":false,"db":"connected","redis":"error"}`, w.Body.String())
}
