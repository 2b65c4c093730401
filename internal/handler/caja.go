package handler

import (
	"net/http"
	"strings"

	"labcaja/internal/apierror"
	"labcaja/internal/dto"
	"labcaja/internal/middleware"
	"labcaja/internal/model"
	"labcaja/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// ── Sessions ─────────────────────────────────────────────────────────────────

// AbrirSesion godoc
// @Summary Abre una sesión de caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Datos de apertura"
// @Success 201 {object} dto.SessionResponse
// @Failure 422 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/sesiones [post]
func (h *CajaHandler) AbrirSesion(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operatorID, err := uuid.Parse(middleware.GetClaims(c).OperatorID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
		return
	}

	resp, err := h.svc.OpenSession(c.Request.Context(), operatorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SesionActual godoc
// @Summary Sesión abierta de una caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param register_id query string true "ID de la caja"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/sesiones/actual [get]
func (h *CajaHandler) SesionActual(c *gin.Context) {
	registerID, err := uuid.Parse(c.Query("register_id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New("register_id inválido"))
		return
	}
	resp, err := h.svc.CurrentSession(c.Request.Context(), registerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CerrarSesion godoc
// @Summary Cierra la sesión con el arqueo ciego
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la sesión"
// @Param body body dto.CloseSessionRequest true "Monto declarado"
// @Success 204
// @Failure 422 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/cerrar [post]
// Blind count: the response carries nothing the operator could use to adjust the declaration.
func (h *CajaHandler) CerrarSesion(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if _, err := h.svc.CloseSession(c.Request.Context(), id, req); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelarSesion godoc
// @Summary Cancela una sesión abierta (administrador)
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la sesión"
// @Success 204
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/cancelar [post]
func (h *CajaHandler) CancelarSesion(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.CancelSession(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListarMovimientos godoc
// @Summary Movimientos de una sesión en orden cronológico
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la sesión"
// @Success 200 {array} dto.MovementResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/movimientos [get]
func (h *CajaHandler) ListarMovimientos(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListMovements(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Resumen godoc
// @Summary Resumen agregado de una sesión
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la sesión"
// @Success 200 {object} dto.SummaryResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/sesiones/{id}/resumen [get]
func (h *CajaHandler) Resumen(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Summary(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Movements ────────────────────────────────────────────────────────────────

// Deposito godoc
// @Summary Registra un depósito
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovementRequest true "Depósito"
// @Success 201 {object} dto.MovementResponse
// @Failure 422 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/movimientos/depositos [post]
func (h *CajaHandler) Deposito(c *gin.Context) {
	h.movimiento(c, model.Inflow)
}

// Extraccion godoc
// @Summary Registra una extracción
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovementRequest true "Extracción"
// @Success 201 {object} dto.MovementResponse
// @Failure 422 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/movimientos/extracciones [post]
func (h *CajaHandler) Extraccion(c *gin.Context) {
	h.movimiento(c, model.Outflow)
}

func (h *CajaHandler) movimiento(c *gin.Context, typ model.MovementType) {
	var req dto.MovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.Concept = strings.TrimSpace(req.Concept)
	resp, err := h.svc.RecordMovement(c.Request.Context(), typ, req, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Liquidacion godoc
// @Summary Registra el depósito de una liquidación
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.LiquidationDepositRequest true "Depósito de liquidación"
// @Success 201 {object} dto.MovementResponse
// @Failure 422 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/movimientos/liquidaciones [post]
func (h *CajaHandler) Liquidacion(c *gin.Context) {
	var req dto.LiquidationDepositRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.Concept = strings.TrimSpace(req.Concept)
	liq := strings.TrimSpace(req.LiquidationID)
	resp, err := h.svc.RecordMovement(c.Request.Context(), model.Inflow, req.MovementRequest, &liq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// AnularMovimiento godoc
// @Summary Anula un movimiento (supervisor o administrador)
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del movimiento"
// @Success 204
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/movimientos/{id}/anular [post]
func (h *CajaHandler) AnularMovimiento(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.CancelMovement(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Registers ────────────────────────────────────────────────────────────────

// Vaciar godoc
// @Summary Vacía una caja en la caja principal
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la caja de origen"
// @Param body body dto.TransferRequest true "Monto"
// @Success 200 {object} dto.TransferResponse
// @Failure 422 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/registradoras/{id}/vaciar [post]
func (h *CajaHandler) Vaciar(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operatorID, err := uuid.Parse(middleware.GetClaims(c).OperatorID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
		return
	}
	resp, err := h.svc.TransferToMain(c.Request.Context(), id, operatorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Registradora godoc
// @Summary Total confirmado de una caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la caja"
// @Success 200 {object} dto.RegisterResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/registradoras/{id} [get]
func (h *CajaHandler) Registradora(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetRegister(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
