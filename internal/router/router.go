package router

import (
	"labcaja/internal/config"
	"labcaja/internal/handler"
	"labcaja/internal/infra"
	"labcaja/internal/middleware"
	"labcaja/internal/repository"
	"labcaja/internal/service"
	"labcaja/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps are the infrastructure handles built by the composition root.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Metrics    *infra.Metrics
	Events     infra.EventPublisher
	Dispatcher *worker.Dispatcher
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(d Deps) (*gin.Engine, error) {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rateLimit, err := middleware.RateLimiter(d.Config.RateLimit)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.CORS(d.Config.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(rateLimit)

	// ── Repositories / services / handlers ───────────────────────────────────
	cajaRepo := repository.NewCajaRepository(d.DB)
	cajaSvc := service.NewCajaService(cajaRepo, d.Dispatcher, d.Events, d.Metrics)
	cajaH := handler.NewCajaHandler(cajaSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(map[string]handler.Check{
		"db":    handler.DBCheck(d.DB),
		"redis": handler.RedisCheck(d.Redis),
	}))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(d.Config.JWTSecret), middleware.Idempotency(d.Redis, d.Metrics))
	RegisterCaja(v1, cajaH)

	// Swagger UI, only outside production
	if !d.Config.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, nil
}

// RegisterCaja mounts the cash ledger routes under g.
// Roles: cajero, supervisor, administrador. Cancelling a movement needs supervisor or
// administrador; cancelling a whole session needs administrador.
func RegisterCaja(g *gin.RouterGroup, h *handler.CajaHandler) {
	anyRole := middleware.RequireRole(middleware.RoleCajero, middleware.RoleSupervisor, middleware.RoleAdministrador)
	supervisor := middleware.RequireRole(middleware.RoleSupervisor, middleware.RoleAdministrador)
	admin := middleware.RequireRole(middleware.RoleAdministrador)

	caja := g.Group("/caja")
	{
		caja.POST("/sesiones", anyRole, h.AbrirSesion)
		caja.GET("/sesiones/actual", anyRole, h.SesionActual)
		caja.POST("/sesiones/:id/cerrar", anyRole, h.CerrarSesion)
		caja.POST("/sesiones/:id/cancelar", admin, h.CancelarSesion)
		caja.GET("/sesiones/:id/movimientos", anyRole, h.ListarMovimientos)
		caja.GET("/sesiones/:id/resumen", anyRole, h.Resumen)

		caja.POST("/movimientos/depositos", anyRole, h.Deposito)
		caja.POST("/movimientos/extracciones", anyRole, h.Extraccion)
		caja.POST("/movimientos/liquidaciones", anyRole, h.Liquidacion)
		caja.POST("/movimientos/:id/anular", supervisor, h.AnularMovimiento)

		caja.GET("/registradoras/:id", anyRole, h.Registradora)
		caja.POST("/registradoras/:id/vaciar", anyRole, h.Vaciar)
	}
}
