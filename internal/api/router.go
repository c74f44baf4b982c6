package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/stickergen/internal/api/handler"
	"github.com/timmy/stickergen/internal/api/middleware"
	"github.com/timmy/stickergen/internal/config"
	"github.com/timmy/stickergen/internal/logger"
)

// Dependencies are the services and middleware settings the router wires together.
type Dependencies struct {
	Jobs   handler.JobService
	Orders handler.OrderService
	Auth   *middleware.Authenticator
	// Limiter throttles submissions; nil disables rate limiting.
	Limiter middleware.Limiter
	// DBPing backs the health check; nil skips it.
	DBPing handler.Pinger
	// StatusRequiresOwner puts the status route behind a session.
	StatusRequiresOwner bool

	CORS   config.CORSConfig
	Logger *logger.Logger
	Mode   string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *Dependencies) *gin.Engine {
	switch deps.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler(deps.DBPing)
	jobHandler := handler.NewJobHandler(deps.Jobs)
	orderHandler := handler.NewOrderHandler(deps.Orders)

	r.GET("/health", healthHandler.Health)

	requireSession := deps.Auth.Required()

	apiGroup := r.Group("/api")
	{
		submit := []gin.HandlerFunc{requireSession}
		if deps.Limiter != nil {
			submit = append(submit, middleware.RateLimit(deps.Limiter))
		}
		submit = append(submit, jobHandler.Generate)
		apiGroup.POST("/generate", submit...)

		if deps.StatusRequiresOwner {
			apiGroup.GET("/job-status", requireSession, jobHandler.JobStatus)
		} else {
			apiGroup.GET("/job-status", deps.Auth.Optional(), jobHandler.JobStatus)
		}

		apiGroup.GET("/jobs", requireSession, jobHandler.ListJobs)
		apiGroup.GET("/jobs/:id", requireSession, jobHandler.GetJob)

		apiGroup.POST("/order", requireSession, orderHandler.PlaceOrder)
	}

	return r
}
