// Package api поднимает HTTP-сервер состояния симулятора: проверку
// живости, последнюю сводку сессии и метрики Prometheus.
//
// Сервер не обращается к полю: управляющий цикл публикует в него снимки
// через Publish.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/soilsim/internal/logging"
	"github.com/annel0/soilsim/internal/middleware"
	"github.com/annel0/soilsim/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// StatsResponse описывает тело /api/stats
type StatsResponse struct {
	Session     session.Stats `json:"session"`
	PublishedAt time.Time     `json:"published_at"`
	Process     ProcessStats  `json:"process"`
}

// Config содержит конфигурацию сервера состояния
type Config struct {
	Addr       string                // адрес, например ":8090"
	Registerer prometheus.Registerer // куда регистрировать HTTP-метрики
	Gatherer   prometheus.Gatherer   // откуда отдавать /metrics
	Logger     *logging.Logger
}

// StatusServer реализует read-only HTTP-сервер состояния
type StatusServer struct {
	router  *gin.Engine
	addr    string
	metrics *ServerMetrics
	logger  *logging.Logger

	mu          sync.RWMutex
	stats       session.Stats
	publishedAt time.Time
	published   bool

	httpMu sync.Mutex
	http   *http.Server
}

// NewStatusServer создает сервер и настраивает маршруты
func NewStatusServer(config Config) (*StatusServer, error) {
	if config.Addr == "" {
		config.Addr = ":8090"
	}
	if config.Logger == nil {
		config.Logger = logging.GetAPILogger()
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("status_api"))

	loggerMw := middleware.NewRequestLogger(config.Logger)
	router.Use(loggerMw.Handler())

	promMw, err := middleware.NewPrometheusMiddleware("status_api", config.Registerer)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &StatusServer{
		router:  router,
		addr:    config.Addr,
		metrics: NewServerMetrics(),
		logger:  config.Logger,
	}
	server.setupRoutes()
	return server, nil
}

// setupRoutes настраивает маршруты
func (s *StatusServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.GET("/stats", s.handleStats)
}

// Handler возвращает http.Handler сервера
func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// Publish сохраняет снимок сводки сессии для /api/stats
func (s *StatusServer) Publish(stats session.Stats) {
	s.mu.Lock()
	s.stats = stats
	s.publishedAt = time.Now()
	s.published = true
	s.mu.Unlock()
}

// handleHealth возвращает статус сервера
func (s *StatusServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"uptime": s.metrics.GetUptime(),
	})
}

// handleStats отдаёт последнюю опубликованную сводку
func (s *StatusServer) handleStats(c *gin.Context) {
	s.mu.RLock()
	stats, at, ok := s.stats, s.publishedAt, s.published
	s.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Сводка сессии ещё не опубликована",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data: StatsResponse{
			Session:     stats,
			PublishedAt: at,
			Process:     s.metrics.Snapshot(),
		},
	})
}

// Start запускает сервер и блокируется до Stop или ошибки
func (s *StatusServer) Start() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpMu.Lock()
	s.http = srv
	s.httpMu.Unlock()

	s.logger.Info("🌐 Сервер состояния слушает %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает сервер, дожидаясь активных запросов
func (s *StatusServer) Stop(ctx context.Context) error {
	s.httpMu.Lock()
	srv := s.http
	s.httpMu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("🛑 Сервер состояния остановлен")
	return srv.Shutdown(ctx)
}
