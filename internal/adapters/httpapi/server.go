package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/predictstats/internal/domain"
	"github.com/alejandrodnm/predictstats/internal/ports"
)

// Trigger es lo que el servidor necesita del scheduler.
type Trigger interface {
	Trigger(ctx context.Context) (domain.RunResult, error)
	Last() (domain.RunResult, bool)
	Running() bool
	Next() time.Time
}

// Options configura el servidor.
type Options struct {
	Addr      string
	StaticDir string   // dashboard estático; vacío = no se sirve
	Keys      []string // blobs que se pueden leer por /data/:key
	Debug     bool
}

// Server es el servidor HTTP del dashboard.
type Server struct {
	srv *http.Server
}

// NewEngine monta el engine de gin con todos los handlers.
func NewEngine(opts Options, store ports.BlobStore, runner Trigger) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(corsMiddleware())

	(&HealthHandler{Runner: runner}).Register(engine)
	(&DataHandler{Store: store, Keys: opts.Keys}).Register(engine)
	(&RunHandler{Runner: runner}).Register(engine)

	if opts.StaticDir != "" {
		engine.NoRoute(gin.WrapH(http.FileServer(http.Dir(opts.StaticDir))))
	}
	return engine
}

// New crea el servidor sin arrancarlo.
func New(opts Options, store ports.BlobStore, runner Trigger) *Server {
	return &Server{srv: &http.Server{
		Addr:              opts.Addr,
		Handler:           NewEngine(opts, store, runner),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start escucha en segundo plano. Los errores de arranque se loguean.
func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "err", err)
		}
	}()
}

// Shutdown cierra el servidor esperando a las requests en curso.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi.Shutdown: %w", err)
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
