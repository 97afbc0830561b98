// Package app is the composition root of the HTTP service: it builds the
// gin engine, mounts the route groups and runs the startup and shutdown hooks.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"pdf-query-system/internal/config"
	"pdf-query-system/internal/logger"
	"pdf-query-system/middleware"
	"pdf-query-system/utils"
)

const (
	APIPrefix      = "/api/v1"
	WelcomeMessage = "Welcome to the PDF Query System API!"
)

var ErrAlreadyStarted = errors.New("app: already initialized")

// Database is the connection lifecycle the app drives.
type Database interface {
	Connect(ctx context.Context) error
	EnsureQueryIndexes(ctx context.Context) error
	EnsurePDFIndexes(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Connected() bool
	Ping(ctx context.Context) error
}

// StorageConfigurer applies media-storage credentials.
type StorageConfigurer interface {
	Configure(ctx context.Context) error
	Configured() bool
}

// RouteGroup is a tagged set of routes mounted under APIPrefix.
type RouteGroup struct {
	Tag      string
	Register func(rg *gin.RouterGroup)
}

type Options struct {
	// Middleware runs on every request after request ID and CORS.
	Middleware []gin.HandlerFunc
	// APIMiddleware runs on every APIPrefix request once the app is ready.
	APIMiddleware []gin.HandlerFunc
	Groups        []RouteGroup
}

type State int32

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type App struct {
	cfg     *config.Config
	db      Database
	storage StorageConfigurer
	engine  *gin.Engine

	mu    sync.Mutex
	state atomic.Int32
}

// New builds the engine and mounts every route. Nothing here touches the
// network; API routes answer 503 until Init succeeds.
func New(cfg *config.Config, db Database, storage StorageConfigurer, opts Options) *App {
	a := &App{cfg: cfg, db: db, storage: storage}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(opts.Middleware...)

	router.GET("/", a.handleWelcome)
	router.GET("/health", a.handleHealth)
	router.GET("/ready", a.handleReady)

	for _, group := range opts.Groups {
		handlers := []gin.HandlerFunc{middleware.RouteTag(group.Tag), middleware.RequireReady(a.Ready)}
		handlers = append(handlers, opts.APIMiddleware...)
		group.Register(router.Group(APIPrefix, handlers...))
	}

	a.engine = router
	return a
}

func (a *App) Handler() http.Handler {
	return a.engine
}

func (a *App) State() State {
	return State(a.state.Load())
}

func (a *App) Ready() bool {
	return a.State() == StateReady
}

// Init connects the database, configures media storage and ensures the
// query indexes, in that order. The first failure stops the sequence and
// releases whatever was opened.
func (a *App) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.CompareAndSwap(int32(StateUninitialized), int32(StateStarting)) {
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, a.State())
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.StartupTimeoutDuration())
	defer cancel()

	if err := a.db.Connect(ctx); err != nil {
		a.state.Store(int32(StateTerminated))
		return fmt.Errorf("database connection failed: %w", err)
	}
	logger.Info("Connected to MongoDB", "db", a.cfg.DBName)

	if err := a.storage.Configure(ctx); err != nil {
		a.abortStartup()
		return fmt.Errorf("media storage configuration failed: %w", err)
	}
	logger.Info("Media storage configured", "provider", a.cfg.StorageProvider)

	if err := a.db.EnsureQueryIndexes(ctx); err != nil {
		a.abortStartup()
		return fmt.Errorf("index creation failed: %w", err)
	}
	logger.Info("Indexes ensured", "collection", "queries", "keys", "pdf_id,created_at")

	if err := a.db.EnsurePDFIndexes(ctx); err != nil {
		a.abortStartup()
		return fmt.Errorf("index creation failed: %w", err)
	}
	logger.Info("Indexes ensured", "collection", "pdfs", "keys", "dedup_key,uploaded_at")

	a.state.Store(int32(StateReady))
	logger.Info("PDF Query System API ready")
	return nil
}

func (a *App) abortStartup() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeoutDuration())
	defer cancel()
	if err := a.db.Disconnect(ctx); err != nil {
		logger.Error("failed to release database after startup failure", "error", err)
	}
	a.state.Store(int32(StateTerminated))
}

// Shutdown releases the database. It runs after the HTTP server has drained
// and is a no-op if the app never started or already stopped.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.State() {
	case StateUninitialized, StateTerminated:
		return nil
	}

	a.state.Store(int32(StateStopping))
	logger.Info("Shutting down PDF Query System API")

	err := a.db.Disconnect(ctx)
	a.state.Store(int32(StateTerminated))
	if err != nil {
		logger.Error("database disconnect failed", "error", err)
		return err
	}
	return nil
}

func (a *App) handleWelcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": WelcomeMessage})
}

func (a *App) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   config.ServiceTitle,
		"state":     a.State().String(),
		"timestamp": time.Now().UTC(),
	})
}

func (a *App) handleReady(c *gin.Context) {
	if !a.Ready() {
		utils.RespondWithServiceUnavailable(c, "Service is "+a.State().String())
		return
	}

	if !a.db.Connected() {
		utils.RespondWithServiceUnavailable(c, "Database disconnected")
		return
	}
	if !a.storage.Configured() {
		utils.RespondWithServiceUnavailable(c, "Storage not configured")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.db.Ping(ctx); err != nil {
		utils.RespondWithServiceUnavailable(c, "Database unreachable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
