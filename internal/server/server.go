package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/config"
	"github.com/alkime/practice/internal/storage"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// MediaPrefix is where local storage objects are published.
const MediaPrefix = "/media"

// Deps are the stores behind the API.
type Deps struct {
	Catalog catalog.Store
	Objects storage.ObjectStore
	// MediaRoot is served under MediaPrefix when set.
	MediaRoot string
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	logger *slog.Logger
	router *gin.Engine
	deps   Deps
}

// AudioView is a confirmed audio with the URL a player can fetch.
type AudioView struct {
	catalog.Record

	PublicURL string `json:"publicUrl"`
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	// Set Gin mode based on environment
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	if len(cfg.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			logger.Warn("Ignoring invalid trusted proxies", "proxies", cfg.TrustedProxies, "error", err)
		}
	}

	server := &Server{
		config: cfg,
		logger: logger,
		router: router,
		deps:   deps,
	}

	// Setup middleware and routes
	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server
func Run(s *Server) error {
	s.logger.Info("Server listening", "port", s.config.Port)
	return s.router.Run(":" + s.config.Port)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.GET("/songs/:songId/audios", s.handleListAudios)

	if s.deps.MediaRoot != "" {
		// Only existing files are served; anything else falls through to 404.
		s.router.Use(static.Serve(MediaPrefix, static.LocalFile(s.deps.MediaRoot, false)))
		s.logger.Debug("Serving media", "root", s.deps.MediaRoot, "prefix", MediaPrefix)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "practice",
	})
}

func (s *Server) handleListAudios(c *gin.Context) {
	songID := strings.TrimSpace(c.Param("songId"))
	if songID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "song id is required"})
		return
	}

	recs, err := s.deps.Catalog.ListBySong(c.Request.Context(), songID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrNoSongColumn) {
			status = http.StatusServiceUnavailable
		}

		s.logger.Error("Failed to list audios", "song_id", songID, "error", err)
		c.JSON(status, gin.H{"error": "failed to list audios"})

		return
	}

	views := make([]AudioView, 0, len(recs))
	for _, r := range recs {
		views = append(views, AudioView{Record: r, PublicURL: s.publicURL(r.URL)})
	}

	c.JSON(http.StatusOK, gin.H{
		"songId": songID,
		"audios": views,
	})
}

func (s *Server) publicURL(stored string) string {
	path := storage.NormalizePath(stored, s.deps.Objects.Bucket())
	if path == "" || storage.IsHTTPURL(path) {
		return path
	}

	return s.deps.Objects.PublicURL(path)
}
