// Package server exposes the ingestion and answering pipelines over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/ragchat/internal/chat"
	"github.com/xaenox/ragchat/internal/ingest"
)

// Ingestor and Answerer are the two pipelines the server fronts.
type Ingestor interface {
	Ingest(ctx context.Context, fileBytes []byte, filename, userID string) (ingest.Result, error)
}

type Answerer interface {
	Answer(ctx context.Context, req chat.Request) (chat.Result, error)
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

type Server struct {
	config   Config
	router   *gin.Engine
	server   *http.Server
	ingestor Ingestor
	answerer Answerer
	logger   *zap.Logger
}

func New(config Config, ingestor Ingestor, answerer Answerer, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   config,
		router:   gin.New(),
		ingestor: ingestor,
		answerer: answerer,
		logger:   logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(logger))
	s.router.Use(corsMiddleware(config.CORSOrigins))

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.POST("/upload_pdf", s.handleUploadPDF)
	s.router.POST("/chat", s.handleChat)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	s.logger.Info("http server starting", zap.String("addr", s.config.Addr))
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
