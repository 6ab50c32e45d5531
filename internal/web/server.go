// Package web serves the assessment console, its JSON API and the health
// endpoints.
package web

import (
	"context"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credisense/internal/assessment"
	"credisense/internal/common/logger"
	"credisense/internal/orchestrator"
)

const (
	DefaultCookieName = "credisense_session"
	sessionKey        = "sessionID"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Service      *assessment.Service
	Logger       logger.Logger
	CookieName   string
	SecureCookie bool
	// Checks run on /ready, keyed by dependency name.
	Checks map[string]ReadinessCheck
	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

type Server struct {
	router       *gin.Engine
	orch         *orchestrator.Orchestrator
	service      *assessment.Service
	templates    *template.Template
	logger       logger.Logger
	cookieName   string
	secureCookie bool
	checks       map[string]ReadinessCheck
}

func NewServer(opts Options) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:       gin.New(),
		orch:         opts.Orchestrator,
		service:      opts.Service,
		templates:    tmpl,
		logger:       opts.Logger.WithFields(map[string]interface{}{"component": "web"}),
		cookieName:   opts.CookieName,
		secureCookie: opts.SecureCookie,
		checks:       opts.Checks,
	}
	if s.cookieName == "" {
		s.cookieName = DefaultCookieName
	}

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes(metricsHandler)
	return s, nil
}

func (s *Server) routes(metricsHandler http.Handler) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ready", s.handleReady)
	s.router.GET("/metrics", gin.WrapH(metricsHandler))

	console := s.router.Group("/", s.session())
	{
		console.GET("/", s.handleIndex)
		console.POST("/assessments", s.handleSubmit)
		console.POST("/assessments/new", s.handleNewAssessment)
	}

	api := s.router.Group("/api/v1")
	{
		api.POST("/assessments", s.handleAPIAssess)
	}
}

// Handler exposes the router for an http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}
