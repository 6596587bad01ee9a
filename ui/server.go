package ui

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"cmportal/app"
	"cmportal/domain/protocol"
	"cmportal/internal"
	"cmportal/internal/container"
	"cmportal/internal/dataset"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

//go:embed templates/* static/*
var embeddedFiles embed.FS

// Server is the dashboard web server
type Server struct {
	router    *gin.Engine
	templates *template.Template
	about     template.HTML
	logger    *internal.Logger

	search    *app.SearchService
	benchmark *app.BenchmarkService
	catalog   *app.CatalogService
	uploads   *dataset.LocalFileStorage
}

// NewServer builds the dashboard over the container's services
func NewServer(c *container.Container) (*Server, error) {
	if c == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	logger := c.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}

	s := &Server{
		router:    gin.Default(),
		logger:    logger.With("ui"),
		search:    c.Search,
		benchmark: c.Benchmark,
		catalog:   c.Catalog,
		uploads:   c.Uploads,
	}
	if c.Config != nil {
		s.router.MaxMultipartMemory = c.Config.Uploads.MaxSizeMB << 20
	}

	if err := s.loadTemplates(); err != nil {
		return nil, err
	}
	if err := s.loadAbout(); err != nil {
		return nil, err
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) loadTemplates() error {
	funcMap := template.FuncMap{
		"join": strings.Join,
		"add":  func(a, b int) int { return a + b },
		"foundColumn": func(c protocol.Category) string {
			return c.FoundColumn()
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = templates
	return nil
}

// loadAbout renders the embedded methodology notes once at startup
func (s *Server) loadAbout() error {
	md, err := embeddedFiles.ReadFile("templates/about.md")
	if err != nil {
		return fmt.Errorf("failed to read about page: %w", err)
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank})
	s.about = template.HTML(markdown.ToHTML(md, p, renderer))
	return nil
}

func (s *Server) setupMiddleware() {
	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		s.logger.Error("static files unavailable: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/about", s.handleAbout)

	api := s.router.Group("/api")
	{
		api.GET("/viewer", s.handleViewer)
		api.GET("/enrichment_data", s.handleEnrichmentData)
		api.GET("/enrichment_data_filtered", s.handleEnrichmentDataFiltered)
		api.GET("/target_parameters", s.handleTargetParameters)
		api.GET("/protocol_features", s.handleProtocolFeatures)
		api.GET("/indicator_summary", s.handleIndicatorSummary)

		api.POST("/get_ProtocolFeatures", s.handleLookup(app.LookupProtocolFeatures))
		api.POST("/get_TargetParameters", s.handleLookup(app.LookupTargetParameters))
		api.POST("/get_CausalFeatures", s.handleLookup(app.LookupCausalFeatures))

		api.POST("/submit_features", s.handleSubmitFeatures)
		api.POST("/export_search", s.handleExportSearch)
		api.POST("/submit_benchmark", s.handleSubmitBenchmark)
	}
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer wraps the router in a server the caller can shut down gracefully
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start serves until the server fails or ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := s.HTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting cmportal on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// renderTemplate renders into a buffer first so a template error never leaves
// a half-written page
func (s *Server) renderTemplate(c *gin.Context, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template %s: %v", name, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Template rendering failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
