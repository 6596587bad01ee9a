package ui

import (
	"net/http"

	"cmportal/app"
	"cmportal/domain/protocol"
	"cmportal/internal/errors"

	"github.com/gin-gonic/gin"
)

// indexPage is the data behind index.html
type indexPage struct {
	Options    *app.DashboardOptions
	Categories []protocol.Category
	Modes      []app.SearchMode
	Error      string
}

func (s *Server) handleIndex(c *gin.Context) {
	page := indexPage{
		Options:    &app.DashboardOptions{},
		Categories: protocol.Categories,
		Modes:      []app.SearchMode{app.ModeNormal, app.ModeEnrichment, app.ModeCombined},
	}
	opts, err := s.catalog.Options(c.Request.Context())
	if err != nil {
		s.logger.Error("dashboard options: %v", err)
		page.Error = errors.UserMessage(err)
	} else {
		page.Options = opts
	}
	s.renderTemplate(c, "index.html", page)
}

func (s *Server) handleAbout(c *gin.Context) {
	s.renderTemplate(c, "about.html", gin.H{"Content": s.about})
}

func (s *Server) handleViewer(c *gin.Context) {
	table, err := s.catalog.Viewer(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// enrichmentQuery reads parameter[] (or a single parameter) and protocol_features[]
func enrichmentQuery(c *gin.Context) app.EnrichmentQuery {
	params := c.QueryArray("parameter[]")
	if len(params) == 0 {
		if p := c.Query("parameter"); p != "" {
			params = []string{p}
		}
	}
	return app.EnrichmentQuery{
		Mode:       c.DefaultQuery("search_mode", app.EnrichmentByTarget),
		Parameters: params,
		Features:   c.QueryArray("protocol_features[]"),
	}
}

func (s *Server) handleEnrichmentData(c *gin.Context) {
	table, err := s.catalog.Enrichment(c.Request.Context(), enrichmentQuery(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (s *Server) handleEnrichmentDataFiltered(c *gin.Context) {
	table, err := s.catalog.EnrichmentFiltered(c.Request.Context(), enrichmentQuery(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (s *Server) handleTargetParameters(c *gin.Context) {
	params, err := s.catalog.TargetParameters(c.Request.Context(), c.Query("category"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parameters": params})
}

func (s *Server) handleProtocolFeatures(c *gin.Context) {
	features, err := s.catalog.ProtocolFeatures(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": features})
}

func (s *Server) handleIndicatorSummary(c *gin.Context) {
	summaries, err := s.catalog.IndicatorSummary(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"indicators": summaries})
}

// handleLookup serves one dropdown table keyed by the selected_key form field
func (s *Server) handleLookup(table app.LookupTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		values, err := s.catalog.Lookup(c.Request.Context(), table, c.PostForm("selected_key"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"values": values})
	}
}
