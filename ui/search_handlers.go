package ui

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"cmportal/adapters/excel"
	"cmportal/app"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type searchCriteria struct {
	Parameter        string   `json:"parameter"`
	SelectedFeatures []string `json:"selected_features"`
	Mode             string   `json:"mode"`
}

type searchTable struct {
	Data    []map[string]interface{} `json:"data"`
	Columns []string                 `json:"columns"`
}

type searchResponse struct {
	Status        string         `json:"status"`
	Data          searchCriteria `json:"data"`
	ToggleStates  []bool         `json:"toggle_states"`
	SearchResults searchTable    `json:"search_results"`
}

// searchRequest reads the dashboard search form
func searchRequest(c *gin.Context) app.SearchRequest {
	features := c.PostFormArray("selected_features[]")
	if features == nil {
		features = []string{}
	}
	raw := c.PostFormArray("toggle_states[]")
	toggles := make([]bool, len(raw))
	for i, v := range raw {
		toggles[i] = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return app.SearchRequest{
		Features: features,
		Topic:    strings.TrimSpace(c.PostForm("parameter")),
		Mode:     app.SearchMode(strings.TrimSpace(c.PostForm("mode"))),
		Toggles:  toggles,
	}
}

func (s *Server) handleSubmitFeatures(c *gin.Context) {
	req := searchRequest(c)
	result, err := s.search.Search(c.Request.Context(), req)
	if err != nil {
		s.respondStatusError(c, err)
		return
	}
	if result.Empty() {
		c.JSON(http.StatusOK, gin.H{"status": statusError, "message": result.Message})
		return
	}

	c.JSON(http.StatusOK, searchResponse{
		Status: statusSuccess,
		Data: searchCriteria{
			Parameter:        req.Topic,
			SelectedFeatures: req.Features,
			Mode:             string(result.Mode),
		},
		ToggleStates:  req.Toggles,
		SearchResults: searchTable{Data: result.Rows, Columns: result.Columns},
	})
}

// handleExportSearch runs the same search and answers with an XLSX workbook
func (s *Server) handleExportSearch(c *gin.Context) {
	result, err := s.search.Search(c.Request.Context(), searchRequest(c))
	if err != nil {
		s.respondStatusError(c, err)
		return
	}
	if result.Empty() {
		c.JSON(http.StatusOK, gin.H{"status": statusError, "message": result.Message})
		return
	}

	columns, rows := result.Table()
	var buf bytes.Buffer
	if err := excel.WriteTable(&buf, excel.DefaultSheetName, columns, rows); err != nil {
		s.respondStatusError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="cmportal_%s_search.xlsx"`, result.Mode))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
