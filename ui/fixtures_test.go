package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cmportal/app"
	"cmportal/domain/reference"
	"cmportal/internal"
	"cmportal/internal/config"
	"cmportal/internal/container"
	"cmportal/internal/dataset"
	refcache "cmportal/internal/reference"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testTopic = "Increase Force - High"

func init() {
	gin.SetMode(gin.TestMode)
}

type fixtureSource struct {
	tables *reference.Tables
}

func (f fixtureSource) Load(ctx context.Context) (*reference.Tables, error) {
	return f.tables, nil
}

func (f fixtureSource) Name() string {
	return "fixture"
}

// fixtureTables is a four protocol catalog:
//
//	id  Electrical Stimulation  Fatty Acids  Serum  Matrigel
//	1   x                       x
//	2   x                                    x
//	3                           x            x      x
//	4
func fixtureTables(t *testing.T) *reference.Tables {
	t.Helper()

	matrix, err := reference.NewFeatureMatrix(
		[]string{"Protocol ID", "Electrical Stimulation", "Fatty Acids", "Serum", "Matrigel"},
		[][]string{
			{"1", "True", "True", "False", "False"},
			{"2", "True", "False", "True", "False"},
			{"3", "False", "True", "True", "True"},
			{"4", "False", "False", "False", "False"},
		},
	)
	require.NoError(t, err)

	metadata, err := reference.NewMetadataTable(
		[]string{"Protocol ID", "Title", "DOI", "Increase Force", "Beat Rate (bpm)"},
		[][]string{
			{"1", "Paced tissue", "10.1/a", "", "30"},
			{"2", "Serum culture", "10.1/b", "0.2", ""},
			{"3", "Lipid maturation", "10.1/c", "0.8", "50"},
			{"4", "Baseline", "10.1/d", "", ""},
		},
	)
	require.NoError(t, err)

	tables := &reference.Tables{
		Matrix:   matrix,
		Metadata: metadata,
		Categories: reference.NewColumnMapFromEntries(
			[]string{"Protocol Variable", "Cell Profile"},
			map[string][]string{
				"Protocol Variable": {"Electrical Stimulation", "Fatty Acids"},
				"Cell Profile":      {"Serum"},
			},
		),
		CausalCategories: reference.NewColumnMapFromEntries(
			[]string{"Culture"},
			map[string][]string{"Culture": {"Serum", "Matrigel"}},
		),
		TargetParameters: reference.NewColumnMapFromEntries(
			[]string{"Contractility"},
			map[string][]string{"Contractility": {testTopic}},
		),
		Topics: reference.NewColumnMapFromEntries(
			[]string{testTopic, "Sarcomere Length (um) Quantiles - Q1", "Sarcomere Length (um) Quantiles - Q2"},
			map[string][]string{
				testTopic:                              {"Fatty Acids", "Serum"},
				"Sarcomere Length (um) Quantiles - Q1": {"Electrical Stimulation"},
				"Sarcomere Length (um) Quantiles - Q2": {"Fatty Acids"},
			},
		),
		Enrichments: reference.NewTable(
			[]string{"Target Label", "Prioritised Features", "Importance"},
			[][]string{
				{testTopic, "Fatty Acids", "0.4"},
				{testTopic, "Serum", "0.3"},
				{"Decrease Beat Rate", "Electrical Stimulation", "0.6"},
			},
		),
		SelectedVariables: []string{"Fatty Acids"},
	}
	require.NoError(t, tables.Validate())
	return tables
}

// testContainer wires the services over the fixture the way container.New
// wires them over the CSV source
func testContainer(t *testing.T) *container.Container {
	t.Helper()
	logger := internal.NewLogger(internal.LogLevelError)
	uploads := config.UploadConfig{
		Dir:             t.TempDir(),
		MaxSizeMB:       1,
		CleanupAfter:    time.Minute,
		CleanupInterval: time.Minute,
	}

	cache := refcache.NewCache(fixtureSource{tables: fixtureTables(t)}, logger)
	results := app.NewResultCache(16)
	cache.OnClear(results.Clear)

	return &container.Container{
		Config:    &config.Config{Uploads: uploads},
		Logger:    logger,
		Reference: cache,
		Results:   results,
		Uploads:   dataset.NewLocalFileStorage(uploads, logger),
		Search:    app.NewSearchService(cache, results, logger),
		Benchmark: app.NewBenchmarkService(cache, logger),
		Catalog:   app.NewCatalogService(cache, logger),
	}
}

func testServer(t *testing.T) (*Server, *container.Container) {
	t.Helper()
	c := testContainer(t)
	s, err := NewServer(c)
	require.NoError(t, err)
	return s, c
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// upload is one file part of a multipart request
type upload struct {
	field, name, content string
}

func postMultipart(t *testing.T, h http.Handler, target string, fields url.Values, files []upload) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
