package ui

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexRendersOptions(t *testing.T) {
	s, _ := testServer(t)

	w := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, `<option value="Protocol Variable">Protocol Variable</option>`)
	assert.Contains(t, body, `<option value="Contractility">Contractility</option>`)
	assert.Contains(t, body, `value="Cell Profile"`)
	assert.Contains(t, body, "</html>")
}

func TestAboutRendersMarkdown(t *testing.T) {
	s, _ := testServer(t)

	w := get(t, s.Handler(), "/about")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "About CMPortal</h1>")
	assert.Contains(t, w.Body.String(), "<table>")
}

func TestStaticAssets(t *testing.T) {
	s, _ := testServer(t)

	w := get(t, s.Handler(), "/static/js/portal.js")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestViewer(t *testing.T) {
	s, _ := testServer(t)

	w := get(t, s.Handler(), "/api/viewer")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"], 4)
	assert.Equal(t, "Protocol ID", body["columns"].([]interface{})[0])
	assert.NotContains(t, body, "filtered_count")
}

func TestEnrichmentData(t *testing.T) {
	s, _ := testServer(t)

	tests := []struct {
		name   string
		query  string
		status int
		rows   int
		err    string
	}{
		{"single parameter", "parameter=" + url.QueryEscape(testTopic), http.StatusOK, 2, ""},
		{"parameter list", "parameter[]=" + url.QueryEscape(testTopic) + "&parameter[]=Decrease+Beat+Rate", http.StatusOK, 3, ""},
		{"no parameter", "search_mode=target", http.StatusBadRequest, 0, "No target parameters selected"},
		{"features", "search_mode=features&protocol_features[]=serum", http.StatusOK, 1, ""},
		{"no features", "search_mode=features", http.StatusBadRequest, 0, "No protocol features selected"},
		{"all", "search_mode=all", http.StatusOK, 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, s.Handler(), "/api/enrichment_data?"+tt.query)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			body := decode(t, w)
			if tt.err != "" {
				assert.Equal(t, tt.err, body["error"])
				return
			}
			assert.Len(t, body["data"], tt.rows)
		})
	}
}

func TestEnrichmentDataFiltered(t *testing.T) {
	s, _ := testServer(t)

	w := get(t, s.Handler(), "/api/enrichment_data_filtered?parameter="+url.QueryEscape(testTopic))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["filtered_count"])
	rows := body["data"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "Fatty Acids", rows[0].(map[string]interface{})["Prioritised Features"])

	w = get(t, s.Handler(), "/api/enrichment_data_filtered?search_mode=features")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Filtered search only available in target mode", decode(t, w)["error"])
}

func TestTargetParametersEndpoint(t *testing.T) {
	s, _ := testServer(t)

	w := get(t, s.Handler(), "/api/target_parameters?category=Contractility")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{testTopic}, decode(t, w)["parameters"])

	w = get(t, s.Handler(), "/api/target_parameters?category=Nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid category", decode(t, w)["error"])
}

func TestProtocolFeaturesEndpoint(t *testing.T) {
	s, _ := testServer(t)

	w := get(t, s.Handler(), "/api/protocol_features")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		[]interface{}{"Electrical Stimulation", "Fatty Acids", "Matrigel", "Serum"},
		decode(t, w)["features"])
}

func TestLookupEndpoints(t *testing.T) {
	s, _ := testServer(t)

	tests := []struct {
		path string
		key  string
		want []interface{}
	}{
		{"/api/get_ProtocolFeatures", "Cell Profile", []interface{}{"Serum"}},
		{"/api/get_TargetParameters", "Contractility", []interface{}{testTopic}},
		{"/api/get_CausalFeatures", "Culture", []interface{}{"Serum", "Matrigel"}},
		{"/api/get_CausalFeatures", "Unknown", []interface{}{}},
		{"/api/get_ProtocolFeatures", "", []interface{}{}},
	}
	for _, tt := range tests {
		w := postForm(t, s.Handler(), tt.path, url.Values{"selected_key": {tt.key}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tt.want, decode(t, w)["values"], tt.path+" "+tt.key)
	}
}

func TestIndicatorSummaryEndpoint(t *testing.T) {
	s, _ := testServer(t)

	w := get(t, s.Handler(), "/api/indicator_summary")
	require.Equal(t, http.StatusOK, w.Code)
	indicators := decode(t, w)["indicators"].([]interface{})
	require.Len(t, indicators, 1)

	beat := indicators[0].(map[string]interface{})
	assert.Equal(t, "Beat Rate (bpm)", beat["indicator"])
	assert.Equal(t, float64(2), beat["count"])
	assert.Equal(t, float64(2), beat["missing"])
	assert.Equal(t, float64(40), beat["mean"])
}
