package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAPIHandler(t *testing.T) {
	handler := OpenAPIHandler()

	tests := []struct {
		name         string
		method       string
		expectStatus int
		expectBody   bool
	}{
		{name: "GET returns document", method: http.MethodGet, expectStatus: http.StatusOK, expectBody: true},
		{name: "HEAD returns headers only", method: http.MethodHead, expectStatus: http.StatusOK},
		{name: "POST not allowed", method: http.MethodPost, expectStatus: http.StatusMethodNotAllowed},
		{name: "DELETE not allowed", method: http.MethodDelete, expectStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, "/api-docs/openapi.json", nil))

			require.Equal(t, tt.expectStatus, w.Code)
			if tt.expectBody {
				require.Equal(t, "application/json", w.Header().Get("Content-Type"))
				require.NotEmpty(t, w.Body.Bytes())
			} else {
				require.Empty(t, w.Body.Bytes())
			}
		})
	}
}

func TestOpenAPIDocumentDescribesEventRoutes(t *testing.T) {
	data, err := OpenAPIDocument()
	require.NoError(t, err)

	var doc struct {
		OpenAPI string                               `json:"openapi"`
		Paths   map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "3.0.3", doc.OpenAPI)

	require.Contains(t, doc.Paths["/events"], "get")
	require.Contains(t, doc.Paths["/events"], "post")
	for _, method := range []string{"get", "put", "delete"} {
		require.Contains(t, doc.Paths["/events/{id}"], method)
	}
	var get struct {
		Responses map[string]any `json:"responses"`
	}
	require.NoError(t, json.Unmarshal(doc.Paths["/events/{id}"]["get"], &get))
	require.Contains(t, get.Responses, "404")
}
