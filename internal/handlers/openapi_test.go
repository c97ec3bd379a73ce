package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BenMacKenzie/db-mlops/internal/handlers"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
)

func TestHandleOpenAPI(t *testing.T) {
	h := handlers.New(nil, nil, nil, nil)

	if _, err := os.Stat(filepath.Join("..", "..", "api", "openapi.yaml")); os.IsNotExist(err) {
		t.Skip("OpenAPI spec file not found, skipping test")
	}

	t.Run("GET request returns OpenAPI spec", func(t *testing.T) {
		w := call(h.HandleOpenAPI, http.MethodGet, "/openapi.yaml", "", "")

		if w.Code != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
		}
		if contentType := w.Header().Get("Content-Type"); contentType != "application/yaml" {
			t.Errorf("Expected Content-Type application/yaml, got %s", contentType)
		}
		body := w.Body.String()
		if !strings.Contains(body, "openapi") || !strings.Contains(body, "/api/v1/projects") {
			t.Error("Response does not appear to be the OpenAPI specification")
		}
	})

	t.Run("JSON content type when Accept header is application/json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
		r.Header.Set("Accept", "application/json")
		w := httptest.NewRecorder()
		ctx := createExecutionContext()

		h.HandleOpenAPI(ctx, http_wrappers.NewRequestWrapper(r), http_wrappers.NewRespWrapper(w, ctx))

		if contentType := w.Header().Get("Content-Type"); contentType != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", contentType)
		}
	})
}

func TestHandleDocs(t *testing.T) {
	h := handlers.New(nil, nil, nil, nil)

	w := call(h.HandleDocs, http.MethodGet, "/docs", "", "")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if contentType := w.Header().Get("Content-Type"); contentType != "text/html; charset=utf-8" {
		t.Errorf("Expected Content-Type text/html; charset=utf-8, got %s", contentType)
	}
	body := w.Body.String()
	if !strings.Contains(body, "swagger-ui") {
		t.Error("Response does not appear to be Swagger UI HTML")
	}
	if !strings.Contains(body, "openapi.yaml") {
		t.Error("Response does not reference openapi.yaml")
	}
}
