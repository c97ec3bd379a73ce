package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
	"github.com/BenMacKenzie/db-mlops/internal/logging"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
)

// the OpenAPI document is looked up relative to the working directory first
var openAPIPaths = []string{
	"api/openapi.yaml",
	"../api/openapi.yaml",
	"../../api/openapi.yaml",
	"../../../api/openapi.yaml",
}

func readOpenAPISpec() ([]byte, error) {
	var spec []byte
	var err error
	for _, path := range openAPIPaths {
		spec, err = os.ReadFile(path)
		if err == nil {
			return spec, nil
		}
	}
	// If file not found, try to find it relative to the executable
	if exePath, exeErr := os.Executable(); exeErr == nil {
		spec, err = os.ReadFile(filepath.Join(filepath.Dir(exePath), "api", "openapi.yaml"))
	}
	return spec, err
}

func (h *Handlers) HandleOpenAPI(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	spec, err := readOpenAPISpec()
	if err != nil {
		w.ErrorWithMessageCode(ctx.RequestID, messages.InternalServerError, "Error", "failed to read the OpenAPI document: "+err.Error())
		return
	}

	contentType := "application/yaml"
	if strings.Contains(r.Header("Accept"), "application/json") {
		contentType = "application/json"
	}
	w.SetHeader("Content-Type", contentType)
	w.SetStatusCode(http.StatusOK)
	_, _ = w.Write(spec)
	logging.LogRequestSuccess(ctx, http.StatusOK, nil)
}

func (h *Handlers) HandleDocs(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	html := `<!DOCTYPE html>
<html>
<head>
  <title>MLOps Dashboard API Documentation</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
  <style>
    html {
      box-sizing: border-box;
      overflow-y: scroll;
    }
    body {
      margin:0;
      background: #fafafa;
    }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
  <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-standalone-preset.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({
        url: "/openapi.yaml",
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [
          SwaggerUIBundle.presets.apis,
          SwaggerUIStandalonePreset
        ],
        layout: "StandaloneLayout"
      });
    };
  </script>
</body>
</html>`

	w.SetHeader("Content-Type", "text/html; charset=utf-8")
	w.SetStatusCode(http.StatusOK)
	_, _ = w.Write([]byte(html))
	logging.LogRequestSuccess(ctx, http.StatusOK, nil)
}
