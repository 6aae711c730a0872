// Package api declares HTTP contracts and route registration helpers.
package api

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var openapiSpec []byte

// docsPage renders the spec with Redoc from a CDN.
const docsPage = `<!DOCTYPE html>
<html>
  <head>
    <title>spikepipe API</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
  </head>
  <body>
    <redoc spec-url="/openapi.yaml"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
  </body>
</html>
`

type docsHandler struct{}

func newDocsHandler() *docsHandler {
	return &docsHandler{}
}

// HandleDocs handles GET /api-docs requests.
func (h *docsHandler) HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsPage))
}

// HandleSpec handles GET /openapi.yaml requests.
func (h *docsHandler) HandleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapiSpec)
}
