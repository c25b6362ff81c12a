// Package server is the HTTP face of diagramkit.
//
// Routes:
//
//	GET    /healthz
//	GET    /v1/formats
//	POST   /v1/convert?from=&to=        body: document, response: converted document
//	POST   /v1/detect                   body: document
//	POST   /v1/validate?format=         body: document
//	POST   /v1/variables?format=        body: document
//	GET    /v1/diagrams
//	POST   /v1/diagrams?format=         body: document, id generated
//	GET    /v1/diagrams/{id}?format=
//	PUT    /v1/diagrams/{id}?format=    body: document
//	DELETE /v1/diagrams/{id}
//	GET    /v1/executions?all=
//	GET    /v1/executions/{id}
//	POST   /v1/executions/{id}/updates  body: JSON execution.Update
//	DELETE /v1/executions/{id}
//
// JSON responses carry "ok"; failures are {"ok": false, "error": "..."}
// with a status chosen from the error's sentinel.
package server
