package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/execution"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/format"
)

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// readBody reads the whole request body within the size limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyBody
	}
	return data, nil
}

// contentType is the media type of a serialized format.
func contentType(name string) string {
	switch name {
	case format.Light, format.LLM:
		return "application/yaml"
	default:
		return "application/json"
	}
}

func writeDocument(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("X-Diagram-Format", name)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) listFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "formats": s.formats.Formats()})
}

// convert handles POST /v1/convert?from=&to=. An empty from detects the
// source format.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	if to == "" {
		s.writeError(w, r, badRequest("missing query parameter \"to\"", nil))
		return
	}
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.formats.Convert(r.Context(), data, r.URL.Query().Get("from"), to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeDocument(w, to, out)
}

type detectResponse struct {
	OK     bool               `json:"ok"`
	Format string             `json:"format"`
	Scores []format.Detection `json:"scores"`
}

func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := s.formats.Detect(data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detectResponse{OK: true, Format: name, Scores: s.formats.Scores(data)})
}

type validateResponse struct {
	OK bool `json:"ok"`
	format.Validation
}

// validate handles POST /v1/validate?format=. Problems with the document
// are reported in the body with status 200.
func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.formats.Validate(r.Context(), data, r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{OK: true, Validation: v})
}

func (s *Server) variables(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, _, err := s.formats.Load(r.Context(), data, r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scan := format.ScanVariables(d, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"nodes": scan,
		"all":   format.AllVariables(scan),
	})
}

func (s *Server) listDiagrams(w http.ResponseWriter, r *http.Request) {
	infos, err := s.repo.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "diagrams": infos})
}

// getDiagram handles GET /v1/diagrams/{id}?format=, native by default.
func (s *Server) getDiagram(w http.ResponseWriter, r *http.Request) {
	id := diagramkit.DiagramID(chi.URLParam(r, "id"))
	name := r.URL.Query().Get("format")
	if name == "" {
		name = format.Native
	}
	c, err := s.formats.Get(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.repo.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := c.Serialize(d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeDocument(w, name, out)
}

// loadBody decodes a diagram in the format named by ?format=, detecting
// it when absent.
func (s *Server) loadBody(w http.ResponseWriter, r *http.Request) (diagramkit.Diagram, error) {
	data, err := s.readBody(w, r)
	if err != nil {
		return diagramkit.Diagram{}, err
	}
	d, _, err := s.formats.Load(r.Context(), data, r.URL.Query().Get("format"))
	return d, err
}

func (s *Server) saveDiagram(w http.ResponseWriter, r *http.Request, id diagramkit.DiagramID, status int) {
	d, err := s.loadBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.Save(r.Context(), id, d); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, map[string]any{"ok": true, "id": id})
}

func (s *Server) createDiagram(w http.ResponseWriter, r *http.Request) {
	s.saveDiagram(w, r, s.ids.DiagramID(), http.StatusCreated)
}

func (s *Server) putDiagram(w http.ResponseWriter, r *http.Request) {
	s.saveDiagram(w, r, diagramkit.DiagramID(chi.URLParam(r, "id")), http.StatusOK)
}

func (s *Server) deleteDiagram(w http.ResponseWriter, r *http.Request) {
	id := diagramkit.DiagramID(chi.URLParam(r, "id"))
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listExecutions handles GET /v1/executions; ?all=true includes finished runs.
func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	list := s.monitor.Active()
	if r.URL.Query().Get("all") == "true" {
		list = s.monitor.All()
	}
	if list == nil {
		list = []execution.Execution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "executions": list})
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	id := diagramkit.ExecutionID(chi.URLParam(r, "id"))
	e, ok := s.monitor.Snapshot(id)
	if !ok {
		s.writeError(w, r, &HTTPError{Status: http.StatusNotFound, Message: "execution not found: " + string(id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "execution": e})
}

// applyUpdate handles POST /v1/executions/{id}/updates with one JSON
// encoded execution.Update. The id in the path wins over the body.
func (s *Server) applyUpdate(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var u execution.Update
	if err := json.Unmarshal(data, &u); err != nil {
		s.writeError(w, r, badRequest("decode update", err))
		return
	}
	u.ExecutionID = diagramkit.ExecutionID(chi.URLParam(r, "id"))

	e, err := s.monitor.Apply(r.Context(), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "execution": e})
}

func (s *Server) forgetExecution(w http.ResponseWriter, r *http.Request) {
	id := diagramkit.ExecutionID(chi.URLParam(r, "id"))
	if !s.monitor.Forget(id) {
		s.writeError(w, r, &HTTPError{Status: http.StatusNotFound, Message: "execution not found: " + string(id)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
