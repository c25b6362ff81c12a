package labels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/observability"
)

// Report summarizes an import.
type Report struct {
	Nodes    int            `json:"nodes"`
	Handles  int            `json:"handles"`
	Arrows   int            `json:"arrows"`
	Persons  int            `json:"persons"`
	APIKeys  int            `json:"apiKeys"`
	Skipped  []SkippedArrow `json:"skipped,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// SkippedArrow records an arrow dropped because an endpoint did not resolve.
type SkippedArrow struct {
	Index        int    `json:"index"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
	Reason       string `json:"reason"`
}

// Decode parses an export document as JSON when it starts with '{' and as
// YAML otherwise.
func Decode(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidExport)
	}

	var raw map[string]any
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidExport, err)
		}
		return raw, nil
	}
	if err := yaml.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidExport, err)
	}
	return raw, nil
}

// Import replaces the contents of target with the diagram in data.
//
// The document is validated first; on structural errors nothing is
// written and a *ValidationError is returned. Otherwise target is cleared
// and filled in dependency order (API keys, persons, nodes, arrows), each
// element getting a fresh id. Arrows whose endpoints do not resolve are
// skipped, logged, and listed in the Report.
func (r *Remapper) Import(data []byte, target Target) (Report, error) {
	raw, err := Decode(data)
	if err != nil {
		return Report{}, err
	}
	return r.ImportMap(raw, target)
}

// ImportMap is Import for an already decoded document.
func (r *Remapper) ImportMap(raw map[string]any, target Target) (Report, error) {
	if res := Validate(raw); !res.Valid {
		return Report{}, &ValidationError{Errors: res.Errors}
	}

	doc, err := toExportFormat(raw)
	if err != nil {
		return Report{}, err
	}

	r.clearLookups()
	target.Clear()

	var rep Report
	r.importAPIKeys(doc.APIKeys, target, &rep)
	r.importPersons(doc.Persons, target, &rep)
	r.importNodes(doc.Nodes, target, &rep)
	r.importArrows(doc.Arrows, target, &rep)

	if doc.Metadata.Name != "" || doc.Metadata.Description != "" {
		target.SetMetadata(&diagramkit.Metadata{
			Name:        doc.Metadata.Name,
			Description: doc.Metadata.Description,
		})
	}

	r.metrics.RecordArrowsSkipped(context.Background(), "readable", len(rep.Skipped))
	observability.LogImportComplete(r.logger, rep.Nodes, rep.Arrows, rep.Persons, rep.APIKeys, len(rep.Skipped))
	return rep, nil
}

// toExportFormat converts a validated map into the typed document.
// metadata.exported is informational and dropped, so hand-edited dates
// in any layout do not fail the import.
func toExportFormat(raw map[string]any) (ExportFormat, error) {
	if md, ok := raw["metadata"].(map[string]any); ok {
		trimmed := make(map[string]any, len(raw))
		for k, v := range raw {
			trimmed[k] = v
		}
		mdCopy := make(map[string]any, len(md))
		for k, v := range md {
			if k != "exported" {
				mdCopy[k] = v
			}
		}
		trimmed["metadata"] = mdCopy
		raw = trimmed
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return ExportFormat{}, fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	var doc ExportFormat
	if err := json.Unmarshal(b, &doc); err != nil {
		return ExportFormat{}, fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	return doc, nil
}

func (r *Remapper) importAPIKeys(keys []ExportAPIKey, target Target, rep *Report) {
	for _, k := range keys {
		id := freshID(r.usedAPIKeyIDs, r.ids.APIKeyID)
		base := k.Name
		if base == "" {
			base = string(id)
		}
		label := EnsureUniqueLabel(base, r.usedAPIKeyLabels)
		r.apiKeyLabelToID[label] = id
		r.apiKeyIDToLabel[id] = label

		target.AddAPIKey(diagramkit.APIKey{ID: id, Label: label, Service: k.Service})
		rep.APIKeys++
	}
}

func (r *Remapper) importPersons(persons []ExportPerson, target Target, rep *Report) {
	for _, p := range persons {
		id := freshID(r.usedPersonIDs, r.ids.PersonID)
		base := p.Name
		if base == "" {
			base = string(id)
		}
		label := EnsureUniqueLabel(base, r.usedPersonLabels)
		r.personLabelToID[label] = id
		r.personIDToLabel[id] = label

		cfg := diagramkit.LLMConfig{
			Service:        p.Service,
			Model:          p.Model,
			SystemPrompt:   p.SystemPrompt,
			Temperature:    p.Temperature,
			MaxTokens:      p.MaxTokens,
			ForgettingMode: p.ForgettingMode,
		}
		if p.APIKeyLabel != "" {
			if keyID, ok := r.apiKeyLabelToID[p.APIKeyLabel]; ok {
				cfg.APIKeyID = keyID
			} else {
				rep.Warnings = append(rep.Warnings,
					fmt.Sprintf("person %q: unknown api key %q", label, p.APIKeyLabel))
			}
		}

		target.AddPerson(diagramkit.Person{ID: id, Label: label, LLMConfig: cfg})
		rep.Persons++
	}
}

func (r *Remapper) importNodes(exported []ExportNode, target Target, rep *Report) {
	for _, n := range exported {
		kind := diagramkit.NodeKind(n.Type)
		if parsed, err := diagramkit.ParseNodeKind(n.Type); err == nil {
			kind = parsed
		}
		id := freshID(r.usedNodeIDs, func() diagramkit.NodeID { return r.ids.NodeID(kind) })
		label := EnsureUniqueLabel(n.Label, r.usedNodeLabels)
		r.nodeLabelToID[label] = id
		r.nodeIDToLabel[id] = label

		data := diagramkit.CloneData(n.Data)
		if data == nil {
			data = make(map[string]any)
		}
		data[diagramkit.DataLabel] = label
		// A personId in a label document is a stale id from another diagram.
		delete(data, diagramkit.DataPersonID)
		if pl, ok := data[diagramkit.DataPersonLabel].(string); ok {
			delete(data, diagramkit.DataPersonLabel)
			if pid, found := r.personLabelToID[pl]; found {
				data[diagramkit.DataPersonID] = string(pid)
			} else {
				rep.Warnings = append(rep.Warnings,
					fmt.Sprintf("node %q: unknown person %q", label, pl))
			}
		}

		target.AddNode(diagramkit.Node{
			ID:       id,
			Type:     kind,
			Position: n.Position,
			Data:     data,
		})
		rep.Nodes++

		for _, h := range r.nodeHandles(id, kind, n.Handles, rep) {
			target.AddHandle(h)
			rep.Handles++
		}
	}
}

// nodeHandles recreates explicit handles, or synthesizes the kind's
// defaults when the node lists none.
func (r *Remapper) nodeHandles(id diagramkit.NodeID, kind diagramkit.NodeKind, explicit []ExportHandle, rep *Report) []diagramkit.Handle {
	if len(explicit) == 0 {
		return r.catalog.DefaultHandles(id, kind)
	}

	handles := make([]diagramkit.Handle, 0, len(explicit))
	for _, eh := range explicit {
		dir, err := diagramkit.ParseDirection(eh.Direction)
		if err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("node %s handle %q: %v", id, eh.Label, err))
			continue
		}
		dt, err := diagramkit.ParseDataType(eh.DataType)
		if err != nil {
			dt = diagramkit.TypeAny
		}
		h := diagramkit.NewHandle(id, eh.Label, dir, dt)
		h.Position = eh.Position
		h.MaxConnections = eh.MaxConnections
		handles = append(handles, h)
	}
	return handles
}

func (r *Remapper) importArrows(exported []ExportArrow, target Target, rep *Report) {
	for i, a := range exported {
		skip := func(reason string) {
			rep.Skipped = append(rep.Skipped, SkippedArrow{
				Index:        i,
				SourceHandle: a.SourceHandle,
				TargetHandle: a.TargetHandle,
				Reason:       reason,
			})
			observability.LogArrowSkipped(r.logger, i, a.SourceHandle, a.TargetHandle, reason)
		}

		srcNode, ok := r.nodeLabelToID[a.SourceLabel]
		if !ok {
			skip(fmt.Sprintf("source node %q not found", a.SourceLabel))
			continue
		}
		dstNode, ok := r.nodeLabelToID[a.TargetLabel]
		if !ok {
			skip(fmt.Sprintf("target node %q not found", a.TargetLabel))
			continue
		}

		srcHandle := diagramkit.CreateHandleID(srcNode, HandleName(a.SourceHandle, a.SourceLabel), diagramkit.Output)
		if _, ok := target.Handle(srcHandle); !ok {
			skip(fmt.Sprintf("source handle %q not found", a.SourceHandle))
			continue
		}
		dstHandle := diagramkit.CreateHandleID(dstNode, HandleName(a.TargetHandle, a.TargetLabel), diagramkit.Input)
		if _, ok := target.Handle(dstHandle); !ok {
			skip(fmt.Sprintf("target handle %q not found", a.TargetHandle))
			continue
		}

		arrow := diagramkit.Arrow{
			ID:          freshID(r.usedArrowIDs, r.ids.ArrowID),
			Source:      srcHandle,
			Target:      dstHandle,
			Label:       a.Label,
			ContentType: a.ContentType,
		}
		if a.Branch != nil {
			b := *a.Branch
			arrow.Branch = &b
		}
		if len(a.Data) > 0 {
			arrow.Data = diagramkit.CloneData(a.Data)
		}

		target.AddArrow(arrow)
		rep.Arrows++
	}
}

// HandleName extracts the handle label from a compound "{nodeLabel}-{handle}"
// reference. The known node label is stripped first so labels containing
// '-' survive; otherwise everything after the first '-' is the handle. A
// reference without '-' is taken as a bare handle label.
func HandleName(ref, nodeLabel string) string {
	if nodeLabel != "" && strings.HasPrefix(ref, nodeLabel+"-") {
		return ref[len(nodeLabel)+1:]
	}
	if i := strings.Index(ref, "-"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
