package labels

import (
	"log/slog"
	"math"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// Export renders d as a label-addressed document.
//
// Labels come from data.label (nodes) or Label (persons, API keys), falling
// back to the id, and are made unique per category with EnsureUniqueLabel.
// Arrows whose endpoints cannot be resolved to an exported node are left
// out and logged.
func (r *Remapper) Export(d diagramkit.Diagram) ExportFormat {
	r.clearLookups()
	r.buildExportLookups(d)

	out := ExportFormat{
		Version:  Version,
		Nodes:    make([]ExportNode, 0, len(d.Nodes)),
		Arrows:   make([]ExportArrow, 0, len(d.Arrows)),
		Persons:  make([]ExportPerson, 0, len(d.Persons)),
		APIKeys:  make([]ExportAPIKey, 0, len(d.APIKeys)),
		Metadata: ExportMetadata{Exported: r.now().UTC()},
	}
	if d.Metadata != nil {
		out.Metadata.Name = d.Metadata.Name
		out.Metadata.Description = d.Metadata.Description
	}

	for _, k := range d.APIKeys {
		out.APIKeys = append(out.APIKeys, ExportAPIKey{
			Name:    r.apiKeyIDToLabel[k.ID],
			Service: k.Service,
		})
	}

	for _, p := range d.Persons {
		ep := ExportPerson{
			Name:           r.personIDToLabel[p.ID],
			Model:          p.LLMConfig.Model,
			Service:        p.LLMConfig.Service,
			SystemPrompt:   p.LLMConfig.SystemPrompt,
			Temperature:    p.LLMConfig.Temperature,
			MaxTokens:      p.LLMConfig.MaxTokens,
			ForgettingMode: p.LLMConfig.ForgettingMode,
		}
		if p.LLMConfig.APIKeyID != "" {
			ep.APIKeyLabel = r.apiKeyIDToLabel[p.LLMConfig.APIKeyID]
		}
		out.Persons = append(out.Persons, ep)
	}

	handlesByNode := make(map[diagramkit.NodeID][]diagramkit.Handle)
	for _, h := range d.Handles {
		handlesByNode[h.NodeID] = append(handlesByNode[h.NodeID], h)
	}

	for _, n := range d.Nodes {
		out.Nodes = append(out.Nodes, r.exportNode(n, handlesByNode[n.ID]))
	}

	for _, a := range d.Arrows {
		ea, ok := r.exportArrow(a)
		if !ok {
			continue
		}
		out.Arrows = append(out.Arrows, ea)
	}
	return out
}

// buildExportLookups assigns each node, person and API key its unique label.
func (r *Remapper) buildExportLookups(d diagramkit.Diagram) {
	for _, n := range d.Nodes {
		base := n.Label()
		if base == "" {
			base = string(n.ID)
		}
		label := EnsureUniqueLabel(base, r.usedNodeLabels)
		r.nodeIDToLabel[n.ID] = label
		r.nodeLabelToID[label] = n.ID
	}
	for _, p := range d.Persons {
		base := p.Label
		if base == "" {
			base = string(p.ID)
		}
		label := EnsureUniqueLabel(base, r.usedPersonLabels)
		r.personIDToLabel[p.ID] = label
		r.personLabelToID[label] = p.ID
	}
	for _, k := range d.APIKeys {
		base := k.Label
		if base == "" {
			base = string(k.ID)
		}
		label := EnsureUniqueLabel(base, r.usedAPIKeyLabels)
		r.apiKeyIDToLabel[k.ID] = label
		r.apiKeyLabelToID[label] = k.ID
	}
}

func (r *Remapper) exportNode(n diagramkit.Node, handles []diagramkit.Handle) ExportNode {
	data := diagramkit.CloneData(n.Data)
	if data == nil {
		data = make(map[string]any)
	}
	delete(data, diagramkit.DataLabel)

	if pid := n.PersonID(); pid != "" {
		delete(data, diagramkit.DataPersonID)
		if label, ok := r.personIDToLabel[pid]; ok {
			data[diagramkit.DataPersonLabel] = label
		} else if r.logger != nil {
			r.logger.Warn("node references unknown person",
				slog.String("node_id", string(n.ID)),
				slog.String("person_id", string(pid)),
			)
		}
	}

	en := ExportNode{
		Label: r.nodeIDToLabel[n.ID],
		Type:  string(n.Type),
		Position: diagramkit.Vec2{
			X: roundPosition(n.Position.X),
			Y: roundPosition(n.Position.Y),
		},
		Data: data,
	}
	for _, h := range handles {
		en.Handles = append(en.Handles, ExportHandle{
			Label:          h.Label,
			Direction:      string(h.Direction),
			DataType:       string(h.DataType),
			Position:       h.Position,
			MaxConnections: h.MaxConnections,
		})
	}
	return en
}

func (r *Remapper) exportArrow(a diagramkit.Arrow) (ExportArrow, bool) {
	src, srcErr := diagramkit.ParseHandleID(a.Source)
	dst, dstErr := diagramkit.ParseHandleID(a.Target)
	srcLabel, srcOK := r.nodeIDToLabel[src.NodeID]
	dstLabel, dstOK := r.nodeIDToLabel[dst.NodeID]
	if srcErr != nil || dstErr != nil || !srcOK || !dstOK {
		if r.logger != nil {
			r.logger.Warn("arrow not exported: endpoint does not resolve",
				slog.String("arrow_id", string(a.ID)),
				slog.String("source", string(a.Source)),
				slog.String("target", string(a.Target)),
			)
		}
		return ExportArrow{}, false
	}

	ea := ExportArrow{
		SourceLabel:  srcLabel,
		TargetLabel:  dstLabel,
		SourceHandle: srcLabel + "-" + src.Label,
		TargetHandle: dstLabel + "-" + dst.Label,
		Label:        a.Label,
		ContentType:  a.ContentType,
		Data:         diagramkit.CloneData(a.Data),
	}
	if a.Branch != nil {
		b := *a.Branch
		ea.Branch = &b
	}
	return ea, true
}

// roundPosition rounds to one decimal place.
func roundPosition(v float64) float64 {
	return math.Round(v*10) / 10
}
