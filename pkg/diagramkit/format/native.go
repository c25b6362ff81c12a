package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// NativeVersion is written to the version field of native documents.
const NativeVersion = "2.0.0"

// NativeConverter reads and writes the map-keyed JSON form: each element
// collection is an object keyed by id, in insertion order.
//
//	{"version":"2.0.0","nodes":{"start-1":{...}},"handles":{...},...}
//
// Deserialize also accepts the array form and fills missing element ids
// from the map keys.
type NativeConverter struct {
	opts options
}

// NewNative returns the native JSON converter.
func NewNative(opts ...Option) *NativeConverter {
	return &NativeConverter{opts: buildOptions(opts)}
}

// Format implements Converter.
func (c *NativeConverter) Format() string { return Native }

// Serialize implements Converter.
func (c *NativeConverter) Serialize(d diagramkit.Diagram) ([]byte, error) {
	d, err := c.opts.normalize(d)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"version":"` + NativeVersion + `"`)

	if err := writeSection(&buf, "nodes", d.Nodes, func(n diagramkit.Node) string { return string(n.ID) }); err != nil {
		return nil, err
	}
	if err := writeSection(&buf, "handles", d.Handles, func(h diagramkit.Handle) string { return string(h.ID) }); err != nil {
		return nil, err
	}
	if err := writeSection(&buf, "arrows", d.Arrows, func(a diagramkit.Arrow) string { return string(a.ID) }); err != nil {
		return nil, err
	}
	if err := writeSection(&buf, "persons", d.Persons, func(p diagramkit.Person) string { return string(p.ID) }); err != nil {
		return nil, err
	}
	if err := writeSection(&buf, "apiKeys", d.APIKeys, func(k diagramkit.APIKey) string { return string(k.ID) }); err != nil {
		return nil, err
	}
	if d.Metadata != nil {
		buf.WriteString(`,"metadata":`)
		if err := writeJSON(&buf, d.Metadata); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent native json: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func writeSection[T any](buf *bytes.Buffer, name string, items []T, key func(T) string) error {
	buf.WriteString(`,"` + name + `":{`)
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(buf, key(item)); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeJSON(buf, item); err != nil {
			return fmt.Errorf("encode %s %q: %w", name, key(item), err)
		}
	}
	buf.WriteByte('}')
	return nil
}

type nativeDoc struct {
	Version  string               `json:"version"`
	Nodes    json.RawMessage      `json:"nodes"`
	Handles  json.RawMessage      `json:"handles"`
	Arrows   json.RawMessage      `json:"arrows"`
	Persons  json.RawMessage      `json:"persons"`
	APIKeys  json.RawMessage      `json:"apiKeys"`
	Metadata *diagramkit.Metadata `json:"metadata"`
}

// Deserialize implements Converter.
func (c *NativeConverter) Deserialize(data []byte) (diagramkit.Diagram, error) {
	var doc nativeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return diagramkit.Diagram{}, invalid(Native, err)
	}
	if len(doc.Nodes) == 0 {
		return diagramkit.Diagram{}, invalid(Native, errors.New("missing nodes"))
	}

	var (
		d   diagramkit.Diagram
		err error
	)
	if d.Nodes, err = readSection(doc.Nodes, func(n *diagramkit.Node, id string) {
		if n.ID == "" {
			n.ID = diagramkit.NodeID(id)
		}
	}); err != nil {
		return diagramkit.Diagram{}, invalid(Native, fmt.Errorf("nodes: %w", err))
	}
	if d.Handles, err = readSection(doc.Handles, func(h *diagramkit.Handle, id string) {
		if h.ID == "" {
			h.ID = diagramkit.HandleID(id)
		}
	}); err != nil {
		return diagramkit.Diagram{}, invalid(Native, fmt.Errorf("handles: %w", err))
	}
	if d.Arrows, err = readSection(doc.Arrows, func(a *diagramkit.Arrow, id string) {
		if a.ID == "" {
			a.ID = diagramkit.ArrowID(id)
		}
	}); err != nil {
		return diagramkit.Diagram{}, invalid(Native, fmt.Errorf("arrows: %w", err))
	}
	if d.Persons, err = readSection(doc.Persons, func(p *diagramkit.Person, id string) {
		if p.ID == "" {
			p.ID = diagramkit.PersonID(id)
		}
	}); err != nil {
		return diagramkit.Diagram{}, invalid(Native, fmt.Errorf("persons: %w", err))
	}
	if d.APIKeys, err = readSection(doc.APIKeys, func(k *diagramkit.APIKey, id string) {
		if k.ID == "" {
			k.ID = diagramkit.APIKeyID(id)
		}
	}); err != nil {
		return diagramkit.Diagram{}, invalid(Native, fmt.Errorf("apiKeys: %w", err))
	}
	d.Metadata = doc.Metadata

	for i, h := range d.Handles {
		if h.NodeID == "" {
			if ref, err := diagramkit.ParseHandleID(h.ID); err == nil {
				d.Handles[i].NodeID = ref.NodeID
			}
		}
	}
	return c.opts.normalize(d)
}

// readSection decodes either an id-keyed object, preserving key order, or
// a plain array. fill receives each element with its map key.
func readSection[T any](raw json.RawMessage, fill func(*T, string)) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object or array, got %v", tok)
	}

	var items []T
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", tok)
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("%q: %w", key, err)
		}
		fill(&item, key)
		items = append(items, item)
	}
	return items, nil
}

// Confidence implements Detector.
func (c *NativeConverter) Confidence(data []byte) float64 {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return 0
	}
	var doc nativeDoc
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return 0
	}
	nodes := bytes.TrimSpace(doc.Nodes)
	if len(nodes) == 0 {
		return 0
	}
	switch {
	case nodes[0] == '{' && doc.Version == NativeVersion:
		return 1
	case nodes[0] == '{':
		return 0.9
	case nodes[0] == '[' && len(bytes.TrimSpace(doc.Handles)) > 0:
		// Array form with explicit handles is a raw Diagram dump.
		return 0.6
	}
	return 0
}
