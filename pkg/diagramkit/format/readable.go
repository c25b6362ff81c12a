package format

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/labels"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/store"
)

// ReadableConverter writes the label-addressed export document as JSON and
// imports it, in JSON or YAML, with fresh ids.
type ReadableConverter struct {
	opts options
}

// NewReadable returns the label-addressed converter.
func NewReadable(opts ...Option) *ReadableConverter {
	return &ReadableConverter{opts: buildOptions(opts)}
}

// Format implements Converter.
func (c *ReadableConverter) Format() string { return Readable }

// remapper returns a fresh Remapper; they hold per-pass state.
func (c *ReadableConverter) remapper() *labels.Remapper {
	return labels.NewRemapper(
		labels.WithIDGenerator(c.opts.ids),
		labels.WithCatalog(c.opts.catalog),
		labels.WithLogger(c.opts.logger),
		labels.WithMetrics(c.opts.metrics),
	)
}

// Serialize implements Converter.
func (c *ReadableConverter) Serialize(d diagramkit.Diagram) ([]byte, error) {
	doc := c.remapper().Export(d)
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode readable json: %w", err)
	}
	return append(b, '\n'), nil
}

// Deserialize implements Converter.
func (c *ReadableConverter) Deserialize(data []byte) (diagramkit.Diagram, error) {
	d, _, err := c.Import(data)
	return d, err
}

// Import is Deserialize that also returns the import report.
func (c *ReadableConverter) Import(data []byte) (diagramkit.Diagram, labels.Report, error) {
	s := store.New()
	rep, err := c.remapper().Import(data, s)
	if err != nil {
		return diagramkit.Diagram{}, rep, err
	}
	return s.Diagram(), rep, nil
}

// Confidence implements Detector.
func (c *ReadableConverter) Confidence(data []byte) float64 {
	raw, err := labels.Decode(data)
	if err != nil {
		return 0
	}
	items, ok := raw["nodes"].([]any)
	if !ok {
		return 0
	}
	if v, _ := raw["version"].(string); v == labels.Version {
		return 1
	}
	if len(items) > 0 {
		if n, ok := items[0].(map[string]any); ok {
			if _, hasID := n["id"]; hasID {
				return 0
			}
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return 0.7
	}
	return 0.5
}
