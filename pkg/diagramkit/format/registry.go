package format

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/observability"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/registry"
)

// Registry holds converters by format name and runs conversions between
// them. It is safe for concurrent use as long as the registered converters
// are; the built-in ones are.
type Registry struct {
	converters *registry.Registry[string, Converter]
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
}

// NewRegistry returns a registry with the native, light, readable and llm
// converters, all configured by opts.
func NewRegistry(opts ...Option) *Registry {
	o := buildOptions(opts)
	r := &Registry{
		converters: registry.New[string, Converter](),
		logger:     o.logger,
		metrics:    o.metrics,
		spans:      o.spans,
	}
	r.Register(NewNative(opts...))
	r.Register(NewLight(opts...))
	r.Register(NewReadable(opts...))
	r.Register(NewLLM(opts...))
	return r
}

// Register adds c, replacing any converter with the same format name.
func (r *Registry) Register(c Converter) {
	r.converters.Register(c.Format(), c)
}

// Get returns the converter for name.
func (r *Registry) Get(name string) (Converter, error) {
	c, ok := r.converters.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return c, nil
}

// Formats returns the registered format names in sorted order.
func (r *Registry) Formats() []string {
	return r.converters.Keys()
}

// Detection is the outcome of Detect for one format.
type Detection struct {
	Format     string  `json:"format"`
	Confidence float64 `json:"confidence"`
}

// Detect returns the format whose converter is most confident about data.
// Ties go to the format name that sorts first.
func (r *Registry) Detect(data []byte) (string, error) {
	scores := r.Scores(data)
	if len(scores) == 0 {
		return "", ErrUndetectable
	}
	return scores[0].Format, nil
}

// Scores returns every non-zero detection, most confident first.
func (r *Registry) Scores(data []byte) []Detection {
	var out []Detection
	r.converters.Range(func(name string, c Converter) bool {
		det, ok := c.(Detector)
		if !ok {
			return true
		}
		if score := det.Confidence(data); score > 0 {
			out = append(out, Detection{Format: name, Confidence: score})
		}
		return true
	})
	// Range visits in key order, so a stable sort keeps ties that way.
	slices.SortStableFunc(out, func(a, b Detection) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return out
}

// Load parses data as format from. An empty from triggers detection; the
// format actually used is returned.
func (r *Registry) Load(ctx context.Context, data []byte, from string) (diagramkit.Diagram, string, error) {
	if from == "" {
		detected, err := r.Detect(data)
		if err != nil {
			return diagramkit.Diagram{}, "", err
		}
		from = detected
		r.spans.AddSpanEvent(ctx, "format.detected", attribute.String("format", from))
	}
	c, err := r.Get(from)
	if err != nil {
		return diagramkit.Diagram{}, from, err
	}
	d, err := c.Deserialize(data)
	return d, from, err
}

// Convert parses data as from (detecting it when empty) and renders it as
// to.
func (r *Registry) Convert(ctx context.Context, data []byte, from, to string) (out []byte, err error) {
	ctx, span := r.spans.StartConvertSpan(ctx, from, to)
	defer func() { r.spans.EndSpanWithError(span, err) }()

	elapsed := observability.TimedOperation()
	observability.LogConvertStart(r.logger, from, to, len(data))
	defer func() {
		ms := elapsed()
		r.metrics.RecordConvert(ctx, from, to, time.Duration(ms*float64(time.Millisecond)), err)
		if err != nil {
			observability.LogConvertError(r.logger, from, to, err)
		}
	}()

	dst, err := r.Get(to)
	if err != nil {
		return nil, err
	}
	d, used, err := r.Load(ctx, data, from)
	if err != nil {
		return nil, err
	}
	from = used

	out, err = dst.Serialize(d)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", to, err)
	}
	observability.LogConvertComplete(r.logger, from, to, elapsed(), len(d.Nodes))
	return out, nil
}
