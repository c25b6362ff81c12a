package format

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/idgen"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/nodes"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/observability"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/store"
)

// Format names of the built-in converters.
const (
	Native   = "native"
	Light    = "light"
	Readable = "readable"
	LLM      = "llm"
)

// Sentinel errors for conversion.
var (
	// ErrUnknownFormat indicates a format name with no registered converter.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrUndetectable indicates that no converter recognized the input.
	ErrUndetectable = errors.New("format could not be detected")

	// ErrInvalidDocument indicates input that the chosen converter cannot parse.
	ErrInvalidDocument = errors.New("invalid document")
)

// Converter turns a diagram into one textual format and back.
type Converter interface {
	// Format returns the converter's registry name.
	Format() string

	// Serialize renders d.
	Serialize(d diagramkit.Diagram) ([]byte, error)

	// Deserialize parses data into a diagram.
	Deserialize(data []byte) (diagramkit.Diagram, error)
}

// Detector is implemented by converters that can recognize their own
// format. Confidence returns a score in [0, 1]; zero means "not mine".
type Detector interface {
	Confidence(data []byte) float64
}

// Option configures converters and the Registry.
type Option func(*options)

type options struct {
	catalog *nodes.Catalog
	ids     *idgen.Generator
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	grid    float64
	policy  store.DuplicatePolicy
}

// WithCatalog sets the node catalog used for default handles.
func WithCatalog(c *nodes.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithIDGenerator sets the id source for elements created on import.
func WithIDGenerator(g *idgen.Generator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithLogger sets the logger. Default: nil (no logging).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics recorder. Default: NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSpanManager sets the span manager. Default: NoopSpanManager.
func WithSpanManager(s observability.SpanManager) Option {
	return func(o *options) {
		o.spans = s
	}
}

// WithPositionGrid snaps positions written by the light format to
// multiples of grid. Zero disables snapping.
func WithPositionGrid(grid float64) Option {
	return func(o *options) {
		o.grid = grid
	}
}

// WithDuplicatePolicy sets how id-preserving formats treat repeated ids.
func WithDuplicatePolicy(p store.DuplicatePolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

func buildOptions(opts []Option) options {
	o := options{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = nodes.NewCatalog()
	}
	if o.ids == nil {
		o.ids = idgen.New(nil)
	}
	return o
}

// normalize rebuilds d through the store adapter, applying the duplicate
// policy and dropping nothing else.
func (o options) normalize(d diagramkit.Diagram) (diagramkit.Diagram, error) {
	s, err := store.FromDiagram(d, store.WithDuplicatePolicy(o.policy))
	if err != nil {
		return diagramkit.Diagram{}, err
	}
	return s.Diagram(), nil
}

func invalid(format string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, format, err)
}
