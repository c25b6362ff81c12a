package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/format"
)

// Store persists diagrams by id.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores d under id, replacing any previous version.
	Save(ctx context.Context, id diagramkit.DiagramID, d diagramkit.Diagram) error

	// Load retrieves a diagram.
	// Returns ErrNotFound if nothing is stored under id.
	Load(ctx context.Context, id diagramkit.DiagramID) (diagramkit.Diagram, error)

	// List describes every stored diagram, ordered by id.
	// Returns an empty slice (not error) when the store is empty.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a diagram.
	// Returns nil if nothing is stored under id.
	Delete(ctx context.Context, id diagramkit.DiagramID) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a stored diagram without decoding it.
type Info struct {
	ID       diagramkit.DiagramID `json:"id"`
	Name     string               `json:"name,omitempty"`
	Modified time.Time            `json:"modified"`
	Size     int64                `json:"size"`
}

// Sentinel errors for repository operations.
var (
	// ErrNotFound indicates no diagram is stored under the id.
	ErrNotFound = errors.New("diagram not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("diagram store closed")

	// ErrInvalidID indicates an id rejected by diagramkit.IsDiagramID.
	ErrInvalidID = errors.New("invalid diagram id")
)

// Codec turns a diagram into the stored payload and back.
// format.NativeConverter is the default.
type Codec interface {
	Serialize(d diagramkit.Diagram) ([]byte, error)
	Deserialize(data []byte) (diagramkit.Diagram, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	codec     Codec
	logger    *slog.Logger
	keyPrefix string
	ttl       time.Duration
}

// WithCodec replaces the native JSON payload encoding.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger sets the logger used for maintenance messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithKeyPrefix sets the key namespace of a RedisStore.
func WithKeyPrefix(p string) Option {
	return func(o *options) { o.keyPrefix = p }
}

// WithTTL expires RedisStore entries after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

func buildOptions(opts []Option) options {
	o := options{keyPrefix: "diagramkit:"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codec == nil {
		o.codec = format.NewNative()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

func checkID(id diagramkit.DiagramID) error {
	if !diagramkit.IsDiagramID(string(id)) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// encode serializes d and extracts the listing name.
func (o options) encode(id diagramkit.DiagramID, d diagramkit.Diagram) ([]byte, string, error) {
	if err := checkID(id); err != nil {
		return nil, "", err
	}
	data, err := o.codec.Serialize(d)
	if err != nil {
		return nil, "", fmt.Errorf("encode diagram %s: %w", id, err)
	}
	var name string
	if d.Metadata != nil {
		name = d.Metadata.Name
	}
	return data, name, nil
}

func (o options) decode(id diagramkit.DiagramID, data []byte) (diagramkit.Diagram, error) {
	d, err := o.codec.Deserialize(data)
	if err != nil {
		return diagramkit.Diagram{}, fmt.Errorf("decode diagram %s: %w", id, err)
	}
	return d, nil
}
