package labels

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/idgen"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/nodes"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/observability"
)

// Target is the diagram store an import writes into. *store.Store
// satisfies it.
type Target interface {
	Clear()
	AddNode(diagramkit.Node)
	AddHandle(diagramkit.Handle)
	AddArrow(diagramkit.Arrow)
	AddPerson(diagramkit.Person)
	AddAPIKey(diagramkit.APIKey)
	Handle(diagramkit.HandleID) (diagramkit.Handle, bool)
	SetMetadata(*diagramkit.Metadata)
}

// Remapper converts between id-addressed diagrams and the label-addressed
// ExportFormat.
//
// It keeps id/label lookups for the duration of one Export or Import call
// and resets them at the start of the next. A Remapper is not safe for
// concurrent use; create one per goroutine.
type Remapper struct {
	ids     *idgen.Generator
	catalog *nodes.Catalog
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	now     func() time.Time

	nodeIDToLabel   map[diagramkit.NodeID]string
	nodeLabelToID   map[string]diagramkit.NodeID
	personIDToLabel map[diagramkit.PersonID]string
	personLabelToID map[string]diagramkit.PersonID
	apiKeyIDToLabel map[diagramkit.APIKeyID]string
	apiKeyLabelToID map[string]diagramkit.APIKeyID

	usedNodeLabels   map[string]bool
	usedPersonLabels map[string]bool
	usedAPIKeyLabels map[string]bool

	usedNodeIDs   map[diagramkit.NodeID]bool
	usedPersonIDs map[diagramkit.PersonID]bool
	usedAPIKeyIDs map[diagramkit.APIKeyID]bool
	usedArrowIDs  map[diagramkit.ArrowID]bool
}

// Option configures a Remapper.
type Option func(*Remapper)

// WithIDGenerator sets the source of fresh ids for Import.
// Default: idgen.New(nil), which draws from crypto/rand.
func WithIDGenerator(g *idgen.Generator) Option {
	return func(r *Remapper) {
		r.ids = g
	}
}

// WithCatalog sets the node catalog used for default handles.
// Default: nodes.NewCatalog().
func WithCatalog(c *nodes.Catalog) Option {
	return func(r *Remapper) {
		r.catalog = c
	}
}

// WithLogger sets the logger for skipped-arrow warnings and summaries.
// Default: nil (no logging).
func WithLogger(l *slog.Logger) Option {
	return func(r *Remapper) {
		r.logger = l
	}
}

// WithMetrics sets the metrics recorder. Default: NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Remapper) {
		r.metrics = m
	}
}

// WithClock sets the time source for metadata.exported. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Remapper) {
		r.now = now
	}
}

// NewRemapper returns a Remapper configured by opts.
func NewRemapper(opts ...Option) *Remapper {
	r := &Remapper{
		metrics: observability.NoopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ids == nil {
		r.ids = idgen.New(nil)
	}
	if r.catalog == nil {
		r.catalog = nodes.NewCatalog()
	}
	r.clearLookups()
	return r
}

// clearLookups drops all per-pass state.
func (r *Remapper) clearLookups() {
	r.nodeIDToLabel = make(map[diagramkit.NodeID]string)
	r.nodeLabelToID = make(map[string]diagramkit.NodeID)
	r.personIDToLabel = make(map[diagramkit.PersonID]string)
	r.personLabelToID = make(map[string]diagramkit.PersonID)
	r.apiKeyIDToLabel = make(map[diagramkit.APIKeyID]string)
	r.apiKeyLabelToID = make(map[string]diagramkit.APIKeyID)
	r.usedNodeLabels = make(map[string]bool)
	r.usedPersonLabels = make(map[string]bool)
	r.usedAPIKeyLabels = make(map[string]bool)
	r.usedNodeIDs = make(map[diagramkit.NodeID]bool)
	r.usedPersonIDs = make(map[diagramkit.PersonID]bool)
	r.usedAPIKeyIDs = make(map[diagramkit.APIKeyID]bool)
	r.usedArrowIDs = make(map[diagramkit.ArrowID]bool)
}

// maxIDDraws bounds redraws for one fresh id before falling back to a
// counter suffix.
const maxIDDraws = 32

// freshID draws ids until one is not in used, then reserves it. A source
// that keeps repeating itself still terminates: after maxIDDraws the last
// draw gets a "-N" suffix that is unused.
func freshID[T ~string](used map[T]bool, draw func() T) T {
	var id T
	for range maxIDDraws {
		id = draw()
		if !used[id] {
			used[id] = true
			return id
		}
	}
	base := id
	for n := 2; ; n++ {
		id = T(fmt.Sprintf("%s-%d", base, n))
		if !used[id] {
			used[id] = true
			return id
		}
	}
}

// EnsureUniqueLabel reserves label in used and returns it, or the first
// free "label_2", "label_3", ... when label is taken.
func EnsureUniqueLabel(label string, used map[string]bool) string {
	if !used[label] {
		used[label] = true
		return label
	}
	for i := 2; ; i++ {
		candidate := label + "_" + strconv.Itoa(i)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// LabelMaps is a read-only snapshot of the lookups built by the last pass.
type LabelMaps struct {
	Nodes   map[diagramkit.NodeID]string
	Persons map[diagramkit.PersonID]string
	APIKeys map[diagramkit.APIKeyID]string
}

// Labels returns copies of the id to label lookups from the most recent
// Export or Import.
func (r *Remapper) Labels() LabelMaps {
	m := LabelMaps{
		Nodes:   make(map[diagramkit.NodeID]string, len(r.nodeIDToLabel)),
		Persons: make(map[diagramkit.PersonID]string, len(r.personIDToLabel)),
		APIKeys: make(map[diagramkit.APIKeyID]string, len(r.apiKeyIDToLabel)),
	}
	for k, v := range r.nodeIDToLabel {
		m.Nodes[k] = v
	}
	for k, v := range r.personIDToLabel {
		m.Persons[k] = v
	}
	for k, v := range r.apiKeyIDToLabel {
		m.APIKeys[k] = v
	}
	return m
}
