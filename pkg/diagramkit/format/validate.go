package format

import (
	"context"
	"errors"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/labels"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/store"
)

// Validation is the outcome of Registry.Validate.
type Validation struct {
	Format string   `json:"format"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validate checks a document without converting it. Readable documents get
// the structural pre-import checks of labels.Validate; documents in the
// other formats are loaded and checked for dangling references.
//
// Problems with the document are reported in the Validation. The error is
// reserved for an unknown or undetectable format.
func (r *Registry) Validate(ctx context.Context, data []byte, from string) (Validation, error) {
	if from == "" {
		detected, err := r.Detect(data)
		if err != nil {
			return Validation{}, err
		}
		from = detected
	}
	if _, err := r.Get(from); err != nil {
		return Validation{}, err
	}

	v := Validation{Format: from}
	if from == Readable {
		raw, err := labels.Decode(data)
		if err != nil {
			v.Errors = []string{err.Error()}
			return v, nil
		}
		res := labels.Validate(raw)
		v.Valid, v.Errors = res.Valid, res.Errors
		return v, nil
	}

	d, _, err := r.Load(ctx, data, from)
	if err != nil {
		v.Errors = []string{err.Error()}
		return v, nil
	}
	v.Errors = integrityErrors(d)
	v.Valid = len(v.Errors) == 0
	return v, nil
}

func integrityErrors(d diagramkit.Diagram) []string {
	st, err := store.FromDiagram(d)
	if err == nil {
		err = st.CheckIntegrity()
	}
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []string{err.Error()}
	}
	var msgs []string
	for _, e := range joined.Unwrap() {
		msgs = append(msgs, e.Error())
	}
	return msgs
}
