// Package idgen generates identifiers for imported diagram elements.
//
// The random suffix source is injected so tests can use a deterministic
// sequence while production code uses crypto/rand.
package idgen

import (
	"crypto/rand"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// Alphabets for random suffixes.
const (
	Lower = "0123456789abcdefghijklmnopqrstuvwxyz"
	Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Source produces suffix tokens of length n drawn from alphabet.
// Implementations must be safe for concurrent use.
type Source interface {
	Token(n int, alphabet string) string
}

// Random draws tokens from crypto/rand.
type Random struct{}

// NewRandom returns the production Source.
func NewRandom() Random { return Random{} }

// Token implements Source.
func (Random) Token(n int, alphabet string) string {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(alphabet)))
	for range n {
		i, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic("idgen: read random: " + err.Error())
		}
		b.WriteByte(alphabet[i.Int64()])
	}
	return b.String()
}

// Sequential yields 1, 2, 3, ... encoded in the given alphabet and
// left-padded to n characters. Tokens are unique until the counter
// overflows n digits.
type Sequential struct {
	mu   sync.Mutex
	next uint64
}

// NewSequential returns a deterministic Source starting at 1.
func NewSequential() *Sequential { return &Sequential{next: 1} }

// Token implements Source.
func (s *Sequential) Token(n int, alphabet string) string {
	s.mu.Lock()
	v := s.next
	s.next++
	s.mu.Unlock()

	base := uint64(len(alphabet))
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = alphabet[v%base]
		v /= base
	}
	return string(out)
}

// Generator builds typed ids from a Source.
type Generator struct {
	src Source
}

// New returns a Generator over src. A nil src means NewRandom().
func New(src Source) *Generator {
	if src == nil {
		src = NewRandom()
	}
	return &Generator{src: src}
}

// NodeID returns "{kind}-" plus 4 lowercase characters.
func (g *Generator) NodeID(kind diagramkit.NodeKind) diagramkit.NodeID {
	prefix := string(kind)
	if prefix == "" {
		prefix = "node"
	}
	return diagramkit.NodeID(prefix + "-" + g.src.Token(4, Lower))
}

// PersonID returns "person-" plus 4 lowercase characters.
func (g *Generator) PersonID() diagramkit.PersonID {
	return diagramkit.PersonID("person-" + g.src.Token(4, Lower))
}

// APIKeyID returns "APIKEY_" plus 6 uppercase characters.
func (g *Generator) APIKeyID() diagramkit.APIKeyID {
	return diagramkit.APIKeyID("APIKEY_" + g.src.Token(6, Upper))
}

// ArrowID returns "arrow-" plus 4 lowercase characters.
func (g *Generator) ArrowID() diagramkit.ArrowID {
	return diagramkit.ArrowID("arrow-" + g.src.Token(4, Lower))
}

// DiagramID returns a random UUID.
func (g *Generator) DiagramID() diagramkit.DiagramID {
	return diagramkit.DiagramID(uuid.NewString())
}

// ExecutionID returns a random UUID.
func (g *Generator) ExecutionID() diagramkit.ExecutionID {
	return diagramkit.ExecutionID(uuid.NewString())
}
