package qrid

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/louisbranch/homelabqr/internal/random"
)

// Length is the fixed identifier length for this deployment.
const Length = 6

// Alphabet holds the characters identifiers are drawn from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generator draws identifiers from a shared pseudo-random stream.
//
// It is safe for concurrent use. It does not dedupe; uniqueness is enforced
// by the identifier store's primary key.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator drawing from src.
func NewGenerator(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// NewSeededGenerator returns a generator seeded from crypto/rand.
func NewSeededGenerator() (*Generator, error) {
	src, err := random.NewSource()
	if err != nil {
		return nil, err
	}
	return NewGenerator(src), nil
}

// Generate returns count independently drawn identifiers.
func (g *Generator) Generate(count int) []string {
	if count <= 0 {
		return []string{}
	}
	ids := make([]string, count)
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range ids {
		ids[i] = g.drawLocked()
	}
	return ids
}

// New returns a single identifier.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drawLocked()
}

func (g *Generator) drawLocked() string {
	var buf [Length]byte
	for i := range buf {
		buf[i] = Alphabet[g.rng.IntN(len(Alphabet))]
	}
	return string(buf[:])
}

// Valid reports whether id has the identifier length and alphabet.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// Normalize trims id and upper-cases it so hand-typed identifiers match
// printed ones.
func Normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
