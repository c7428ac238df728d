package engine

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator mints session tokens. Tokens must be unique within a
// journal; the factory rejects a token that is already live.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator mints time-ordered UUIDv7 tokens, so journaled sessions
// list in the order they were opened.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a scripted list of tokens, then panics so a test
// that opens more sessions than it planned fails loudly.
type FixedGenerator struct {
	mu   sync.Mutex
	left []string
}

func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{left: append([]string(nil), tokens...)}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.left) == 0 {
		panic("engine: FixedGenerator has no tokens left")
	}
	tok := g.left[0]
	g.left = g.left[1:]
	return tok
}
