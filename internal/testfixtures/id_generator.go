package testfixtures

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// fixtureNamespace seeds deterministic UUIDs derived from fixture identifiers.
var fixtureNamespace = uuid.MustParse("6f1c1e2a-5b0d-4c1e-9a53-0c7d2b9e4f10")

// IDGenerator hands out reproducible identifiers and remembers them, so a test
// can assert which records a service created. "member" yields member-1,
// member-2 and so on; an empty prefix means "id".
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	uuids  bool
	issued []string
}

func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// NewUUIDGenerator is NewIDGenerator with Next returning name based UUIDs,
// matching the production identifier shape.
func NewUUIDGenerator(prefix string) *IDGenerator {
	g := NewIDGenerator(prefix)
	g.uuids = true
	return g
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.prefix + "-" + strconv.Itoa(len(g.issued)+1)
	if g.uuids {
		id = uuid.NewSHA1(fixtureNamespace, []byte(id)).String()
	}
	g.issued = append(g.issued, id)
	return id
}

// NextFunc adapts Next to the func() string dependency services take. A nil
// generator yields empty identifiers.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued lists every identifier returned so far, oldest first.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}

// Reset forgets issued identifiers so the sequence starts again at 1.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.issued = nil
	g.mu.Unlock()
}
