package sim

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// An IDGenerator hands out unique IDs for events, tasks, and syscalls.
type IDGenerator interface {
	Generate() string
}

var (
	idGenMu  sync.Mutex
	idGen    IDGenerator
	idGenSet bool
)

// UseSequentialIDGenerator selects deterministic, sequential IDs. It must be
// called before any ID is generated.
func UseSequentialIDGenerator() {
	setIDGenerator(&sequentialIDGenerator{})
}

// UseParallelIDGenerator selects xid-based IDs that are safe to generate
// from multiple goroutines, at the cost of determinism. It must be called
// before any ID is generated.
func UseParallelIDGenerator() {
	setIDGenerator(parallelIDGenerator{})
}

func setIDGenerator(g IDGenerator) {
	idGenMu.Lock()
	defer idGenMu.Unlock()

	if idGenSet {
		log.Panic("cannot change id generator type after using it")
	}

	idGen = g
	idGenSet = true
}

// GetIDGenerator returns the generator in use, defaulting to the sequential
// one.
func GetIDGenerator() IDGenerator {
	idGenMu.Lock()
	defer idGenMu.Unlock()

	if !idGenSet {
		idGen = &sequentialIDGenerator{}
		idGenSet = true
	}

	return idGen
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.nextID, 1), 10)
}

type parallelIDGenerator struct{}

func (parallelIDGenerator) Generate() string {
	return xid.New().String()
}
