package utility

import (
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// HashBytesToEquivClass folds an arbitrary byte string (typically a task's
// resource-request vector or command line) down to a 64-bit equivalence
// class tag via FNV-1a. Two tasks that would land on the same tag are
// interchangeable from the cost model's point of view.
func HashBytesToEquivClass(b []byte) EquivClass {
	h := fnv.New64a()
	h.Write(b)
	return EquivClass(h.Sum64())
}

// ResourceIDFromString parses the decimal string form a ResourceID travels
// over the wire as (proto.ResourceUID.ResourceUid).
func ResourceIDFromString(s string) (ResourceID, error) {
	i, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ResourceID(i), nil
}

// MustResourceIDFromString is ResourceIDFromString for call sites that
// already know the string was produced by this package and treat a parse
// failure as a programming error rather than recoverable input.
func MustResourceIDFromString(s string) ResourceID {
	id, err := ResourceIDFromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// MustJobIDFromString is the JobID analogue of MustResourceIDFromString.
func MustJobIDFromString(s string) JobID {
	i, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		panic(err)
	}
	return JobID(i)
}

// idGenerator hands out random 64-bit identifiers for jobs, tasks and
// resources. A single generator backs all three ID kinds; there is no
// benefit to keeping separate streams since the id spaces never overlap
// (ResourceID/JobID/TaskID are distinct Go types wrapping the same uint64
// draw). Guarded by a mutex because job submission and node registration
// happen concurrently from independent RPC handlers.
type idGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newIDGenerator(seed int64) *idGenerator {
	return &idGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *idGenerator) reseed(seed int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rand.New(rand.NewSource(seed))
}

func (g *idGenerator) uint64() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	// rand.Rand has no Uint64 method pre-1.22; stitch one together from two
	// 32-bit draws so the whole 64-bit space is reachable.
	hi := uint64(g.rng.Uint32())
	lo := uint64(g.rng.Uint32())
	return hi<<32 | lo
}

var ids = newIDGenerator(time.Now().UnixNano())

// SeedRNGWithInt reseeds the shared ID generator, producing deterministic
// IDs from that point on. Intended for tests that need reproducible graphs.
func SeedRNGWithInt(seed int64) {
	ids.reseed(seed)
}

// SeedRNGWithString reseeds the shared ID generator from the FNV-1a hash of
// seed, for callers that would rather key determinism off a test name than
// a magic integer.
func SeedRNGWithString(seed string) {
	h := fnv.New64a()
	h.Write([]byte(seed))
	ids.reseed(int64(h.Sum64()))
}

// RandUint64 draws the next value from the shared ID generator.
func RandUint64() uint64 {
	return ids.uint64()
}

// GenerateResourceID mints a fresh random ResourceID, including for the
// cluster's root/coordinator resource.
func GenerateResourceID() ResourceID {
	return ResourceID(RandUint64())
}

// GenerateJobID mints a fresh random JobID.
func GenerateJobID() JobID {
	return JobID(RandUint64())
}

// GenerateTaskID mints a fresh random TaskID, including for a job's root
// task.
func GenerateTaskID() TaskID {
	return TaskID(RandUint64())
}
