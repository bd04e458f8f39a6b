package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	// Seed a PRNG from crypto/rand so run IDs are unpredictable. Monotonic
	// entropy keeps IDs minted within one millisecond increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a wall-clock ULID string. It is used for run identifiers,
// which must differ between runs.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Generator mints identifiers stamped with a caller-supplied time.
type Generator interface {
	At(t time.Time) string
}

// Sequence is a deterministic Generator: two sequences created with the same
// seed return the same IDs for the same timestamps in the same order. It is
// not safe for concurrent use; each simulation run owns one.
type Sequence struct {
	entropy io.Reader
	last    ulid.ULID
}

// NewSequence returns a Sequence seeded with seed.
func NewSequence(seed int64) *Sequence {
	return &Sequence{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// At returns a ULID for t. Timestamps before the previous call are clamped so
// the sequence stays sortable.
func (s *Sequence) At(t time.Time) string {
	ms := ulid.Timestamp(t.UTC())
	if t.Before(time.UnixMilli(0)) {
		ms = 0
	}
	if ms < s.last.Time() {
		ms = s.last.Time()
	}
	id, err := ulid.New(ms, s.entropy)
	if err != nil {
		panic(err)
	}
	s.last = id
	return id.String()
}
