package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var source = newSource()

func newSource() *lockedRand {
	seed := make([]byte, 16)
	if _, err := cryptorand.Read(seed); err != nil {
		panic("unreachable")
	}

	return &lockedRand{
		//nolint:gosec // request IDs need uniqueness, not secrecy
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
	}
}

type lockedRand struct {
	mut sync.Mutex
	rng *rand.Rand
}

func (lr *lockedRand) intN(n int) int {
	lr.mut.Lock()
	defer lr.mut.Unlock()
	return lr.rng.IntN(n)
}

// NewRequestID returns a random alphanumeric string of the given length,
// used to correlate RPC requests with their responses. Only collision
// resistance over the lifetime of a connection matters here.
func NewRequestID(length int) string {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = charset[source.intN(len(charset))]
	}
	return string(buf)
}
