package negotiation

import (
	"maps"
	"slices"

	"github.com/pion/webrtc/v4"
)

// DefaultCandidateBufferSize caps the candidates held for one peer.
const DefaultCandidateBufferSize = 100

// CandidateBuffer holds remote candidates that arrived before their link had a
// remote description. It is owned by the orchestrator loop and not locked.
type CandidateBuffer struct {
	limit   int
	pending map[string][]webrtc.ICECandidateInit
	dropped int
}

// NewCandidateBuffer creates a buffer keeping at most limit candidates per
// peer; older entries are dropped first. A limit below one uses the default.
func NewCandidateBuffer(limit int) *CandidateBuffer {
	if limit < 1 {
		limit = DefaultCandidateBufferSize
	}
	return &CandidateBuffer{
		limit:   limit,
		pending: make(map[string][]webrtc.ICECandidateInit),
	}
}

// Enqueue appends c for peer. It reports whether the oldest entry had to be
// dropped to make room.
func (b *CandidateBuffer) Enqueue(peer string, c webrtc.ICECandidateInit) bool {
	q := append(b.pending[peer], c)
	overflow := len(q) > b.limit
	if overflow {
		q = slices.Delete(q, 0, len(q)-b.limit)
		b.dropped++
	}
	b.pending[peer] = q
	return overflow
}

// Drain applies every candidate held for peer in arrival order and forgets
// them. It stops at the first apply error; the rest are discarded too, since
// a link whose candidate was rejected is closed anyway.
func (b *CandidateBuffer) Drain(peer string, apply func(webrtc.ICECandidateInit) error) (int, error) {
	q := b.pending[peer]
	delete(b.pending, peer)

	for i, c := range q {
		if err := apply(c); err != nil {
			return i, err
		}
	}
	return len(q), nil
}

// Discard forgets peer's candidates and returns how many there were.
func (b *CandidateBuffer) Discard(peer string) int {
	n := len(b.pending[peer])
	delete(b.pending, peer)
	return n
}

func (b *CandidateBuffer) Len(peer string) int {
	return len(b.pending[peer])
}

// Peers lists every peer with buffered candidates, sorted.
func (b *CandidateBuffer) Peers() []string {
	return slices.Sorted(maps.Keys(b.pending))
}

// Dropped counts overflow evictions since creation.
func (b *CandidateBuffer) Dropped() int {
	return b.dropped
}
