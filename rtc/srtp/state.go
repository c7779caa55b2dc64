package srtp

import (
	"sync"

	"github.com/gotolive/webrtc/rtc"
)

// Direction selects the inbound or outbound state tables of a Context.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// srtpSSRCState tracks the packet index of one RTP stream.
type srtpSSRCState struct {
	mu          sync.Mutex
	ssrc        uint32
	roc         uint32
	lastSeq     uint16
	initialized bool
	evicted     bool
	replay      ReplayDetector
}

// estimateROC returns the rollover counter v of RFC 3711 appendix A for
// seq, relative to the highest index seen so far. ok is false when v would
// exceed the 32-bit ROC space.
func (s *srtpSSRCState) estimateROC(seq uint16) (v uint32, ok bool) {
	if !s.initialized {
		return 0, true
	}
	sl, sq := int32(s.lastSeq), int32(seq)
	if sl < rtc.SeqNumberMedian {
		if sq-sl > rtc.SeqNumberMedian && s.roc > 0 {
			return s.roc - 1, true
		}
		return s.roc, true
	}
	if sl-rtc.SeqNumberMedian > sq {
		if s.roc == maxROC {
			return 0, false
		}
		return s.roc + 1, true
	}
	return s.roc, true
}

// update records an authenticated or sent packet. Older packets leave the
// highest index untouched.
func (s *srtpSSRCState) update(seq uint16, roc uint32) {
	if s.initialized && srtpIndex(roc, seq) <= srtpIndex(s.roc, s.lastSeq) {
		return
	}
	s.roc, s.lastSeq, s.initialized = roc, seq, true
}

func srtpIndex(roc uint32, seq uint16) uint64 {
	return uint64(roc)<<16 | uint64(seq)
}

// srtcpSSRCState tracks the SRTCP index of one RTCP sender.
type srtcpSSRCState struct {
	mu          sync.Mutex
	ssrc        uint32
	index       uint32
	initialized bool
	evicted     bool
	replay      ReplayDetector
}

// nextIndex is the index the next outbound packet will carry.
func (s *srtcpSSRCState) nextIndex() (uint32, error) {
	if !s.initialized {
		return 0, nil
	}
	if s.index >= maxSRTCPIndex {
		return 0, ErrExceededMaxPackets
	}
	return s.index + 1, nil
}

func (s *srtcpSSRCState) update(index uint32) {
	if s.initialized && index <= s.index {
		return
	}
	s.index, s.initialized = index, true
}

const stateShards = 16

// stateTable is a sharded SSRC map. Lookups on distinct SSRCs rarely
// contend on the same shard lock, and each entry carries its own mutex.
type stateTable[S any] struct {
	shards   [stateShards]stateShard[S]
	newState func(ssrc uint32) *S
}

type stateShard[S any] struct {
	sync.RWMutex
	states map[uint32]*S
}

func newStateTable[S any](newState func(ssrc uint32) *S) *stateTable[S] {
	t := &stateTable[S]{newState: newState}
	for i := range t.shards {
		t.shards[i].states = make(map[uint32]*S)
	}
	return t
}

func (t *stateTable[S]) shard(ssrc uint32) *stateShard[S] {
	// Fibonacci hashing spreads sequential SSRCs over the shards.
	return &t.shards[(ssrc*2654435761)>>28]
}

func (t *stateTable[S]) get(ssrc uint32) (*S, bool) {
	sh := t.shard(ssrc)
	sh.RLock()
	defer sh.RUnlock()
	s, ok := sh.states[ssrc]
	return s, ok
}

func (t *stateTable[S]) getOrCreate(ssrc uint32) *S {
	if s, ok := t.get(ssrc); ok {
		return s
	}
	sh := t.shard(ssrc)
	sh.Lock()
	defer sh.Unlock()
	if s, ok := sh.states[ssrc]; ok {
		return s
	}
	s := t.newState(ssrc)
	sh.states[ssrc] = s
	return s
}

func (t *stateTable[S]) remove(ssrc uint32) {
	sh := t.shard(ssrc)
	sh.Lock()
	delete(sh.states, ssrc)
	sh.Unlock()
}

func (t *stateTable[S]) len() int {
	n := 0
	for i := range t.shards {
		t.shards[i].RLock()
		n += len(t.shards[i].states)
		t.shards[i].RUnlock()
	}
	return n
}
