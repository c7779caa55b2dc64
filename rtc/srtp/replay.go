package srtp

// Index limits of the two replay windows.
const (
	maxSequenceNumber = 65535
	maxROC            = (1 << 32) - 1
	maxSRTPIndex      = maxROC<<16 | maxSequenceNumber
	maxSRTCPIndex     = 0x7FFFFFFF

	defaultReplayWindow = 64
	maxReplayWindow     = 1 << 15
)

// Commit is returned by ReplayDetector.Check and marks the index as received
// once passed to Accept. The zero value commits nothing.
type Commit struct {
	index uint64
	ok    bool
}

// ReplayDetector is a sliding window over a monotonically growing packet index.
// Check has no side effects so a packet can be authenticated before the index
// is recorded; Accept records it.
type ReplayDetector interface {
	Check(index uint64) (Commit, bool)
	Accept(c Commit)
}

// NewReplayDetector creates a sliding window detector. Indexes above maxIndex
// are always rejected; the window never wraps.
func NewReplayDetector(windowSize uint, maxIndex uint64) ReplayDetector {
	return &slidingWindow{
		maxIndex:   maxIndex,
		windowSize: windowSize,
		mask:       newWindowMask(windowSize),
	}
}

// NewNoOpReplayDetector accepts everything. It disables replay protection.
func NewNoOpReplayDetector() ReplayDetector {
	return noopDetector{}
}

type slidingWindow struct {
	maxIndex   uint64
	windowSize uint
	// latest is the highest committed index, bit k of mask is latest-k.
	latest uint64
	mask   windowMask
}

func (d *slidingWindow) Check(index uint64) (Commit, bool) {
	if index > d.maxIndex {
		return Commit{}, false
	}
	if index > d.latest {
		return Commit{index: index, ok: true}, true
	}
	diff := d.latest - index
	if diff >= uint64(d.windowSize) {
		// Too old.
		return Commit{}, false
	}
	if d.mask.bit(uint(diff)) {
		// Duplicated.
		return Commit{}, false
	}
	return Commit{index: index, ok: true}, true
}

func (d *slidingWindow) Accept(c Commit) {
	if !c.ok {
		return
	}
	if c.index > d.latest {
		d.mask.lsh(c.index - d.latest)
		d.latest = c.index
	}
	if diff := d.latest - c.index; diff < uint64(d.windowSize) {
		d.mask.setBit(uint(diff))
	}
}

type noopDetector struct{}

func (noopDetector) Check(index uint64) (Commit, bool) {
	return Commit{index: index}, true
}

func (noopDetector) Accept(Commit) {}

// windowMask is a fixed size bitset shifted towards higher bit numbers.
type windowMask struct {
	bits []uint64
	n    uint
}

func newWindowMask(n uint) windowMask {
	return windowMask{
		bits: make([]uint64, (n+63)/64),
		n:    n,
	}
}

func (m *windowMask) bit(i uint) bool {
	if i >= m.n {
		return false
	}
	return m.bits[i/64]&(1<<(i%64)) != 0
}

func (m *windowMask) setBit(i uint) {
	if i >= m.n {
		return
	}
	m.bits[i/64] |= 1 << (i % 64)
}

func (m *windowMask) lsh(n uint64) {
	if n == 0 || len(m.bits) == 0 {
		return
	}
	if n >= uint64(m.n) {
		for i := range m.bits {
			m.bits[i] = 0
		}
		return
	}
	words := int(n / 64)
	shift := uint(n % 64)
	for i := len(m.bits) - 1; i >= 0; i-- {
		var v uint64
		if src := i - words; src >= 0 {
			v = m.bits[src] << shift
			if shift != 0 && src-1 >= 0 {
				v |= m.bits[src-1] >> (64 - shift)
			}
		}
		m.bits[i] = v
	}
	if r := m.n % 64; r != 0 {
		m.bits[len(m.bits)-1] &= (1 << r) - 1
	}
}
