package rtc

// SeqNumberMedian is half the 16-bit sequence space, the distance beyond
// which a sequence number is taken to have wrapped.
const SeqNumberMedian = 1 << 15

// MTU is the largest datagram the transports read at once.
const MTU = 1500

type Seq uint16

// Newer reports whether s comes after prev in 16-bit serial number arithmetic.
func (s Seq) Newer(prev Seq) bool {
	return s != prev && uint16(s-prev) < SeqNumberMedian
}
