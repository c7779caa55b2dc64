package rtc

import (
	"math/rand"
)

const (
	ssrcLowerBound uint32 = 800000000
	ssrcUpperBound uint32 = 900000000
)

// GenerateSSRC picks a local sender SSRC. Collisions across peers are left to
// the state tables of the srtp context, which key every stream by SSRC.
func GenerateSSRC() uint32 {
	return ssrcLowerBound + uint32(rand.Int31n(int32(ssrcUpperBound-ssrcLowerBound)))
}
