package rtc

import (
	"github.com/pion/stun"
)

type PacketType string

const (
	RTCP    PacketType = "rtcp"
	RTP     PacketType = "rtp"
	DTLS    PacketType = "dtls"
	STUN    PacketType = "stun"
	Unknown PacketType = "unknown"
)

// IsDtls matches the DTLS content types 20..63 from RFC7983.
func IsDtls(data []byte) bool {
	return len(data) > 13 && (data[0] > 19 && data[0] < 64)
}

// IsStun matches the STUN range 0..3 and checks the magic cookie.
func IsStun(data []byte) bool {
	return MatchRange(0, 3)(data) && stun.IsMessage(data)
}

// CheckPacket demultiplexes a datagram received on a bundled, rtcp-muxed transport.
func CheckPacket(data []byte) PacketType {
	if IsStun(data) {
		return STUN
	}
	if IsDtls(data) {
		return DTLS
	}
	if IsRtcp(data) {
		return RTCP
	}
	if MatchSRTP(data) {
		return RTP
	}
	return Unknown
}

// MatchSRTPOrSRTCP is a MatchFunc that accepts packets with the first byte in [128..191]
// as defied in RFC7983.
func MatchSRTPOrSRTCP(b []byte) bool {
	return MatchRange(128, 191)(b)
}

func MatchRange(lower, upper byte) MatchFunc {
	return func(buf []byte) bool {
		if len(buf) < 1 {
			return false
		}
		b := buf[0]
		return b >= lower && b <= upper
	}
}

type MatchFunc func([]byte) bool

// RTCP packet types 192..223 collide with RTP payload types 64..95 with the
// marker bit set, RFC5761 section 4.
func isRTCP(buf []byte) bool {
	// Not long enough to determine RTP/RTCP
	if len(buf) < 4 {
		return false
	}
	if buf[1] >= 192 && buf[1] <= 223 {
		return true
	}
	return false
}

// MatchSRTP is a MatchFunc that only matches SRTP and not SRTCP.
func MatchSRTP(buf []byte) bool {
	return MatchSRTPOrSRTCP(buf) && !isRTCP(buf)
}

// IsRtcp is a MatchFunc that only matches SRTCP and not SRTP.
func IsRtcp(buf []byte) bool {
	return MatchSRTPOrSRTCP(buf) && isRTCP(buf)
}
