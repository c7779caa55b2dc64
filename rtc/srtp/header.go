package srtp

import (
	"encoding/binary"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const (
	rtpVersion         = 2
	rtpFixedHeaderLen  = 12
	rtcpFixedHeaderLen = 8
)

// unmarshalRTPHeader parses the RTP header at the front of buf and returns
// its length including CSRCs and the extension block. The raw header bytes
// are reused as-is by the ciphers, they are never re-marshalled.
func unmarshalRTPHeader(h *rtp.Header, buf []byte) (int, error) {
	if len(buf) < rtpFixedHeaderLen || buf[0]>>6 != rtpVersion {
		return 0, ErrMalformed
	}
	n, err := h.Unmarshal(buf)
	if err != nil {
		return 0, ErrMalformed
	}
	return n, nil
}

// unmarshalRTCPSSRC validates the common RTCP header and returns the
// sender SSRC that follows it.
func unmarshalRTCPSSRC(buf []byte) (uint32, error) {
	if len(buf) < rtcpFixedHeaderLen {
		return 0, ErrMalformed
	}
	var h rtcp.Header
	if err := h.Unmarshal(buf); err != nil {
		return 0, ErrMalformed
	}
	return binary.BigEndian.Uint32(buf[4:]), nil
}
