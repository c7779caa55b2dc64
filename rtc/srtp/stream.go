package srtp

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/transport/v2/packetio"
)

// ReadStream receives the decrypted packets of one SSRC. RTP and RTCP are
// queued separately.
type ReadStream struct {
	session *Session
	ssrc    uint32

	rtp  *packetio.Buffer
	rtcp *packetio.Buffer

	closeOnce sync.Once
}

func newReadStream(s *Session, ssrc uint32) *ReadStream {
	r := &ReadStream{
		session: s,
		ssrc:    ssrc,
		rtp:     packetio.NewBuffer(),
		rtcp:    packetio.NewBuffer(),
	}
	r.rtp.SetLimitSize(streamBufferLimit)
	r.rtcp.SetLimitSize(streamBufferLimit)
	return r
}

func (r *ReadStream) SSRC() uint32 {
	return r.ssrc
}

// Read copies the next decrypted RTP packet into buf.
func (r *ReadStream) Read(buf []byte) (int, error) {
	return r.rtp.Read(buf)
}

// ReadRTP reads the next RTP packet and parses its header.
func (r *ReadStream) ReadRTP(buf []byte) (int, *rtp.Header, error) {
	n, err := r.rtp.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	header := &rtp.Header{}
	if _, err = header.Unmarshal(buf[:n]); err != nil {
		return 0, nil, err
	}
	return n, header, nil
}

// ReadRTCP reads the next compound RTCP packet naming this SSRC.
func (r *ReadStream) ReadRTCP(buf []byte) (int, []rtcp.Packet, error) {
	n, err := r.rtcp.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	pkts, err := rtcp.Unmarshal(buf[:n])
	if err != nil {
		return 0, nil, err
	}
	return n, pkts, nil
}

func (r *ReadStream) SetReadDeadline(t time.Time) error {
	if err := r.rtp.SetReadDeadline(t); err != nil {
		return err
	}
	return r.rtcp.SetReadDeadline(t)
}

// Close detaches the stream from the session. Later packets of the same
// SSRC open a new stream.
func (r *ReadStream) Close() error {
	r.session.removeReadStream(r)
	r.closeBuffers()
	return nil
}

func (r *ReadStream) closeBuffers() {
	r.closeOnce.Do(func() {
		_ = r.rtp.Close()
		_ = r.rtcp.Close()
	})
}
