package srtp

import (
	"net"
	"sync"

	"github.com/gotolive/webrtc/rtc"
	"github.com/gotolive/webrtc/rtc/logger"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const (
	// streamBufferLimit bounds the decrypted bytes queued per stream.
	streamBufferLimit = 1000 * 1000
	acceptQueueSize   = 16
)

// Session is a bi-directional SRTP/SRTCP session multiplexed on one conn.
// Packets read from the conn are decrypted and delivered to the ReadStream
// of their SSRC, writes are encrypted with the local Context.
type Session struct {
	conn   net.Conn
	local  *Context
	remote *Context
	log    logging.LeveledLogger

	mu        sync.Mutex
	streams   map[uint32]*ReadStream
	newStream chan *ReadStream

	closeOnce    sync.Once
	closed       chan struct{}
	readLoopDone chan struct{}
}

// NewSession starts the read loop on conn. conn must deliver whole
// datagrams per Read.
func NewSession(conn net.Conn, config *Config) (*Session, error) {
	if conn == nil {
		return nil, ErrNoConn
	}
	if config == nil {
		return nil, ErrNoConfig
	}
	local, remote, err := config.contexts()
	if err != nil {
		return nil, err
	}

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logger.NewLoggerFactory(logger.LevelInfo)
	}

	s := &Session{
		conn:         conn,
		local:        local,
		remote:       remote,
		log:          loggerFactory.NewLogger("srtp"),
		streams:      make(map[uint32]*ReadStream),
		newStream:    make(chan *ReadStream, acceptQueueSize),
		closed:       make(chan struct{}),
		readLoopDone: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// LocalContext encrypts outgoing packets.
func (s *Session) LocalContext() *Context {
	return s.local
}

// RemoteContext decrypts incoming packets.
func (s *Session) RemoteContext() *Context {
	return s.remote
}

func (s *Session) readLoop() {
	defer func() {
		s.closeStreams()
		close(s.readLoopDone)
	}()

	bufp := rtc.GetBuffer()
	defer rtc.PutBuffer(bufp)
	buf := *bufp

	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.log.Debugf("srtp session read loop exit: %v", err)
			}
			return
		}
		if err = s.handle(buf[:n]); err != nil {
			s.log.Debugf("drop %d bytes: %v", n, err)
		}
	}
}

func (s *Session) handle(buf []byte) error {
	switch rtc.CheckPacket(buf) {
	case rtc.RTP:
		return s.handleRTP(buf)
	case rtc.RTCP:
		return s.handleRTCP(buf)
	default:
		return ErrNotRTPOrRTCP
	}
}

// handleRTP decrypts in place; the stream buffer copies the result.
func (s *Session) handleRTP(buf []byte) error {
	decrypted, err := s.remote.DecryptRTP(buf[:0], buf)
	if err != nil {
		return err
	}
	var header rtp.Header
	if _, err = header.Unmarshal(decrypted); err != nil {
		return err
	}
	r, created := s.getOrCreateReadStream(header.SSRC)
	if created {
		s.announce(r)
	}
	_, err = r.rtp.Write(decrypted)
	return err
}

// handleRTCP delivers a compound packet to every SSRC it names.
func (s *Session) handleRTCP(buf []byte) error {
	decrypted, err := s.remote.DecryptRTCP(buf[:0], buf)
	if err != nil {
		return err
	}
	pkts, err := rtcp.Unmarshal(decrypted)
	if err != nil {
		return err
	}

	seen := make(map[uint32]struct{})
	for _, pkt := range pkts {
		for _, ssrc := range pkt.DestinationSSRC() {
			if _, ok := seen[ssrc]; ok {
				continue
			}
			seen[ssrc] = struct{}{}
			r, created := s.getOrCreateReadStream(ssrc)
			if created {
				s.announce(r)
			}
			if _, err := r.rtcp.Write(decrypted); err != nil {
				s.log.Debugf("rtcp stream %d: %v", ssrc, err)
			}
		}
	}
	return nil
}

func (s *Session) announce(r *ReadStream) {
	select {
	case s.newStream <- r:
	default:
		s.log.Debugf("accept queue full, stream %d not announced", r.ssrc)
	}
}

func (s *Session) getOrCreateReadStream(ssrc uint32) (*ReadStream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.streams[ssrc]; ok {
		return r, false
	}
	r := newReadStream(s, ssrc)
	s.streams[ssrc] = r
	return r, true
}

// AcceptStream waits for the first packet of an SSRC that has no stream yet.
func (s *Session) AcceptStream() (*ReadStream, uint32, error) {
	select {
	case r := <-s.newStream:
		return r, r.ssrc, nil
	case <-s.closed:
		return nil, 0, ErrSessionClosed
	}
}

// OpenReadStream returns the stream of ssrc, creating it before any packet
// arrives. A stream opened this way is not announced by AcceptStream.
func (s *Session) OpenReadStream(ssrc uint32) (*ReadStream, error) {
	select {
	case <-s.closed:
		return nil, ErrSessionClosed
	default:
	}
	r, _ := s.getOrCreateReadStream(ssrc)
	return r, nil
}

func (s *Session) removeReadStream(r *ReadStream) {
	s.mu.Lock()
	if s.streams[r.ssrc] == r {
		delete(s.streams, r.ssrc)
	}
	s.mu.Unlock()
}

func (s *Session) closeStreams() {
	s.mu.Lock()
	streams := s.streams
	s.streams = make(map[uint32]*ReadStream)
	s.mu.Unlock()
	for _, r := range streams {
		r.closeBuffers()
	}
}

// WriteRTP marshals and encrypts one RTP packet.
func (s *Session) WriteRTP(header *rtp.Header, payload []byte) (int, error) {
	size := header.MarshalSize() + len(payload)

	bufp := rtc.GetBuffer()
	defer rtc.PutBuffer(bufp)
	buf := *bufp
	if cap(buf) < size+s.local.profile.AuthTagLen() {
		buf = make([]byte, size+s.local.profile.AuthTagLen())
	}

	n, err := header.MarshalTo(buf)
	if err != nil {
		return 0, err
	}
	copy(buf[n:], payload)

	encrypted, err := s.local.EncryptRTP(buf[:0], buf[:size])
	if err != nil {
		return 0, err
	}
	return s.conn.Write(encrypted)
}

// WriteRTCP marshals pkts as one compound packet and encrypts it.
func (s *Session) WriteRTCP(pkts []rtcp.Packet) (int, error) {
	raw, err := rtcp.Marshal(pkts)
	if err != nil {
		return 0, err
	}
	encrypted, err := s.local.EncryptRTCP(nil, raw)
	if err != nil {
		return 0, err
	}
	return s.conn.Write(encrypted)
}

// Write encrypts a marshalled RTP or RTCP packet. It returns len(b) on success.
func (s *Session) Write(b []byte) (int, error) {
	var (
		encrypted []byte
		err       error
	)
	switch {
	case rtc.IsRtcp(b):
		encrypted, err = s.local.EncryptRTCP(nil, b)
	case rtc.MatchSRTP(b):
		encrypted, err = s.local.EncryptRTP(nil, b)
	default:
		return 0, ErrNotRTPOrRTCP
	}
	if err != nil {
		return 0, err
	}
	if _, err = s.conn.Write(encrypted); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close stops the read loop, closes every stream and zeroizes both
// contexts. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
		<-s.readLoopDone
		_ = s.local.Close()
		_ = s.remote.Close()
	})
	return err
}
