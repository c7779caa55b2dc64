package srtp

import (
	"fmt"
	"sync/atomic"

	"github.com/pion/rtp"
)

// ReplayProtection configures the replay window of one packet family.
// The zero value is a window of 64 packets.
type ReplayProtection struct {
	Disabled   bool
	WindowSize uint
}

// ReplayWindow enables replay protection with the given window size.
func ReplayWindow(size uint) ReplayProtection {
	return ReplayProtection{WindowSize: size}
}

// NoReplayProtection accepts every authenticated packet.
func NoReplayProtection() ReplayProtection {
	return ReplayProtection{Disabled: true}
}

func (p ReplayProtection) windowSize() uint {
	if p.WindowSize == 0 {
		return defaultReplayWindow
	}
	return p.WindowSize
}

func (p ReplayProtection) newDetector(maxIndex uint64) ReplayDetector {
	if p.Disabled {
		return NewNoOpReplayDetector()
	}
	return NewReplayDetector(p.windowSize(), maxIndex)
}

// ContextConfig holds the inbound replay settings of a Context.
type ContextConfig struct {
	SRTP  ReplayProtection
	SRTCP ReplayProtection
}

func (c ContextConfig) Validate() error {
	if !c.SRTP.Disabled && c.SRTP.windowSize() > maxReplayWindow {
		return fmt.Errorf("%w: srtp replay window %d exceeds %d", ErrInvalidConfig, c.SRTP.WindowSize, maxReplayWindow)
	}
	if !c.SRTCP.Disabled && c.SRTCP.windowSize() > maxReplayWindow {
		return fmt.Errorf("%w: srtcp replay window %d exceeds %d", ErrInvalidConfig, c.SRTCP.WindowSize, maxReplayWindow)
	}
	return nil
}

// Context is one direction pair of SRTP/SRTCP crypto keyed by a single
// master key. It is safe for concurrent use; packets of the same SSRC are
// serialized, distinct SSRCs proceed in parallel.
//
// Decrypt errors satisfy IsDropped and never change the Context.
type Context struct {
	profile ProtectionProfile
	config  ContextConfig
	keys    *SessionKeys
	cipher  *contextCipher
	closed  atomic.Bool

	srtpInbound   *stateTable[srtpSSRCState]
	srtpOutbound  *stateTable[srtpSSRCState]
	srtcpInbound  *stateTable[srtcpSSRCState]
	srtcpOutbound *stateTable[srtcpSSRCState]
}

// NewContext derives the session keys from masterKey and masterSalt.
func NewContext(masterKey, masterSalt []byte, profile ProtectionProfile, config ContextConfig) (*Context, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	keys, err := DeriveSessionKeys(profile, masterKey, masterSalt)
	if err != nil {
		return nil, err
	}
	cipher, err := newContextCipher(profile, keys)
	if err != nil {
		keys.zeroize()
		return nil, err
	}

	c := &Context{
		profile: profile,
		config:  config,
		keys:    keys,
		cipher:  cipher,
	}
	c.srtpInbound = newStateTable(func(ssrc uint32) *srtpSSRCState {
		return &srtpSSRCState{ssrc: ssrc, replay: config.SRTP.newDetector(maxSRTPIndex)}
	})
	c.srtpOutbound = newStateTable(func(ssrc uint32) *srtpSSRCState {
		return &srtpSSRCState{ssrc: ssrc}
	})
	c.srtcpInbound = newStateTable(func(ssrc uint32) *srtcpSSRCState {
		return &srtcpSSRCState{ssrc: ssrc, replay: config.SRTCP.newDetector(maxSRTCPIndex)}
	})
	c.srtcpOutbound = newStateTable(func(ssrc uint32) *srtcpSSRCState {
		return &srtcpSSRCState{ssrc: ssrc}
	})
	return c, nil
}

func (c *Context) Profile() ProtectionProfile {
	return c.profile
}

// EncryptRTP protects one RTP packet. The result is written to dst, which
// may be plaintext[:0] to encrypt in place.
func (c *Context) EncryptRTP(dst, plaintext []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrSessionClosed
	}
	var header rtp.Header
	headerLen, err := unmarshalRTPHeader(&header, plaintext)
	if err != nil {
		return nil, err
	}

	s := c.srtpOutbound.getOrCreate(header.SSRC)
	s.mu.Lock()
	defer s.mu.Unlock()

	roc, ok := s.estimateROC(header.SequenceNumber)
	if !ok {
		return nil, ErrExceededMaxPackets
	}
	out, err := c.cipher.encryptRTP(dst, plaintext, headerLen, header.SSRC, header.SequenceNumber, roc)
	if err != nil {
		return nil, err
	}
	s.update(header.SequenceNumber, roc)
	return out, nil
}

// DecryptRTP authenticates and decrypts one SRTP packet into dst, which
// may be encrypted[:0].
func (c *Context) DecryptRTP(dst, encrypted []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrSessionClosed
	}
	var header rtp.Header
	headerLen, err := unmarshalRTPHeader(&header, encrypted)
	if err != nil {
		return nil, err
	}
	if len(encrypted) < headerLen+c.cipher.rtpAuthTagLen() {
		return nil, ErrShortBuffer
	}

	s := c.lockSRTPInbound(header.SSRC)
	defer c.unlockSRTPInbound(s)

	roc, ok := s.estimateROC(header.SequenceNumber)
	if !ok {
		return nil, ErrReplay
	}
	out, err := c.cipher.decryptRTP(dst, encrypted, headerLen, header.SSRC, header.SequenceNumber, roc)
	if err != nil {
		return nil, err
	}
	commit, ok := s.replay.Check(srtpIndex(roc, header.SequenceNumber))
	if !ok {
		return nil, ErrReplay
	}
	s.replay.Accept(commit)
	s.update(header.SequenceNumber, roc)
	return out, nil
}

// EncryptRTCP protects one RTCP packet, compound or not, under the sender
// SSRC of its first report.
func (c *Context) EncryptRTCP(dst, plaintext []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrSessionClosed
	}
	ssrc, err := unmarshalRTCPSSRC(plaintext)
	if err != nil {
		return nil, err
	}

	s := c.srtcpOutbound.getOrCreate(ssrc)
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.nextIndex()
	if err != nil {
		return nil, err
	}
	out, err := c.cipher.encryptRTCP(dst, plaintext, index, ssrc)
	if err != nil {
		return nil, err
	}
	s.update(index)
	return out, nil
}

// DecryptRTCP authenticates and decrypts one SRTCP packet into dst.
func (c *Context) DecryptRTCP(dst, encrypted []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrSessionClosed
	}
	ssrc, err := unmarshalRTCPSSRC(encrypted)
	if err != nil {
		return nil, err
	}
	if len(encrypted) < rtcpFixedHeaderLen+c.profile.SRTCPOverhead() {
		return nil, ErrShortBuffer
	}
	index, isEncrypted := c.cipher.rtcpIndex(encrypted)

	s := c.lockSRTCPInbound(ssrc)
	defer c.unlockSRTCPInbound(s)

	out, err := c.cipher.decryptRTCP(dst, encrypted, index, ssrc, isEncrypted)
	if err != nil {
		return nil, err
	}
	commit, ok := s.replay.Check(uint64(index))
	if !ok {
		return nil, ErrReplay
	}
	s.replay.Accept(commit)
	s.update(index)
	return out, nil
}

// ROC returns the rollover counter of ssrc. ok is false for an SSRC that
// has not carried a valid packet in that direction.
func (c *Context) ROC(dir Direction, ssrc uint32) (roc uint32, ok bool) {
	s, ok := c.srtpState(dir, ssrc)
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roc, s.initialized
}

// LastSequence returns the highest sequence number seen for ssrc.
func (c *Context) LastSequence(dir Direction, ssrc uint32) (seq uint16, ok bool) {
	s, ok := c.srtpState(dir, ssrc)
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq, s.initialized
}

// Index returns the highest SRTCP index sent or received for ssrc.
func (c *Context) Index(dir Direction, ssrc uint32) (index uint32, ok bool) {
	table := c.srtcpInbound
	if dir == Outbound {
		table = c.srtcpOutbound
	}
	s, ok := table.get(ssrc)
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.initialized
}

// lockSRTPInbound returns the locked inbound state of ssrc. A state that
// never commits a packet is evicted on unlock, so unauthenticated traffic
// does not grow the table.
func (c *Context) lockSRTPInbound(ssrc uint32) *srtpSSRCState {
	for {
		s := c.srtpInbound.getOrCreate(ssrc)
		s.mu.Lock()
		if !s.evicted {
			return s
		}
		s.mu.Unlock()
	}
}

func (c *Context) unlockSRTPInbound(s *srtpSSRCState) {
	if !s.initialized {
		s.evicted = true
		c.srtpInbound.remove(s.ssrc)
	}
	s.mu.Unlock()
}

func (c *Context) lockSRTCPInbound(ssrc uint32) *srtcpSSRCState {
	for {
		s := c.srtcpInbound.getOrCreate(ssrc)
		s.mu.Lock()
		if !s.evicted {
			return s
		}
		s.mu.Unlock()
	}
}

func (c *Context) unlockSRTCPInbound(s *srtcpSSRCState) {
	if !s.initialized {
		s.evicted = true
		c.srtcpInbound.remove(s.ssrc)
	}
	s.mu.Unlock()
}

func (c *Context) srtpState(dir Direction, ssrc uint32) (*srtpSSRCState, bool) {
	if dir == Outbound {
		return c.srtpOutbound.get(ssrc)
	}
	return c.srtpInbound.get(ssrc)
}

// Close zeroizes the session keys. Every later operation fails with
// ErrSessionClosed. Close is idempotent.
func (c *Context) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.keys.zeroize()
	c.cipher.zeroize()
	return nil
}
