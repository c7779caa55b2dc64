package dtls

import (
	"net"

	"github.com/gotolive/webrtc/rtc/srtp"
)

// SrtpSession holds the two contexts keyed by a finished DTLS handshake.
// The caller demultiplexes the transport; all methods are safe for
// concurrent use.
type SrtpSession struct {
	remoteContext *srtp.Context
	localContext  *srtp.Context
}

func (s *SrtpSession) DecryptSrtp(dst, data []byte) ([]byte, error) {
	return s.remoteContext.DecryptRTP(dst, data)
}

func (s *SrtpSession) EncryptRtp(dst, packet []byte) ([]byte, int, error) {
	data, err := s.localContext.EncryptRTP(dst, packet)
	return data, len(data), err
}

func (s *SrtpSession) DecryptSrtcp(dst, data []byte) ([]byte, error) {
	return s.remoteContext.DecryptRTCP(dst, data)
}

func (s *SrtpSession) EncryptRtcp(dst, packet []byte) ([]byte, int, error) {
	data, err := s.localContext.EncryptRTCP(dst, packet)
	return data, len(data), err
}

// LocalContext encrypts what this side sends.
func (s *SrtpSession) LocalContext() *srtp.Context {
	return s.localContext
}

// RemoteContext decrypts what the peer sends.
func (s *SrtpSession) RemoteContext() *srtp.Context {
	return s.remoteContext
}

// Close zeroizes both contexts.
func (s *SrtpSession) Close() error {
	_ = s.localContext.Close()
	return s.remoteContext.Close()
}

// NewSrtpSession Start a new srtp session from dtls transport key.
func NewSrtpSession(transport *Transport) (*SrtpSession, error) {
	config, err := transport.srtpConfig()
	if err != nil {
		return nil, err
	}
	remoteContext, err := srtp.NewContext(config.Keys.RemoteMasterKey, config.Keys.RemoteMasterSalt, config.Profile, config.RemoteContext)
	if err != nil {
		return nil, err
	}
	localContext, err := srtp.NewContext(config.Keys.LocalMasterKey, config.Keys.LocalMasterSalt, config.Profile, config.LocalContext)
	if err != nil {
		_ = remoteContext.Close()
		return nil, err
	}
	return &SrtpSession{remoteContext: remoteContext, localContext: localContext}, nil
}

// NewSession runs a full srtp.Session over conn, keyed by the transport.
// conn must not be the one the DTLS records travel on unless the caller
// filters them out first.
func NewSession(transport *Transport, conn net.Conn) (*srtp.Session, error) {
	config, err := transport.srtpConfig()
	if err != nil {
		return nil, err
	}
	return srtp.NewSession(conn, config)
}
