package dtls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"

	"github.com/gotolive/webrtc/rtc/logger"
	"github.com/gotolive/webrtc/rtc/srtp"
	"github.com/pion/dtls/v2"
	"github.com/pion/dtls/v2/pkg/crypto/fingerprint"
	"github.com/pion/logging"
)

const (
	New        = 1
	Connecting = 2
	Connected  = 3
	Failed     = 4
	Closed     = 5

	Actpass = "actpass" // both fine.
	Passive = "passive" // server
	Active  = "active"  // client
)

var (
	errNoProfile          = errors.New("dtls: no srtp protection profile negotiated")
	errNoRemoteCert       = errors.New("dtls: no remote certificate")
	errInvalidFingerprint = errors.New("dtls: remote fingerprint mismatch")
	errNotConnected       = errors.New("dtls: transport not connected")
)

// srtpProtectionProfiles in preference order.
var srtpProtectionProfiles = []dtls.SRTPProtectionProfile{
	dtls.SRTP_AEAD_AES_128_GCM,
	dtls.SRTP_AES128_CM_HMAC_SHA1_80,
}

type Transport struct {
	state                 atomic.Int32
	dtlsConn              *dtls.Conn
	role                  string
	remoteFingerprint     *Fingerprint
	srtpProtectionProfile srtp.ProtectionProfile
	conn                  net.Conn
	onState               func(int)
	cert                  *Certificate
	loggerFactory         logging.LoggerFactory
}

// it could be called more than once, that is the reason try.
func (t *Transport) TryRun() {
	if !t.state.CompareAndSwap(New, Connecting) {
		return
	}
	t.onState(Connecting)

	// we can not wait handshake done or make handshake sync.
	// This method will be called in read packet goroutine, it will block next dtls data read.
	go func() {
		err := t.handshake()
		if err != nil {
			logger.Error("dtls handshake failed:", err)
			if t.state.CompareAndSwap(Connecting, Failed) {
				t.onState(Failed)
			}
		} else if t.state.CompareAndSwap(Connecting, Connected) {
			t.onState(Connected)
		}
	}()
}

func (t *Transport) config() *dtls.Config {
	return &dtls.Config{
		Certificates: []tls.Certificate{
			{
				Certificate: [][]byte{t.cert.x509Cert.Raw},
				PrivateKey:  t.cert.privateKey,
			},
		},
		SRTPProtectionProfiles: srtpProtectionProfiles,
		ClientAuth:             dtls.RequireAnyClientCert,
		LoggerFactory:          t.loggerFactory,
	}
}

func (t *Transport) handshake() error {
	var (
		dtlsConn *dtls.Conn
		err      error
	)
	config := t.config()
	switch t.role {
	case Passive:
		config.ExtendedMasterSecret = dtls.RequireExtendedMasterSecret
		dtlsConn, err = dtls.Server(t.conn, config)
	default:
		config.InsecureSkipVerify = true
		dtlsConn, err = dtls.Client(t.conn, config)
	}
	if err != nil {
		return err
	}
	// to here handshake already done
	srtpProfile, ok := dtlsConn.SelectedSRTPProtectionProfile()
	if !ok {
		return errNoProfile
	}
	t.srtpProtectionProfile, err = srtp.ProtectionProfileFromDTLS(uint16(srtpProfile))
	if err != nil {
		return err
	}

	remoteCerts := dtlsConn.ConnectionState().PeerCertificates
	if len(remoteCerts) == 0 {
		return errNoRemoteCert
	}

	if err = t.validateFingerPrint(remoteCerts[0]); err != nil {
		_ = dtlsConn.Close()
		return err
	}

	t.dtlsConn = dtlsConn
	logger.Debugf("dtls connected as %s, srtp profile %s", t.role, t.srtpProtectionProfile)

	go func() {
		// it will be called when dtls receive close notify, but not always,
		buf := make([]byte, 2048)
		_, err := t.dtlsConn.Read(buf)
		if err != nil && t.state.Swap(Closed) != Closed {
			t.onState(Closed)
		}
	}()

	return nil
}

// we consider it's optional, if the fingerprints exist, we validate it.
// if not, it's fine.
// consider we are the offer side, we won't know answer's fingerprints unless we do another exchange.
func (t *Transport) validateFingerPrint(remoteCert []byte) error {
	if t.remoteFingerprint == nil {
		return nil
	}
	parsedRemoteCert, err := x509.ParseCertificate(remoteCert)
	if err != nil {
		return err
	}
	hashAlgo, err := fingerprint.HashFromString(t.remoteFingerprint.Algorithm)
	if err != nil {
		return err
	}

	remoteValue, err := fingerprint.Fingerprint(parsedRemoteCert, hashAlgo)
	if err != nil {
		return err
	}

	if strings.EqualFold(remoteValue, t.remoteFingerprint.Value) {
		return nil
	}

	return errInvalidFingerprint
}

// Keys exports the SRTP master keys of both directions, RFC 5764 section 4.2.
func (t *Transport) Keys() (srtp.Keys, error) {
	config, err := t.srtpConfig()
	if err != nil {
		return srtp.Keys{}, err
	}
	return config.Keys, nil
}

func (t *Transport) srtpConfig() (*srtp.Config, error) {
	if t.state.Load() != Connected {
		return nil, errNotConnected
	}
	config := &srtp.Config{
		Profile:       t.srtpProtectionProfile,
		LoggerFactory: t.loggerFactory,
	}
	state := t.dtlsConn.ConnectionState()
	if err := config.ExtractSessionKeysFromDTLS(&state, t.role != Passive); err != nil {
		return nil, err
	}
	return config, nil
}

func (t *Transport) GetLocalFingerprints() []Fingerprint {
	return t.cert.Fingerprints()
}

func (t *Transport) GetState() int {
	return int(t.state.Load())
}

func (t *Transport) SrtpProtectionProfile() srtp.ProtectionProfile {
	return t.srtpProtectionProfile
}

func (t *Transport) DtlsConn() *dtls.Conn {
	return t.dtlsConn
}

func (t *Transport) Role() string {
	return t.role
}

// Close sends close_notify when connected.
func (t *Transport) Close() error {
	prev := t.state.Swap(Closed)
	if prev == Closed {
		return nil
	}
	t.onState(Closed)
	if prev == Connected {
		return t.dtlsConn.Close()
	}
	return t.conn.Close()
}

type Option struct {
	Reader        io.Reader
	Writer        io.Writer
	Role          string
	OnState       func(int)
	Fingerprints  *Fingerprint
	Certificate   *Certificate
	LoggerFactory logging.LoggerFactory
}

// normally if chrome generate offer it will be actpass
// if they are both fine, we prefer client, we could send client hello asap, zero rtt.
// but the problem is, without ice completed, the dtls client could fail, not verify could it be wait.
// client could fail, but fast.
func NewDtlsTransport(option Option) *Transport {
	t := &Transport{
		onState:           option.OnState,
		cert:              option.Certificate,
		conn:              NewConn(option.Reader, option.Writer),
		role:              option.Role,
		remoteFingerprint: option.Fingerprints,
		loggerFactory:     option.LoggerFactory,
	}
	if t.onState == nil {
		t.onState = func(int) {}
	}
	if t.loggerFactory == nil {
		t.loggerFactory = logger.NewLoggerFactory(logger.LevelInfo)
	}
	t.state.Store(New)
	return t
}
