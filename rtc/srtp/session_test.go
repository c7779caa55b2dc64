package srtp

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gotolive/webrtc/rtc/logger"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/stun"
	"github.com/pion/transport/v2/dpipe"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func sessionKeys(t *testing.T, profile ProtectionProfile) (client, server Keys) {
	t.Helper()
	material := keyingMaterial(profile.KeyingMaterialLen())
	client, err := ExtractKeys(material, profile, true)
	if err != nil {
		t.Fatal(err)
	}
	server, err = ExtractKeys(material, profile, false)
	if err != nil {
		t.Fatal(err)
	}
	return client, server
}

func newSessionPair(t *testing.T, profile ProtectionProfile) (*Session, *Session) {
	t.Helper()
	ca, cb := dpipe.Pipe()
	clientKeys, serverKeys := sessionKeys(t, profile)
	factory := logger.NewLoggerFactory(logger.LevelError)

	client, err := NewSession(ca, &Config{Profile: profile, Keys: clientKeys, LoggerFactory: factory})
	if err != nil {
		t.Fatal("err should be nil:", err)
	}
	server, err := NewSession(cb, &Config{Profile: profile, Keys: serverKeys, LoggerFactory: factory})
	if err != nil {
		t.Fatal("err should be nil:", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func acceptStream(t *testing.T, s *Session) *ReadStream {
	t.Helper()
	type result struct {
		r   *ReadStream
		err error
	}
	ch := make(chan result, 1)
	go func() {
		r, _, err := s.AcceptStream()
		ch <- result{r, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatal("accept:", res.err)
		}
		if err := res.r.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			t.Fatal(err)
		}
		return res.r
	case <-time.After(5 * time.Second):
		t.Fatal("accept timed out")
	}
	return nil
}

func TestSession(t *testing.T) {
	tests := []struct {
		name   string
		method func(*testing.T, ProtectionProfile)
	}{
		{
			name: "rtp",
			method: func(t *testing.T, profile ProtectionProfile) {
				client, server := newSessionPair(t, profile)
				payload := []byte("session payload")
				for seq := uint16(1); seq <= 3; seq++ {
					header := &rtp.Header{Version: 2, PayloadType: 96, SequenceNumber: seq, Timestamp: 1, SSRC: 0x100}
					if _, err := client.WriteRTP(header, payload); err != nil {
						t.Fatal(err)
					}
				}
				r := acceptStream(t, server)
				if r.SSRC() != 0x100 {
					t.Fatal("unexpected ssrc", r.SSRC())
				}
				buf := make([]byte, 1500)
				for seq := uint16(1); seq <= 3; seq++ {
					n, header, err := r.ReadRTP(buf)
					if err != nil {
						t.Fatal(err)
					}
					if header.SequenceNumber != seq {
						t.Errorf("seq %d, want %d", header.SequenceNumber, seq)
					}
					if !bytes.Equal(buf[header.MarshalSize():n], payload) {
						t.Errorf("payload %x", buf[:n])
					}
				}
				if seq, ok := server.RemoteContext().LastSequence(Inbound, 0x100); !ok || seq != 3 {
					t.Errorf("last sequence %d %v", seq, ok)
				}
				if roc, ok := client.LocalContext().ROC(Outbound, 0x100); !ok || roc != 0 {
					t.Errorf("roc %d %v", roc, ok)
				}
			},
		},
		{
			name: "raw write",
			method: func(t *testing.T, profile ProtectionProfile) {
				client, server := newSessionPair(t, profile)
				raw := rtpPacket(t, 0x300, 9, []byte{1, 2, 3})
				n, err := client.Write(raw)
				if err != nil {
					t.Fatal(err)
				}
				if n != len(raw) {
					t.Error("write should report the plaintext length, got", n)
				}
				r := acceptStream(t, server)
				buf := make([]byte, 1500)
				n, err = r.Read(buf)
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(buf[:n], raw) {
					t.Errorf("got %x, want %x", buf[:n], raw)
				}
				if _, err = client.Write([]byte{0x16, 0xfe, 0xfd}); !errors.Is(err, ErrNotRTPOrRTCP) {
					t.Error("expected ErrNotRTPOrRTCP, got", err)
				}
			},
		},
		{
			name: "rtcp fan out",
			method: func(t *testing.T, profile ProtectionProfile) {
				client, server := newSessionPair(t, profile)
				r, err := server.OpenReadStream(0x200)
				if err != nil {
					t.Fatal(err)
				}
				if err = r.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
					t.Fatal(err)
				}
				pli := &rtcp.PictureLossIndication{SenderSSRC: 0x100, MediaSSRC: 0x200}
				if _, err = client.WriteRTCP([]rtcp.Packet{pli}); err != nil {
					t.Fatal(err)
				}
				buf := make([]byte, 1500)
				_, pkts, err := r.ReadRTCP(buf)
				if err != nil {
					t.Fatal(err)
				}
				if len(pkts) != 1 {
					t.Fatal("expected one packet, got", len(pkts))
				}
				got, ok := pkts[0].(*rtcp.PictureLossIndication)
				if !ok || *got != *pli {
					t.Errorf("unexpected packet %v", pkts[0])
				}
				if index, ok := client.LocalContext().Index(Outbound, 0x100); !ok || index != 0 {
					t.Errorf("index %d %v", index, ok)
				}
			},
		},
		{
			name: "closed stream is replaced",
			method: func(t *testing.T, profile ProtectionProfile) {
				client, server := newSessionPair(t, profile)
				header := &rtp.Header{Version: 2, PayloadType: 96, SequenceNumber: 1, SSRC: 0x400}
				if _, err := client.WriteRTP(header, []byte{1}); err != nil {
					t.Fatal(err)
				}
				first := acceptStream(t, server)
				if _, err := first.Read(make([]byte, 1500)); err != nil {
					t.Fatal(err)
				}
				if err := first.Close(); err != nil {
					t.Fatal(err)
				}
				if _, err := first.Read(make([]byte, 1500)); !errors.Is(err, io.EOF) {
					t.Error("expected io.EOF on a closed stream, got", err)
				}
				header.SequenceNumber = 2
				if _, err := client.WriteRTP(header, []byte{2}); err != nil {
					t.Fatal(err)
				}
				second := acceptStream(t, server)
				if second == first || second.SSRC() != 0x400 {
					t.Error("expected a new stream for the same ssrc")
				}
			},
		},
	}
	for _, test := range tests {
		for _, profile := range testProfiles {
			profile := profile
			t.Run(test.name+"/"+profile.String(), func(t *testing.T) {
				test.method(t, profile)
			})
		}
	}
}

func TestSessionDrops(t *testing.T) {
	profile := ProtectionProfileAes128CmHmacSha1_80
	ca, cb := dpipe.Pipe()
	clientKeys, serverKeys := sessionKeys(t, profile)
	logs := &syncBuffer{}

	server, err := NewSession(ca, &Config{
		Profile:       profile,
		Keys:          serverKeys,
		LoggerFactory: &logger.Factory{Level: logger.LevelDebug, Writer: logs},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()

	peer, err := NewContext(clientKeys.LocalMasterKey, clientKeys.LocalMasterSalt, profile, ContextConfig{})
	if err != nil {
		t.Fatal(err)
	}
	valid, err := peer.EncryptRTP(nil, rtpPacket(t, 0x500, 1, []byte("valid")))
	if err != nil {
		t.Fatal(err)
	}
	forged := append(rtpPacket(t, 0x600, 1, []byte("forged")), make([]byte, hmacTagLen)...)
	binding := stun.MustBuild(stun.TransactionID, stun.BindingRequest)

	for _, datagram := range [][]byte{binding.Raw, forged, valid, valid} {
		if _, err = cb.Write(datagram); err != nil {
			t.Fatal(err)
		}
	}

	r := acceptStream(t, server)
	if r.SSRC() != 0x500 {
		t.Fatal("only the authenticated ssrc should get a stream, got", r.SSRC())
	}
	buf := make([]byte, 1500)
	n, header, err := r.ReadRTP(buf)
	if err != nil {
		t.Fatal(err)
	}
	if header.SequenceNumber != 1 || !bytes.Equal(buf[header.MarshalSize():n], []byte("valid")) {
		t.Errorf("unexpected packet %x", buf[:n])
	}

	// The replayed copy is the last datagram handled.
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), ErrReplay.Error()) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err = server.Close(); err != nil {
		t.Error(err)
	}
	if len(server.newStream) != 0 {
		t.Error("dropped packets should not announce streams")
	}
	for _, expected := range []string{ErrNotRTPOrRTCP.Error(), ErrAuthMismatch.Error(), ErrReplay.Error()} {
		if !strings.Contains(logs.String(), expected) {
			t.Errorf("expected %q in logs:\n%s", expected, logs.String())
		}
	}
}

func TestSessionClose(t *testing.T) {
	client, server := newSessionPair(t, ProtectionProfileAeadAes128Gcm)
	r, err := server.OpenReadStream(0x700)
	if err != nil {
		t.Fatal(err)
	}
	if err = server.Close(); err != nil {
		t.Fatal(err)
	}
	if err = server.Close(); err != nil {
		t.Error("second close:", err)
	}
	if _, _, err = server.AcceptStream(); !errors.Is(err, ErrSessionClosed) {
		t.Error("expected ErrSessionClosed, got", err)
	}
	if _, err = server.OpenReadStream(0x701); !errors.Is(err, ErrSessionClosed) {
		t.Error("expected ErrSessionClosed, got", err)
	}
	if _, err = r.Read(make([]byte, 1500)); !errors.Is(err, io.EOF) {
		t.Error("expected io.EOF, got", err)
	}
	_ = client.Close()
}

func TestNewSessionErrors(t *testing.T) {
	ca, cb := dpipe.Pipe()
	defer ca.Close()
	defer cb.Close()
	clientKeys, _ := sessionKeys(t, ProtectionProfileAes128CmHmacSha1_80)

	tests := []struct {
		name   string
		conn   net.Conn
		config *Config
		err    error
	}{
		{name: "no conn", config: &Config{}, err: ErrNoConn},
		{name: "no config", conn: ca, err: ErrNoConfig},
		{name: "no keys", conn: ca, config: &Config{Profile: ProtectionProfileAes128CmHmacSha1_80}, err: ErrInvalidConfig},
		{name: "profile mismatch", conn: ca, config: &Config{Profile: ProtectionProfileAeadAes128Gcm, Keys: clientKeys}, err: ErrInvalidConfig},
		{
			name: "window too large",
			conn: ca,
			config: &Config{
				Profile:       ProtectionProfileAes128CmHmacSha1_80,
				Keys:          clientKeys,
				RemoteContext: ContextConfig{SRTP: ReplayWindow(1 << 16)},
			},
			err: ErrInvalidConfig,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewSession(test.conn, test.config); !errors.Is(err, test.err) {
				t.Errorf("expected %v, got %v", test.err, err)
			}
		})
	}
}
