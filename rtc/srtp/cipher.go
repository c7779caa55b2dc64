package srtp

import (
	"encoding/binary"
)

// contextCipher dispatches to exactly one of the two back-ends. The set is
// closed by the protection profiles this package supports.
type contextCipher struct {
	profile ProtectionProfile
	cm      *cipherAesCmHmacSha1
	gcm     *cipherAeadAesGcm
}

func newContextCipher(profile ProtectionProfile, keys *SessionKeys) (*contextCipher, error) {
	c := &contextCipher{profile: profile}
	var err error
	switch profile {
	case ProtectionProfileAeadAes128Gcm:
		c.gcm, err = newCipherAeadAesGcm(keys)
	default:
		c.cm, err = newCipherAesCmHmacSha1(keys)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *contextCipher) rtpAuthTagLen() int {
	return c.profile.AuthTagLen()
}

func (c *contextCipher) encryptRTP(dst, plaintext []byte, headerLen int, ssrc uint32, seq uint16, roc uint32) ([]byte, error) {
	if c.gcm != nil {
		return c.gcm.encryptRTP(dst, plaintext, headerLen, ssrc, seq, roc)
	}
	return c.cm.encryptRTP(dst, plaintext, headerLen, ssrc, seq, roc), nil
}

func (c *contextCipher) decryptRTP(dst, ciphertext []byte, headerLen int, ssrc uint32, seq uint16, roc uint32) ([]byte, error) {
	if c.gcm != nil {
		return c.gcm.decryptRTP(dst, ciphertext, headerLen, ssrc, seq, roc)
	}
	return c.cm.decryptRTP(dst, ciphertext, headerLen, ssrc, seq, roc)
}

func (c *contextCipher) encryptRTCP(dst, plaintext []byte, index, ssrc uint32) ([]byte, error) {
	if c.gcm != nil {
		return c.gcm.encryptRTCP(dst, plaintext, index, ssrc)
	}
	return c.cm.encryptRTCP(dst, plaintext, index, ssrc), nil
}

func (c *contextCipher) decryptRTCP(dst, ciphertext []byte, index, ssrc uint32, encrypted bool) ([]byte, error) {
	if c.gcm != nil {
		return c.gcm.decryptRTCP(dst, ciphertext, index, ssrc, encrypted)
	}
	return c.cm.decryptRTCP(dst, ciphertext, index, ssrc, encrypted)
}

// rtcpIndex reads the E flag and the 31-bit SRTCP index.
//
// AES_128_CM_HMAC_SHA1_80
// | RTCP Header | Encrypted payload |E| SRTCP Index | Auth tag |
//
// AEAD_AES_128_GCM
// | RTCP Header | Encrypted payload | AEAD auth tag |E| SRTCP Index |
func (c *contextCipher) rtcpIndex(packet []byte) (index uint32, encrypted bool) {
	offset := len(packet) - srtcpIndexSize
	if c.gcm == nil {
		offset -= hmacTagLen
	}
	word := binary.BigEndian.Uint32(packet[offset:])
	return word &^ rtcpEncryptionFlag, word&rtcpEncryptionFlag != 0
}

const rtcpEncryptionFlag = 1 << 31

func putESRTCPWord(dst []byte, index uint32, encrypted bool) {
	word := index
	if encrypted {
		word |= rtcpEncryptionFlag
	}
	binary.BigEndian.PutUint32(dst, word)
}

// zeroize drops the salts this cipher holds; the expanded AES and HMAC
// state inside crypto/ is not reachable.
func (c *contextCipher) zeroize() {
	if c.cm != nil {
		zeroize(c.cm.srtpSessionSalt)
		zeroize(c.cm.srtcpSessionSalt)
		zeroize(c.cm.srtpAuthKey)
		zeroize(c.cm.srtcpAuthKey)
	}
	if c.gcm != nil {
		zeroize(c.gcm.srtpSessionSalt)
		zeroize(c.gcm.srtcpSessionSalt)
	}
}
