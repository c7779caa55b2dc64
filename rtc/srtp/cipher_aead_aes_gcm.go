package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

type cipherAeadAesGcm struct {
	srtpCipher, srtcpCipher         cipher.AEAD
	srtpSessionSalt, srtcpSessionSalt []byte
}

func newCipherAeadAesGcm(keys *SessionKeys) (*cipherAeadAesGcm, error) {
	srtpBlock, err := aes.NewCipher(keys.SRTPEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	srtpCipher, err := cipher.NewGCM(srtpBlock)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	srtcpBlock, err := aes.NewCipher(keys.SRTCPEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	srtcpCipher, err := cipher.NewGCM(srtcpBlock)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cipherAeadAesGcm{
		srtpCipher:       srtpCipher,
		srtcpCipher:      srtcpCipher,
		srtpSessionSalt:  append([]byte{}, keys.SRTPSalt...),
		srtcpSessionSalt: append([]byte{}, keys.SRTCPSalt...),
	}, nil
}

func (s *cipherAeadAesGcm) encryptRTP(dst, plaintext []byte, headerLen int, ssrc uint32, seq uint16, roc uint32) ([]byte, error) {
	n := len(plaintext)
	dst = growBufferSize(dst, n+gcmTagLen)
	copy(dst, plaintext[:headerLen])

	iv := s.rtpInitializationVector(ssrc, seq, roc)
	s.srtpCipher.Seal(dst[headerLen:headerLen], iv[:], plaintext[headerLen:], dst[:headerLen])
	return dst, nil
}

func (s *cipherAeadAesGcm) decryptRTP(dst, ciphertext []byte, headerLen int, ssrc uint32, seq uint16, roc uint32) ([]byte, error) {
	nDst := len(ciphertext) - gcmTagLen
	dst = growBufferSize(dst, nDst)

	iv := s.rtpInitializationVector(ssrc, seq, roc)
	if _, err := s.srtpCipher.Open(
		dst[headerLen:headerLen], iv[:], ciphertext[headerLen:], ciphertext[:headerLen],
	); err != nil {
		return nil, ErrAuthMismatch
	}
	copy(dst[:headerLen], ciphertext[:headerLen])
	return dst, nil
}

func (s *cipherAeadAesGcm) encryptRTCP(dst, plaintext []byte, index, ssrc uint32) ([]byte, error) {
	n := len(plaintext)
	dst = growBufferSize(dst, n+gcmTagLen+srtcpIndexSize)
	copy(dst, plaintext[:8])

	iv := s.rtcpInitializationVector(ssrc, index)
	aad := s.rtcpAdditionalAuthenticatedData(plaintext, index)
	s.srtcpCipher.Seal(dst[8:8], iv[:], plaintext[8:], aad[:])

	putESRTCPWord(dst[n+gcmTagLen:], index, true)
	return dst, nil
}

func (s *cipherAeadAesGcm) decryptRTCP(dst, ciphertext []byte, index, ssrc uint32, encrypted bool) ([]byte, error) {
	tailOffset := len(ciphertext) - srtcpIndexSize
	nDst := tailOffset - gcmTagLen
	iv := s.rtcpInitializationVector(ssrc, index)

	if !encrypted {
		// The whole packet and the ESRTCP word are authenticated, nothing is
		// encrypted, RFC 7714 section 9.3.
		aad := make([]byte, 0, nDst+srtcpIndexSize)
		aad = append(aad, ciphertext[:nDst]...)
		aad = append(aad, ciphertext[tailOffset:]...)
		if _, err := s.srtcpCipher.Open(nil, iv[:], ciphertext[nDst:tailOffset], aad); err != nil {
			return nil, ErrAuthMismatch
		}
		dst = growBufferSize(dst, nDst)
		copy(dst, ciphertext[:nDst])
		return dst, nil
	}

	dst = growBufferSize(dst, nDst)
	aad := s.rtcpAdditionalAuthenticatedData(ciphertext, index)
	if _, err := s.srtcpCipher.Open(dst[8:8], iv[:], ciphertext[8:tailOffset], aad[:]); err != nil {
		return nil, ErrAuthMismatch
	}
	copy(dst[:8], ciphertext[:8])
	return dst, nil
}

// rtpInitializationVector is the 12-octet IV of RFC 7714 section 8.1:
//
//	  0  0  0  0  0  0  0  0  0  0  1  1
//	  0  1  2  3  4  5  6  7  8  9  0  1
//	+--+--+--+--+--+--+--+--+--+--+--+--+
//	|00|00|    SSRC   |     ROC   | SEQ |---+
//	+--+--+--+--+--+--+--+--+--+--+--+--+   |
//	                                        |
//	+--+--+--+--+--+--+--+--+--+--+--+--+   |
//	|         Encryption Salt           |->(+)
//	+--+--+--+--+--+--+--+--+--+--+--+--+   |
//	                                        |
//	+--+--+--+--+--+--+--+--+--+--+--+--+   |
//	|       Initialization Vector       |<--+
//	+--+--+--+--+--+--+--+--+--+--+--+--+
func (s *cipherAeadAesGcm) rtpInitializationVector(ssrc uint32, seq uint16, roc uint32) [12]byte {
	var iv [12]byte
	binary.BigEndian.PutUint32(iv[2:], ssrc)
	binary.BigEndian.PutUint32(iv[6:], roc)
	binary.BigEndian.PutUint16(iv[10:], seq)

	for i := range iv {
		iv[i] ^= s.srtpSessionSalt[i]
	}
	return iv
}

// rtcpInitializationVector is the 12-octet IV of RFC 7714 section 9.1:
// 00 00 | SSRC | 00 00 | 0 + SRTCP index, XORed with the salt.
func (s *cipherAeadAesGcm) rtcpInitializationVector(ssrc, index uint32) [12]byte {
	var iv [12]byte
	binary.BigEndian.PutUint32(iv[2:], ssrc)
	binary.BigEndian.PutUint32(iv[8:], index)

	for i := range iv {
		iv[i] ^= s.srtcpSessionSalt[i]
	}
	return iv
}

// rtcpAdditionalAuthenticatedData is the first 8 octets of the RTCP
// packet followed by the ESRTCP word with the E flag set.
func (s *cipherAeadAesGcm) rtcpAdditionalAuthenticatedData(packet []byte, index uint32) [12]byte {
	var aad [12]byte
	copy(aad[:], packet[:8])
	putESRTCPWord(aad[8:], index, true)
	return aad
}
