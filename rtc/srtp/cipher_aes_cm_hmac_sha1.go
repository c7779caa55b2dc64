package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"hash"
	"sync"
)

type cipherAesCmHmacSha1 struct {
	srtpSessionSalt []byte
	srtpAuthKey     []byte
	srtpBlock       cipher.Block
	srtpSessionAuth sync.Pool

	srtcpSessionSalt []byte
	srtcpAuthKey     []byte
	srtcpBlock       cipher.Block
	srtcpSessionAuth sync.Pool
}

func newCipherAesCmHmacSha1(keys *SessionKeys) (*cipherAesCmHmacSha1, error) {
	s := &cipherAesCmHmacSha1{}
	var err error
	if s.srtpBlock, err = aes.NewCipher(keys.SRTPEncryptionKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if s.srtcpBlock, err = aes.NewCipher(keys.SRTCPEncryptionKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	s.srtpSessionSalt = append([]byte{}, keys.SRTPSalt...)
	s.srtcpSessionSalt = append([]byte{}, keys.SRTCPSalt...)

	s.srtpAuthKey = append([]byte{}, keys.SRTPAuthKey...)
	s.srtcpAuthKey = append([]byte{}, keys.SRTCPAuthKey...)

	// hash.Hash is stateful, a pool lets concurrent SSRCs authenticate in parallel.
	s.srtpSessionAuth.New = func() interface{} {
		return hmac.New(sha1.New, s.srtpAuthKey)
	}
	s.srtcpSessionAuth.New = func() interface{} {
		return hmac.New(sha1.New, s.srtcpAuthKey)
	}
	return s, nil
}

func (s *cipherAesCmHmacSha1) encryptRTP(dst, plaintext []byte, headerLen int, ssrc uint32, seq uint16, roc uint32) []byte {
	n := len(plaintext)
	dst = growBufferSize(dst, n+hmacTagLen)

	// Copy the header unencrypted.
	copy(dst, plaintext[:headerLen])

	counter := generateCounter(seq, roc, ssrc, s.srtpSessionSalt)
	xorBytesCTR(s.srtpBlock, &counter, dst[headerLen:n], plaintext[headerLen:])

	s.generateSrtpAuthTag(dst[n:], dst[:n], roc)
	return dst
}

func (s *cipherAesCmHmacSha1) decryptRTP(dst, ciphertext []byte, headerLen int, ssrc uint32, seq uint16, roc uint32) ([]byte, error) {
	n := len(ciphertext) - hmacTagLen
	actualTag := ciphertext[n:]

	// Verify before any byte of dst is written.
	var expectedTag [hmacTagLen]byte
	s.generateSrtpAuthTag(expectedTag[:], ciphertext[:n], roc)
	if subtle.ConstantTimeCompare(actualTag, expectedTag[:]) != 1 {
		return nil, ErrAuthMismatch
	}

	dst = growBufferSize(dst, n)
	copy(dst, ciphertext[:headerLen])

	counter := generateCounter(seq, roc, ssrc, s.srtpSessionSalt)
	xorBytesCTR(s.srtpBlock, &counter, dst[headerLen:], ciphertext[headerLen:n])
	return dst, nil
}

func (s *cipherAesCmHmacSha1) encryptRTCP(dst, plaintext []byte, index, ssrc uint32) []byte {
	n := len(plaintext)
	dst = growBufferSize(dst, n+srtcpIndexSize+hmacTagLen)
	copy(dst, plaintext[:8])

	// Encrypt everything after header
	counter := generateCounter(uint16(index&0xffff), index>>16, ssrc, s.srtcpSessionSalt)
	xorBytesCTR(s.srtcpBlock, &counter, dst[8:n], plaintext[8:])

	// Add SRTCP Index and set Encryption bit
	putESRTCPWord(dst[n:], index, true)
	n += srtcpIndexSize

	s.generateSrtcpAuthTag(dst[n:], dst[:n])
	return dst
}

func (s *cipherAesCmHmacSha1) decryptRTCP(dst, ciphertext []byte, index, ssrc uint32, encrypted bool) ([]byte, error) {
	authenticated := len(ciphertext) - hmacTagLen
	tailOffset := authenticated - srtcpIndexSize

	var expectedTag [hmacTagLen]byte
	s.generateSrtcpAuthTag(expectedTag[:], ciphertext[:authenticated])
	if subtle.ConstantTimeCompare(ciphertext[authenticated:], expectedTag[:]) != 1 {
		return nil, ErrAuthMismatch
	}

	dst = growBufferSize(dst, tailOffset)
	if !encrypted {
		copy(dst, ciphertext[:tailOffset])
		return dst, nil
	}
	copy(dst, ciphertext[:8])
	counter := generateCounter(uint16(index&0xffff), index>>16, ssrc, s.srtcpSessionSalt)
	xorBytesCTR(s.srtcpBlock, &counter, dst[8:], ciphertext[8:tailOffset])
	return dst, nil
}

// generateSrtpAuthTag writes HMAC(k_a, Authenticated Portion || ROC)
// truncated to 80 bits into tag, RFC 3711 section 4.2.
func (s *cipherAesCmHmacSha1) generateSrtpAuthTag(tag, buf []byte, roc uint32) {
	auth := s.srtpSessionAuth.Get().(hash.Hash)
	defer s.srtpSessionAuth.Put(auth)
	auth.Reset()

	_, _ = auth.Write(buf)

	// For SRTP only, we need to hash the rollover counter as well.
	var rocRaw [4]byte
	binary.BigEndian.PutUint32(rocRaw[:], roc)
	_, _ = auth.Write(rocRaw[:])

	var sum [sha1.Size]byte
	copy(tag, auth.Sum(sum[:0])[:hmacTagLen])
}

// generateSrtcpAuthTag covers the RTCP packet and the ESRTCP word.
func (s *cipherAesCmHmacSha1) generateSrtcpAuthTag(tag, buf []byte) {
	auth := s.srtcpSessionAuth.Get().(hash.Hash)
	defer s.srtcpSessionAuth.Put(auth)
	auth.Reset()

	_, _ = auth.Write(buf)

	var sum [sha1.Size]byte
	copy(tag, auth.Sum(sum[:0])[:hmacTagLen])
}
