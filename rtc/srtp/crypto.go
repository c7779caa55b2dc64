package srtp

import (
	"crypto/cipher"
	"encoding/binary"

	"github.com/pion/transport/v2/utils/xor"
)

// incrementCTR increments a big-endian integer of arbitrary size.
func incrementCTR(ctr []byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			break
		}
	}
}

// xorBytesCTR XORs the AES-CM keystream starting at iv into dst.
// It is equivalent to cipher.NewCTR followed by XORKeyStream without the
// per packet stream allocation. dst and src may overlap exactly.
func xorBytesCTR(block cipher.Block, iv *[16]byte, dst, src []byte) {
	var ctr, stream [16]byte
	ctr = *iv

	for i := 0; i < len(src); {
		block.Encrypt(stream[:], ctr[:])
		incrementCTR(ctr[:])
		n := xor.XorBytes(dst[i:], src[i:], stream[:])
		if n == 0 {
			break
		}
		i += n
	}
}

// generateCounter builds the AES-CM IV of RFC 3711 section 4.1.1:
// IV = (k_s * 2^16) XOR (SSRC * 2^64) XOR (i * 2^16)
// where i is the 48-bit packet index split here into roc and seq.
func generateCounter(seq uint16, roc uint32, ssrc uint32, sessionSalt []byte) [16]byte {
	var counter [16]byte
	binary.BigEndian.PutUint32(counter[4:], ssrc)
	binary.BigEndian.PutUint32(counter[8:], roc)
	binary.BigEndian.PutUint16(counter[12:], seq)

	for i := range sessionSalt {
		counter[i] ^= sessionSalt[i]
	}
	return counter
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// growBufferSize returns buf resized to size, reallocating when the capacity
// is insufficient. Existing content is preserved.
func growBufferSize(buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}

	buf2 := make([]byte, size)
	copy(buf2, buf)
	return buf2
}
