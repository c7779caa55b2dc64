package srtp

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"
)

// Key derivation labels, RFC 3711 section 4.3.2.
const (
	labelSRTPEncryption        = 0x00
	labelSRTPAuthenticationTag = 0x01
	labelSRTPSalt              = 0x02

	labelSRTCPEncryption        = 0x03
	labelSRTCPAuthenticationTag = 0x04
	labelSRTCPSalt              = 0x05
)

// SessionKeys are derived once per Context and never mutated until Close.
// Auth keys are empty for AEAD profiles.
type SessionKeys struct {
	SRTPEncryptionKey []byte
	SRTPAuthKey       []byte
	SRTPSalt          []byte

	SRTCPEncryptionKey []byte
	SRTCPAuthKey       []byte
	SRTCPSalt          []byte
}

// String never prints key material.
func (k *SessionKeys) String() string {
	return fmt.Sprintf("SessionKeys{enc:%d auth:%d salt:%d}", len(k.SRTPEncryptionKey), len(k.SRTPAuthKey), len(k.SRTPSalt))
}

func (k *SessionKeys) zeroize() {
	for _, b := range [][]byte{
		k.SRTPEncryptionKey, k.SRTPAuthKey, k.SRTPSalt,
		k.SRTCPEncryptionKey, k.SRTCPAuthKey, k.SRTCPSalt,
	} {
		zeroize(b)
	}
}

// DeriveSessionKeys runs the AES-CM PRF over all six labels with a key
// derivation rate of zero.
func DeriveSessionKeys(profile ProtectionProfile, masterKey, masterSalt []byte) (*SessionKeys, error) {
	if !profile.valid() {
		return nil, fmt.Errorf("%w: unsupported protection profile %#04x", ErrInvalidConfig, uint16(profile))
	}
	if len(masterKey) != profile.KeyLen() {
		return nil, fmt.Errorf("%w: master key length %d, expected %d", ErrInvalidConfig, len(masterKey), profile.KeyLen())
	}
	if len(masterSalt) != profile.SaltLen() {
		return nil, fmt.Errorf("%w: master salt length %d, expected %d", ErrInvalidConfig, len(masterSalt), profile.SaltLen())
	}

	keys := &SessionKeys{}
	var err error
	derive := func(label byte, outLen int) []byte {
		if err != nil || outLen == 0 {
			return nil
		}
		var out []byte
		out, err = aesCmKeyDerivation(label, masterKey, masterSalt, outLen)
		return out
	}
	keys.SRTPEncryptionKey = derive(labelSRTPEncryption, profile.KeyLen())
	keys.SRTPAuthKey = derive(labelSRTPAuthenticationTag, profile.AuthKeyLen())
	keys.SRTPSalt = derive(labelSRTPSalt, profile.SaltLen())
	keys.SRTCPEncryptionKey = derive(labelSRTCPEncryption, profile.KeyLen())
	keys.SRTCPAuthKey = derive(labelSRTCPAuthenticationTag, profile.AuthKeyLen())
	keys.SRTCPSalt = derive(labelSRTCPSalt, profile.SaltLen())
	if err != nil {
		keys.zeroize()
		return nil, err
	}
	return keys, nil
}

// aesCmKeyDerivation implements the PRF of RFC 3711 section 4.3.3:
// x = (master_salt XOR (label << 48)) * 2^16 is encrypted block by block,
// the low 16 bits counting the blocks.
func aesCmKeyDerivation(label byte, masterKey, masterSalt []byte, outLen int) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	bs := block.BlockSize()

	// The salt is left aligned; the 7 byte key_id (label followed by the
	// 48-bit index DIV kdr, always zero) ends at byte 13.
	prfIn := make([]byte, bs)
	copy(prfIn, masterSalt)
	prfIn[7] ^= label

	out := make([]byte, ((outLen+bs-1)/bs)*bs)
	var i uint16
	for n := 0; n < outLen; n += bs {
		binary.BigEndian.PutUint16(prfIn[bs-2:], i)
		block.Encrypt(out[n:n+bs], prfIn)
		i++
	}
	zeroize(prfIn)
	res := make([]byte, outLen)
	copy(res, out)
	zeroize(out)
	return res, nil
}
