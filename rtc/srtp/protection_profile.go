package srtp

import (
	"fmt"
)

// ProtectionProfile specifies Cipher and AuthTag details, similar to TLS cipher suite.
// The values are the DTLS-SRTP profile identifiers from RFC 5764 and RFC 7714.
type ProtectionProfile uint16

// Supported protection profiles
const (
	ProtectionProfileAes128CmHmacSha1_80 ProtectionProfile = 0x0001
	ProtectionProfileAeadAes128Gcm       ProtectionProfile = 0x0007
)

const (
	keyLen         = 16
	cmSaltLen      = 14
	gcmSaltLen     = 12
	hmacKeyLen     = 20
	hmacTagLen     = 10
	gcmTagLen      = 16
	srtcpIndexSize = 4
)

// ProtectionProfileFromDTLS maps a negotiated use_srtp profile id.
func ProtectionProfileFromDTLS(id uint16) (ProtectionProfile, error) {
	p := ProtectionProfile(id)
	if !p.valid() {
		return 0, fmt.Errorf("%w: unsupported protection profile %#04x", ErrInvalidConfig, id)
	}
	return p, nil
}

func (p ProtectionProfile) valid() bool {
	return p == ProtectionProfileAes128CmHmacSha1_80 || p == ProtectionProfileAeadAes128Gcm
}

func (p ProtectionProfile) String() string {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80:
		return "SRTP_AES128_CM_HMAC_SHA1_80"
	case ProtectionProfileAeadAes128Gcm:
		return "SRTP_AEAD_AES_128_GCM"
	default:
		return fmt.Sprintf("unknown(%#04x)", uint16(p))
	}
}

// KeyLen is the master and session encryption key length.
func (p ProtectionProfile) KeyLen() int {
	if !p.valid() {
		return 0
	}
	return keyLen
}

// SaltLen is the master and session salt length.
func (p ProtectionProfile) SaltLen() int {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80:
		return cmSaltLen
	case ProtectionProfileAeadAes128Gcm:
		return gcmSaltLen
	default:
		return 0
	}
}

// AuthKeyLen is zero for AEAD profiles.
func (p ProtectionProfile) AuthKeyLen() int {
	if p == ProtectionProfileAes128CmHmacSha1_80 {
		return hmacKeyLen
	}
	return 0
}

// AuthTagLen is the number of bytes appended to an SRTP packet.
func (p ProtectionProfile) AuthTagLen() int {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80:
		return hmacTagLen
	case ProtectionProfileAeadAes128Gcm:
		return gcmTagLen
	default:
		return 0
	}
}

// KeyingMaterialLen is the size of the DTLS exporter output for this profile.
func (p ProtectionProfile) KeyingMaterialLen() int {
	return 2 * (p.KeyLen() + p.SaltLen())
}

// SRTCPOverhead is the number of bytes SRTCP adds to an RTCP compound packet.
func (p ProtectionProfile) SRTCPOverhead() int {
	return p.AuthTagLen() + srtcpIndexSize
}
