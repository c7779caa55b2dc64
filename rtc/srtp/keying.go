package srtp

import (
	"fmt"

	"github.com/pion/logging"
)

const labelExtractorDtlsSrtp = "EXTRACTOR-dtls_srtp"

// KeyingMaterialExporter is satisfied by a completed DTLS connection state,
// e.g. *dtls.State.
type KeyingMaterialExporter interface {
	ExportKeyingMaterial(label string, context []byte, length int) ([]byte, error)
}

// Keys holds the master keys and salts of both directions. Local keys
// encrypt, remote keys decrypt.
type Keys struct {
	LocalMasterKey   []byte
	LocalMasterSalt  []byte
	RemoteMasterKey  []byte
	RemoteMasterSalt []byte
}

// String never prints key material.
func (k Keys) String() string {
	return fmt.Sprintf("Keys{local:%d/%d remote:%d/%d}",
		len(k.LocalMasterKey), len(k.LocalMasterSalt), len(k.RemoteMasterKey), len(k.RemoteMasterSalt))
}

// ExtractKeys splits the DTLS-SRTP keying blob of RFC 5764 section 4.2,
// client_write_key | server_write_key | client_write_salt | server_write_salt.
// The client encrypts with the client keys.
func ExtractKeys(material []byte, profile ProtectionProfile, isClient bool) (Keys, error) {
	if !profile.valid() {
		return Keys{}, fmt.Errorf("%w: unsupported protection profile %#04x", ErrInvalidConfig, uint16(profile))
	}
	keyLen, saltLen := profile.KeyLen(), profile.SaltLen()
	if len(material) != profile.KeyingMaterialLen() {
		return Keys{}, fmt.Errorf("%w: keying material length %d, expected %d", ErrInvalidConfig, len(material), profile.KeyingMaterialLen())
	}

	offset := 0
	next := func(n int) []byte {
		b := append([]byte{}, material[offset:offset+n]...)
		offset += n
		return b
	}
	clientKey := next(keyLen)
	serverKey := next(keyLen)
	clientSalt := next(saltLen)
	serverSalt := next(saltLen)

	if isClient {
		return Keys{
			LocalMasterKey: clientKey, LocalMasterSalt: clientSalt,
			RemoteMasterKey: serverKey, RemoteMasterSalt: serverSalt,
		}, nil
	}
	return Keys{
		LocalMasterKey: serverKey, LocalMasterSalt: serverSalt,
		RemoteMasterKey: clientKey, RemoteMasterSalt: clientSalt,
	}, nil
}

// Config is used to configure a Session.
type Config struct {
	Profile       ProtectionProfile
	Keys          Keys
	LocalContext  ContextConfig
	RemoteContext ContextConfig
	LoggerFactory logging.LoggerFactory
}

// ExtractSessionKeysFromDTLS fills Keys from a finished DTLS handshake.
func (c *Config) ExtractSessionKeysFromDTLS(exporter KeyingMaterialExporter, isClient bool) error {
	if !c.Profile.valid() {
		return fmt.Errorf("%w: unsupported protection profile %#04x", ErrInvalidConfig, uint16(c.Profile))
	}
	material, err := exporter.ExportKeyingMaterial(labelExtractorDtlsSrtp, nil, c.Profile.KeyingMaterialLen())
	if err != nil {
		return err
	}
	defer zeroize(material)

	keys, err := ExtractKeys(material, c.Profile, isClient)
	if err != nil {
		return err
	}
	c.Keys = keys
	return nil
}

// contexts builds the encrypting and decrypting Context of a Session.
func (c *Config) contexts() (local, remote *Context, err error) {
	local, err = NewContext(c.Keys.LocalMasterKey, c.Keys.LocalMasterSalt, c.Profile, c.LocalContext)
	if err != nil {
		return nil, nil, err
	}
	remote, err = NewContext(c.Keys.RemoteMasterKey, c.Keys.RemoteMasterSalt, c.Profile, c.RemoteContext)
	if err != nil {
		_ = local.Close()
		return nil, nil, err
	}
	return local, remote, nil
}
