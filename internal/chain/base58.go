package chain

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
)

// Mina base58check version bytes.
const (
	VersionPublicKey byte = 0xcb
	VersionSignature byte = 0x9a
)

// DecodeBase58Check decodes s, verifies its double-SHA256 checksum and
// version byte, and returns the payload without version or checksum.
func DecodeBase58Check(s string, version byte) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base58: %w", err)
	}
	if len(raw) < 5 {
		return nil, fmt.Errorf("base58check payload too short")
	}

	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	want := hash.Checksum(body)
	if !bytes.Equal(sum, want) {
		return nil, fmt.Errorf("base58check checksum mismatch")
	}
	if body[0] != version {
		return nil, fmt.Errorf("unexpected version byte 0x%02x, want 0x%02x", body[0], version)
	}

	return body[1:], nil
}

// EncodeBase58Check is the inverse of DecodeBase58Check.
func EncodeBase58Check(version byte, payload []byte) string {
	body := append([]byte{version}, payload...)
	sum := hash.Checksum(body)
	return base58.Encode(append(body, sum...))
}
