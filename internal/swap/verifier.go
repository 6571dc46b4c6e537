package swap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/Doot-Foundation/example/internal/chain"
)

// Verifier checks an oracle signature over a price.
type Verifier interface {
	Verify(oracle string, price chain.Field, signature string) error
}

// Mina base58check payload sizes, version byte excluded.
const (
	minaPublicKeyLen = 34
	minaSignatureLen = 65
)

// MinaFormatVerifier validates the base58check framing of Mina public keys
// and signatures. It does not check the Schnorr signature itself.
type MinaFormatVerifier struct{}

func (MinaFormatVerifier) Verify(oracle string, _ chain.Field, signature string) error {
	pub, err := chain.DecodeBase58Check(oracle, chain.VersionPublicKey)
	if err != nil {
		return fmt.Errorf("invalid oracle public key: %w", err)
	}
	if len(pub) != minaPublicKeyLen {
		return fmt.Errorf("invalid oracle public key length %d", len(pub))
	}

	sig, err := chain.DecodeBase58Check(signature, chain.VersionSignature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	if len(sig) != minaSignatureLen {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	return nil
}

// ECDSAVerifier checks secp256r1 signatures. The oracle is a hex-encoded
// compressed public key; the signature is base58 r||s over SHA-256 of the
// decimal price.
type ECDSAVerifier struct{}

func (ECDSAVerifier) Verify(oracle string, price chain.Field, signature string) error {
	pub, err := keys.NewPublicKeyFromString(oracle)
	if err != nil {
		return fmt.Errorf("invalid oracle public key: %w", err)
	}

	sig, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	if len(sig) != 64 {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	digest := sha256.Sum256([]byte(price.String()))
	if !pub.Verify(sig, digest[:]) {
		return fmt.Errorf("signature does not match oracle %s", oracle)
	}

	return nil
}

// SignPrice produces a signature accepted by ECDSAVerifier.
func SignPrice(key *keys.PrivateKey, price chain.Field) string {
	return base58.Encode(key.Sign([]byte(price.String())))
}

// OracleKey renders key's public half the way ECDSAVerifier expects it.
func OracleKey(key *keys.PrivateKey) string {
	return hex.EncodeToString(key.PublicKey().Bytes())
}
