package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// SigningKey is an Ed25519 keypair identifying a coordinator or agent on the
// signed-message protocol and ordering chain. It is distinct from the
// secp256k1 Address keys used for payment/treasury accounting.
type SigningKey struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateSigningKey creates a fresh Ed25519 identity keypair.
func GenerateSigningKey() (*SigningKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate signing key: %w", err)
	}
	return &SigningKey{public: pub, private: priv}, nil
}

// SigningKeyFromSeed reconstructs a keypair from a 32-byte Ed25519 seed.
func SigningKeyFromSeed(seed []byte) (*SigningKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &SigningKey{public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// Seed returns the 32-byte seed backing this keypair, suitable for storage.
func (k *SigningKey) Seed() []byte {
	return append([]byte(nil), k.private.Seed()...)
}

// PublicKey returns the raw 32-byte Ed25519 public key.
func (k *SigningKey) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), k.public...)
}

// PublicKeyHex returns the public key hex-encoded, used as a stable peer/agent
// identifier in wire payloads.
func (k *SigningKey) PublicKeyHex() string {
	return hex.EncodeToString(k.public)
}

// Sign produces a detached Ed25519 signature over the supplied message.
func (k *SigningKey) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// VerifySignature checks a detached Ed25519 signature against the supplied
// hex-encoded public key.
func VerifySignature(publicKeyHex string, message, signature []byte) error {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("crypto: decode public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("crypto: public key has wrong length")
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, signature) {
		return errors.New("crypto: signature verification failed")
	}
	return nil
}

// HashSHA256 returns the SHA-256 digest of the supplied bytes, hex-encoded.
// Used for content hashing (evidence hashes, chain record hashes).
func HashSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashSHA256Bytes returns the raw SHA-256 digest of the supplied bytes.
func HashSHA256Bytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
