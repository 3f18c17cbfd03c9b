// Package coordinator wires every subsystem package (§2 component table)
// into one long-lived process aggregate: init loads persisted state and
// constructs each collaborator, serve starts the HTTP boundary and the
// background timers (§5), shutdown drains them. This is the "global
// coordinator state" modeled as a single process-scope aggregate (§9).
package coordinator

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"edgecoord/crypto"
)

// loadOrGenerateSigningKey reads a hex-encoded Ed25519 seed from path, or
// generates and persists a fresh one if the file does not exist yet. This
// is the coordinator's own protocol identity (C1/C2/C3 signer) — distinct
// from the secp256k1 Address keys crypto.Keystore persists for payment
// accounting.
func loadOrGenerateSigningKey(path string) (*crypto.SigningKey, error) {
	if path == "" {
		return crypto.GenerateSigningKey()
	}
	data, err := os.ReadFile(path)
	if err == nil {
		seed, decodeErr := hex.DecodeString(strings.TrimSpace(string(data)))
		if decodeErr != nil {
			return nil, fmt.Errorf("coordinator: decode signing key seed at %s: %w", path, decodeErr)
		}
		return crypto.SigningKeyFromSeed(seed)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("coordinator: read signing key at %s: %w", path, err)
	}

	key, genErr := crypto.GenerateSigningKey()
	if genErr != nil {
		return nil, genErr
	}
	if dir := filepath.Dir(path); dir != "" {
		if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
			return nil, fmt.Errorf("coordinator: create signing key directory: %w", mkErr)
		}
	}
	if writeErr := os.WriteFile(path, []byte(hex.EncodeToString(key.Seed())), 0o600); writeErr != nil {
		return nil, fmt.Errorf("coordinator: persist signing key at %s: %w", path, writeErr)
	}
	return key, nil
}
