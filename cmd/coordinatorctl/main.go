// Command coordinatorctl is the coordinator operator's CLI: signing-identity
// management, treasury keystore generation, ledger audit verification, and
// a quick status dump against a running coordinator — grounded on the
// teacher's cmd/nhb-cli command-dispatch shape.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"edgecoord/cmd/internal/passphrase"
	"edgecoord/crypto"
	"edgecoord/ledger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "identity":
		err = identityCmd(os.Args[2:])
	case "keystore-new":
		err = keystoreNewCmd(os.Args[2:])
	case "keystore-address":
		err = keystoreAddressCmd(os.Args[2:])
	case "ledger-verify":
		err = ledgerVerifyCmd(os.Args[2:])
	case "status":
		err = statusCmd(os.Args[2:])
	default:
		fmt.Printf("unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinatorctl: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`usage:
  coordinatorctl identity <signing-key-path>
  coordinatorctl keystore-new <keystore-path>
  coordinatorctl keystore-address <keystore-path>
  coordinatorctl ledger-verify <snapshot.json> <coordinator-pubkey-hex>
  coordinatorctl status <base-url>`)
}

// identityCmd prints the Ed25519 public key identifying this coordinator on
// the signed-message protocol (§4.1 C1/C2), generating and persisting a
// fresh keypair at path if none exists yet.
func identityCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("identity requires a signing-key-path argument")
	}
	path := args[0]

	data, readErr := os.ReadFile(path)
	if readErr == nil {
		seed, decodeErr := hex.DecodeString(string(data))
		if decodeErr != nil {
			return fmt.Errorf("decode signing key seed at %s: %w", path, decodeErr)
		}
		key, keyErr := crypto.SigningKeyFromSeed(seed)
		if keyErr != nil {
			return keyErr
		}
		fmt.Println(key.PublicKeyHex())
		return nil
	}
	if !os.IsNotExist(readErr) {
		return fmt.Errorf("read signing key at %s: %w", path, readErr)
	}

	key, genErr := crypto.GenerateSigningKey()
	if genErr != nil {
		return genErr
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key.Seed())), 0o600); err != nil {
		return fmt.Errorf("persist signing key at %s: %w", path, err)
	}
	fmt.Printf("generated new coordinator identity at %s\n", path)
	fmt.Println(key.PublicKeyHex())
	return nil
}

// keystoreNewCmd generates a secp256k1 treasury/payment account key and
// writes it to an Ethereum v3 keystore file (§4 C11). The printed bech32
// address is what accountId/keyId fields across /economy/payments and
// /economy/treasury/custody-events expect.
func keystoreNewCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("keystore-new requires a keystore-path argument")
	}
	path := args[0]

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate account key: %w", err)
	}
	pass, err := passphrase.NewSource("COORDINATOR_KEYSTORE_PASSPHRASE").Get()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		return fmt.Errorf("save keystore: %w", err)
	}
	fmt.Printf("wrote keystore to %s\n", path)
	fmt.Println(key.PubKey().Address().String())
	return nil
}

// keystoreAddressCmd decrypts path and prints its bech32 account address.
func keystoreAddressCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("keystore-address requires a keystore-path argument")
	}
	path := args[0]

	pass, err := passphrase.NewSource("COORDINATOR_KEYSTORE_PASSPHRASE").Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return fmt.Errorf("load keystore: %w", err)
	}
	fmt.Println(key.PubKey().Address().String())
	return nil
}

// ledgerVerifyCmd replays a JSON ledger snapshot (as returned by
// GET /ledger/snapshot) through ledger.Verify and reports the first
// offending record, if any (§4.2, testable property 2).
func ledgerVerifyCmd(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("ledger-verify requires <snapshot.json> <coordinator-pubkey-hex>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var records []ledger.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	result := ledger.Verify(records, args[1])
	if result.OK {
		fmt.Printf("ok: %d records verified\n", len(records))
		return nil
	}
	fmt.Printf("FAILED at record %d: %s\n", result.OffendingIndex, result.Reason)
	os.Exit(2)
	return nil
}

// statusCmd prints GET /status from a running coordinator.
func statusCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("status requires a base-url argument")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(args[0] + "/status")
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read status body: %w", err)
	}
	var pretty map[string]interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	encoded, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(encoded))
	return nil
}
