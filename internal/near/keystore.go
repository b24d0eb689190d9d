package near

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mr-tron/base58"
)

const ed25519Prefix = "ed25519:"

var ErrCredentialNotFound = errors.New("credential not found")

// KeyPair is a full-access key for one account, as stored by near-cli.
type KeyPair struct {
	AccountID  string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

func (k *KeyPair) PublicKeyString() string {
	return ed25519Prefix + base58.Encode(k.PublicKey)
}

type credentialFile struct {
	AccountID  string `json:"account_id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	SecretKey  string `json:"secret_key"`
}

// CredentialPath is <dir>/<networkID>/<accountID>.json.
func CredentialPath(dir, networkID, accountID string) string {
	return filepath.Join(dir, networkID, accountID+".json")
}

// LoadKey reads the unencrypted key file for accountID on networkID.
func LoadKey(dir, networkID, accountID string) (*KeyPair, error) {
	path := CredentialPath(dir, networkID, accountID)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read credential %s: %w", path, err)
	}

	var cf credentialFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse credential %s: %w", path, err)
	}
	secret := cf.PrivateKey
	if secret == "" {
		secret = cf.SecretKey
	}
	priv, err := ParsePrivateKey(secret)
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", path, err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	if cf.PublicKey != "" {
		declared, err := ParsePublicKey(cf.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("credential %s: %w", path, err)
		}
		if !bytes.Equal(declared, pub) {
			return nil, fmt.Errorf("credential %s: public key does not match private key", path)
		}
	}

	id := cf.AccountID
	if id == "" {
		id = accountID
	}
	return &KeyPair{AccountID: id, PublicKey: pub, PrivateKey: priv}, nil
}

func decodeKey(s string) ([]byte, error) {
	if !strings.HasPrefix(s, ed25519Prefix) {
		return nil, fmt.Errorf("unsupported key type in %q", truncate(s, 12))
	}
	raw, err := base58.Decode(strings.TrimPrefix(s, ed25519Prefix))
	if err != nil {
		return nil, fmt.Errorf("invalid base58 key: %w", err)
	}
	return raw, nil
}

// ParsePrivateKey accepts "ed25519:<base58>" holding either the 64-byte
// expanded key or the 32-byte seed.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := decodeKey(s)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	}
	return nil, fmt.Errorf("private key has %d bytes", len(raw))
}

func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := decodeKey(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
