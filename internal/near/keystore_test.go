package near

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() ed25519.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return ed25519.NewKeyFromSeed(seed)
}

func writeCredential(t *testing.T, dir, network, account string, body map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, network), 0o700))
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(CredentialPath(dir, network, account), raw, 0o600))
}

func TestLoadKey(t *testing.T) {
	dir := t.TempDir()
	priv := testKey()
	pub := priv.Public().(ed25519.PublicKey)
	writeCredential(t, dir, "testnet", "alice.testnet", map[string]string{
		"account_id":  "alice.testnet",
		"public_key":  "ed25519:" + base58.Encode(pub),
		"private_key": "ed25519:" + base58.Encode(priv),
	})

	kp, err := LoadKey(dir, "testnet", "alice.testnet")
	require.NoError(t, err)
	assert.Equal(t, "alice.testnet", kp.AccountID)
	assert.Equal(t, pub, kp.PublicKey)
	assert.Equal(t, "ed25519:"+base58.Encode(pub), kp.PublicKeyString())
}

func TestLoadKeyLegacySecretAndSeed(t *testing.T) {
	dir := t.TempDir()
	priv := testKey()
	writeCredential(t, dir, "testnet", "bob.testnet", map[string]string{
		"secret_key": "ed25519:" + base58.Encode(priv.Seed()),
	})

	kp, err := LoadKey(dir, "testnet", "bob.testnet")
	require.NoError(t, err)
	assert.Equal(t, "bob.testnet", kp.AccountID)
	assert.Equal(t, priv, kp.PrivateKey)
}

func TestLoadKeyErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadKey(dir, "testnet", "nobody.testnet")
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	other := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	writeCredential(t, dir, "testnet", "mismatch.testnet", map[string]string{
		"public_key":  "ed25519:" + base58.Encode(other.Public().(ed25519.PublicKey)),
		"private_key": "ed25519:" + base58.Encode(testKey()),
	})
	_, err = LoadKey(dir, "testnet", "mismatch.testnet")
	assert.ErrorContains(t, err, "does not match")

	writeCredential(t, dir, "testnet", "secp.testnet", map[string]string{
		"private_key": "secp256k1:abc",
	})
	_, err = LoadKey(dir, "testnet", "secp.testnet")
	assert.ErrorContains(t, err, "unsupported key type")
}
