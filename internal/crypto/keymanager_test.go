package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyHex(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return hex.EncodeToString(priv)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keyHex := testKeyHex(t)

	blob, err := EncryptKey(keyHex, "correct horse")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, keyHex, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex(t), "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptRejectsBadKeys(t *testing.T) {
	_, err := EncryptKey("not hex", "pw")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw") // 2 bytes
	assert.Error(t, err)

	_, err = EncryptKey(testKeyHex(t), "")
	assert.Error(t, err)
}

func TestEncryptAccepts32ByteSeed(t *testing.T) {
	seed := hex.EncodeToString(make([]byte, 32))

	blob, err := EncryptKey(seed, "pw")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, seed, got)
}

func TestLoadKeyRawTakesPrecedence(t *testing.T) {
	keyHex := testKeyHex(t)

	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + keyHex, EncryptedKeyPath: "/nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, keyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	keyHex := testKeyHex(t)
	blob, err := EncryptKey(keyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, keyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}
