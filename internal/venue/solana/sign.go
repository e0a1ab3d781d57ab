package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// signTransaction decodes a base64 serialized transaction, signs its message
// with key, places the signature in the fee payer's slot, and re-encodes it.
// Jupiter swap transactions carry exactly one required signature, the user's,
// so only the single-signer layout is handled.
func signTransaction(txBase64 string, key ed25519.PrivateKey) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty transaction")
	}

	// Leading compact-u16 signature count; counts below 128 fit one byte.
	numSigs := int(raw[0])
	if numSigs < 1 || numSigs > 127 {
		return "", fmt.Errorf("unsupported signature count %d", numSigs)
	}
	msgStart := 1 + numSigs*ed25519.SignatureSize
	if len(raw) <= msgStart {
		return "", fmt.Errorf("transaction shorter than its signature table")
	}

	sig := ed25519.Sign(key, raw[msgStart:])
	copy(raw[1:1+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}
