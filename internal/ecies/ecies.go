// Package ecies implements the ECIES secret-delivery envelope (spec §4.2,
// §6): a sender encrypts a 32-byte shield secret under the recipient's
// registered secp256k1 public key, and only the holder of the matching
// private key can recover it.
//
// Built directly on go-ethereum's own secp256k1 curve (crypto.S256) rather
// than a second, independent secp256k1 library, so every key in this SDK
// — HD-derived secrets, contract-signing keys, and ECIES keys — is the same
// *ecdsa.PrivateKey representation throughout (see DESIGN.md).
package ecies

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// Envelope is the wire format from spec §6:
//
//	"0x" || hex(utf8(json({iv, ephemPublicKey, ciphertext, mac})))
//
// Each field below is itself lower-case hex with no 0x prefix.
type Envelope struct {
	IV             string `json:"iv"`
	EphemPublicKey string `json:"ephemPublicKey"`
	Ciphertext     string `json:"ciphertext"`
	MAC            string `json:"mac"`
}

const ivSize = 16

// Encrypt encrypts a 32-byte secret for the recipient's uncompressed
// public key (hex, with or without 0x prefix) and returns the "0x"-prefixed
// hex-encoded JSON envelope described in spec §6.
func Encrypt(secret [32]byte, recipientPubKeyHex string) (string, error) {
	pub, err := parsePublicKeyHex(recipientPubKeyHex)
	if err != nil {
		return "", walleterrors.New(walleterrors.CategoryCrypto, "ecies.Encrypt", err)
	}

	ephemKey, err := crypto.GenerateKey()
	if err != nil {
		return "", walleterrors.New(walleterrors.CategoryCrypto, "ecies.Encrypt", err)
	}

	sharedX, _ := crypto.S256().ScalarMult(pub.X, pub.Y, ephemKey.D.Bytes())
	encKey, macKey := deriveKeys(sharedX.Bytes())

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", walleterrors.New(walleterrors.CategoryCrypto, "ecies.Encrypt", err)
	}

	ciphertext, err := ctrCrypt(encKey, iv, secret[:])
	if err != nil {
		return "", walleterrors.New(walleterrors.CategoryCrypto, "ecies.Encrypt", err)
	}

	mac := computeMAC(macKey, iv, ciphertext)

	env := Envelope{
		IV:             hex.EncodeToString(iv),
		EphemPublicKey: hex.EncodeToString(crypto.FromECDSAPub(&ephemKey.PublicKey)),
		Ciphertext:     hex.EncodeToString(ciphertext),
		MAC:            hex.EncodeToString(mac),
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return "", walleterrors.New(walleterrors.CategoryCrypto, "ecies.Encrypt", err)
	}

	return "0x" + hex.EncodeToString(payload), nil
}

// Decrypt attempts to recover the secret from an ECIES envelope hex string
// using privateKey. It returns (secret, true) on success. Any failure —
// malformed envelope, wrong key, MAC mismatch — collapses to (zero, false);
// the caller cannot distinguish "not for me" from "corrupt" by design
// (spec §4.2).
func Decrypt(envelopeHex string, privateKey [32]byte) ([32]byte, bool) {
	var zero [32]byte

	raw, ok := decodeEnvelopeHex(envelopeHex)
	if !ok {
		return zero, false
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, false
	}

	iv, err1 := hex.DecodeString(env.IV)
	ephemPubBytes, err2 := hex.DecodeString(env.EphemPublicKey)
	ciphertext, err3 := hex.DecodeString(env.Ciphertext)
	mac, err4 := hex.DecodeString(env.MAC)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || len(iv) != ivSize {
		return zero, false
	}

	ephemPub, err := crypto.UnmarshalPubkey(ephemPubBytes)
	if err != nil {
		return zero, false
	}

	key, err := crypto.ToECDSA(privateKey[:])
	if err != nil {
		return zero, false
	}

	sharedX, _ := crypto.S256().ScalarMult(ephemPub.X, ephemPub.Y, key.D.Bytes())
	encKey, macKey := deriveKeys(sharedX.Bytes())

	expectedMAC := computeMAC(macKey, iv, ciphertext)
	if !hmac.Equal(expectedMAC, mac) {
		return zero, false
	}

	plaintext, err := ctrCrypt(encKey, iv, ciphertext)
	if err != nil || len(plaintext) != 32 {
		return zero, false
	}

	var secret [32]byte
	copy(secret[:], plaintext)
	return secret, true
}

func decodeEnvelopeHex(envelopeHex string) ([]byte, bool) {
	s := envelopeHex
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func parsePublicKeyHex(pubKeyHex string) (*ecdsa.PublicKey, error) {
	s := pubKeyHex
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("ecies: invalid public key hex: %w", err)
	}
	pub, err := crypto.UnmarshalPubkey(b)
	if err != nil {
		return nil, fmt.Errorf("ecies: invalid public key: %w", err)
	}
	return pub, nil
}

// deriveKeys hashes sharedX twice with keccak256 under distinct domain
// tags ("lasergun-ecies-enc", "lasergun-ecies-mac"), giving a 32-byte
// AES-256 key and a 32-byte HMAC key, keeping the SDK on a single hash
// primitive (Keccak256) end to end.
func deriveKeys(sharedX []byte) (encKey, macKey []byte) {
	enc := crypto.Keccak256(append([]byte("lasergun-ecies-enc"), sharedX...))
	mac := crypto.Keccak256(append([]byte("lasergun-ecies-mac"), sharedX...))
	return enc, mac
}

func computeMAC(macKey, iv, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, macKey)
	h.Write(iv)
	h.Write(ciphertext)
	return h.Sum(nil)
}

func ctrCrypt(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(out, in)
	return out, nil
}
