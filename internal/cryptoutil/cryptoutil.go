// Package cryptoutil provides the raw keccak/ABI-packing primitives the
// rest of the SDK builds on: commitment hashing, hex/address validation,
// and the deterministic key-derivation signing message.
//
// The packing style here (manual byte concatenation, no abi.Arguments)
// mirrors the teacher's EIP-712 struct-hash helpers: the mixer contract
// packs bytes32‖address raw, with no length prefix, which is not what
// go-ethereum's generic ABI tuple encoder produces.
package cryptoutil

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

const hdMasterSuffix = "LASERGUN_HD_MASTER_V1"

// Commitment computes keccak256(secret ‖ owner), the contract's
// commitment identifier (spec §3, §4.2, §6).
func Commitment(secret [32]byte, owner common.Address) [32]byte {
	buf := make([]byte, 0, 32+common.AddressLength)
	buf = append(buf, secret[:]...)
	buf = append(buf, owner.Bytes()...)
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

// MasterSeed reconstitutes the HD master seed from the wallet's crypto key
// record: keccak256(private_key ‖ wallet ‖ chain_id ‖ "LASERGUN_HD_MASTER_V1")
// (spec §3, §6). chainID is packed as a left-padded 32-byte big-endian value,
// matching the contract's standard ABI packing of a uint256.
func MasterSeed(privateKey [32]byte, wallet common.Address, chainID int64) [32]byte {
	buf := make([]byte, 0, 32+common.AddressLength+32+len(hdMasterSuffix))
	buf = append(buf, privateKey[:]...)
	buf = append(buf, wallet.Bytes()...)
	buf = append(buf, padInt64To32(chainID)...)
	buf = append(buf, []byte(hdMasterSuffix)...)
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

func padInt64To32(n int64) []byte {
	out := make([]byte, 32)
	v := uint64(n)
	for i := 0; i < 8; i++ {
		out[31-i] = byte(v >> (8 * i))
	}
	return out
}

// ParsePrivateKeyHex validates and decodes a 32-byte hex-encoded private
// key (with or without 0x prefix). Construction-time validation per
// spec §4.1.
func ParsePrivateKeyHex(hexKey string) ([32]byte, error) {
	trimmed := strings.TrimPrefix(hexKey, "0x")
	b, err := hex.DecodeString(trimmed)
	if err != nil || len(b) != 32 {
		return [32]byte{}, walleterrors.New(walleterrors.CategoryCrypto, "cryptoutil.ParsePrivateKeyHex",
			fmt.Errorf("private key must be 32-byte hex, got %d bytes", len(b)))
	}
	var out [32]byte
	copy(out[:], b)
	return out, nil
}

// ParseAddressHex validates and decodes a 20-byte hex address.
func ParseAddressHex(hexAddr string) (common.Address, error) {
	trimmed := strings.TrimPrefix(hexAddr, "0x")
	b, err := hex.DecodeString(trimmed)
	if err != nil || len(b) != common.AddressLength {
		return common.Address{}, walleterrors.New(walleterrors.CategoryCrypto, "cryptoutil.ParseAddressHex",
			fmt.Errorf("wallet address must be 20-byte hex, got %d bytes", len(b)))
	}
	return common.BytesToAddress(b), nil
}

// IsValidPrivateKeyHex reports whether hexKey decodes to exactly 32 bytes.
func IsValidPrivateKeyHex(hexKey string) bool {
	_, err := ParsePrivateKeyHex(hexKey)
	return err == nil
}

// IsValidAddressHex reports whether hexAddr decodes to exactly 20 bytes.
func IsValidAddressHex(hexAddr string) bool {
	_, err := ParseAddressHex(hexAddr)
	return err == nil
}

// KeyDerivationMessage builds the canonical message a wallet signs to
// deterministically derive its SDK private key (spec §4.2, §6):
//
//	"\x19Ethereum Signed Message:\nLaserGun Key: \nChain: {cid}\nWallet: {addr}\nNonce: {n}"
func KeyDerivationMessage(chainID int64, wallet common.Address, nonce int64) string {
	return fmt.Sprintf(
		"\x19Ethereum Signed Message:\nLaserGun Key: \nChain: %d\nWallet: %s\nNonce: %d",
		chainID, strings.ToLower(wallet.Hex()), nonce,
	)
}

// DerivePrivateKeyFromSignature takes the raw signature bytes produced by
// signing KeyDerivationMessage and returns keccak256(signature) as the
// wallet's deterministic SDK private key.
func DerivePrivateKeyFromSignature(signature []byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(signature))
	return out
}

// UncompressedPublicKeyHex derives the uncompressed EC public key hex for
// a 32-byte private key.
func UncompressedPublicKeyHex(privateKey [32]byte) (string, error) {
	key, err := crypto.ToECDSA(privateKey[:])
	if err != nil {
		return "", walleterrors.New(walleterrors.CategoryCrypto, "cryptoutil.UncompressedPublicKeyHex", err)
	}
	return hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)), nil
}

// PadUint256 ABI-encodes an unsigned integer as a 32-byte big-endian value,
// mirroring the teacher's padUint256 helper (clob/eip712.go).
func PadUint256(v uint64) []byte {
	out := make([]byte, 32)
	for i := 0; i < 8; i++ {
		out[31-i] = byte(v >> (8 * i))
	}
	return out
}
