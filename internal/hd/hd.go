// Package hd implements the hierarchical-deterministic secret manager
// (spec §4.1): pure, stateless-after-construction derivation of every
// shield secret from one master seed along a two-part path "op/i".
package hd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lasergun-protocol/sdk-sub000/internal/cryptoutil"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// Operation is one of the four HD path namespaces spec §3/§4.1 define.
type Operation string

const (
	OpShield      Operation = "shield"
	OpRemainder   Operation = "remainder"
	OpReceived    Operation = "received"
	OpConsolidate Operation = "consolidate"
)

// MaxIndex is the inclusive upper bound on a path index (spec §4.1).
const MaxIndex = 10000

var validOperations = map[Operation]bool{
	OpShield:      true,
	OpRemainder:   true,
	OpReceived:    true,
	OpConsolidate: true,
}

// Derived is one derivation result: the secret plus the coordinates that
// produced it.
type Derived struct {
	Secret [32]byte
	Index  int
	Path   string
}

// Manager derives shield secrets deterministically from a wallet's crypto
// key record. It holds no mutable state after construction.
type Manager struct {
	masterSeed [32]byte
	wallet     common.Address
}

// New constructs a Manager. Construction fails if privateKeyHex is not a
// 32-byte hex string, walletHex is not a 20-byte hex address, or chainID
// is non-positive (spec §4.1).
func New(privateKeyHex, walletHex string, chainID int64) (*Manager, error) {
	if chainID <= 0 {
		return nil, walleterrors.New(walleterrors.CategoryInvalidConfig, "hd.New",
			fmt.Errorf("chain id must be positive, got %d", chainID))
	}
	privKey, err := cryptoutil.ParsePrivateKeyHex(privateKeyHex)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryInvalidConfig, "hd.New", err)
	}
	wallet, err := cryptoutil.ParseAddressHex(walletHex)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryInvalidConfig, "hd.New", err)
	}

	seed := cryptoutil.MasterSeed(privKey, wallet, chainID)
	return &Manager{masterSeed: seed, wallet: wallet}, nil
}

// NewFromSeed builds a Manager directly from an already-reconstituted
// master seed, used by tests and by callers that cache the seed across
// Manager instances within one process.
func NewFromSeed(masterSeed [32]byte, wallet common.Address) *Manager {
	return &Manager{masterSeed: masterSeed, wallet: wallet}
}

// Wallet returns the address this Manager derives secrets for.
func (m *Manager) Wallet() common.Address { return m.wallet }

// Derive returns the 32-byte secret at path "op/i":
// keccak256(master_seed ‖ utf8("op/i")).
func (m *Manager) Derive(op Operation, index int) ([32]byte, error) {
	if err := validate(op, index); err != nil {
		return [32]byte{}, err
	}
	return m.deriveUnchecked(op, index), nil
}

func (m *Manager) deriveUnchecked(op Operation, index int) [32]byte {
	path := formatPath(op, index)
	buf := make([]byte, 0, 32+len(path))
	buf = append(buf, m.masterSeed[:]...)
	buf = append(buf, []byte(path)...)
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

// RecoverByPath parses "op/i" and delegates to Derive.
func (m *Manager) RecoverByPath(path string) ([32]byte, error) {
	op, index, err := ParsePath(path)
	if err != nil {
		return [32]byte{}, err
	}
	return m.Derive(op, index)
}

// Sequence yields an ordered lazy sequence of (secret, index, path) for a
// given operation and count, starting at index 0. It uses Go's
// range-over-func iterator shape rather than a channel: the teacher's
// codebase has no channel-based iterator anywhere, favoring plain
// synchronous helpers.
func (m *Manager) Sequence(op Operation, count int) func(yield func(Derived) bool) {
	return func(yield func(Derived) bool) {
		for i := 0; i < count; i++ {
			if i > MaxIndex {
				return
			}
			secret := m.deriveUnchecked(op, i)
			d := Derived{Secret: secret, Index: i, Path: formatPath(op, i)}
			if !yield(d) {
				return
			}
		}
	}
}

func validate(op Operation, index int) error {
	if !validOperations[op] {
		return walleterrors.New(walleterrors.CategoryHDDerivation, "hd.Derive",
			fmt.Errorf("unknown operation %q", op))
	}
	if index < 0 || index > MaxIndex {
		return walleterrors.New(walleterrors.CategoryHDDerivation, "hd.Derive",
			fmt.Errorf("index %d out of range [0, %d]", index, MaxIndex))
	}
	return nil
}

// formatPath serializes exactly as "{op}/{i}" with no padding — the string
// form is part of the hash, so this must never change (spec §4.1).
func formatPath(op Operation, index int) string {
	return fmt.Sprintf("%s/%d", op, index)
}

// PathString exposes formatPath for callers (operations, recovery) that
// need to stamp a shield/transaction record with its derivation path
// without re-deriving the secret.
func PathString(op Operation, index int) string {
	return formatPath(op, index)
}

// ParsePath parses "op/i" into its components, failing on anything
// malformed (spec §4.1).
func ParsePath(path string) (Operation, int, error) {
	slash := -1
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			slash = i
			break
		}
	}
	if slash <= 0 || slash == len(path)-1 {
		return "", 0, walleterrors.New(walleterrors.CategoryHDDerivation, "hd.ParsePath",
			fmt.Errorf("malformed path %q", path))
	}
	op := Operation(path[:slash])
	if !validOperations[op] {
		return "", 0, walleterrors.New(walleterrors.CategoryHDDerivation, "hd.ParsePath",
			fmt.Errorf("unknown operation in path %q", path))
	}
	var index int
	if _, err := fmt.Sscanf(path[slash+1:], "%d", &index); err != nil {
		return "", 0, walleterrors.New(walleterrors.CategoryHDDerivation, "hd.ParsePath",
			fmt.Errorf("malformed index in path %q", path))
	}
	// Reject non-canonical serializations (leading zeros, signs, etc.)
	if formatPath(op, index) != path {
		return "", 0, walleterrors.New(walleterrors.CategoryHDDerivation, "hd.ParsePath",
			fmt.Errorf("non-canonical path %q", path))
	}
	if index < 0 || index > MaxIndex {
		return "", 0, walleterrors.New(walleterrors.CategoryHDDerivation, "hd.ParsePath",
			fmt.Errorf("index %d out of range [0, %d]", index, MaxIndex))
	}
	return op, index, nil
}
