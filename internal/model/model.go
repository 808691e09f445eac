// Package model defines the entities persisted by the storage adapter
// (spec §3): wallet context, crypto keys, shields, transactions, event
// counts, and the scan cursor.
package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Context identifies the wallet every persisted entity lives under:
// (chain_id, wallet_address_lowercased) per spec §3.
type Context struct {
	ChainID int64
	Wallet  common.Address
}

// Key returns the canonical "{chain}_{wallet_lower}" storage key prefix
// (spec §6).
func (c Context) Key() string {
	return fmt.Sprintf("%d_%s", c.ChainID, strings.ToLower(c.Wallet.Hex()))
}

// CryptoKeys is the one-per-context key record (spec §3). Written once,
// read-only thereafter.
type CryptoKeys struct {
	PrivateKeyHex string `json:"private_key"`
	PublicKeyHex  string `json:"public_key"`
	KeyNonce      int64  `json:"key_nonce"`
	// CreatedAtBlock is the chain head observed at key-derivation time,
	// purely for diagnostics surfaced by the Recovery Manager's Stats();
	// never consulted for any invariant (SPEC_FULL.md §3 additions).
	CreatedAtBlock uint64 `json:"created_at_block"`
}

// HDOperation is one of the four HD path namespaces a shield or
// transaction can be tagged with.
type HDOperation string

const (
	HDOpShield      HDOperation = "shield"
	HDOpRemainder   HDOperation = "remainder"
	HDOpReceived    HDOperation = "received"
	HDOpConsolidate HDOperation = "consolidate"
)

// Shield is a single on-chain commitment the wallet holds (spec §3).
type Shield struct {
	Secret         string   `json:"secret"`     // hex
	Commitment     string   `json:"commitment"` // hex, storage key within a context
	Token          string   `json:"token"`      // hex address
	Amount         *big.Int `json:"amount"`
	Timestamp      int64    `json:"timestamp"`
	DerivationPath string   `json:"derivation_path,omitempty"`
	HDIndex        *int     `json:"hd_index,omitempty"`
	HDOperation    string   `json:"hd_operation,omitempty"`
	TxHash         string   `json:"tx_hash,omitempty"`
	BlockNumber    uint64   `json:"block_number,omitempty"`
}

// TxType is one of the six transaction kinds spec §3 defines.
type TxType string

const (
	TxShield      TxType = "shield"
	TxUnshield    TxType = "unshield"
	TxTransfer    TxType = "transfer"
	TxReceived    TxType = "received"
	TxRemainder   TxType = "remainder"
	TxConsolidate TxType = "consolidate"
)

// Transaction is a single recorded operation, keyed by nonce within a
// context and type (spec §3, §4.3's nonce-discipline note).
type Transaction struct {
	Nonce          uint64   `json:"nonce"`
	Type           TxType   `json:"type"`
	TxHash         string   `json:"tx_hash"`
	BlockNumber    uint64   `json:"block_number"`
	Timestamp      int64    `json:"timestamp"`
	Token          string   `json:"token"`
	Amount         *big.Int `json:"amount"`
	Commitment     string   `json:"commitment,omitempty"`
	From           string   `json:"from,omitempty"`
	To             string   `json:"to,omitempty"`
	Fee            *big.Int `json:"fee,omitempty"`
	DerivationPath string   `json:"derivation_path,omitempty"`
	HDIndex        *int     `json:"hd_index,omitempty"`
	HDOperation    string   `json:"hd_operation,omitempty"`
}

// EventCounts is the one-per-context set of HD-index watermarks (spec §3).
type EventCounts struct {
	Shield           int    `json:"shield"`
	Remainder        int    `json:"remainder"`
	Received         int    `json:"received"`
	Consolidate      int    `json:"consolidate"`
	Unshield         int    `json:"unshield"`
	Transfer         int    `json:"transfer"`
	LastUpdatedBlock uint64 `json:"last_updated_block"`
}

// IndexFor returns the current watermark for op, used both as "next index
// to allocate" and as "count of indices already assigned".
func (c *EventCounts) IndexFor(op HDOperation) int {
	switch op {
	case HDOpShield:
		return c.Shield
	case HDOpRemainder:
		return c.Remainder
	case HDOpReceived:
		return c.Received
	case HDOpConsolidate:
		return c.Consolidate
	default:
		return 0
	}
}

// Bump increments the watermark for op by one.
func (c *EventCounts) Bump(op HDOperation) {
	switch op {
	case HDOpShield:
		c.Shield++
	case HDOpRemainder:
		c.Remainder++
	case HDOpReceived:
		c.Received++
	case HDOpConsolidate:
		c.Consolidate++
	}
}
