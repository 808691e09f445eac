// Package storage defines the persistence adapter boundary (spec §4.7)
// and a reference JSON-file-backed implementation, grounded on the
// teacher's inventory.go JSON-file persistence shape but generalized into
// a typed, per-kind key-value interface with an explicit boundary so any
// concrete backend can be substituted.
package storage

import (
	"context"

	"github.com/lasergun-protocol/sdk-sub000/internal/model"
)

// Adapter abstracts per-(chain, wallet) persistence of keys, shields,
// transactions, counts, and the scan cursor (spec §4.7). Every concrete
// backend must honor spec §3's invariants; errors bubble as a storage
// category error (see internal/walleterrors).
type Adapter interface {
	SaveKeys(ctx context.Context, wc model.Context, keys model.CryptoKeys) error
	LoadKeys(ctx context.Context, wc model.Context) (*model.CryptoKeys, error)

	SaveShield(ctx context.Context, wc model.Context, shield model.Shield) error
	LoadShield(ctx context.Context, wc model.Context, commitment string) (*model.Shield, error)
	ListShields(ctx context.Context, wc model.Context) ([]model.Shield, error)
	DeleteShield(ctx context.Context, wc model.Context, commitment string) error

	SaveTransaction(ctx context.Context, wc model.Context, tx model.Transaction) error
	LoadTransaction(ctx context.Context, wc model.Context, txType model.TxType, nonce uint64) (*model.Transaction, error)
	ListTransactions(ctx context.Context, wc model.Context) ([]model.Transaction, error)

	SaveCounts(ctx context.Context, wc model.Context, counts model.EventCounts) error
	LoadCounts(ctx context.Context, wc model.Context) (*model.EventCounts, error)

	SaveCursor(ctx context.Context, wc model.Context, block uint64) error
	LoadCursor(ctx context.Context, wc model.Context) (uint64, bool, error)

	// DeleteAll removes every record for the given wallet context.
	DeleteAll(ctx context.Context, wc model.Context) error
}
