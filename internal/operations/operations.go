// Package operations implements the three-phase (allocate → submit →
// record) pipelines for the four user-initiated operations spec §4.3
// defines: Shield, Unshield, Transfer, Consolidate. Each pipeline
// consults the HD manager for the next index, submits a contract call,
// then optimistically persists the resulting shield and transaction
// before bumping the watermark counts.
//
// Grounded on the teacher's executor.go (client call → inventory update →
// callback shape) and fsm.go (the Action-dispatch idiom, here repurposed
// as allocate/submit/record phase dispatch rather than state transitions).
package operations

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
	"github.com/lasergun-protocol/sdk-sub000/internal/cryptoutil"
	"github.com/lasergun-protocol/sdk-sub000/internal/hd"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/notify"
	"github.com/lasergun-protocol/sdk-sub000/internal/storage"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// Contract is the subset of *contractproxy.Proxy the four operation
// pipelines call, narrowed the same way internal/token's Caller narrows
// the proxy for the token package — so a fake can stand in for tests
// without bringing up a real chain.
type Contract interface {
	ContractAddress() common.Address
	GetShieldInfo(ctx context.Context, commitment [32]byte) (*contractproxy.ShieldInfo, error)
	GetShieldBalance(ctx context.Context, secret [32]byte, token common.Address) (*big.Int, error)
	PublicKeys(ctx context.Context, owner common.Address) ([]byte, error)
	ShieldFeePercent(ctx context.Context) (*big.Int, error)
	FeeDenominator(ctx context.Context) (*big.Int, error)
	Shield(ctx context.Context, amount *big.Int, token common.Address, commitment [32]byte) (*contractproxy.Receipt, error)
	Unshield(ctx context.Context, secret [32]byte, amount *big.Int, recipient common.Address, newCommitment [32]byte) (*contractproxy.Receipt, error)
	Transfer(ctx context.Context, secret [32]byte, amount *big.Int, recipientCommitment [32]byte, encryptedSecret []byte) (*contractproxy.Receipt, error)
	Consolidate(ctx context.Context, secrets [][32]byte, newCommitment [32]byte) (*contractproxy.Receipt, error)
}

// TokenManager is the subset of *token.Manager Shield calls, narrowed for
// the same testability reason as Contract: token.Manager itself talks to
// a live *ethclient.Client, which a fake Contract cannot stand in for.
type TokenManager interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	EnsureAllowance(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error
}

// Result is the unified success/failure envelope spec §7 requires: no
// error escapes a user-facing operation, it is carried here instead.
type Result struct {
	Success     bool
	Shield      *model.Shield
	Transaction *model.Transaction
	Error       *walleterrors.Error
}

func failure(op string, err error) Result {
	cat, ok := walleterrors.CategoryOf(err)
	if !ok {
		cat = walleterrors.CategoryContract
	}
	return Result{Success: false, Error: walleterrors.New(cat, op, err)}
}

// Manager runs the four operation pipelines against one wallet context.
// The mutex is held from HD-index allocation through count-persist
// (spec §5's nonce-allocation discipline): two concurrent operations
// must never both read the same counts watermark.
type Manager struct {
	hdMgr    *hd.Manager
	contract Contract
	tokenMgr TokenManager
	store    storage.Adapter
	wc       model.Context
	notifier *notify.Hub

	mu sync.Mutex
}

// New constructs an operations Manager. notifier may be nil if the
// caller does not want transaction/state callbacks (spec §9's observer
// pattern note).
func New(hdMgr *hd.Manager, contract Contract, tokenMgr TokenManager, store storage.Adapter, wc model.Context, notifier *notify.Hub) *Manager {
	return &Manager{
		hdMgr:    hdMgr,
		contract: contract,
		tokenMgr: tokenMgr,
		store:    store,
		wc:       wc,
		notifier: notifier,
	}
}

func (m *Manager) loadCounts(ctx context.Context) (*model.EventCounts, error) {
	counts, err := m.store.LoadCounts(ctx, m.wc)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = &model.EventCounts{}
	}
	return counts, nil
}

// saveAll persists the counts and fires the transaction callback; it is
// the final act of every successful operation (spec §5's ordering
// guarantee).
func (m *Manager) saveAll(ctx context.Context, counts *model.EventCounts, receipt *contractproxy.Receipt, tx model.Transaction) error {
	counts.LastUpdatedBlock = receipt.BlockNumber
	if err := m.store.SaveCounts(ctx, m.wc, *counts); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "operations.saveAll", err)
	}
	if m.notifier != nil {
		m.notifier.Transaction(tx)
	}
	return nil
}

func timestamp() int64 { return time.Now().Unix() }

func commitmentOf(secret [32]byte, owner common.Address) [32]byte {
	return cryptoutil.Commitment(secret, owner)
}

func hexSecret(secret [32]byte) string { return "0x" + hex.EncodeToString(secret[:]) }
func hexHash(h [32]byte) string        { return "0x" + hex.EncodeToString(h[:]) }

func wrapf(cat walleterrors.Category, op, format string, args ...interface{}) error {
	return walleterrors.New(cat, op, fmt.Errorf(format, args...))
}
