package operations

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/hd"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// Consolidate merges 1..10 shields on the same token into a single new
// shield (spec §4.3).
func (m *Manager) Consolidate(ctx context.Context, secrets [][32]byte, token common.Address) Result {
	const op = "operations.Consolidate"

	if len(secrets) == 0 || len(secrets) > 10 {
		return failure(op, wrapf(walleterrors.CategoryValidation, op, "consolidate accepts 1..10 secrets, got %d", len(secrets)))
	}

	total := new(big.Int)
	for _, s := range secrets {
		bal, err := m.contract.GetShieldBalance(ctx, s, token)
		if err != nil {
			return failure(op, err)
		}
		if bal.Sign() <= 0 {
			return failure(op, wrapf(walleterrors.CategoryInsufficientBalance, op, "secret has zero shield balance"))
		}
		total = total.Add(total, bal)
	}

	wallet := m.hdMgr.Wallet()

	m.mu.Lock()
	defer m.mu.Unlock()

	counts, err := m.loadCounts(ctx)
	if err != nil {
		return failure(op, err)
	}

	index := counts.Consolidate
	newSecret, err := m.hdMgr.Derive(hd.OpConsolidate, index)
	if err != nil {
		return failure(op, err)
	}
	newCommitment := commitmentOf(newSecret, wallet)

	receipt, err := m.contract.Consolidate(ctx, secrets, newCommitment)
	if err != nil {
		return failure(op, err)
	}

	ts := timestamp()
	idx := index
	shield := model.Shield{
		Secret:         hexSecret(newSecret),
		Commitment:     hexHash(newCommitment),
		Token:          token.Hex(),
		Amount:         total,
		Timestamp:      ts,
		DerivationPath: hd.PathString(hd.OpConsolidate, index),
		HDIndex:        &idx,
		HDOperation:    string(model.HDOpConsolidate),
		TxHash:         receipt.TxHash.Hex(),
		BlockNumber:    receipt.BlockNumber,
	}
	if err := m.store.SaveShield(ctx, m.wc, shield); err != nil {
		return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
	}

	tx := model.Transaction{
		Nonce:          uint64(index),
		Type:           model.TxConsolidate,
		TxHash:         receipt.TxHash.Hex(),
		BlockNumber:    receipt.BlockNumber,
		Timestamp:      ts,
		Token:          token.Hex(),
		Amount:         total,
		Commitment:     shield.Commitment,
		DerivationPath: shield.DerivationPath,
		HDIndex:        &idx,
		HDOperation:    string(model.HDOpConsolidate),
	}
	if err := m.store.SaveTransaction(ctx, m.wc, tx); err != nil {
		return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
	}

	counts.Consolidate++

	// Every input secret's shield is now fully spent into the merged
	// shield; drop them so storage keeps matching "stored iff unspent and
	// on-chain" (spec §3).
	for _, s := range secrets {
		oldCommitment := commitmentOf(s, wallet)
		if err := m.store.DeleteShield(ctx, m.wc, hexHash(oldCommitment)); err != nil {
			return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
		}
	}

	if err := m.saveAll(ctx, counts, receipt, tx); err != nil {
		return failure(op, err)
	}
	return Result{Success: true, Shield: &shield, Transaction: &tx}
}
