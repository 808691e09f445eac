package operations

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/hd"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// Shield locks amount of token into a new commitment (spec §4.3).
func (m *Manager) Shield(ctx context.Context, amount *big.Int, tokenAddr common.Address) Result {
	const op = "operations.Shield"

	if amount == nil || amount.Sign() <= 0 {
		return failure(op, wrapf(walleterrors.CategoryInvalidAmount, op, "amount must be positive"))
	}

	wallet := m.hdMgr.Wallet()

	balance, err := m.tokenMgr.BalanceOf(ctx, tokenAddr, wallet)
	if err != nil {
		return failure(op, err)
	}
	if balance.Cmp(amount) < 0 {
		return failure(op, wrapf(walleterrors.CategoryInsufficientBalance, op, "token balance %s < requested %s", balance, amount))
	}

	if err := m.tokenMgr.EnsureAllowance(ctx, tokenAddr, wallet, m.contract.ContractAddress(), amount); err != nil {
		return failure(op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	counts, err := m.loadCounts(ctx)
	if err != nil {
		return failure(op, err)
	}

	index := counts.Shield
	secret, err := m.hdMgr.Derive(hd.OpShield, index)
	if err != nil {
		return failure(op, err)
	}
	commitment := commitmentOf(secret, wallet)

	receipt, err := m.contract.Shield(ctx, amount, tokenAddr, commitment)
	if err != nil {
		return failure(op, err)
	}

	feePercent, err := m.contract.ShieldFeePercent(ctx)
	if err != nil {
		return failure(op, err)
	}
	denom, err := m.contract.FeeDenominator(ctx)
	if err != nil {
		return failure(op, err)
	}
	fee := new(big.Int).Div(new(big.Int).Mul(amount, feePercent), denom)
	net := new(big.Int).Sub(amount, fee)

	idx := index
	shield := model.Shield{
		Secret:         hexSecret(secret),
		Commitment:     hexHash(commitment),
		Token:          tokenAddr.Hex(),
		Amount:         net,
		Timestamp:      timestamp(),
		DerivationPath: hd.PathString(hd.OpShield, index),
		HDIndex:        &idx,
		HDOperation:    string(model.HDOpShield),
		TxHash:         receipt.TxHash.Hex(),
		BlockNumber:    receipt.BlockNumber,
	}
	if err := m.store.SaveShield(ctx, m.wc, shield); err != nil {
		return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
	}

	tx := model.Transaction{
		Nonce:          uint64(index),
		Type:           model.TxShield,
		TxHash:         receipt.TxHash.Hex(),
		BlockNumber:    receipt.BlockNumber,
		Timestamp:      shield.Timestamp,
		Token:          tokenAddr.Hex(),
		Amount:         net,
		Commitment:     shield.Commitment,
		Fee:            fee,
		DerivationPath: shield.DerivationPath,
		HDIndex:        &idx,
		HDOperation:    string(model.HDOpShield),
	}
	if err := m.store.SaveTransaction(ctx, m.wc, tx); err != nil {
		return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
	}

	counts.Shield++
	if err := m.saveAll(ctx, counts, receipt, tx); err != nil {
		return failure(op, err)
	}

	return Result{Success: true, Shield: &shield, Transaction: &tx}
}
