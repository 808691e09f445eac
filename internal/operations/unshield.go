package operations

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/hd"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// zeroCommitment is the sentinel passed to the contract's unshield method
// when no remainder is created (spec §4.3).
var zeroCommitment [32]byte

// Unshield redeems amount from the shield at secret back to recipient's
// public balance, creating a remainder shield for any leftover (spec
// §4.3).
func (m *Manager) Unshield(ctx context.Context, secret [32]byte, amount *big.Int, recipient common.Address) Result {
	const op = "operations.Unshield"

	if amount == nil || amount.Sign() <= 0 {
		return failure(op, wrapf(walleterrors.CategoryInvalidAmount, op, "amount must be positive"))
	}

	wallet := m.hdMgr.Wallet()
	commitment := commitmentOf(secret, wallet)

	info, err := m.contract.GetShieldInfo(ctx, commitment)
	if err != nil {
		return failure(op, err)
	}
	if !info.Exists || info.Spent {
		return failure(op, wrapf(walleterrors.CategoryShieldNotFound, op, "shield %x does not exist or is already spent", commitment))
	}
	if amount.Cmp(info.Amount) > 0 {
		return failure(op, wrapf(walleterrors.CategoryInsufficientBalance, op, "requested %s exceeds shield amount %s", amount, info.Amount))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	counts, err := m.loadCounts(ctx)
	if err != nil {
		return failure(op, err)
	}

	remainderAmount := new(big.Int).Sub(info.Amount, amount)
	createsRemainder := remainderAmount.Sign() > 0

	var remainderIndex int
	var remainderSecret [32]byte
	var remainderCommitment [32]byte
	newCommitmentArg := zeroCommitment
	if createsRemainder {
		remainderIndex = counts.Remainder
		var derr error
		remainderSecret, derr = m.hdMgr.Derive(hd.OpRemainder, remainderIndex)
		if derr != nil {
			return failure(op, derr)
		}
		remainderCommitment = commitmentOf(remainderSecret, wallet)
		newCommitmentArg = remainderCommitment
	}

	receipt, err := m.contract.Unshield(ctx, secret, amount, recipient, newCommitmentArg)
	if err != nil {
		return failure(op, err)
	}

	ts := timestamp()
	unshieldIndex := counts.Unshield
	unshieldTx := model.Transaction{
		Nonce:       uint64(unshieldIndex),
		Type:        model.TxUnshield,
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber,
		Timestamp:   ts,
		Token:       info.Token.Hex(),
		Amount:      amount,
		Commitment:  hexHash(commitment),
		From:        wallet.Hex(),
		To:          recipient.Hex(),
	}
	if err := m.store.SaveTransaction(ctx, m.wc, unshieldTx); err != nil {
		return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
	}
	counts.Unshield++

	// The spent commitment no longer exists as an unshieldable balance;
	// drop it to keep "stored iff unspent and on-chain" holding locally
	// too (spec §3), matching recovery's dispatchUnshielded.
	if err := m.store.DeleteShield(ctx, m.wc, hexHash(commitment)); err != nil {
		return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
	}

	result := Result{Success: true, Transaction: &unshieldTx}

	if createsRemainder {
		// Spec §9: trust the contract's recorded amount for the remainder,
		// not local fee arithmetic.
		remInfo, rerr := m.contract.GetShieldInfo(ctx, remainderCommitment)
		if rerr != nil {
			return failure(op, rerr)
		}
		remShield := model.Shield{
			Secret:         hexSecret(remainderSecret),
			Commitment:     hexHash(remainderCommitment),
			Token:          remInfo.Token.Hex(),
			Amount:         remInfo.Amount,
			Timestamp:      ts,
			DerivationPath: hd.PathString(hd.OpRemainder, remainderIndex),
			HDIndex:        &remainderIndex,
			HDOperation:    string(model.HDOpRemainder),
			TxHash:         receipt.TxHash.Hex(),
			BlockNumber:    receipt.BlockNumber,
		}
		if err := m.store.SaveShield(ctx, m.wc, remShield); err != nil {
			return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
		}
		remTx := model.Transaction{
			Nonce:          uint64(remainderIndex),
			Type:           model.TxRemainder,
			TxHash:         receipt.TxHash.Hex(),
			BlockNumber:    receipt.BlockNumber,
			Timestamp:      ts,
			Token:          remInfo.Token.Hex(),
			Amount:         remInfo.Amount,
			Commitment:     remShield.Commitment,
			DerivationPath: remShield.DerivationPath,
			HDIndex:        &remainderIndex,
			HDOperation:    string(model.HDOpRemainder),
		}
		if err := m.store.SaveTransaction(ctx, m.wc, remTx); err != nil {
			return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
		}
		counts.Remainder++
		result.Shield = &remShield
	}

	if err := m.saveAll(ctx, counts, receipt, unshieldTx); err != nil {
		return failure(op, err)
	}
	return result
}
