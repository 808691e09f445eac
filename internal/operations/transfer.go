package operations

import (
	"context"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/ecies"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// PrepareTransferTo re-binds ownSecret — the secret of the shield being
// spent — to recipient and encrypts it under the recipient's registered
// public key (spec §4.3: "the caller is responsible for producing
// recipient_commitment and encrypted_secret using the recipient's
// registered public key... a helper may compose these"). Owner binding
// (spec §3: "the same s yields different commitments for different
// owners") means the secret itself never changes across a transfer, only
// its commitment; the worked example at spec §8 scenario 3 delivers this
// same secret_s to the recipient unmodified.
func (m *Manager) PrepareTransferTo(ctx context.Context, ownSecret [32]byte, recipient common.Address) (recipientCommitment [32]byte, encryptedSecretHex string, err error) {
	const op = "operations.PrepareTransferTo"

	pubKeyBytes, perr := m.contract.PublicKeys(ctx, recipient)
	if perr != nil {
		return recipientCommitment, "", perr
	}
	if len(pubKeyBytes) == 0 {
		return recipientCommitment, "", walleterrors.New(walleterrors.CategoryValidation, op, errNoRecipientKey(recipient))
	}

	recipientCommitment = commitmentOf(ownSecret, recipient)

	envelope, eerr := ecies.Encrypt(ownSecret, hex.EncodeToString(pubKeyBytes))
	if eerr != nil {
		return recipientCommitment, "", eerr
	}
	return recipientCommitment, envelope, nil
}

func errNoRecipientKey(recipient common.Address) error {
	return wrapf(walleterrors.CategoryValidation, "operations.PrepareTransfer", "recipient %s has no registered public key", recipient.Hex())
}

// Transfer moves amount from the shield at secret to recipientCommitment,
// delivering the same secret to the recipient via the pre-computed
// encryptedSecret envelope (spec §4.3).
func (m *Manager) Transfer(ctx context.Context, secret [32]byte, amount *big.Int, recipientCommitment [32]byte, encryptedSecret []byte) Result {
	const op = "operations.Transfer"

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

	receipt, err := m.contract.Transfer(ctx, secret, amount, recipientCommitment, encryptedSecret)
	if err != nil {
		return failure(op, err)
	}

	index := counts.Transfer
	tx := model.Transaction{
		Nonce:       uint64(index),
		Type:        model.TxTransfer,
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber,
		Timestamp:   timestamp(),
		Token:       info.Token.Hex(),
		Amount:      amount,
		Commitment:  hexHash(commitment),
		From:        wallet.Hex(),
		To:          hexHash(recipientCommitment),
	}
	if err := m.store.SaveTransaction(ctx, m.wc, tx); err != nil {
		return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
	}
	counts.Transfer++

	// The contract's transfer method has no remainder slot (spec §6): the
	// whole shield moves to the recipient, so the sender's record is fully
	// spent and must be dropped (spec §3's "stored iff unspent" invariant).
	if err := m.store.DeleteShield(ctx, m.wc, hexHash(commitment)); err != nil {
		return failure(op, walleterrors.New(walleterrors.CategoryStorage, op, err))
	}

	if err := m.saveAll(ctx, counts, receipt, tx); err != nil {
		return failure(op, err)
	}
	return Result{Success: true, Transaction: &tx}
}
