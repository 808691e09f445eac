package recovery

import (
	"context"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
	"github.com/lasergun-protocol/sdk-sub000/internal/cryptoutil"
	"github.com/lasergun-protocol/sdk-sub000/internal/ecies"
	"github.com/lasergun-protocol/sdk-sub000/internal/hd"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// dispatch routes one ordered event to its handler (spec §4.5 step 2's
// per-event dispatch).
func (r *Runner) dispatch(ctx context.Context, ev taggedEvent, counts *model.EventCounts, txHasSecretDelivered map[common.Hash]bool, scheduled *[]model.Transaction) error {
	switch ev.kind {
	case kindShielded:
		return r.dispatchShielded(ctx, ev.shielded, counts, scheduled)
	case kindSecretDelivered:
		return r.dispatchSecretDelivered(ctx, ev.delivered, counts, scheduled)
	case kindUnshielded:
		return r.dispatchUnshielded(ctx, ev.unshielded, counts, txHasSecretDelivered, scheduled)
	case kindConsolidated:
		return r.dispatchConsolidated(ctx, ev.consolidate, counts, scheduled)
	default:
		return nil
	}
}

// dispatchShielded claims a Shielded event if its commitment matches the
// next expected shield/s derivation (spec §4.5: "Shielded event").
func (r *Runner) dispatchShielded(ctx context.Context, ev contractproxy.ShieldedEvent, counts *model.EventCounts, scheduled *[]model.Transaction) error {
	index := counts.Shield
	secret, err := r.hdMgr.Derive(hd.OpShield, index)
	if err != nil {
		return err
	}
	expected := cryptoutil.Commitment(secret, r.wallet)
	if expected != ev.Commitment {
		return nil // not ours
	}

	commitmentHex := hexCommitment(expected)
	shield := model.Shield{
		Secret:         hexSecretOf(secret),
		Commitment:     commitmentHex,
		Token:          ev.Token.Hex(),
		Amount:         new(big.Int).Sub(ev.Amount, ev.Fee),
		Timestamp:      time.Now().Unix(),
		DerivationPath: hd.PathString(hd.OpShield, index),
		HDIndex:        &index,
		HDOperation:    string(model.HDOpShield),
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
	}
	if err := r.store.SaveShield(ctx, r.wc, shield); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "recovery.dispatchShielded", err)
	}

	*scheduled = append(*scheduled, model.Transaction{
		Nonce:          uint64(index),
		Type:           model.TxShield,
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
		Timestamp:      shield.Timestamp,
		Token:          ev.Token.Hex(),
		Amount:         shield.Amount,
		Commitment:     commitmentHex,
		Fee:            ev.Fee,
		DerivationPath: shield.DerivationPath,
		HDIndex:        &index,
		HDOperation:    string(model.HDOpShield),
	})
	counts.Shield++
	return nil
}

// dispatchSecretDelivered attempts to decrypt and claim an inbound
// transfer (spec §4.5: "SecretDelivered event").
func (r *Runner) dispatchSecretDelivered(ctx context.Context, ev contractproxy.SecretDeliveredEvent, counts *model.EventCounts, scheduled *[]model.Transaction) error {
	envelopeHex := "0x" + hex.EncodeToString(ev.EncryptedSecret)
	secret, ok := ecies.Decrypt(envelopeHex, r.privateKey)
	if !ok {
		return nil
	}

	commitment := cryptoutil.Commitment(secret, r.wallet)
	commitmentHex := hexCommitment(commitment)

	existing, err := r.store.LoadShield(ctx, r.wc, commitmentHex)
	if err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "recovery.dispatchSecretDelivered", err)
	}
	if existing != nil {
		return nil
	}

	info, err := r.contract.GetShieldInfo(ctx, commitment)
	if err != nil {
		return err
	}
	if !info.Exists || info.Spent {
		return nil
	}

	index := counts.Received
	shield := model.Shield{
		Secret:         hexSecretOf(secret),
		Commitment:     commitmentHex,
		Token:          info.Token.Hex(),
		Amount:         info.Amount,
		Timestamp:      time.Now().Unix(),
		DerivationPath: hd.PathString(hd.OpReceived, index),
		HDIndex:        &index,
		HDOperation:    string(model.HDOpReceived),
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
	}
	if err := r.store.SaveShield(ctx, r.wc, shield); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "recovery.dispatchSecretDelivered", err)
	}

	*scheduled = append(*scheduled, model.Transaction{
		Nonce:          uint64(index),
		Type:           model.TxReceived,
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
		Timestamp:      shield.Timestamp,
		Token:          info.Token.Hex(),
		Amount:         info.Amount,
		Commitment:     commitmentHex,
		DerivationPath: shield.DerivationPath,
		HDIndex:        &index,
		HDOperation:    string(model.HDOpReceived),
	})
	counts.Received++
	return nil
}

// dispatchUnshielded claims an Unshielded event spending a commitment
// this wallet holds, classifies it as transfer vs unshield by same-
// transaction SecretDelivered co-occurrence, and checks for a remainder
// (spec §4.5: "Unshielded event").
func (r *Runner) dispatchUnshielded(ctx context.Context, ev contractproxy.UnshieldedEvent, counts *model.EventCounts, txHasSecretDelivered map[common.Hash]bool, scheduled *[]model.Transaction) error {
	commitmentHex := hexCommitment(ev.Commitment)

	existing, err := r.store.LoadShield(ctx, r.wc, commitmentHex)
	if err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "recovery.dispatchUnshielded", err)
	}
	if existing == nil {
		return nil // not ours
	}

	// A transfer emits both Unshielded and SecretDelivered in the same
	// transaction; this heuristic is spec §9's documented brittleness —
	// if a future contract version splits these across transactions, it
	// breaks, but it matches the current contract exactly.
	isTransfer := txHasSecretDelivered[ev.TxHash]

	ts := time.Now().Unix()
	var index int
	var txType model.TxType
	if isTransfer {
		index = counts.Transfer
		txType = model.TxTransfer
	} else {
		index = counts.Unshield
		txType = model.TxUnshield
	}

	*scheduled = append(*scheduled, model.Transaction{
		Nonce:       uint64(index),
		Type:        txType,
		TxHash:      ev.TxHash.Hex(),
		BlockNumber: ev.BlockNumber,
		Timestamp:   ts,
		Token:       ev.Token.Hex(),
		Amount:      ev.Amount,
		Commitment:  commitmentHex,
		From:        r.wallet.Hex(),
		Fee:         ev.Fee,
	})
	if isTransfer {
		counts.Transfer++
	} else {
		counts.Unshield++
	}

	if err := r.store.DeleteShield(ctx, r.wc, commitmentHex); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "recovery.dispatchUnshielded", err)
	}

	// Test whether a remainder was created.
	remIndex := counts.Remainder
	remSecret, err := r.hdMgr.Derive(hd.OpRemainder, remIndex)
	if err != nil {
		return err
	}
	expectedRemainder := cryptoutil.Commitment(remSecret, r.wallet)
	remInfo, err := r.contract.GetShieldInfo(ctx, expectedRemainder)
	if err != nil {
		return err
	}
	if !remInfo.Exists || remInfo.Spent {
		return nil
	}

	remCommitmentHex := hexCommitment(expectedRemainder)
	remShield := model.Shield{
		Secret:         hexSecretOf(remSecret),
		Commitment:     remCommitmentHex,
		Token:          remInfo.Token.Hex(),
		Amount:         remInfo.Amount,
		Timestamp:      ts,
		DerivationPath: hd.PathString(hd.OpRemainder, remIndex),
		HDIndex:        &remIndex,
		HDOperation:    string(model.HDOpRemainder),
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
	}
	if err := r.store.SaveShield(ctx, r.wc, remShield); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "recovery.dispatchUnshielded", err)
	}
	*scheduled = append(*scheduled, model.Transaction{
		Nonce:          uint64(remIndex),
		Type:           model.TxRemainder,
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
		Timestamp:      ts,
		Token:          remInfo.Token.Hex(),
		Amount:         remInfo.Amount,
		Commitment:     remCommitmentHex,
		DerivationPath: remShield.DerivationPath,
		HDIndex:        &remIndex,
		HDOperation:    string(model.HDOpRemainder),
	})
	counts.Remainder++
	return nil
}

// dispatchConsolidated claims a ShieldConsolidated event if its
// indexed new commitment matches the next expected consolidate/c
// derivation — the only correlation possible, since the chain hashes
// the indexed oldCommitments array away (spec §4.5, §9).
func (r *Runner) dispatchConsolidated(ctx context.Context, ev contractproxy.ShieldConsolidatedEvent, counts *model.EventCounts, scheduled *[]model.Transaction) error {
	index := counts.Consolidate
	secret, err := r.hdMgr.Derive(hd.OpConsolidate, index)
	if err != nil {
		return err
	}
	expected := cryptoutil.Commitment(secret, r.wallet)
	if expected != ev.NewCommitment {
		return nil
	}

	info, err := r.contract.GetShieldInfo(ctx, expected)
	if err != nil {
		return err
	}
	if !info.Exists {
		return nil
	}

	commitmentHex := hexCommitment(expected)
	shield := model.Shield{
		Secret:         hexSecretOf(secret),
		Commitment:     commitmentHex,
		Token:          info.Token.Hex(),
		Amount:         info.Amount,
		Timestamp:      time.Now().Unix(),
		DerivationPath: hd.PathString(hd.OpConsolidate, index),
		HDIndex:        &index,
		HDOperation:    string(model.HDOpConsolidate),
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
	}
	if err := r.store.SaveShield(ctx, r.wc, shield); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "recovery.dispatchConsolidated", err)
	}

	// The consolidate calldata carries the spent secrets (the event's
	// indexed commitments array is hashed away); recover them to drop the
	// shields they fully consumed, keeping the on-chain-presence invariant
	// (spec §3) during historical replay, not just at an explicit sync.
	if oldSecrets, _, derr := r.contract.DecodeConsolidateInput(ctx, ev.TxHash); derr == nil {
		for _, oldSecret := range oldSecrets {
			oldCommitment := cryptoutil.Commitment(oldSecret, r.wallet)
			if err := r.store.DeleteShield(ctx, r.wc, hexCommitment(oldCommitment)); err != nil {
				return walleterrors.New(walleterrors.CategoryStorage, "recovery.dispatchConsolidated", err)
			}
		}
	}

	*scheduled = append(*scheduled, model.Transaction{
		Nonce:          uint64(index),
		Type:           model.TxConsolidate,
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
		Timestamp:      shield.Timestamp,
		Token:          info.Token.Hex(),
		Amount:         info.Amount,
		Commitment:     commitmentHex,
		DerivationPath: shield.DerivationPath,
		HDIndex:        &index,
		HDOperation:    string(model.HDOpConsolidate),
	})
	counts.Consolidate++
	return nil
}
