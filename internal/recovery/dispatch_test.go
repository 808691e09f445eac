package recovery

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
	"github.com/lasergun-protocol/sdk-sub000/internal/cryptoutil"
	"github.com/lasergun-protocol/sdk-sub000/internal/ecies"
	"github.com/lasergun-protocol/sdk-sub000/internal/hd"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/storage"
)

func testRunner(t *testing.T, contract *fakeContract) (*Runner, model.Context, [32]byte) {
	t.Helper()
	var seed [32]byte
	seed[0] = 0x3

	wallet := common.HexToAddress("0x0000000000000000000000000000000000a001")
	hdMgr := hd.NewFromSeed(seed, wallet)

	store, err := storage.NewFileAdapter(t.TempDir())
	require.NoError(t, err)

	wc := model.Context{ChainID: 1, Wallet: wallet}
	var privKey [32]byte
	runner := New(contract, store, hdMgr, wc, wallet, privKey, nil, Config{}, nil)
	return runner, wc, privKey
}

func TestDispatchShieldedClaimsMatchingCommitment(t *testing.T) {
	contract := newFakeContract()
	runner, wc, _ := testRunner(t, contract)

	secret, err := runner.hdMgr.Derive(hd.OpShield, 0)
	require.NoError(t, err)
	commitment := cryptoutil.Commitment(secret, runner.wallet)

	tokenAddr := common.HexToAddress("0x0000000000000000000000000000000000b002")
	ev := contractproxy.ShieldedEvent{
		Commitment:  commitment,
		Token:       tokenAddr,
		Amount:      bigInt(100),
		Fee:         bigInt(1),
		BlockNumber: 10,
		TxHash:      common.HexToHash("0xaa"),
	}

	counts := &model.EventCounts{}
	var scheduled []model.Transaction
	require.NoError(t, runner.dispatchShielded(context.Background(), ev, counts, &scheduled))

	assert.Equal(t, 1, counts.Shield)
	require.Len(t, scheduled, 1)
	assert.Equal(t, model.TxShield, scheduled[0].Type)

	stored, err := runner.store.LoadShield(context.Background(), wc, hexCommitment(commitment))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, bigInt(99), stored.Amount)
}

func TestDispatchShieldedIgnoresForeignCommitment(t *testing.T) {
	contract := newFakeContract()
	runner, _, _ := testRunner(t, contract)

	ev := contractproxy.ShieldedEvent{Commitment: common.HexToHash("0xdeadbeef"), Amount: bigInt(1), Fee: bigInt(0)}
	counts := &model.EventCounts{}
	var scheduled []model.Transaction
	require.NoError(t, runner.dispatchShielded(context.Background(), ev, counts, &scheduled))

	assert.Equal(t, 0, counts.Shield)
	assert.Empty(t, scheduled)
}

func TestDispatchSecretDeliveredClaimsDecryptableTransfer(t *testing.T) {
	contract := newFakeContract()

	recipientKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	var privKey [32]byte
	copy(privKey[:], crypto.FromECDSA(recipientKey))
	pubKeyHex := hex.EncodeToString(crypto.FromECDSAPub(&recipientKey.PublicKey))

	var seed [32]byte
	seed[0] = 0x9
	wallet := common.HexToAddress("0x0000000000000000000000000000000000c003")
	hdMgr := hd.NewFromSeed(seed, wallet)
	store, err := storage.NewFileAdapter(t.TempDir())
	require.NoError(t, err)
	wc := model.Context{ChainID: 1, Wallet: wallet}
	runner := New(contract, store, hdMgr, wc, wallet, privKey, nil, Config{}, nil)

	var secret [32]byte
	secret[0] = 0x77
	envelope, err := ecies.Encrypt(secret, pubKeyHex)
	require.NoError(t, err)

	commitment := cryptoutil.Commitment(secret, wallet)
	tokenAddr := common.HexToAddress("0x0000000000000000000000000000000000d004")
	contract.shieldInfo[commitment] = &contractproxy.ShieldInfo{Exists: true, Token: tokenAddr, Amount: bigInt(55)}

	envBytes, err := hex.DecodeString(envelope[2:])
	require.NoError(t, err)
	ev := contractproxy.SecretDeliveredEvent{EncryptedSecret: envBytes, BlockNumber: 20, TxHash: common.HexToHash("0xbb")}

	counts := &model.EventCounts{}
	var scheduled []model.Transaction
	require.NoError(t, runner.dispatchSecretDelivered(context.Background(), ev, counts, &scheduled))

	assert.Equal(t, 1, counts.Received)
	require.Len(t, scheduled, 1)
	assert.Equal(t, model.TxReceived, scheduled[0].Type)

	stored, err := store.LoadShield(context.Background(), wc, hexCommitment(commitment))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, bigInt(55), stored.Amount)
}

func TestDispatchUnshieldedClassifiesTransferByCoDeliveredSecret(t *testing.T) {
	contract := newFakeContract()
	runner, wc, _ := testRunner(t, contract)

	var secret [32]byte
	secret[0] = 0x44
	commitment := cryptoutil.Commitment(secret, runner.wallet)
	tokenAddr := common.HexToAddress("0x0000000000000000000000000000000000e005")

	require.NoError(t, runner.store.SaveShield(context.Background(), wc, model.Shield{
		Secret:     "0x" + hex.EncodeToString(secret[:]),
		Commitment: hexCommitment(commitment),
		Token:      tokenAddr.Hex(),
		Amount:     bigInt(60),
	}))

	txHash := common.HexToHash("0xcc")
	ev := contractproxy.UnshieldedEvent{Commitment: commitment, Token: tokenAddr, Amount: bigInt(60), Fee: bigInt(0), TxHash: txHash, BlockNumber: 30}

	counts := &model.EventCounts{}
	withSecretDelivered := map[common.Hash]bool{txHash: true}
	var scheduled []model.Transaction
	require.NoError(t, runner.dispatchUnshielded(context.Background(), ev, counts, withSecretDelivered, &scheduled))

	assert.Equal(t, 1, counts.Transfer)
	assert.Equal(t, 0, counts.Unshield)
	require.Len(t, scheduled, 1)
	assert.Equal(t, model.TxTransfer, scheduled[0].Type)

	stored, err := runner.store.LoadShield(context.Background(), wc, hexCommitment(commitment))
	require.NoError(t, err)
	assert.Nil(t, stored, "spent commitment must be dropped from local storage")
}

func TestDispatchUnshieldedWithoutCoDeliveredSecretIsPlainUnshield(t *testing.T) {
	contract := newFakeContract()
	runner, wc, _ := testRunner(t, contract)

	var secret [32]byte
	secret[0] = 0x22
	commitment := cryptoutil.Commitment(secret, runner.wallet)
	tokenAddr := common.HexToAddress("0x0000000000000000000000000000000000f006")

	require.NoError(t, runner.store.SaveShield(context.Background(), wc, model.Shield{
		Secret:     "0x" + hex.EncodeToString(secret[:]),
		Commitment: hexCommitment(commitment),
		Token:      tokenAddr.Hex(),
		Amount:     bigInt(20),
	}))

	txHash := common.HexToHash("0xdd")
	ev := contractproxy.UnshieldedEvent{Commitment: commitment, Token: tokenAddr, Amount: bigInt(20), Fee: bigInt(0), TxHash: txHash, BlockNumber: 31}

	counts := &model.EventCounts{}
	var scheduled []model.Transaction
	require.NoError(t, runner.dispatchUnshielded(context.Background(), ev, counts, map[common.Hash]bool{}, &scheduled))

	assert.Equal(t, 0, counts.Transfer)
	assert.Equal(t, 1, counts.Unshield)
	require.Len(t, scheduled, 1)
	assert.Equal(t, model.TxUnshield, scheduled[0].Type)
}

func TestDispatchConsolidatedRecoversOldSecretsFromCalldata(t *testing.T) {
	contract := newFakeContract()
	runner, wc, _ := testRunner(t, contract)

	newSecret, err := runner.hdMgr.Derive(hd.OpConsolidate, 0)
	require.NoError(t, err)
	newCommitment := cryptoutil.Commitment(newSecret, runner.wallet)

	tokenAddr := common.HexToAddress("0x0000000000000000000000000000000000f007")
	contract.shieldInfo[newCommitment] = &contractproxy.ShieldInfo{Exists: true, Token: tokenAddr, Amount: bigInt(80)}

	var oldSecret [32]byte
	oldSecret[0] = 0x66
	oldCommitment := cryptoutil.Commitment(oldSecret, runner.wallet)
	require.NoError(t, runner.store.SaveShield(context.Background(), wc, model.Shield{
		Secret:     "0x" + hex.EncodeToString(oldSecret[:]),
		Commitment: hexCommitment(oldCommitment),
		Token:      tokenAddr.Hex(),
		Amount:     bigInt(80),
	}))

	txHash := common.HexToHash("0xee")
	contract.consolidateInputs[txHash] = [][32]byte{oldSecret}
	contract.consolidateNew[txHash] = newCommitment

	ev := contractproxy.ShieldConsolidatedEvent{NewCommitment: newCommitment, TxHash: txHash, BlockNumber: 40}
	counts := &model.EventCounts{}
	var scheduled []model.Transaction
	require.NoError(t, runner.dispatchConsolidated(context.Background(), ev, counts, &scheduled))

	assert.Equal(t, 1, counts.Consolidate)
	require.Len(t, scheduled, 1)

	goneOld, err := runner.store.LoadShield(context.Background(), wc, hexCommitment(oldCommitment))
	require.NoError(t, err)
	assert.Nil(t, goneOld, "consolidated input shield must be dropped")

	newShield, err := runner.store.LoadShield(context.Background(), wc, hexCommitment(newCommitment))
	require.NoError(t, err)
	require.NotNil(t, newShield)
	assert.Equal(t, bigInt(80), newShield.Amount)
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }
