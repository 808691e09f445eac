package operations

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
)

// fakeContract is a narrow in-memory stand-in for *contractproxy.Proxy,
// implementing only what Contract requires.
type fakeContract struct {
	mu sync.Mutex

	contractAddr common.Address

	shieldInfo    map[[32]byte]*contractproxy.ShieldInfo
	shieldBalance map[[32]byte]*big.Int
	publicKeys    map[common.Address][]byte

	shieldFeePercent *big.Int
	feeDenominator   *big.Int

	nextBlock uint64

	shieldCommitments []string
	unshieldCalls     int
	transferCalls     int
	consolidateCalls  int

	shieldErr error
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		shieldInfo:       make(map[[32]byte]*contractproxy.ShieldInfo),
		shieldBalance:    make(map[[32]byte]*big.Int),
		publicKeys:       make(map[common.Address][]byte),
		shieldFeePercent: big.NewInt(0),
		feeDenominator:   big.NewInt(10000),
		nextBlock:        1,
	}
}

func (f *fakeContract) ContractAddress() common.Address { return f.contractAddr }

func (f *fakeContract) GetShieldInfo(ctx context.Context, commitment [32]byte) (*contractproxy.ShieldInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.shieldInfo[commitment]; ok {
		return info, nil
	}
	return &contractproxy.ShieldInfo{}, nil
}

func (f *fakeContract) GetShieldBalance(ctx context.Context, secret [32]byte, token common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bal, ok := f.shieldBalance[secret]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeContract) PublicKeys(ctx context.Context, owner common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publicKeys[owner], nil
}

func (f *fakeContract) ShieldFeePercent(ctx context.Context) (*big.Int, error) {
	return f.shieldFeePercent, nil
}

func (f *fakeContract) FeeDenominator(ctx context.Context) (*big.Int, error) {
	return f.feeDenominator, nil
}

func (f *fakeContract) nextReceipt() *contractproxy.Receipt {
	block := f.nextBlock
	f.nextBlock++
	return &contractproxy.Receipt{TxHash: common.BigToHash(new(big.Int).SetUint64(block)), BlockNumber: block}
}

func (f *fakeContract) Shield(ctx context.Context, amount *big.Int, token common.Address, commitment [32]byte) (*contractproxy.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shieldErr != nil {
		return nil, f.shieldErr
	}
	f.shieldCommitments = append(f.shieldCommitments, hexHash(commitment))
	return f.nextReceipt(), nil
}

func (f *fakeContract) Unshield(ctx context.Context, secret [32]byte, amount *big.Int, recipient common.Address, newCommitment [32]byte) (*contractproxy.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unshieldCalls++
	return f.nextReceipt(), nil
}

func (f *fakeContract) Transfer(ctx context.Context, secret [32]byte, amount *big.Int, recipientCommitment [32]byte, encryptedSecret []byte) (*contractproxy.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls++
	return f.nextReceipt(), nil
}

func (f *fakeContract) Consolidate(ctx context.Context, secrets [][32]byte, newCommitment [32]byte) (*contractproxy.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consolidateCalls++
	return f.nextReceipt(), nil
}

// fakeTokenManager is a narrow stand-in for *token.Manager.
type fakeTokenManager struct {
	mu sync.Mutex

	balance     *big.Int
	ensureErr   error
	ensureCalls int
}

func (f *fakeTokenManager) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeTokenManager) EnsureAllowance(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return f.ensureErr
}
