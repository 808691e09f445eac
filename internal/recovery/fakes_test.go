package recovery

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
)

// fakeContract is a narrow in-memory stand-in for *contractproxy.Proxy,
// implementing only what recovery.Contract requires.
type fakeContract struct {
	mu sync.Mutex

	head uint64

	shieldInfo map[[32]byte]*contractproxy.ShieldInfo

	shielded     []contractproxy.ShieldedEvent
	unshielded   []contractproxy.UnshieldedEvent
	delivered    []contractproxy.SecretDeliveredEvent
	consolidated []contractproxy.ShieldConsolidatedEvent

	consolidateInputs map[common.Hash][][32]byte
	consolidateNew    map[common.Hash][32]byte
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		shieldInfo:        make(map[[32]byte]*contractproxy.ShieldInfo),
		consolidateInputs: make(map[common.Hash][][32]byte),
		consolidateNew:    make(map[common.Hash][32]byte),
	}
}

func (f *fakeContract) HeadBlock(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeContract) GetShieldInfo(ctx context.Context, commitment [32]byte) (*contractproxy.ShieldInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.shieldInfo[commitment]; ok {
		return info, nil
	}
	return &contractproxy.ShieldInfo{}, nil
}

func (f *fakeContract) DecodeConsolidateInput(ctx context.Context, txHash common.Hash) ([][32]byte, [32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consolidateInputs[txHash], f.consolidateNew[txHash], nil
}

func (f *fakeContract) FilterShielded(ctx context.Context, fromBlock, toBlock uint64) ([]contractproxy.ShieldedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shielded, nil
}

func (f *fakeContract) FilterUnshielded(ctx context.Context, fromBlock, toBlock uint64) ([]contractproxy.UnshieldedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unshielded, nil
}

func (f *fakeContract) FilterSecretDelivered(ctx context.Context, fromBlock, toBlock uint64) ([]contractproxy.SecretDeliveredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered, nil
}

func (f *fakeContract) FilterShieldConsolidated(ctx context.Context, fromBlock, toBlock uint64) ([]contractproxy.ShieldConsolidatedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consolidated, nil
}
