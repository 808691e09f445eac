package recoverymgr

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
)

// fakeContract satisfies both recoverymgr.Contract and recovery.Contract so
// the same fake can back a Manager and the *recovery.Runner it wraps.
type fakeContract struct {
	mu sync.Mutex

	head uint64

	shieldInfo map[[32]byte]*contractproxy.ShieldInfo
	active     map[[32]byte]bool

	shielded     []contractproxy.ShieldedEvent
	unshielded   []contractproxy.UnshieldedEvent
	delivered    []contractproxy.SecretDeliveredEvent
	consolidated []contractproxy.ShieldConsolidatedEvent
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		shieldInfo: make(map[[32]byte]*contractproxy.ShieldInfo),
		active:     make(map[[32]byte]bool),
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

func (f *fakeContract) IsCommitmentActive(ctx context.Context, commitment [32]byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[commitment], nil
}

func (f *fakeContract) DecodeConsolidateInput(ctx context.Context, txHash common.Hash) ([][32]byte, [32]byte, error) {
	return nil, [32]byte{}, nil
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
