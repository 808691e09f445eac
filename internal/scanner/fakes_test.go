package scanner

import (
	"context"
	"sync"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
)

// fakeContract is a narrow in-memory stand-in for *contractproxy.Proxy,
// implementing only what scanner.Contract requires.
type fakeContract struct {
	mu sync.Mutex

	head uint64

	shieldInfo map[[32]byte]*contractproxy.ShieldInfo
	delivered  []contractproxy.SecretDeliveredEvent
}

func newFakeContract() *fakeContract {
	return &fakeContract{shieldInfo: make(map[[32]byte]*contractproxy.ShieldInfo)}
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

func (f *fakeContract) FilterSecretDelivered(ctx context.Context, fromBlock, toBlock uint64) ([]contractproxy.SecretDeliveredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered, nil
}
