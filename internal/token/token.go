// Package token wraps the trivial ERC-20 surface the SDK needs to check
// balances and manage allowance before a shield (spec §6), reusing the
// contract proxy's already-dialed client and parsed ABI.
package token

import (
	"context"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// Caller is the subset of contractproxy.Proxy the token manager depends
// on, kept narrow so tests can supply a fake.
type Caller interface {
	ERC20ABI() abi.ABI
	Client() *ethclient.Client
	ApproveToken(ctx context.Context, token, spender common.Address, amount *big.Int) error
}

// Manager proxies balanceOf/allowance/approve/symbol/decimals/name for
// an arbitrary ERC-20 token address, caching decimals per token since
// they never change for a deployed contract.
type Manager struct {
	proxy Caller

	decimalsMu sync.Mutex
	decimals   map[common.Address]uint8
}

func New(proxy Caller) *Manager {
	return &Manager{proxy: proxy, decimals: make(map[common.Address]uint8)}
}

func (m *Manager) call(ctx context.Context, token common.Address, method string, args ...interface{}) ([]interface{}, error) {
	erc20 := m.proxy.ERC20ABI()
	data, err := erc20.Pack(method, args...)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "token."+method, err)
	}
	result, err := m.proxy.Client().CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryNetwork, "token."+method, err)
	}
	return erc20.Unpack(method, result)
}

func (m *Manager) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := m.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, walleterrors.New(walleterrors.CategoryContract, "token.BalanceOf", nil)
	}
	return out[0].(*big.Int), nil
}

func (m *Manager) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := m.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, walleterrors.New(walleterrors.CategoryContract, "token.Allowance", nil)
	}
	return out[0].(*big.Int), nil
}

func (m *Manager) Symbol(ctx context.Context, token common.Address) (string, error) {
	out, err := m.call(ctx, token, "symbol")
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", walleterrors.New(walleterrors.CategoryContract, "token.Symbol", nil)
	}
	return out[0].(string), nil
}

func (m *Manager) Name(ctx context.Context, token common.Address) (string, error) {
	out, err := m.call(ctx, token, "name")
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", walleterrors.New(walleterrors.CategoryContract, "token.Name", nil)
	}
	return out[0].(string), nil
}

// Decimals returns token's decimals, caching the result since it is
// immutable for a deployed ERC-20.
func (m *Manager) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	m.decimalsMu.Lock()
	if d, ok := m.decimals[token]; ok {
		m.decimalsMu.Unlock()
		return d, nil
	}
	m.decimalsMu.Unlock()

	out, err := m.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, walleterrors.New(walleterrors.CategoryContract, "token.Decimals", nil)
	}
	d := out[0].(uint8)

	m.decimalsMu.Lock()
	m.decimals[token] = d
	m.decimalsMu.Unlock()
	return d, nil
}

// EnsureAllowance approves spender for amount if the current allowance is
// short (spec §4.3's shield pre-check: "requesting approval if short"),
// delegating the sign-and-broadcast to the proxy's own key. It approves
// the exact requested amount, not an unlimited allowance, to avoid
// leaving a standing approval the caller didn't ask for.
func (m *Manager) EnsureAllowance(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	current, err := m.Allowance(ctx, token, owner, spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}
	return m.proxy.ApproveToken(ctx, token, spender, amount)
}
