package token

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testERC20ABI = `[
{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

func TestDecimalsReturnsCachedValue(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(testERC20ABI))
	require.NoError(t, err)

	m := New(nil)
	token := common.HexToAddress("0x0000000000000000000000000000000000000001")

	// Pre-populate the cache directly to exercise the cache-hit path
	// without needing a live RPC client.
	m.decimals[token] = 18

	d, err := m.Decimals(nil, token)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), d)
	_ = parsed
}

func TestABIPackUnpackBalanceOf(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(testERC20ABI))
	require.NoError(t, err)

	owner := common.HexToAddress("0x0000000000000000000000000000000000000042")
	data, err := parsed.Pack("balanceOf", owner)
	require.NoError(t, err)

	method, err := parsed.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "balanceOf", method.Name)

	packedReturn, err := method.Outputs.Pack(big.NewInt(12345))
	require.NoError(t, err)
	out, err := parsed.Unpack("balanceOf", packedReturn)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].(*big.Int).Cmp(big.NewInt(12345)))
}
