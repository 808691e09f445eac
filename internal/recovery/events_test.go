package recovery

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
)

func TestMergeEventsOrdersByBlockTxLogIndex(t *testing.T) {
	shielded := []contractproxy.ShieldedEvent{
		{BlockNumber: 10, TxIndex: 2, LogIndex: 0, TxHash: common.HexToHash("0x01")},
		{BlockNumber: 5, TxIndex: 0, LogIndex: 0, TxHash: common.HexToHash("0x02")},
	}
	unshielded := []contractproxy.UnshieldedEvent{
		{BlockNumber: 5, TxIndex: 0, LogIndex: 1, TxHash: common.HexToHash("0x02")},
	}
	delivered := []contractproxy.SecretDeliveredEvent{
		{BlockNumber: 5, TxIndex: 1, LogIndex: 0, TxHash: common.HexToHash("0x03")},
	}

	merged := mergeEvents(shielded, unshielded, delivered, nil)
	require.Len(t, merged, 4)

	assert.Equal(t, kindShielded, merged[0].kind)
	assert.Equal(t, uint64(5), merged[0].block)
	assert.Equal(t, uint(0), merged[0].txIndex)
	assert.Equal(t, uint(0), merged[0].logIndex)

	assert.Equal(t, kindUnshielded, merged[1].kind)
	assert.Equal(t, uint64(5), merged[1].block)
	assert.Equal(t, uint(0), merged[1].txIndex)
	assert.Equal(t, uint(1), merged[1].logIndex)

	assert.Equal(t, kindSecretDelivered, merged[2].kind)
	assert.Equal(t, uint(1), merged[2].txIndex)

	assert.Equal(t, kindShielded, merged[3].kind)
	assert.Equal(t, uint64(10), merged[3].block)
}

func TestMergeEventsEmptyInputsYieldEmptySlice(t *testing.T) {
	merged := mergeEvents(nil, nil, nil, nil)
	assert.Len(t, merged, 0)
}

func TestMergeEventsPreservesPayload(t *testing.T) {
	want := contractproxy.ShieldConsolidatedEvent{BlockNumber: 7, TxHash: common.HexToHash("0x09")}
	merged := mergeEvents(nil, nil, nil, []contractproxy.ShieldConsolidatedEvent{want})
	require.Len(t, merged, 1)
	assert.Equal(t, want, merged[0].consolidate)
}
