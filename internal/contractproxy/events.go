package contractproxy

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ShieldedEvent is a decoded Shielded log (spec §6).
type ShieldedEvent struct {
	Commitment  [32]byte
	Token       common.Address
	Amount      *big.Int
	Fee         *big.Int
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint
	TxHash      common.Hash
}

// UnshieldedEvent is a decoded Unshielded log.
type UnshieldedEvent struct {
	Commitment  [32]byte
	Token       common.Address
	Amount      *big.Int
	Fee         *big.Int
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint
	TxHash      common.Hash
}

// SecretDeliveredEvent is a decoded SecretDelivered log.
type SecretDeliveredEvent struct {
	EncryptedSecret []byte
	BlockNumber     uint64
	TxIndex         uint
	LogIndex        uint
	TxHash          common.Hash
}

// ShieldConsolidatedEvent is a decoded ShieldConsolidated log. OldCommitments
// is not recoverable from the log itself (the indexed array is hashed);
// callers needing it must use DecodeConsolidateInput against TxHash.
type ShieldConsolidatedEvent struct {
	NewCommitment [32]byte
	BlockNumber   uint64
	TxIndex       uint
	LogIndex      uint
	TxHash        common.Hash
}

func (p *Proxy) filterLogs(ctx context.Context, op string, fromBlock, toBlock uint64, topics [][]common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := p.retryRead(ctx, op, func() error {
		q := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []common.Address{p.contractAddr},
			Topics:    topics,
		}
		l, err := p.client.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	return logs, err
}

func (p *Proxy) FilterShielded(ctx context.Context, fromBlock, toBlock uint64) ([]ShieldedEvent, error) {
	eventABI := p.mixerABI.Events["Shielded"]
	logs, err := p.filterLogs(ctx, "contractproxy.FilterShielded", fromBlock, toBlock, [][]common.Hash{{eventABI.ID}})
	if err != nil {
		return nil, err
	}
	out := make([]ShieldedEvent, 0, len(logs))
	for _, l := range logs {
		data, err := p.mixerABI.Unpack("Shielded", l.Data)
		if err != nil || len(data) != 2 {
			continue
		}
		var commitment [32]byte
		copy(commitment[:], l.Topics[1].Bytes())
		out = append(out, ShieldedEvent{
			Commitment:  commitment,
			Token:       common.BytesToAddress(l.Topics[2].Bytes()),
			Amount:      data[0].(*big.Int),
			Fee:         data[1].(*big.Int),
			BlockNumber: l.BlockNumber,
			TxIndex:     l.TxIndex,
			LogIndex:    l.Index,
			TxHash:      l.TxHash,
		})
	}
	return out, nil
}

func (p *Proxy) FilterUnshielded(ctx context.Context, fromBlock, toBlock uint64) ([]UnshieldedEvent, error) {
	eventABI := p.mixerABI.Events["Unshielded"]
	logs, err := p.filterLogs(ctx, "contractproxy.FilterUnshielded", fromBlock, toBlock, [][]common.Hash{{eventABI.ID}})
	if err != nil {
		return nil, err
	}
	out := make([]UnshieldedEvent, 0, len(logs))
	for _, l := range logs {
		data, err := p.mixerABI.Unpack("Unshielded", l.Data)
		if err != nil || len(data) != 2 {
			continue
		}
		var commitment [32]byte
		copy(commitment[:], l.Topics[1].Bytes())
		out = append(out, UnshieldedEvent{
			Commitment:  commitment,
			Token:       common.BytesToAddress(l.Topics[2].Bytes()),
			Amount:      data[0].(*big.Int),
			Fee:         data[1].(*big.Int),
			BlockNumber: l.BlockNumber,
			TxIndex:     l.TxIndex,
			LogIndex:    l.Index,
			TxHash:      l.TxHash,
		})
	}
	return out, nil
}

// FilterSecretDelivered wraps FilterLogs + the ABI unpacker for the
// scanner's per-iteration query as well as recovery's batch query.
func (p *Proxy) FilterSecretDelivered(ctx context.Context, fromBlock, toBlock uint64) ([]SecretDeliveredEvent, error) {
	eventABI := p.mixerABI.Events["SecretDelivered"]
	logs, err := p.filterLogs(ctx, "contractproxy.FilterSecretDelivered", fromBlock, toBlock, [][]common.Hash{{eventABI.ID}})
	if err != nil {
		return nil, err
	}
	out := make([]SecretDeliveredEvent, 0, len(logs))
	for _, l := range logs {
		data, err := p.mixerABI.Unpack("SecretDelivered", l.Data)
		if err != nil || len(data) != 1 {
			continue
		}
		out = append(out, SecretDeliveredEvent{
			EncryptedSecret: data[0].([]byte),
			BlockNumber:     l.BlockNumber,
			TxIndex:         l.TxIndex,
			LogIndex:        l.Index,
			TxHash:          l.TxHash,
		})
	}
	return out, nil
}

func (p *Proxy) FilterShieldConsolidated(ctx context.Context, fromBlock, toBlock uint64) ([]ShieldConsolidatedEvent, error) {
	eventABI := p.mixerABI.Events["ShieldConsolidated"]
	logs, err := p.filterLogs(ctx, "contractproxy.FilterShieldConsolidated", fromBlock, toBlock, [][]common.Hash{{eventABI.ID}})
	if err != nil {
		return nil, err
	}
	out := make([]ShieldConsolidatedEvent, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 3 {
			continue
		}
		var newCommitment [32]byte
		copy(newCommitment[:], l.Topics[2].Bytes())
		out = append(out, ShieldConsolidatedEvent{
			NewCommitment: newCommitment,
			BlockNumber:   l.BlockNumber,
			TxIndex:       l.TxIndex,
			LogIndex:      l.Index,
			TxHash:        l.TxHash,
		})
	}
	return out, nil
}

// HeadBlock returns the current chain head block number, subject to the
// same retry envelope as every other contract read (spec §5).
func (p *Proxy) HeadBlock(ctx context.Context) (uint64, error) {
	var head uint64
	err := p.retryRead(ctx, "contractproxy.HeadBlock", func() error {
		h, err := p.client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = h
		return nil
	})
	return head, err
}
