package recovery

import (
	"sort"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
)

// kind tags which variant a taggedEvent carries (spec §9: "dynamic event
// args → tagged variants" — each event kind is modeled as a concrete
// variant carrying only the fields the scanner/recovery dispatch uses).
type kind int

const (
	kindShielded kind = iota
	kindUnshielded
	kindSecretDelivered
	kindConsolidated
)

// taggedEvent carries exactly one populated payload plus the ordering
// coordinates spec §4.5 requires: (block_number, transaction_index,
// log_index), mandatory for reproducing HD index assignment.
type taggedEvent struct {
	kind        kind
	block       uint64
	txIndex     uint
	logIndex    uint
	shielded    contractproxy.ShieldedEvent
	unshielded  contractproxy.UnshieldedEvent
	delivered   contractproxy.SecretDeliveredEvent
	consolidate contractproxy.ShieldConsolidatedEvent
}

// mergeEvents merges all four per-kind event slices into one globally
// ordered slice by (block, txIndex, logIndex). This global ordering is
// mandatory (spec §4.5): HD index assignment depends on it.
func mergeEvents(
	shielded []contractproxy.ShieldedEvent,
	unshielded []contractproxy.UnshieldedEvent,
	delivered []contractproxy.SecretDeliveredEvent,
	consolidated []contractproxy.ShieldConsolidatedEvent,
) []taggedEvent {
	out := make([]taggedEvent, 0, len(shielded)+len(unshielded)+len(delivered)+len(consolidated))
	for _, e := range shielded {
		out = append(out, taggedEvent{kind: kindShielded, block: e.BlockNumber, txIndex: e.TxIndex, logIndex: e.LogIndex, shielded: e})
	}
	for _, e := range unshielded {
		out = append(out, taggedEvent{kind: kindUnshielded, block: e.BlockNumber, txIndex: e.TxIndex, logIndex: e.LogIndex, unshielded: e})
	}
	for _, e := range delivered {
		out = append(out, taggedEvent{kind: kindSecretDelivered, block: e.BlockNumber, txIndex: e.TxIndex, logIndex: e.LogIndex, delivered: e})
	}
	for _, e := range consolidated {
		out = append(out, taggedEvent{kind: kindConsolidated, block: e.BlockNumber, txIndex: e.TxIndex, logIndex: e.LogIndex, consolidate: e})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.block != b.block {
			return a.block < b.block
		}
		if a.txIndex != b.txIndex {
			return a.txIndex < b.txIndex
		}
		return a.logIndex < b.logIndex
	})
	return out
}
