// Package recoverymgr is the thin orchestrator spec §4.6 defines over
// historical recovery: integrity validation, chain resync, and wallet
// statistics.
//
// Grounded on the teacher's executor.go thin-orchestrator shape (wraps a
// CLOB client, an inventory, and an on-chain merger behind a handful of
// verbs) — here wrapping contractproxy, storage, and internal/recovery
// behind ValidateIntegrity/SyncWithBlockchain/Stats.
package recoverymgr

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/recovery"
	"github.com/lasergun-protocol/sdk-sub000/internal/storage"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// Contract is the subset of *contractproxy.Proxy the orchestrator calls
// directly (ValidateIntegrity/SyncWithBlockchain/Stats), narrowed like
// internal/token's Caller so those verbs can be tested against a fake.
type Contract interface {
	IsCommitmentActive(ctx context.Context, commitment [32]byte) (bool, error)
	GetShieldInfo(ctx context.Context, commitment [32]byte) (*contractproxy.ShieldInfo, error)
}

// Manager orchestrates recovery/integrity/sync/stats for one wallet
// context.
type Manager struct {
	contract Contract
	store    storage.Adapter
	wc       model.Context
	runner   *recovery.Runner
}

// New constructs a Manager.
func New(contract Contract, store storage.Adapter, wc model.Context, runner *recovery.Runner) *Manager {
	return &Manager{contract: contract, store: store, wc: wc, runner: runner}
}

// IntegrityReport is ValidateIntegrity's return shape (spec §4.6).
type IntegrityReport struct {
	Valid       bool
	Issues      []string
	Suggestions []string
	OrphanCount int
}

// ValidateIntegrity confirms every stored shield still exists on-chain,
// that the counts record exists, and that no (type, nonce) collisions
// exist among stored transactions (spec §4.6).
func (m *Manager) ValidateIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{Valid: true}

	shields, err := m.store.ListShields(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.ValidateIntegrity", err)
	}
	for _, s := range shields {
		commitment, cerr := parseCommitment(s.Commitment)
		if cerr != nil {
			report.Valid = false
			report.Issues = append(report.Issues, fmt.Sprintf("shield %s: malformed commitment", s.Commitment))
			continue
		}
		active, aerr := m.contract.IsCommitmentActive(ctx, commitment)
		if aerr != nil {
			return nil, aerr
		}
		if !active {
			report.OrphanCount++
			report.Valid = false
			report.Issues = append(report.Issues, fmt.Sprintf("shield %s is stored but not active on-chain", s.Commitment))
		}
	}
	if report.OrphanCount > 0 {
		report.Suggestions = append(report.Suggestions, "run SyncWithBlockchain to remove orphaned shields")
	}

	counts, err := m.store.LoadCounts(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.ValidateIntegrity", err)
	}
	if counts == nil {
		report.Valid = false
		report.Issues = append(report.Issues, "no event counts record found")
		report.Suggestions = append(report.Suggestions, "run recovery from block 0 to rebuild counts")
	}

	txs, err := m.store.ListTransactions(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.ValidateIntegrity", err)
	}
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		key := fmt.Sprintf("%s/%d", tx.Type, tx.Nonce)
		if seen[key] {
			report.Valid = false
			report.Issues = append(report.Issues, fmt.Sprintf("duplicate transaction at (%s, %d)", tx.Type, tx.Nonce))
			continue
		}
		seen[key] = true
	}

	return report, nil
}

// SyncReport is SyncWithBlockchain's return shape (spec §4.6).
type SyncReport struct {
	Added   int
	Removed int
	Updated int
}

// SyncWithBlockchain reconciles every stored shield against current
// on-chain state — deleting what no longer exists, updating amounts that
// drifted — then runs recovery to pull in anything new (spec §4.6).
func (m *Manager) SyncWithBlockchain(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}

	shields, err := m.store.ListShields(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.SyncWithBlockchain", err)
	}
	for _, s := range shields {
		commitment, cerr := parseCommitment(s.Commitment)
		if cerr != nil {
			continue
		}
		info, ierr := m.contract.GetShieldInfo(ctx, commitment)
		if ierr != nil {
			return nil, ierr
		}
		if !info.Exists {
			if derr := m.store.DeleteShield(ctx, m.wc, s.Commitment); derr != nil {
				return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.SyncWithBlockchain", derr)
			}
			report.Removed++
			continue
		}
		if s.Amount == nil || info.Amount.Cmp(s.Amount) != 0 {
			s.Amount = info.Amount
			if serr := m.store.SaveShield(ctx, m.wc, s); serr != nil {
				return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.SyncWithBlockchain", serr)
			}
			report.Updated++
		}
	}

	beforeShields, err := m.store.ListShields(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.SyncWithBlockchain", err)
	}

	cursor, hasCursor, err := m.store.LoadCursor(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.SyncWithBlockchain", err)
	}
	if !hasCursor {
		cursor = 0
	}
	head, err := m.runner.Run(ctx, cursor)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveCursor(ctx, m.wc, head); err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.SyncWithBlockchain", err)
	}

	afterShields, err := m.store.ListShields(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.SyncWithBlockchain", err)
	}
	if added := len(afterShields) - len(beforeShields); added > 0 {
		report.Added = added
	}

	return report, nil
}

// Stats is the Stats return shape (spec §4.6).
type Stats struct {
	Counts                model.EventCounts
	ActiveShieldCount     int
	TotalShieldCount      int
	TransactionsByType    map[model.TxType]int
	Cursor                uint64
	OldestShieldTimestamp int64
	NewestShieldTimestamp int64
	CreatedAtBlock        uint64
}

// Stats reports wallet totals: active-shield count (checked live via
// isCommitmentActive), transactions grouped by type, the scan cursor,
// and the event counts (spec §4.6).
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	counts, err := m.store.LoadCounts(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.Stats", err)
	}
	if counts == nil {
		counts = &model.EventCounts{}
	}

	shields, err := m.store.ListShields(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.Stats", err)
	}
	active := 0
	var oldest, newest int64
	for i, s := range shields {
		commitment, cerr := parseCommitment(s.Commitment)
		if cerr != nil {
			continue
		}
		isActive, aerr := m.contract.IsCommitmentActive(ctx, commitment)
		if aerr != nil {
			return nil, aerr
		}
		if isActive {
			active++
		}
		if i == 0 || s.Timestamp < oldest {
			oldest = s.Timestamp
		}
		if i == 0 || s.Timestamp > newest {
			newest = s.Timestamp
		}
	}

	txs, err := m.store.ListTransactions(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.Stats", err)
	}
	byType := make(map[model.TxType]int)
	for _, tx := range txs {
		byType[tx.Type]++
	}

	cursor, _, err := m.store.LoadCursor(ctx, m.wc)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "recoverymgr.Stats", err)
	}

	var createdAtBlock uint64
	if keys, kerr := m.store.LoadKeys(ctx, m.wc); kerr == nil && keys != nil {
		createdAtBlock = keys.CreatedAtBlock
	}

	return &Stats{
		Counts:                *counts,
		ActiveShieldCount:     active,
		TotalShieldCount:      len(shields),
		TransactionsByType:    byType,
		Cursor:                cursor,
		OldestShieldTimestamp: oldest,
		NewestShieldTimestamp: newest,
		CreatedAtBlock:        createdAtBlock,
	}, nil
}

func parseCommitment(hexStr string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(hexStr, "0x")
	b, err := hex.DecodeString(trimmed)
	if err != nil || len(b) != 32 {
		return out, walleterrors.New(walleterrors.CategoryValidation, "recoverymgr.parseCommitment", fmt.Errorf("invalid commitment hex %q", hexStr))
	}
	copy(out[:], b)
	return out, nil
}
