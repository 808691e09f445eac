package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// FileAdapter is the reference storage.Adapter: one JSON file per key,
// using the naming scheme from spec §6:
//
//	lasergun_{chain}_{wallet_lower}_{kind}[_{id}]
//
// One file per kind/id (rather than one blob per context) keeps unrelated
// reads from contending, and reads/writes for a given context are
// serialized through this adapter's per-context RWMutex registry — the
// conceptual per-context lock spec §5 requires.
type FileAdapter struct {
	baseDir string

	locksMu sync.Mutex
	locks   map[string]*sync.RWMutex
}

// NewFileAdapter creates a FileAdapter rooted at baseDir, creating the
// directory if it does not exist.
func NewFileAdapter(baseDir string) (*FileAdapter, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.NewFileAdapter", err)
	}
	return &FileAdapter{
		baseDir: baseDir,
		locks:   make(map[string]*sync.RWMutex),
	}, nil
}

func (a *FileAdapter) lockFor(wc model.Context) *sync.RWMutex {
	a.locksMu.Lock()
	defer a.locksMu.Unlock()
	key := wc.Key()
	l, ok := a.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		a.locks[key] = l
	}
	return l
}

func (a *FileAdapter) path(wc model.Context, kind, id string) string {
	name := "lasergun_" + wc.Key() + "_" + kind
	if id != "" {
		name += "_" + sanitize(id)
	}
	return filepath.Join(a.baseDir, name+".json")
}

// sanitize defangs a storage id (a commitment hex, a "type_nonce" string)
// for safe use as a filename component.
func sanitize(id string) string {
	id = strings.TrimPrefix(id, "0x")
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// ── Keys ─────────────────────────────────────────────────────────────────

func (a *FileAdapter) SaveKeys(_ context.Context, wc model.Context, keys model.CryptoKeys) error {
	lock := a.lockFor(wc)
	lock.Lock()
	defer lock.Unlock()
	if err := writeJSON(a.path(wc, "keys", ""), keys); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "storage.SaveKeys", err)
	}
	return nil
}

func (a *FileAdapter) LoadKeys(_ context.Context, wc model.Context) (*model.CryptoKeys, error) {
	lock := a.lockFor(wc)
	lock.RLock()
	defer lock.RUnlock()
	var keys model.CryptoKeys
	found, err := readJSON(a.path(wc, "keys", ""), &keys)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.LoadKeys", err)
	}
	if !found {
		return nil, nil
	}
	return &keys, nil
}

// ── Shields ──────────────────────────────────────────────────────────────

func (a *FileAdapter) SaveShield(_ context.Context, wc model.Context, shield model.Shield) error {
	lock := a.lockFor(wc)
	lock.Lock()
	defer lock.Unlock()
	if err := writeJSON(a.path(wc, "shield", shield.Commitment), shield); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "storage.SaveShield", err)
	}
	return nil
}

func (a *FileAdapter) LoadShield(_ context.Context, wc model.Context, commitment string) (*model.Shield, error) {
	lock := a.lockFor(wc)
	lock.RLock()
	defer lock.RUnlock()
	var s model.Shield
	found, err := readJSON(a.path(wc, "shield", commitment), &s)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.LoadShield", err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

func (a *FileAdapter) ListShields(_ context.Context, wc model.Context) ([]model.Shield, error) {
	lock := a.lockFor(wc)
	lock.RLock()
	defer lock.RUnlock()

	prefix := "lasergun_" + wc.Key() + "_shield_"
	entries, err := os.ReadDir(a.baseDir)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.ListShields", err)
	}

	var out []model.Shield
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		var s model.Shield
		found, err := readJSON(filepath.Join(a.baseDir, e.Name()), &s)
		if err != nil {
			return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.ListShields", err)
		}
		if found {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *FileAdapter) DeleteShield(_ context.Context, wc model.Context, commitment string) error {
	lock := a.lockFor(wc)
	lock.Lock()
	defer lock.Unlock()
	err := os.Remove(a.path(wc, "shield", commitment))
	if err != nil && !os.IsNotExist(err) {
		return walleterrors.New(walleterrors.CategoryStorage, "storage.DeleteShield", err)
	}
	return nil
}

// ── Transactions ─────────────────────────────────────────────────────────

func txID(txType model.TxType, nonce uint64) string {
	return string(txType) + "_" + strconv.FormatUint(nonce, 10)
}

func (a *FileAdapter) SaveTransaction(_ context.Context, wc model.Context, tx model.Transaction) error {
	lock := a.lockFor(wc)
	lock.Lock()
	defer lock.Unlock()
	if err := writeJSON(a.path(wc, "tx", txID(tx.Type, tx.Nonce)), tx); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "storage.SaveTransaction", err)
	}
	return nil
}

func (a *FileAdapter) LoadTransaction(_ context.Context, wc model.Context, txType model.TxType, nonce uint64) (*model.Transaction, error) {
	lock := a.lockFor(wc)
	lock.RLock()
	defer lock.RUnlock()
	var t model.Transaction
	found, err := readJSON(a.path(wc, "tx", txID(txType, nonce)), &t)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.LoadTransaction", err)
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

func (a *FileAdapter) ListTransactions(_ context.Context, wc model.Context) ([]model.Transaction, error) {
	lock := a.lockFor(wc)
	lock.RLock()
	defer lock.RUnlock()

	prefix := "lasergun_" + wc.Key() + "_tx_"
	entries, err := os.ReadDir(a.baseDir)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.ListTransactions", err)
	}

	var out []model.Transaction
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		var t model.Transaction
		found, err := readJSON(filepath.Join(a.baseDir, e.Name()), &t)
		if err != nil {
			return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.ListTransactions", err)
		}
		if found {
			out = append(out, t)
		}
	}
	return out, nil
}

// ── Counts ───────────────────────────────────────────────────────────────

func (a *FileAdapter) SaveCounts(_ context.Context, wc model.Context, counts model.EventCounts) error {
	lock := a.lockFor(wc)
	lock.Lock()
	defer lock.Unlock()
	if err := writeJSON(a.path(wc, "eventCounts", ""), counts); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "storage.SaveCounts", err)
	}
	return nil
}

func (a *FileAdapter) LoadCounts(_ context.Context, wc model.Context) (*model.EventCounts, error) {
	lock := a.lockFor(wc)
	lock.RLock()
	defer lock.RUnlock()
	var c model.EventCounts
	found, err := readJSON(a.path(wc, "eventCounts", ""), &c)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryStorage, "storage.LoadCounts", err)
	}
	if !found {
		return nil, nil
	}
	return &c, nil
}

// ── Scan cursor ──────────────────────────────────────────────────────────

type cursorFile struct {
	LastScannedBlock uint64 `json:"last_scanned_block"`
}

func (a *FileAdapter) SaveCursor(_ context.Context, wc model.Context, block uint64) error {
	lock := a.lockFor(wc)
	lock.Lock()
	defer lock.Unlock()
	if err := writeJSON(a.path(wc, "lastBlock", ""), cursorFile{LastScannedBlock: block}); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "storage.SaveCursor", err)
	}
	return nil
}

func (a *FileAdapter) LoadCursor(_ context.Context, wc model.Context) (uint64, bool, error) {
	lock := a.lockFor(wc)
	lock.RLock()
	defer lock.RUnlock()
	var c cursorFile
	found, err := readJSON(a.path(wc, "lastBlock", ""), &c)
	if err != nil {
		return 0, false, walleterrors.New(walleterrors.CategoryStorage, "storage.LoadCursor", err)
	}
	if !found {
		return 0, false, nil
	}
	return c.LastScannedBlock, true, nil
}

// ── Delete all ───────────────────────────────────────────────────────────

func (a *FileAdapter) DeleteAll(_ context.Context, wc model.Context) error {
	lock := a.lockFor(wc)
	lock.Lock()
	defer lock.Unlock()

	prefix := "lasergun_" + wc.Key() + "_"
	entries, err := os.ReadDir(a.baseDir)
	if err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "storage.DeleteAll", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(a.baseDir, e.Name())); err != nil && !os.IsNotExist(err) {
			return walleterrors.New(walleterrors.CategoryStorage, "storage.DeleteAll", err)
		}
	}
	return nil
}

var _ Adapter = (*FileAdapter)(nil)
