// Package scanner implements the ongoing event scanner (spec §4.4): once
// historical recovery has caught the wallet up, this loop polls forward
// for new SecretDelivered events — the only way a wallet learns about an
// inbound transfer.
//
// Grounded on the teacher's ws/user.go connectForever/listen reconnect
// loop, adapted from a push websocket read loop to a polling loop: the
// mixer contract (spec §6) exposes no subscription surface, only
// FilterLogs-style event queries, so the loop polls on a timer instead of
// blocking on a socket read.
package scanner

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
	"github.com/lasergun-protocol/sdk-sub000/internal/cryptoutil"
	"github.com/lasergun-protocol/sdk-sub000/internal/ecies"
	"github.com/lasergun-protocol/sdk-sub000/internal/hd"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/notify"
	"github.com/lasergun-protocol/sdk-sub000/internal/storage"
	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// State is one of the three phases the scanner's state machine visits
// (spec §4.4).
type State string

const (
	StateIdle       State = "idle"
	StateRecovering State = "recovering"
	StateRunning    State = "running"
)

// Contract is the subset of *contractproxy.Proxy the ongoing poll loop
// calls, narrowed like internal/token's Caller so the state machine can
// be driven by a fake in tests instead of a live chain.
type Contract interface {
	HeadBlock(ctx context.Context) (uint64, error)
	GetShieldInfo(ctx context.Context, commitment [32]byte) (*contractproxy.ShieldInfo, error)
	FilterSecretDelivered(ctx context.Context, fromBlock, toBlock uint64) ([]contractproxy.SecretDeliveredEvent, error)
}

// RecoverFunc runs historical recovery from the given start block,
// returning the block it synced through. The scanner invokes it once
// when entering the Recovering phase (spec §4.4: "entering Recovering is
// optional (flag)").
type RecoverFunc func(ctx context.Context, fromBlock uint64) (uint64, error)

// Config holds the timing knobs spec §5 fixes defaults for.
type Config struct {
	BatchSize      uint64        // default 1000
	IdleSleep      time.Duration // default 5s
	InterIterPause time.Duration // default 100ms
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}
	if c.IdleSleep == 0 {
		c.IdleSleep = 5 * time.Second
	}
	if c.InterIterPause == 0 {
		c.InterIterPause = 100 * time.Millisecond
	}
	return c
}

// Scanner runs the Idle → Recovering → Running → Idle state machine for
// one wallet context.
type Scanner struct {
	contract   Contract
	store      storage.Adapter
	wc         model.Context
	wallet     common.Address
	privateKey [32]byte
	notifier   *notify.Hub
	recover    RecoverFunc
	cfg        Config

	mu      sync.Mutex
	state   State
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New constructs a Scanner. recoverFn may be nil, in which case the
// scanner skips the Recovering phase and starts directly from the stored
// cursor.
func New(contract Contract, store storage.Adapter, wc model.Context, wallet common.Address, privateKey [32]byte, notifier *notify.Hub, recoverFn RecoverFunc, cfg Config) *Scanner {
	return &Scanner{
		contract:   contract,
		store:      store,
		wc:         wc,
		wallet:     wallet,
		privateKey: privateKey,
		notifier:   notifier,
		recover:    recoverFn,
		cfg:        cfg.withDefaults(),
		state:      StateIdle,
	}
}

// State returns the scanner's current phase.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scanner) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	if s.notifier != nil {
		s.notifier.State(string(st))
	}
}

// Start launches the scanner's background loop. If recoverOnStart is true
// and a RecoverFunc was supplied, the scanner runs historical recovery
// first (Recovering phase) before entering the Running poll loop.
func (s *Scanner) Start(ctx context.Context, recoverOnStart bool) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return walleterrors.New(walleterrors.CategoryScanner, "scanner.Start", errAlreadyRunning)
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if recoverOnStart && s.recover != nil {
		s.setState(StateRecovering)
		cursor, _, err := s.loadCursor(ctx)
		if err != nil {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return err
		}
		head, err := s.recover(ctx, cursor)
		if err != nil {
			if s.notifier != nil {
				s.notifier.Error(err)
			}
		} else if err := s.store.SaveCursor(ctx, s.wc, head); err != nil {
			if s.notifier != nil {
				s.notifier.Error(walleterrors.New(walleterrors.CategoryStorage, "scanner.Start", err))
			}
		}
	}

	s.setState(StateRunning)
	go s.loop(ctx)
	return nil
}

// Stop flips the running flag and awaits the loop reaching its next
// boundary; cancellation never interrupts a mid-batch event write
// (spec §5).
func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh := s.stopCh
	done := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.setState(StateIdle)
	return nil
}

func (s *Scanner) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scanner) loop(ctx context.Context) {
	defer close(s.doneCh)
	for s.isRunning() {
		if err := s.tick(ctx); err != nil {
			if s.notifier != nil {
				s.notifier.Error(err)
			} else {
				log.Printf("[scanner] tick error: %v", err)
			}
		}
		select {
		case <-s.stopCh:
			return
		case <-time.After(s.cfg.InterIterPause):
		}
	}
}

func (s *Scanner) tick(ctx context.Context) error {
	cursor, hasCursor, err := s.loadCursor(ctx)
	if err != nil {
		return err
	}
	head, err := s.contract.HeadBlock(ctx)
	if err != nil {
		return walleterrors.New(walleterrors.CategoryNetwork, "scanner.tick", err)
	}
	if !hasCursor {
		cursor = head
	}
	if cursor > head {
		select {
		case <-s.stopCh:
		case <-time.After(s.cfg.IdleSleep):
		}
		return nil
	}

	to := cursor + s.cfg.BatchSize - 1
	if to > head {
		to = head
	}

	if err := s.scanRange(ctx, cursor, to); err != nil {
		return err
	}
	return s.store.SaveCursor(ctx, s.wc, to+1)
}

func (s *Scanner) loadCursor(ctx context.Context) (uint64, bool, error) {
	cursor, ok, err := s.store.LoadCursor(ctx, s.wc)
	if err != nil {
		return 0, false, walleterrors.New(walleterrors.CategoryStorage, "scanner.loadCursor", err)
	}
	return cursor, ok, nil
}

// scanRange queries SecretDelivered events in [from, to] and claims any
// addressed to this wallet (spec §4.4's per-batch procedure). Duplicate
// detection keys on commitment presence and (type, nonce), making
// re-scanning a range safe (spec §4.4 Idempotence).
func (s *Scanner) scanRange(ctx context.Context, from, to uint64) error {
	events, err := s.contract.FilterSecretDelivered(ctx, from, to)
	if err != nil {
		return walleterrors.New(walleterrors.CategoryNetwork, "scanner.scanRange", err)
	}

	for _, ev := range events {
		if err := s.claim(ctx, ev); err != nil {
			// Per-event failures are logged and skipped (spec §4.5's failure
			// policy applies equally here): a single corrupt event must never
			// stall the ongoing poll loop.
			if s.notifier != nil {
				s.notifier.Error(err)
			} else {
				log.Printf("[scanner] claim error: %v", err)
			}
		}
	}
	return nil
}

func (s *Scanner) claim(ctx context.Context, ev contractproxy.SecretDeliveredEvent) error {
	envelopeHex := "0x" + hex.EncodeToString(ev.EncryptedSecret)
	secret, ok := ecies.Decrypt(envelopeHex, s.privateKey)
	if !ok {
		return nil // not addressed to this wallet
	}

	commitment := cryptoutil.Commitment(secret, s.wallet)
	commitmentHex := "0x" + hex.EncodeToString(commitment[:])

	existing, err := s.store.LoadShield(ctx, s.wc, commitmentHex)
	if err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "scanner.claim", err)
	}
	if existing != nil {
		return nil
	}

	info, err := s.contract.GetShieldInfo(ctx, commitment)
	if err != nil {
		return err
	}
	if !info.Exists || info.Spent {
		return nil
	}

	counts, err := s.store.LoadCounts(ctx, s.wc)
	if err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "scanner.claim", err)
	}
	if counts == nil {
		counts = &model.EventCounts{}
	}

	index := counts.Received
	shield := model.Shield{
		Secret:         "0x" + hex.EncodeToString(secret[:]),
		Commitment:     commitmentHex,
		Token:          info.Token.Hex(),
		Amount:         info.Amount,
		Timestamp:      time.Now().Unix(),
		DerivationPath: hd.PathString(hd.OpReceived, index),
		HDIndex:        &index,
		HDOperation:    string(model.HDOpReceived),
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
	}
	if err := s.store.SaveShield(ctx, s.wc, shield); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "scanner.claim", err)
	}

	tx := model.Transaction{
		Nonce:          uint64(index),
		Type:           model.TxReceived,
		TxHash:         ev.TxHash.Hex(),
		BlockNumber:    ev.BlockNumber,
		Timestamp:      shield.Timestamp,
		Token:          info.Token.Hex(),
		Amount:         info.Amount,
		Commitment:     commitmentHex,
		DerivationPath: shield.DerivationPath,
		HDIndex:        &index,
		HDOperation:    string(model.HDOpReceived),
	}
	if existingTx, err := s.store.LoadTransaction(ctx, s.wc, model.TxReceived, tx.Nonce); err == nil && existingTx != nil {
		return nil
	}
	if err := s.store.SaveTransaction(ctx, s.wc, tx); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "scanner.claim", err)
	}

	counts.Received++
	counts.LastUpdatedBlock = ev.BlockNumber
	if err := s.store.SaveCounts(ctx, s.wc, *counts); err != nil {
		return walleterrors.New(walleterrors.CategoryStorage, "scanner.claim", err)
	}

	if s.notifier != nil {
		s.notifier.Transaction(tx)
	}
	return nil
}

var errAlreadyRunning = errors.New("scanner already running")
