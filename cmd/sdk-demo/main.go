// sdk-demo wires every package of the LaserGun wallet SDK into a single
// CLI so the library can be exercised end-to-end without a host
// application. It is not the SDK itself — a consumer embeds the
// internal packages directly — but it is the reference wiring.
//
// Architecture:
//
//	main goroutine — parses the subcommand and drives one operation
//	goroutine      — Scanner.loop, once "serve" is running
//
// Grounded on the teacher's cmd/bot/main.go: config.Load() at startup,
// a single main loop, and signal.Notify-based graceful shutdown.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lasergun-protocol/sdk-sub000/internal/config"
	"github.com/lasergun-protocol/sdk-sub000/internal/contractproxy"
	"github.com/lasergun-protocol/sdk-sub000/internal/cryptoutil"
	"github.com/lasergun-protocol/sdk-sub000/internal/hd"
	"github.com/lasergun-protocol/sdk-sub000/internal/model"
	"github.com/lasergun-protocol/sdk-sub000/internal/notify"
	"github.com/lasergun-protocol/sdk-sub000/internal/operations"
	"github.com/lasergun-protocol/sdk-sub000/internal/recovery"
	"github.com/lasergun-protocol/sdk-sub000/internal/recoverymgr"
	"github.com/lasergun-protocol/sdk-sub000/internal/scanner"
	"github.com/lasergun-protocol/sdk-sub000/internal/storage"
	"github.com/lasergun-protocol/sdk-sub000/internal/token"
)

type wiring struct {
	cfg        *config.Config
	wc         model.Context
	privateKey [32]byte
	wallet     common.Address
	hdMgr      *hd.Manager
	contract   *contractproxy.Proxy
	tokenMgr   *token.Manager
	store      storage.Adapter
	notifier   *notify.Hub
	ops        *operations.Manager
	recoverer  *recovery.Runner
	scan       *scanner.Scanner
	mgr        *recoverymgr.Manager
}

func build(cfg *config.Config) (*wiring, error) {
	privateKey, err := cryptoutil.ParsePrivateKeyHex(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	wallet, err := cryptoutil.ParseAddressHex(cfg.WalletAddress)
	if err != nil {
		return nil, err
	}
	ecdsaKey, err := crypto.ToECDSA(privateKey[:])
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	hdMgr, err := hd.New(cfg.PrivateKey, cfg.WalletAddress, cfg.ChainID)
	if err != nil {
		return nil, err
	}

	contractAddr, err := cryptoutil.ParseAddressHex(cfg.ContractAddress)
	if err != nil {
		return nil, err
	}
	contract, err := contractproxy.New(cfg.RPCURL, contractAddr, ecdsaKey, cfg.ChainID,
		cfg.ReceiptTimeout, cfg.RetryAttempts, cfg.RetryBaseDelay)
	if err != nil {
		return nil, err
	}

	tokenMgr := token.New(contract)

	store, err := storage.NewFileAdapter(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewHub()
	notifier.OnError(func(err error) { log.Printf("[sdk-demo] error: %v", err) })
	notifier.OnState(func(state string) { log.Printf("[sdk-demo] scanner state: %s", state) })
	notifier.OnTransaction(func(tx model.Transaction) {
		log.Printf("[sdk-demo] transaction: type=%s nonce=%d commitment=%s amount=%s", tx.Type, tx.Nonce, tx.Commitment, tx.Amount)
	})

	wc := model.Context{ChainID: cfg.ChainID, Wallet: wallet}

	if err := persistKeysIfAbsent(context.Background(), store, contract, wc, privateKey); err != nil {
		return nil, err
	}

	ops := operations.New(hdMgr, contract, tokenMgr, store, wc, notifier)

	recoverer := recovery.New(contract, store, hdMgr, wc, wallet, privateKey, notifier,
		recovery.Config{BatchSize: cfg.BatchSize, InterBatchPause: cfg.InterBatchPause}, nil)

	scan := scanner.New(contract, store, wc, wallet, privateKey, notifier, recoverer.Run,
		scanner.Config{BatchSize: cfg.BatchSize, IdleSleep: cfg.IdleSleep, InterIterPause: cfg.InterIterPause})

	mgr := recoverymgr.New(contract, store, wc, recoverer)

	return &wiring{
		cfg:        cfg,
		wc:         wc,
		privateKey: privateKey,
		wallet:     wallet,
		hdMgr:      hdMgr,
		contract:   contract,
		tokenMgr:   tokenMgr,
		store:      store,
		notifier:   notifier,
		ops:        ops,
		recoverer:  recoverer,
		scan:       scan,
		mgr:        mgr,
	}, nil
}

// persistKeysIfAbsent writes the wallet's crypto key record the first
// time it is seen (spec §3: "written once, read-only thereafter"),
// stamping CreatedAtBlock with the chain head observed at that moment.
func persistKeysIfAbsent(ctx context.Context, store storage.Adapter, contract *contractproxy.Proxy, wc model.Context, privateKey [32]byte) error {
	existing, err := store.LoadKeys(ctx, wc)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	pubKeyHex, err := cryptoutil.UncompressedPublicKeyHex(privateKey)
	if err != nil {
		return err
	}
	head, err := contract.HeadBlock(ctx)
	if err != nil {
		return err
	}
	keys := model.CryptoKeys{
		PrivateKeyHex:  "0x" + hex.EncodeToString(privateKey[:]),
		PublicKeyHex:   pubKeyHex,
		CreatedAtBlock: head,
	}
	return store.SaveKeys(ctx, wc, keys)
}

func main() {
	cfg := config.Load()
	log.Printf("sdk-demo starting | chain=%d contract=%s", cfg.ChainID, cfg.ContractAddress)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	w, err := build(cfg)
	if err != nil {
		log.Fatalf("wiring failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch os.Args[1] {
	case "serve":
		runServe(ctx, w, cfg)
	case "shield":
		runShield(ctx, w, os.Args[2:])
	case "unshield":
		runUnshield(ctx, w, os.Args[2:])
	case "transfer-prepare":
		runTransferPrepare(ctx, w, os.Args[2:])
	case "transfer":
		runTransfer(ctx, w, os.Args[2:])
	case "consolidate":
		runConsolidate(ctx, w, os.Args[2:])
	case "stats":
		runStats(ctx, w)
	case "validate":
		runValidate(ctx, w)
	case "sync":
		runSync(ctx, w)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sdk-demo <command> [args]

commands:
  serve                                                   run the scanner until interrupted
  shield <amount> <token>                                 shield amount (wei) of token
  unshield <secret> <amount> <recipient>                  unshield amount to recipient
  transfer-prepare <own-secret> <recipient>               re-bind own-secret's commitment to recipient and encrypt it for them
  transfer <secret> <amount> <recipientCommitment> <encryptedSecret>
  consolidate <token> <secret1> [secret2 ...]             merge up to 10 shields of one token
  stats                                                   print wallet stats
  validate                                                validate local storage against the chain
  sync                                                     reconcile local storage with the chain`)
}

func runServe(ctx context.Context, w *wiring, cfg *config.Config) {
	if err := w.scan.Start(ctx, cfg.RecoverOnStart); err != nil {
		log.Fatalf("scanner start: %v", err)
	}
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ReceiptTimeout)
	defer cancel()
	if err := w.scan.Stop(stopCtx); err != nil {
		log.Printf("scanner stop: %v", err)
	}
}

func runShield(ctx context.Context, w *wiring, args []string) {
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}
	amount, ok := new(big.Int).SetString(args[0], 10)
	if !ok {
		log.Fatalf("invalid amount %q", args[0])
	}
	token := common.HexToAddress(args[1])
	printResult(w.ops.Shield(ctx, amount, token))
}

func runUnshield(ctx context.Context, w *wiring, args []string) {
	if len(args) != 3 {
		usage()
		os.Exit(1)
	}
	secret, err := parseSecret(args[0])
	if err != nil {
		log.Fatal(err)
	}
	amount, ok := new(big.Int).SetString(args[1], 10)
	if !ok {
		log.Fatalf("invalid amount %q", args[1])
	}
	recipient := common.HexToAddress(args[2])
	printResult(w.ops.Unshield(ctx, secret, amount, recipient))
}

func runTransferPrepare(ctx context.Context, w *wiring, args []string) {
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}
	ownSecret, err := parseSecret(args[0])
	if err != nil {
		log.Fatal(err)
	}
	recipient := common.HexToAddress(args[1])
	commitment, encryptedHex, err := w.ops.PrepareTransferTo(ctx, ownSecret, recipient)
	if err != nil {
		log.Fatalf("prepare transfer: %v", err)
	}
	fmt.Printf("commitment=0x%s\nencrypted_secret=%s\n",
		hex.EncodeToString(commitment[:]), encryptedHex)
}

func runTransfer(ctx context.Context, w *wiring, args []string) {
	if len(args) != 4 {
		usage()
		os.Exit(1)
	}
	senderSecret, err := parseSecret(args[0])
	if err != nil {
		log.Fatal(err)
	}
	amount, ok := new(big.Int).SetString(args[1], 10)
	if !ok {
		log.Fatalf("invalid amount %q", args[1])
	}
	recipientCommitment, err := parseSecret(args[2])
	if err != nil {
		log.Fatal(err)
	}
	encrypted, err := hex.DecodeString(strings.TrimPrefix(args[3], "0x"))
	if err != nil {
		log.Fatalf("invalid encrypted secret: %v", err)
	}
	printResult(w.ops.Transfer(ctx, senderSecret, amount, recipientCommitment, encrypted))
}

func runConsolidate(ctx context.Context, w *wiring, args []string) {
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}
	tok := common.HexToAddress(args[0])
	secrets := make([][32]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		s, err := parseSecret(a)
		if err != nil {
			log.Fatal(err)
		}
		secrets = append(secrets, s)
	}
	printResult(w.ops.Consolidate(ctx, secrets, tok))
}

func runStats(ctx context.Context, w *wiring) {
	stats, err := w.mgr.Stats(ctx)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	fmt.Printf("active shields: %d/%d\ncursor: %d\ncounts: %+v\nby type: %+v\noldest shield: %d\nnewest shield: %d\nkeys created at block: %d\n",
		stats.ActiveShieldCount, stats.TotalShieldCount, stats.Cursor, stats.Counts, stats.TransactionsByType,
		stats.OldestShieldTimestamp, stats.NewestShieldTimestamp, stats.CreatedAtBlock)
}

func runValidate(ctx context.Context, w *wiring) {
	report, err := w.mgr.ValidateIntegrity(ctx)
	if err != nil {
		log.Fatalf("validate: %v", err)
	}
	fmt.Printf("valid=%v orphans=%d\nissues: %v\nsuggestions: %v\n",
		report.Valid, report.OrphanCount, report.Issues, report.Suggestions)
}

func runSync(ctx context.Context, w *wiring) {
	report, err := w.mgr.SyncWithBlockchain(ctx)
	if err != nil {
		log.Fatalf("sync: %v", err)
	}
	fmt.Printf("added=%d removed=%d updated=%d\n", report.Added, report.Removed, report.Updated)
}

func printResult(res operations.Result) {
	if !res.Success {
		log.Fatalf("operation failed: %v", res.Error)
	}
	if res.Shield != nil {
		fmt.Printf("shield: commitment=%s amount=%s\n", res.Shield.Commitment, res.Shield.Amount)
	}
	if res.Transaction != nil {
		fmt.Printf("transaction: type=%s tx_hash=%s\n", res.Transaction.Type, res.Transaction.TxHash)
	}
}

func parseSecret(hexStr string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil || len(b) != 32 {
		return out, fmt.Errorf("expected 32-byte hex, got %q", hexStr)
	}
	copy(out[:], b)
	return out, nil
}
