// Package contractproxy wraps the LaserGun mixer contract: ABI-pack and
// sign-and-broadcast for the four write methods, typed reads for the fee
// and shield-info getters, and FilterLogs-based event queries for
// recovery and the ongoing scanner. The sign→broadcast→wait-for-receipt
// shape and the CallContract read pattern are carried over from the
// Gnosis Safe execution path the teacher used for mergePositions.
package contractproxy

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/lasergun-protocol/sdk-sub000/internal/walleterrors"
)

// ShieldInfo mirrors the contract's getShieldInfo return tuple (spec §6).
type ShieldInfo struct {
	Exists    bool
	Token     common.Address
	Amount    *big.Int
	Timestamp *big.Int
	Spent     bool
}

// Proxy is the typed gateway to one mixer contract deployment, signing
// transactions with a single EOA key.
type Proxy struct {
	client         *ethclient.Client
	key            *ecdsa.PrivateKey
	signer         common.Address
	contractAddr   common.Address
	chainID        *big.Int
	mixerABI       abi.ABI
	erc20ABI       abi.ABI
	receiptTimeout time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
}

// New dials rpcURL and parses both embedded ABIs.
func New(rpcURL string, contractAddr common.Address, key *ecdsa.PrivateKey, chainID int64, receiptTimeout time.Duration, retryAttempts int, retryBaseDelay time.Duration) (*Proxy, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryNetwork, "contractproxy.New", err)
	}
	mABI, err := abi.JSON(strings.NewReader(mixerABI))
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryInvalidConfig, "contractproxy.New", err)
	}
	eABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryInvalidConfig, "contractproxy.New", err)
	}
	return &Proxy{
		client:         client,
		key:            key,
		signer:         crypto.PubkeyToAddress(key.PublicKey),
		contractAddr:   contractAddr,
		chainID:        big.NewInt(chainID),
		mixerABI:       mABI,
		erc20ABI:       eABI,
		receiptTimeout: receiptTimeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
	}, nil
}

// ERC20ABI exposes the parsed ERC-20 ABI for internal/token's wrapper.
func (p *Proxy) ERC20ABI() abi.ABI { return p.erc20ABI }

// Client exposes the underlying ethclient for internal/token calls.
func (p *Proxy) Client() *ethclient.Client { return p.client }

// Signer returns the wallet address derived from the configured key.
func (p *Proxy) Signer() common.Address { return p.signer }

// ContractAddress returns the configured mixer contract address.
func (p *Proxy) ContractAddress() common.Address { return p.contractAddr }

// ── Retry envelope (spec §5) ─────────────────────────────────────────────

// retryRead performs the initial attempt plus up to p.retryAttempts
// retries, sleeping p.retryBaseDelay and doubling between each (spec §5:
// "retried up to 3 times with exponential backoff (1s, 2s, 4s)" — with
// the default retryAttempts=3 and retryBaseDelay=1s this produces exactly
// four tries separated by the 1s/2s/4s schedule).
func (p *Proxy) retryRead(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	delay := p.retryBaseDelay
	for attempt := 0; attempt <= p.retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if walleterrors.IsNonRetryable(lastErr) {
			return walleterrors.New(walleterrors.CategoryContract, op, lastErr)
		}
		if attempt == p.retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return walleterrors.New(walleterrors.CategoryNetwork, op, lastErr)
}

func (p *Proxy) call(ctx context.Context, op string, data []byte) ([]byte, error) {
	var result []byte
	err := p.retryRead(ctx, op, func() error {
		r, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &p.contractAddr, Data: data}, nil)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// ── Reads (spec §6) ───────────────────────────────────────────────────────

func (p *Proxy) GetShieldInfo(ctx context.Context, commitment [32]byte) (*ShieldInfo, error) {
	data, err := p.mixerABI.Pack("getShieldInfo", commitment)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.GetShieldInfo", err)
	}
	result, err := p.call(ctx, "contractproxy.GetShieldInfo", data)
	if err != nil {
		return nil, err
	}
	out, err := p.mixerABI.Unpack("getShieldInfo", result)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.GetShieldInfo", err)
	}
	if len(out) != 5 {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.GetShieldInfo", fmt.Errorf("unexpected return arity %d", len(out)))
	}
	return &ShieldInfo{
		Exists:    out[0].(bool),
		Token:     out[1].(common.Address),
		Amount:    out[2].(*big.Int),
		Timestamp: out[3].(*big.Int),
		Spent:     out[4].(bool),
	}, nil
}

func (p *Proxy) GetShieldBalance(ctx context.Context, secret [32]byte, token common.Address) (*big.Int, error) {
	data, err := p.mixerABI.Pack("getShieldBalance", secret, token)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.GetShieldBalance", err)
	}
	result, err := p.call(ctx, "contractproxy.GetShieldBalance", data)
	if err != nil {
		return nil, err
	}
	out, err := p.mixerABI.Unpack("getShieldBalance", result)
	if err != nil || len(out) != 1 {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.GetShieldBalance", err)
	}
	return out[0].(*big.Int), nil
}

func (p *Proxy) IsCommitmentActive(ctx context.Context, commitment [32]byte) (bool, error) {
	data, err := p.mixerABI.Pack("isCommitmentActive", commitment)
	if err != nil {
		return false, walleterrors.New(walleterrors.CategoryContract, "contractproxy.IsCommitmentActive", err)
	}
	result, err := p.call(ctx, "contractproxy.IsCommitmentActive", data)
	if err != nil {
		return false, err
	}
	out, err := p.mixerABI.Unpack("isCommitmentActive", result)
	if err != nil || len(out) != 1 {
		return false, walleterrors.New(walleterrors.CategoryContract, "contractproxy.IsCommitmentActive", err)
	}
	return out[0].(bool), nil
}

// PublicKeys returns the raw uncompressed public key an owner has
// registered, or nil if none.
func (p *Proxy) PublicKeys(ctx context.Context, owner common.Address) ([]byte, error) {
	data, err := p.mixerABI.Pack("publicKeys", owner)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.PublicKeys", err)
	}
	result, err := p.call(ctx, "contractproxy.PublicKeys", data)
	if err != nil {
		return nil, err
	}
	out, err := p.mixerABI.Unpack("publicKeys", result)
	if err != nil || len(out) != 1 {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.PublicKeys", err)
	}
	return out[0].([]byte), nil
}

func (p *Proxy) feePercent(ctx context.Context, method string) (*big.Int, error) {
	data, err := p.mixerABI.Pack(method)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy."+method, err)
	}
	result, err := p.call(ctx, "contractproxy."+method, data)
	if err != nil {
		return nil, err
	}
	out, err := p.mixerABI.Unpack(method, result)
	if err != nil || len(out) != 1 {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy."+method, err)
	}
	return out[0].(*big.Int), nil
}

func (p *Proxy) ShieldFeePercent(ctx context.Context) (*big.Int, error) {
	return p.feePercent(ctx, "shieldFeePercent")
}

func (p *Proxy) UnshieldFeePercent(ctx context.Context) (*big.Int, error) {
	return p.feePercent(ctx, "unshieldFeePercent")
}

func (p *Proxy) TransferFeePercent(ctx context.Context) (*big.Int, error) {
	return p.feePercent(ctx, "transferFeePercent")
}

func (p *Proxy) FeeDenominator(ctx context.Context) (*big.Int, error) {
	return p.feePercent(ctx, "FEE_DENOMINATOR")
}

// ── Writes (spec §4.3, §6) ────────────────────────────────────────────────

// Receipt is the minimal result the operations layer needs from a
// confirmed transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
}

func (p *Proxy) submit(ctx context.Context, op string, data []byte) (*Receipt, error) {
	return p.submitTo(ctx, op, p.contractAddr, data)
}

// submitTo signs and broadcasts data against an arbitrary target contract
// with the proxy's own key, used both for the mixer contract itself and,
// via ApproveToken, for an ERC-20 token's approve method.
func (p *Proxy) submitTo(ctx context.Context, op string, to common.Address, data []byte) (*Receipt, error) {
	nonce, err := p.client.PendingNonceAt(ctx, p.signer)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryNetwork, op, err)
	}
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryNetwork, op, err)
	}
	gasLimit, err := p.client.EstimateGas(ctx, ethereum.CallMsg{
		From: p.signer,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, op, err)
	}
	gasLimit = gasLimit * 12 / 10

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signer := types.NewEIP155Signer(p.chainID)
	signedTx, err := types.SignTx(tx, signer, p.key)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryCrypto, op, err)
	}

	if err := p.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, walleterrors.New(walleterrors.CategoryNetwork, op, err)
	}

	return p.waitForReceipt(ctx, op, signedTx.Hash())
}

// waitForReceipt polls until the transaction is mined or the receipt
// ceiling (spec §5, default 60s) elapses. Receipt waits never retry: the
// mempool is authoritative.
func (p *Proxy) waitForReceipt(ctx context.Context, op string, txHash common.Hash) (*Receipt, error) {
	deadline := time.Now().Add(p.receiptTimeout)
	for {
		receipt, err := p.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, walleterrors.New(walleterrors.CategoryContract, op, fmt.Errorf("transaction %s reverted in block %d", txHash.Hex(), receipt.BlockNumber))
			}
			return &Receipt{TxHash: txHash, BlockNumber: receipt.BlockNumber.Uint64()}, nil
		}
		if time.Now().After(deadline) {
			return nil, walleterrors.New(walleterrors.CategoryNetwork, op, fmt.Errorf("receipt timeout waiting for %s", txHash.Hex()))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (p *Proxy) Shield(ctx context.Context, amount *big.Int, token common.Address, commitment [32]byte) (*Receipt, error) {
	data, err := p.mixerABI.Pack("shield", amount, token, commitment)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.Shield", err)
	}
	return p.submit(ctx, "contractproxy.Shield", data)
}

func (p *Proxy) Unshield(ctx context.Context, secret [32]byte, amount *big.Int, recipient common.Address, newCommitment [32]byte) (*Receipt, error) {
	data, err := p.mixerABI.Pack("unshield", secret, amount, recipient, newCommitment)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.Unshield", err)
	}
	return p.submit(ctx, "contractproxy.Unshield", data)
}

func (p *Proxy) Transfer(ctx context.Context, secret [32]byte, amount *big.Int, recipientCommitment [32]byte, encryptedSecret []byte) (*Receipt, error) {
	data, err := p.mixerABI.Pack("transfer", secret, amount, recipientCommitment, encryptedSecret)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.Transfer", err)
	}
	return p.submit(ctx, "contractproxy.Transfer", data)
}

func (p *Proxy) Consolidate(ctx context.Context, secrets [][32]byte, newCommitment [32]byte) (*Receipt, error) {
	data, err := p.mixerABI.Pack("consolidate", secrets, newCommitment)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.Consolidate", err)
	}
	return p.submit(ctx, "contractproxy.Consolidate", data)
}

func (p *Proxy) RegisterPublicKey(ctx context.Context, publicKey []byte) (*Receipt, error) {
	data, err := p.mixerABI.Pack("registerPublicKey", publicKey)
	if err != nil {
		return nil, walleterrors.New(walleterrors.CategoryContract, "contractproxy.RegisterPublicKey", err)
	}
	return p.submit(ctx, "contractproxy.RegisterPublicKey", data)
}

// ApproveToken signs and broadcasts an ERC-20 approve(spender, amount)
// call against token with the proxy's own key, backing internal/token's
// EnsureAllowance (spec §4.3's shield pre-check: "requesting approval if
// short").
func (p *Proxy) ApproveToken(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	data, err := p.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return walleterrors.New(walleterrors.CategoryContract, "contractproxy.ApproveToken", err)
	}
	_, err = p.submitTo(ctx, "contractproxy.ApproveToken", token, data)
	return err
}

// DecodeConsolidateInput fetches txHash's body and decodes the
// consolidate(bytes32[],bytes32) calldata, returning the input secrets
// (from which the old commitments a ShieldConsolidated event's indexed
// array hashed away can be re-derived) and the new commitment (spec §6, §9).
func (p *Proxy) DecodeConsolidateInput(ctx context.Context, txHash common.Hash) ([][32]byte, [32]byte, error) {
	tx, _, err := p.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, [32]byte{}, walleterrors.New(walleterrors.CategoryNetwork, "contractproxy.DecodeConsolidateInput", err)
	}
	data := tx.Data()
	if len(data) < 4 {
		return nil, [32]byte{}, walleterrors.New(walleterrors.CategoryContract, "contractproxy.DecodeConsolidateInput", fmt.Errorf("calldata too short"))
	}
	method, err := p.mixerABI.MethodById(data[:4])
	if err != nil {
		return nil, [32]byte{}, walleterrors.New(walleterrors.CategoryContract, "contractproxy.DecodeConsolidateInput", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return nil, [32]byte{}, walleterrors.New(walleterrors.CategoryContract, "contractproxy.DecodeConsolidateInput", err)
	}
	rawSecrets := args[0].([][32]byte)
	newCommitment := args[1].([32]byte)
	return rawSecrets, newCommitment, nil
}
