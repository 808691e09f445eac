// Package walleterrors defines the unified error taxonomy the SDK uses to
// classify every failure that can escape a wallet operation.
package walleterrors

import (
	"errors"
	"fmt"
)

// Category is one of the fixed error categories the SDK distinguishes.
// Callers should branch on Category, never on Error.Error()'s text.
type Category string

const (
	CategoryInvalidConfig       Category = "invalid_config"
	CategoryNetwork             Category = "network_error"
	CategoryContract            Category = "contract_error"
	CategoryCrypto              Category = "crypto_error"
	CategoryStorage             Category = "storage_error"
	CategoryValidation          Category = "validation_error"
	CategoryInsufficientBalance Category = "insufficient_balance"
	CategoryInvalidAmount       Category = "invalid_amount"
	CategoryScanner             Category = "scanner_error"
	CategoryShieldNotFound      Category = "shield_not_found"
	CategoryCommitmentExists    Category = "commitment_exists"
	CategoryHDDerivation        Category = "hd_derivation_error"
	CategoryEventCount          Category = "event_count_error"
)

// Error wraps an underlying cause with a Category and the operation name
// that produced it, preserving the chain so diagnostics can recover the
// original RPC/storage message (§7's observability requirement).
type Error struct {
	Category Category
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Category)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for the given category and operation.
func New(category Category, op string, err error) *Error {
	return &Error{Category: category, Op: op, Err: err}
}

// Wrap is a convenience for the common "op failed: %w" shape.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Op: op, Err: err}
}

// CategoryOf extracts the Category from err if it (or something it wraps)
// is a *Error, otherwise returns "" and false.
func CategoryOf(err error) (Category, bool) {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Category, true
	}
	return "", false
}

// nonRetryable lists the substrings spec §5 marks as not worth retrying:
// insufficient funds, nonce too low, replacement underpriced, execution
// reverted, invalid commitment, shield not found, insufficient balance.
var nonRetryable = []string{
	"insufficient funds",
	"nonce too low",
	"replacement transaction underpriced",
	"execution reverted",
	"invalid commitment",
	"shield not found",
	"insufficient balance",
}

// IsNonRetryable reports whether err belongs to the non-retryable set that
// the contract-read retry envelope (§5) must not attempt again.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	if cat, ok := CategoryOf(err); ok {
		switch cat {
		case CategoryShieldNotFound, CategoryInsufficientBalance, CategoryCommitmentExists:
			return true
		}
	}
	msg := err.Error()
	for _, s := range nonRetryable {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

// containsFold is a tiny ASCII-case-insensitive substring check, avoiding a
// strings.ToLower allocation on the hot retry path.
func containsFold(haystack, needle string) bool {
	n := len(needle)
	h := len(haystack)
	if n == 0 || n > h {
		return n == 0
	}
	for i := 0; i+n <= h; i++ {
		if equalFold(haystack[i:i+n], needle) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
