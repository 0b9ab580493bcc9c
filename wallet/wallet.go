// Package wallet abstracts the wallet-connection provider the payment
// orchestrator drives: connect, report address and chain, switch
// chain, and submit transfers. Browser wallets sit behind this
// interface in the real app; KeyWallet is a private-key implementation
// for server-side use and tests.
package wallet

import (
	"context"
	"errors"
	"math/big"
)

// ErrRejected is returned when the user declines a wallet prompt. The
// orchestrator distinguishes it from generic submission failures.
var ErrRejected = errors.New("user rejected the request")

// Wallet is the opaque capability the orchestrator drives through its
// state machine.
type Wallet interface {
	// Connect establishes the session and returns the wallet address.
	Connect(ctx context.Context) (string, error)
	// Address returns the connected address, empty before Connect.
	Address() string
	// ChainID returns the wallet's active chain.
	ChainID() uint64
	// SwitchChain asks the wallet to change its active chain. Rejection
	// is tolerated by callers; some wallets switch transparently at
	// transaction-submit time.
	SwitchChain(ctx context.Context, chainID uint64) error
	// SendNative submits a plain value transfer and returns the tx hash.
	SendNative(ctx context.Context, to string, amount *big.Int) (string, error)
	// SendToken submits an ERC-20 transfer call and returns the tx hash.
	SendToken(ctx context.Context, token, to string, amount *big.Int) (string, error)
	// WaitForConfirmations blocks until the transaction reaches the
	// given confirmation depth on the wallet's active chain.
	WaitForConfirmations(ctx context.Context, txHash string, depth uint64) error
}
