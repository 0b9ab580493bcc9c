package clients

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TransferEvent is one decoded ERC-20 Transfer log.
type TransferEvent struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// ChainReader is the read-only substrate the scanner and the verifier
// share: balance queries, receipt and transaction lookup, and
// Transfer-event queries, all against one chain.
type ChainReader interface {
	ChainID() uint64
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error)
	// TransferLogs returns Transfer events emitted by the token
	// contract within exactly one block.
	TransferLogs(ctx context.Context, token common.Address, block *big.Int) ([]TransferEvent, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// ChainBackend adds the write-side primitives a wallet needs on top of
// ChainReader.
type ChainBackend interface {
	ChainReader
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	// WaitForConfirmations blocks until the transaction is included and
	// buried under depth confirmations, or ctx expires.
	WaitForConfirmations(ctx context.Context, txHash common.Hash, depth uint64) (*ethtypes.Receipt, error)
}
