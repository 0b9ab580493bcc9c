package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20ABI = `
[
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{ "name": "account", "type": "address" }],
    "outputs": [{ "name": "", "type": "uint256" }]
  },
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "to", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  },
  {
    "name": "Transfer",
    "type": "event",
    "inputs": [
      { "name": "from", "type": "address", "indexed": true },
      { "name": "to", "type": "address", "indexed": true },
      { "name": "value", "type": "uint256", "indexed": false }
    ]
  }
]
`

// TransferTopic is the keccak hash of the canonical Transfer event
// signature, used to filter ERC-20 Transfer logs.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var parsedERC20 = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic("clients: bad ERC20 ABI: " + err.Error())
	}
	return parsed
}()

// PackTransfer builds ERC-20 transfer(to, amount) calldata.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return parsedERC20.Pack("transfer", to, amount)
}

var _ ChainBackend = (*EVMClient)(nil)

// EVMClient wraps an ethclient connection to one chain with the typed
// read and write operations the rest of the module uses.
type EVMClient struct {
	chainID  uint64
	rpcURL   string
	client   *ethclient.Client
	tokenABI abi.ABI

	// PollInterval paces the confirmation-wait loop.
	PollInterval time.Duration
}

// NewEVMClient dials an EVM RPC endpoint.
func NewEVMClient(chainID uint64, rpcURL string) (*EVMClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC %s: %w", rpcURL, err)
	}
	return newEVMClient(chainID, rpcURL, client)
}

func newEVMClient(chainID uint64, rpcURL string, client *ethclient.Client) (*EVMClient, error) {
	return &EVMClient{
		chainID:      chainID,
		rpcURL:       rpcURL,
		client:       client,
		tokenABI:     parsedERC20,
		PollInterval: 3 * time.Second,
	}, nil
}

// ChainID implements ChainReader.
func (e *EVMClient) ChainID() uint64 {
	return e.chainID
}

// NativeBalance implements ChainReader.
func (e *EVMClient) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return e.client.BalanceAt(ctx, account, nil)
}

// TokenBalance implements ChainReader via a read-only balanceOf call.
func (e *EVMClient) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data, err := e.tokenABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	out, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	results, err := e.tokenABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", results[0])
	}
	return balance, nil
}

// TransactionReceipt implements ChainReader.
func (e *EVMClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return e.client.TransactionReceipt(ctx, txHash)
}

// TransactionByHash implements ChainReader.
func (e *EVMClient) TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error) {
	return e.client.TransactionByHash(ctx, txHash)
}

// TransferLogs implements ChainReader. The query is pinned to a single
// block so a matching event from any other block can never count.
func (e *EVMClient) TransferLogs(ctx context.Context, token common.Address, block *big.Int) ([]TransferEvent, error) {
	logs, err := e.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: block,
		ToBlock:   block,
		Addresses: []common.Address{token},
		Topics:    [][]common.Hash{{TransferTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter Transfer logs: %w", err)
	}

	events := make([]TransferEvent, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 3 {
			continue
		}
		events = append(events, TransferEvent{
			From:        common.BytesToAddress(l.Topics[1].Bytes()),
			To:          common.BytesToAddress(l.Topics[2].Bytes()),
			Value:       new(big.Int).SetBytes(l.Data),
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash,
		})
	}
	return events, nil
}

// BlockNumber implements ChainReader.
func (e *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	return e.client.BlockNumber(ctx)
}

// PendingNonceAt implements ChainBackend.
func (e *EVMClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return e.client.PendingNonceAt(ctx, account)
}

// SuggestGasPrice implements ChainBackend.
func (e *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return e.client.SuggestGasPrice(ctx)
}

// EstimateGas implements ChainBackend.
func (e *EVMClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return e.client.EstimateGas(ctx, msg)
}

// SendTransaction implements ChainBackend.
func (e *EVMClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return e.client.SendTransaction(ctx, tx)
}

// WaitForConfirmations implements ChainBackend. It polls for the
// receipt and then for head advancement until the inclusion block is
// buried under depth confirmations. The caller bounds the wait through
// ctx; there is no internal timeout.
func (e *EVMClient) WaitForConfirmations(ctx context.Context, txHash common.Hash, depth uint64) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := e.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			head, err := e.client.BlockNumber(ctx)
			if err == nil {
				included := receipt.BlockNumber.Uint64()
				if head >= included && head-included+1 >= depth {
					return receipt, nil
				}
			}
		} else if err != nil && err != ethereum.NotFound {
			return nil, fmt.Errorf("receipt poll failed: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close implements ChainReader.
func (e *EVMClient) Close() {
	e.client.Close()
}
