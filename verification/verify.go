// Package verification re-derives, from chain state alone, whether a
// claimed transaction hash constitutes a qualifying rejection-fee
// payment. A client's word is never trusted: the receipt, the
// transaction, and the Transfer logs are read back from the chain
// before any link status changes.
package verification

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/go-playground/validator/v10"

	"github.com/crushlink/crushpay/clients"
	"github.com/crushlink/crushpay/logger"
	"github.com/crushlink/crushpay/metrics"
	"github.com/crushlink/crushpay/registry"
	"github.com/crushlink/crushpay/store"
	"github.com/crushlink/crushpay/types"
	"github.com/crushlink/crushpay/utils"
)

// VerificationService verifies rejection-fee payments across the
// registered chains and applies the terminal link status on success.
type VerificationService struct {
	chainClients map[uint64]clients.ChainReader
	links        store.Store
	receiver     common.Address
	timeout      time.Duration
	validate     *validator.Validate
	log          logger.Logger
	metrics      metrics.Recorder
}

type Option func(*VerificationService)

func WithLogger(l logger.Logger) Option {
	return func(s *VerificationService) { s.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *VerificationService) { s.metrics = r }
}

// NewVerificationService creates a verifier paying out to receiver.
// Chain clients are attached per chain with AddChainClient.
func NewVerificationService(links store.Store, receiver string, timeout time.Duration, opts ...Option) (*VerificationService, error) {
	if err := utils.ValidateAddress(receiver); err != nil {
		return nil, &types.CrushPayError{
			Code:    types.ErrMissingReceiver,
			Message: fmt.Sprintf("invalid receiver address: %v", err),
		}
	}

	s := &VerificationService{
		chainClients: make(map[uint64]clients.ChainReader),
		links:        links,
		receiver:     common.HexToAddress(receiver),
		timeout:      timeout,
		validate:     validator.New(),
		log:          logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddChainClient attaches a read client for one chain. The chain must
// be in the static registry.
func (s *VerificationService) AddChainClient(chainID uint64, client clients.ChainReader) error {
	if !registry.IsSupported(chainID) {
		return &types.CrushPayError{
			Code:    types.ErrUnsupportedChain,
			Message: fmt.Sprintf("chain %d is not in the registry", chainID),
		}
	}
	s.chainClients[chainID] = client
	return nil
}

// IsChainSupported reports whether a client is attached for the chain.
func (s *VerificationService) IsChainSupported(chainID uint64) bool {
	_, ok := s.chainClients[chainID]
	return ok
}

// VerifyTransaction checks a claimed payment against chain state and,
// when it qualifies, marks the link rejected_paid with the tx hash
// recorded. The returned result reflects chain truth; a failing store
// write is logged but does not flip an already-verified result. The
// check is read-only against the chain, so calling it again with the
// same hash is safe and yields the same answer.
func (s *VerificationService) VerifyTransaction(ctx context.Context, req *types.VerifyTxRequest) (*types.VerificationResult, error) {
	start := time.Now()

	if err := s.validate.Struct(req); err != nil {
		return fail(types.ErrInvalidRequest), nil
	}
	if err := req.Validate(); err != nil {
		return fail(types.ErrInvalidRequest), nil
	}
	if err := utils.ValidateTxHash(req.TxHash); err != nil {
		return fail(types.ErrInvalidRequest), nil
	}

	// Configuration checks come before any chain I/O.
	chain, ok := registry.ByChainID(req.ChainID)
	if !ok {
		return fail(types.ErrUnsupportedChain), nil
	}
	client, ok := s.chainClients[req.ChainID]
	if !ok {
		return fail(types.ErrNoClientForChain), nil
	}

	expected, err := req.ExpectedAmountInt()
	if err != nil {
		return fail(types.ErrInvalidRequest), nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := s.verifyOnChain(verifyCtx, client, req, expected)
	result.TxHash = req.TxHash
	result.ChainID = req.ChainID

	s.metrics.ObserveLatency("verify", time.Since(start), map[string]string{"chain": chain.Name})
	if !result.Verified {
		s.metrics.IncCounter("verify_failed", map[string]string{"chain": chain.Name})
		s.log.Info("payment not verified", map[string]any{
			"txHash": req.TxHash,
			"chain":  chain.Name,
			"reason": result.Reason,
		})
		return result, nil
	}

	s.metrics.IncCounter("verify_succeeded", map[string]string{"chain": chain.Name})

	// Chain truth and the storage write are separate concerns: the
	// verified result stands even if the update fails.
	if err := s.links.UpdateStatus(ctx, req.LinkID, types.StatusRejectedPaid, req.TxHash); err != nil {
		s.metrics.IncCounter("status_update_failed", map[string]string{"chain": chain.Name})
		s.log.Error("link status update failed", map[string]any{
			"linkId": req.LinkID,
			"txHash": req.TxHash,
			"error":  err.Error(),
		})
	}

	return result, nil
}

func (s *VerificationService) verifyOnChain(
	ctx context.Context,
	client clients.ChainReader,
	req *types.VerifyTxRequest,
	expected *big.Int,
) *types.VerificationResult {
	txHash := common.HexToHash(req.TxHash)

	receipt, err := client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if err == ethereum.NotFound {
			return fail(types.ErrReceiptNotFound)
		}
		return fail(types.ErrRPCFailure)
	}
	if receipt == nil {
		return fail(types.ErrReceiptNotFound)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fail(types.ErrTxNotSuccessful)
	}

	if req.TokenAddress == types.NativeToken {
		return s.verifyNative(ctx, client, txHash, expected)
	}
	return s.verifyToken(ctx, client, common.HexToAddress(req.TokenAddress), receipt.BlockNumber, expected)
}

// verifyNative checks a plain value transfer: destination must be the
// receiver and the transferred value at least the expected amount.
func (s *VerificationService) verifyNative(
	ctx context.Context,
	client clients.ChainReader,
	txHash common.Hash,
	expected *big.Int,
) *types.VerificationResult {
	tx, _, err := client.TransactionByHash(ctx, txHash)
	if err != nil || tx == nil {
		return fail(types.ErrTxNotFound)
	}

	to := tx.To()
	if to == nil || *to != s.receiver {
		return fail(types.ErrWrongRecipient)
	}
	if tx.Value().Cmp(expected) < 0 {
		return fail(types.ErrInsufficientAmount)
	}

	return &types.VerificationResult{
		Verified: true,
		Amount:   tx.Value().String(),
	}
}

// verifyToken checks ERC-20 Transfer logs emitted by the token
// contract in exactly the receipt's block. A matching event from any
// other block never counts.
func (s *VerificationService) verifyToken(
	ctx context.Context,
	client clients.ChainReader,
	token common.Address,
	block *big.Int,
	expected *big.Int,
) *types.VerificationResult {
	events, err := client.TransferLogs(ctx, token, block)
	if err != nil {
		return fail(types.ErrRPCFailure)
	}

	for _, ev := range events {
		if ev.BlockNumber != block.Uint64() {
			continue
		}
		if ev.To != s.receiver {
			continue
		}
		if ev.Value.Cmp(expected) >= 0 {
			return &types.VerificationResult{
				Verified: true,
				Amount:   ev.Value.String(),
			}
		}
	}
	return fail(types.ErrNoTransferLog)
}

// Close closes every attached chain client.
func (s *VerificationService) Close() {
	for _, client := range s.chainClients {
		client.Close()
	}
}

func fail(reason string) *types.VerificationResult {
	return &types.VerificationResult{Verified: false, Reason: reason}
}
