// Package crushpay discovers and verifies rejection-fee payments for
// confession links across the registered EVM chains. The facade wires
// the chain clients, asset scanner, payment orchestrator, and
// server-side verifier behind one handle.
package crushpay

import (
	"context"
	"fmt"
	"time"

	"github.com/crushlink/crushpay/clients"
	"github.com/crushlink/crushpay/payment"
	"github.com/crushlink/crushpay/registry"
	"github.com/crushlink/crushpay/scanner"
	"github.com/crushlink/crushpay/store"
	"github.com/crushlink/crushpay/types"
	"github.com/crushlink/crushpay/verification"
	"github.com/crushlink/crushpay/wallet"
)

// Config carries the deployment-level settings. The zero value is
// usable: registry receiver, 30s verification timeout, 2 confirmations.
type Config struct {
	// ReceiverAddress overrides the registry payout address.
	ReceiverAddress string
	// Timeout bounds a single verification pass.
	Timeout time.Duration
	// Confirmations is the depth required before client-side flows hand
	// a hash to the verifier.
	Confirmations uint64
	// RPCOverrides replaces the registry RPC URL per chain ID.
	RPCOverrides map[uint64]string
}

// CrushPay is the top-level handle.
type CrushPay struct {
	config   Config
	links    store.Store
	verifier *verification.VerificationService
	readers  map[uint64]clients.ChainReader
	backends map[uint64]clients.ChainBackend
	scanner  *scanner.Scanner
	opts     options
}

// New builds a CrushPay instance. Chains are attached afterwards with
// AddChain or AddAllChains.
func New(cfg *Config, opts ...Option) (*CrushPay, error) {
	c := &CrushPay{
		readers:  make(map[uint64]clients.ChainReader),
		backends: make(map[uint64]clients.ChainBackend),
		opts:     defaultOptions(),
	}
	if cfg != nil {
		c.config = *cfg
	}
	if c.config.ReceiverAddress == "" {
		c.config.ReceiverAddress = registry.ReceiverAddress
	}
	if c.config.Timeout <= 0 {
		c.config.Timeout = 30 * time.Second
	}
	if c.config.Confirmations == 0 {
		c.config.Confirmations = 2
	}
	for _, opt := range opts {
		opt(&c.opts)
	}

	c.links = c.opts.store
	if c.links == nil {
		c.links = store.NewMemoryStore()
	}

	verifier, err := verification.NewVerificationService(
		c.links,
		c.config.ReceiverAddress,
		c.config.Timeout,
		verification.WithLogger(c.opts.log),
		verification.WithMetrics(c.opts.metrics),
	)
	if err != nil {
		return nil, err
	}
	c.verifier = verifier

	c.scanner = scanner.New(
		registry.All(),
		c.readers,
		scanner.WithLogger(c.opts.log),
		scanner.WithMetrics(c.opts.metrics),
	)
	return c, nil
}

// AddChain dials the RPC endpoint for one registered chain and attaches
// it to both the scanner and the verifier.
func (c *CrushPay) AddChain(chainID uint64) error {
	chain, ok := registry.ByChainID(chainID)
	if !ok {
		return &types.CrushPayError{
			Code:    types.ErrUnsupportedChain,
			Message: fmt.Sprintf("chain %d is not in the registry", chainID),
		}
	}

	rpcURL := chain.RPCURL
	if override, ok := c.config.RPCOverrides[chainID]; ok {
		rpcURL = override
	}

	client, err := clients.NewEVMClient(chainID, rpcURL)
	if err != nil {
		return fmt.Errorf("failed to create client for %s: %w", chain.Name, err)
	}
	if err := c.verifier.AddChainClient(chainID, client); err != nil {
		client.Close()
		return err
	}

	c.readers[chainID] = client
	c.backends[chainID] = client
	return nil
}

// AddAllChains attaches every chain in the registry. One chain failing
// to dial does not stop the rest; the first error is returned after all
// attempts so a partial deployment still serves the chains it reached.
func (c *CrushPay) AddAllChains() error {
	var firstErr error
	for _, chain := range registry.All() {
		if err := c.AddChain(chain.ChainID); err != nil {
			c.opts.log.Warn("chain attach failed", map[string]any{
				"chain": chain.Name,
				"error": err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Verify re-checks a claimed payment against chain state.
func (c *CrushPay) Verify(ctx context.Context, req *types.VerifyTxRequest) (*types.VerificationResult, error) {
	return c.verifier.VerifyTransaction(ctx, req)
}

// ScanAssets discovers payable (chain, token) balances for an address.
// Zero balances are dropped, matching the selection UI.
func (c *CrushPay) ScanAssets(ctx context.Context, address string) ([]types.DiscoveredAsset, error) {
	return c.scanner.Scan(ctx, address, scanner.ScanOptions{DropZero: true})
}

// IsChainSupported reports whether a chain has been attached.
func (c *CrushPay) IsChainSupported(chainID uint64) bool {
	return c.verifier.IsChainSupported(chainID)
}

// Links exposes the link store for HTTP handlers.
func (c *CrushPay) Links() store.Store { return c.links }

// VerificationService exposes the chain verifier for HTTP handlers.
func (c *CrushPay) VerificationService() *verification.VerificationService {
	return c.verifier
}

// Backends returns the dialed chain backends, keyed by chain ID, for
// wiring a key wallet.
func (c *CrushPay) Backends() map[uint64]clients.ChainBackend { return c.backends }

// NewOrchestrator builds a payment flow driving the given wallet
// against the in-process verifier.
func (c *CrushPay) NewOrchestrator(w wallet.Wallet) *payment.Orchestrator {
	return payment.NewOrchestrator(
		w,
		c.scanner,
		localVerifier{service: c.verifier},
		c.config.ReceiverAddress,
		payment.WithConfirmations(c.config.Confirmations),
		payment.WithLogger(c.opts.log),
		payment.WithMetrics(c.opts.metrics),
	)
}

// Close closes every dialed chain client.
func (c *CrushPay) Close() {
	c.verifier.Close()
}

// localVerifier adapts the in-process verification service to the
// orchestrator's wire-shaped Verifier interface.
type localVerifier struct {
	service *verification.VerificationService
}

func (v localVerifier) Verify(ctx context.Context, req *types.VerifyTxRequest) (*types.VerifyTxResponse, error) {
	result, err := v.service.VerifyTransaction(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.Verified {
		return &types.VerifyTxResponse{Success: false, Error: result.Reason}, nil
	}
	return &types.VerifyTxResponse{
		Success: true,
		Status:  string(types.StatusRejectedPaid),
	}, nil
}
