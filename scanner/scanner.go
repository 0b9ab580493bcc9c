// Package scanner discovers which (chain, token) pairs in the static
// registry hold enough balance to cover the rejection fee for a given
// wallet address.
package scanner

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/crushlink/crushpay/clients"
	"github.com/crushlink/crushpay/logger"
	"github.com/crushlink/crushpay/metrics"
	"github.com/crushlink/crushpay/types"
	"github.com/crushlink/crushpay/utils"
)

// Scanner issues every (chain × token) balance read concurrently and
// joins on full settlement: a failed read degrades that single pair to
// balance zero, it never aborts the scan.
type Scanner struct {
	chains  []types.ChainEntry
	readers map[uint64]clients.ChainReader
	log     logger.Logger
	metrics metrics.Recorder
}

type Option func(*Scanner)

func WithLogger(l logger.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Scanner) { s.metrics = r }
}

// New builds a scanner over the given chains. Chains without a reader
// in the map are scanned as all-zero; they are not an error, matching
// the tolerate-individual-failure contract.
func New(chains []types.ChainEntry, readers map[uint64]clients.ChainReader, opts ...Option) *Scanner {
	s := &Scanner{
		chains:  chains,
		readers: readers,
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanOptions control post-settlement filtering. Filtering is a
// consumer decision; the scan itself always settles every pair.
type ScanOptions struct {
	// SufficientOnly keeps only assets with HasEnough set.
	SufficientOnly bool
	// DropZero discards assets with a zero balance; the selection UI
	// never shows empty balances.
	DropZero bool
}

// Scan reads every registered (chain, token) balance for address and
// returns the discovered assets, sufficient-balance entries first.
// It returns an error only for an invalid input address; RPC failures
// surface as zero-balance entries.
func (s *Scanner) Scan(ctx context.Context, address string, opts ScanOptions) ([]types.DiscoveredAsset, error) {
	if err := utils.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}
	account := common.HexToAddress(address)

	var total int
	for _, chain := range s.chains {
		total += len(chain.Tokens)
	}

	start := time.Now()
	results := make(chan types.DiscoveredAsset, total)
	var wg sync.WaitGroup

	for _, chain := range s.chains {
		reader := s.readers[chain.ChainID]
		for _, token := range chain.Tokens {
			wg.Add(1)
			go func(chain types.ChainEntry, token types.ChainToken) {
				defer wg.Done()
				results <- s.readOne(ctx, reader, chain, token, account)
			}(chain, token)
		}
	}

	wg.Wait()
	close(results)

	assets := make([]types.DiscoveredAsset, 0, total)
	for asset := range results {
		if opts.SufficientOnly && !asset.HasEnough {
			continue
		}
		if opts.DropZero && asset.Balance.Sign() == 0 {
			continue
		}
		assets = append(assets, asset)
	}

	// Sufficient first; registry order within each group is not
	// significant, so a stable sort keeps the output deterministic
	// enough for display.
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].HasEnough && !assets[j].HasEnough
	})

	s.metrics.ObserveLatency("scan", time.Since(start), map[string]string{"chain": "all"})
	s.log.Debug("scan settled", map[string]any{
		"address": address,
		"pairs":   total,
		"kept":    len(assets),
	})

	return assets, nil
}

func (s *Scanner) readOne(
	ctx context.Context,
	reader clients.ChainReader,
	chain types.ChainEntry,
	token types.ChainToken,
	account common.Address,
) types.DiscoveredAsset {
	asset := types.DiscoveredAsset{
		Chain:   chain,
		Token:   token,
		Balance: big.NewInt(0),
	}

	if reader == nil {
		s.metrics.IncCounter("scan_reader_missing", map[string]string{"chain": chain.Name})
		return asset
	}

	var (
		balance *big.Int
		err     error
	)
	if token.IsNative() {
		balance, err = reader.NativeBalance(ctx, account)
	} else {
		balance, err = reader.TokenBalance(ctx, common.HexToAddress(token.Address), account)
	}
	if err != nil || balance == nil {
		// One failed read is terminal for this pair, for this pass.
		s.metrics.IncCounter("scan_read_failed", map[string]string{"chain": chain.Name})
		s.log.Debug("balance read failed", map[string]any{
			"chain": chain.Name,
			"token": token.Symbol,
			"error": fmt.Sprint(err),
		})
		return asset
	}

	asset.Balance = balance
	asset.HasEnough = balance.Cmp(token.RejectionAmount) >= 0
	return asset
}
