package types

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// NativeToken is the sentinel token address for a chain's base currency.
// Native transfers are plain value transfers, not contract calls.
const NativeToken = "native"

// ChainToken is one payable asset on one chain. RejectionAmount is the
// minimum quantity, in the token's smallest unit, that satisfies the
// rejection fee. The amounts are fixed at registry-build time to
// approximate ~$2 per asset and are never recomputed from a price feed.
type ChainToken struct {
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	Address         string   `json:"address"` // hex contract address, or NativeToken
	Decimals        int      `json:"decimals"`
	RejectionAmount *big.Int `json:"rejectionAmount"`
	Icon            string   `json:"icon"`
}

// IsNative reports whether the token is the chain's base currency.
func (t ChainToken) IsNative() bool {
	return t.Address == NativeToken
}

// ChainEntry is one supported chain in the static registry.
type ChainEntry struct {
	Name        string       `json:"name"`
	ChainID     uint64       `json:"chainId"`
	RPCURL      string       `json:"rpcUrl"`
	ExplorerURL string       `json:"explorerUrl"` // printf template, %s = tx hash
	Icon        string       `json:"icon"`
	Tokens      []ChainToken `json:"tokens"`
}

// TxURL renders the block-explorer URL for a transaction hash.
func (c ChainEntry) TxURL(txHash string) string {
	return fmt.Sprintf(c.ExplorerURL, txHash)
}

// DiscoveredAsset is a scan-time result: one (chain, token) pair with
// the live balance attached. Instances live only for the duration of a
// single payment flow.
type DiscoveredAsset struct {
	Chain     ChainEntry `json:"chain"`
	Token     ChainToken `json:"token"`
	Balance   *big.Int   `json:"balance"`
	HasEnough bool       `json:"hasEnough"`
}

// LinkStatus is the lifecycle state of a confession link.
type LinkStatus string

const (
	StatusPending      LinkStatus = "pending"
	StatusAccepted     LinkStatus = "accepted"
	StatusRejectedPaid LinkStatus = "rejected_paid"
)

// Terminal reports whether the status can no longer change.
func (s LinkStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejectedPaid
}

// CrushLink is one confession-link record.
type CrushLink struct {
	ID            string     `json:"id"`
	CrushHandle   string     `json:"crushHandle"`
	Message       string     `json:"message"`
	Status        LinkStatus `json:"status"`
	PaymentTxHash string     `json:"paymentTxHash,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// VerifyTxRequest is the payload sent to the server-side verifier to
// re-check a claimed payment against chain state.
type VerifyTxRequest struct {
	TxHash         string `json:"txHash" validate:"required"`
	LinkID         string `json:"linkId" validate:"required"`
	ChainID        uint64 `json:"chainId" validate:"required"`
	TokenAddress   string `json:"tokenAddress" validate:"required"`
	ExpectedAmount string `json:"expectedAmount" validate:"omitempty,number"`
}

// Validate checks that the request carries every field the verifier
// needs before any chain query is issued.
func (r *VerifyTxRequest) Validate() error {
	if r.TxHash == "" {
		return fmt.Errorf("txHash is required")
	}
	if r.LinkID == "" {
		return fmt.Errorf("linkId is required")
	}
	if r.ChainID == 0 {
		return fmt.Errorf("chainId is required")
	}
	if r.TokenAddress == "" {
		return fmt.Errorf("tokenAddress is required")
	}
	if r.ExpectedAmount != "" {
		if _, ok := new(big.Int).SetString(r.ExpectedAmount, 10); !ok {
			return fmt.Errorf("expectedAmount is not a base-10 integer")
		}
	}
	return nil
}

// ExpectedAmountInt parses ExpectedAmount, treating an empty field as zero.
func (r *VerifyTxRequest) ExpectedAmountInt() (*big.Int, error) {
	if r.ExpectedAmount == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(r.ExpectedAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid expectedAmount %q", r.ExpectedAmount)
	}
	return v, nil
}

// VerifyTxResponse is the verifier's wire-level reply.
type VerifyTxResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// VerificationResult is the internal outcome of one verification pass.
// A failed verification is a result, not an error: errors are reserved
// for requests the verifier could not evaluate at all.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
	TxHash   string `json:"txHash,omitempty"`
	ChainID  uint64 `json:"chainId,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
