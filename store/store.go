// Package store persists confession-link records. The payment core
// touches exactly one durable field pair: the link status and the paid
// transaction hash.
package store

import (
	"context"
	"errors"

	"github.com/crushlink/crushpay/types"
)

var ErrNotFound = errors.New("link not found")

// Store is the confession-link collaborator interface. UpdateStatus
// must apply the status and tx hash as one atomic write keyed by link
// ID; concurrent verifications of the same link must not interleave
// into a partial update.
type Store interface {
	Create(ctx context.Context, link *types.CrushLink) error
	Get(ctx context.Context, linkID string) (*types.CrushLink, error)
	UpdateStatus(ctx context.Context, linkID string, status types.LinkStatus, txHash string) error
}
