// Package payment drives a user's rejection-fee payment from wallet
// connection through asset selection, the on-chain transfer, and the
// server-side verification handoff, as one explicit state machine.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crushlink/crushpay/logger"
	"github.com/crushlink/crushpay/metrics"
	"github.com/crushlink/crushpay/scanner"
	"github.com/crushlink/crushpay/types"
	"github.com/crushlink/crushpay/wallet"
)

// User-facing failure messages. Wallet rejection gets its own wording
// so declining is never reported as a malfunction.
const (
	msgRejected      = "Transaction rejected. Changed your mind?"
	msgSubmitFailed  = "Transaction failed. Try again or pick a different token."
	msgVerifyFailed  = "Payment verification failed on-chain."
	msgVerifyError   = "Verification error. Please try again."
	msgStillPending  = "Payment still pending on-chain. Check back shortly."
	msgConnectFailed = "Could not connect to the wallet."
)

// Verifier is the server-side transaction verifier as seen from the
// client flow; server.HTTPVerifier implements it over the wire.
type Verifier interface {
	Verify(ctx context.Context, req *types.VerifyTxRequest) (*types.VerifyTxResponse, error)
}

// Orchestrator runs payment sessions. The suspension points (chain
// switch, submit, confirmation wait, verification) are strictly
// sequential within one session.
type Orchestrator struct {
	wallet        wallet.Wallet
	scanner       *scanner.Scanner
	verifier      Verifier
	receiver      string
	confirmations uint64
	confirmWait   time.Duration
	log           logger.Logger
	metrics       metrics.Recorder
}

type Option func(*Orchestrator)

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// WithConfirmations overrides the confirmation depth required before
// verification (default 2).
func WithConfirmations(depth uint64) Option {
	return func(o *Orchestrator) { o.confirmations = depth }
}

// WithConfirmationWait bounds the confirmation wait (default 5m).
// Hitting the bound parks the session in StagePending instead of
// failing it: the transfer is already irrevocably broadcast.
func WithConfirmationWait(d time.Duration) Option {
	return func(o *Orchestrator) { o.confirmWait = d }
}

func NewOrchestrator(w wallet.Wallet, s *scanner.Scanner, v Verifier, receiver string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		wallet:        w,
		scanner:       s,
		verifier:      v,
		receiver:      receiver,
		confirmations: 2,
		confirmWait:   5 * time.Minute,
		log:           logger.NoopLogger{},
		metrics:       metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewSession starts a payment attempt for one confession link.
func (o *Orchestrator) NewSession(linkID string) *Session {
	return &Session{linkID: linkID, stage: StageInfo}
}

// Acknowledge moves past the fee explanation: info → connect.
func (o *Orchestrator) Acknowledge(sess *Session) error {
	if sess.stage != StageInfo {
		return o.badTransition(sess, "acknowledge")
	}
	sess.stage = StageConnect
	return nil
}

// Connect obtains the wallet address and immediately runs the scan:
// connect → scanning fires on address availability, scanning → select
// fires when the read-set has fully settled. The asset list is
// attached even when empty.
func (o *Orchestrator) Connect(ctx context.Context, sess *Session) error {
	if sess.stage != StageConnect {
		return o.badTransition(sess, "connect")
	}

	address, err := o.wallet.Connect(ctx)
	if err != nil {
		sess.failWith(msgConnectFailed)
		return fmt.Errorf("wallet connect failed: %w", err)
	}
	sess.address = address
	sess.stage = StageScanning

	assets, err := o.scanner.Scan(ctx, address, scanner.ScanOptions{DropZero: true})
	if err != nil {
		// Scan errors only arise from an invalid address; RPC trouble
		// settles as zero balances instead.
		sess.failWith(msgConnectFailed)
		return fmt.Errorf("scan failed: %w", err)
	}

	sess.assets = assets
	sess.stage = StageSelect
	o.log.Info("scan settled", map[string]any{
		"address": address,
		"assets":  len(assets),
	})
	return nil
}

// Pay runs the selected asset through switching → paying → verifying →
// done. It is the single long suspension chain of the flow; each step
// completes or explicitly fails before the next begins.
func (o *Orchestrator) Pay(ctx context.Context, sess *Session, asset types.DiscoveredAsset) error {
	if sess.stage != StageSelect {
		return o.badTransition(sess, "pay")
	}
	if !asset.HasEnough {
		return &types.CrushPayError{
			Code:    types.ErrInsufficientAsset,
			Message: fmt.Sprintf("%s on %s does not cover the fee", asset.Token.Symbol, asset.Chain.Name),
		}
	}

	sess.selected = &asset

	// Chain switch is best-effort: some wallets reject the prompt and
	// switch transparently when the transaction is submitted.
	sess.stage = StageSwitching
	if o.wallet.ChainID() != asset.Chain.ChainID {
		if err := o.wallet.SwitchChain(ctx, asset.Chain.ChainID); err != nil {
			o.log.Warn("chain switch rejected, proceeding", map[string]any{
				"chain": asset.Chain.Name,
				"error": err.Error(),
			})
		}
	}

	sess.stage = StagePaying
	txHash, err := o.submit(ctx, asset)
	if err != nil {
		if errors.Is(err, wallet.ErrRejected) {
			sess.failWith(msgRejected)
			o.metrics.IncCounter("payment_rejected", map[string]string{"chain": asset.Chain.Name})
		} else {
			sess.failWith(msgSubmitFailed)
			o.metrics.IncCounter("payment_failed", map[string]string{"chain": asset.Chain.Name})
		}
		return fmt.Errorf("transfer submit failed: %w", err)
	}
	sess.txHash = txHash

	waitCtx, cancel := context.WithTimeout(ctx, o.confirmWait)
	defer cancel()
	if err := o.wallet.WaitForConfirmations(waitCtx, txHash, o.confirmations); err != nil {
		// The transfer is broadcast and irrevocable; a timeout is not a
		// failure, the caller can verify later with the same hash.
		sess.stage = StagePending
		sess.errMsg = msgStillPending
		return fmt.Errorf("confirmation wait: %w", err)
	}

	return o.verify(ctx, sess, asset)
}

func (o *Orchestrator) submit(ctx context.Context, asset types.DiscoveredAsset) (string, error) {
	if asset.Token.IsNative() {
		return o.wallet.SendNative(ctx, o.receiver, asset.Token.RejectionAmount)
	}
	return o.wallet.SendToken(ctx, asset.Token.Address, o.receiver, asset.Token.RejectionAmount)
}

func (o *Orchestrator) verify(ctx context.Context, sess *Session, asset types.DiscoveredAsset) error {
	if sess.verifyDone {
		// One-shot guard: a duplicate confirmation signal must not
		// trigger a second verification call.
		return nil
	}
	sess.verifyDone = true
	sess.stage = StageVerifying

	resp, err := o.verifier.Verify(ctx, &types.VerifyTxRequest{
		TxHash:         sess.txHash,
		LinkID:         sess.linkID,
		ChainID:        asset.Chain.ChainID,
		TokenAddress:   asset.Token.Address,
		ExpectedAmount: asset.Token.RejectionAmount.String(),
	})
	if err != nil {
		sess.failWith(msgVerifyError)
		return fmt.Errorf("verifier unreachable: %w", err)
	}
	if !resp.Success {
		sess.failWith(msgVerifyFailed)
		return &types.CrushPayError{
			Code:    types.ErrVerificationFailed,
			Message: resp.Error,
		}
	}

	sess.stage = StageDone
	o.metrics.IncCounter("payment_verified", map[string]string{"chain": asset.Chain.Name})
	o.log.Info("payment verified", map[string]any{
		"linkId": sess.linkID,
		"txHash": sess.txHash,
		"chain":  asset.Chain.Name,
	})
	return nil
}

// Retry performs the manual error → select reset: the selected asset,
// error message, and one-shot guard are discarded, the discovered
// asset list is kept, and no re-scan happens.
func (o *Orchestrator) Retry(sess *Session) error {
	if sess.stage != StageError {
		return o.badTransition(sess, "retry")
	}
	sess.stage = StageSelect
	sess.selected = nil
	sess.txHash = ""
	sess.errMsg = ""
	sess.verifyDone = false
	return nil
}

func (o *Orchestrator) badTransition(sess *Session, op string) error {
	return fmt.Errorf("cannot %s from stage %s", op, sess.stage)
}
