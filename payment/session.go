package payment

import (
	"github.com/crushlink/crushpay/types"
)

// Stage is the explicit state of one payment attempt. Every transition
// the orchestrator performs is listed here; there is no reachable
// combination of flags outside this enum.
type Stage int

const (
	// StageInfo shows the fee explanation; nothing has happened yet.
	StageInfo Stage = iota
	// StageConnect waits for a wallet address.
	StageConnect
	// StageScanning runs the asset scan.
	StageScanning
	// StageSelect waits for the user to pick a discovered asset.
	StageSelect
	// StageSwitching asks the wallet to move to the asset's chain.
	StageSwitching
	// StagePaying submits the transfer and waits for confirmations.
	StagePaying
	// StageVerifying awaits the server-side verifier's verdict.
	StageVerifying
	// StageDone is the terminal success state.
	StageDone
	// StagePending means the confirmation wait hit its bound while the
	// transaction was still in flight; the payment may yet land.
	StagePending
	// StageError is the terminal failure state for one attempt; Retry
	// returns to StageSelect.
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageInfo:
		return "info"
	case StageConnect:
		return "connect"
	case StageScanning:
		return "scanning"
	case StageSelect:
		return "select"
	case StageSwitching:
		return "switching"
	case StagePaying:
		return "paying"
	case StageVerifying:
		return "verifying"
	case StageDone:
		return "done"
	case StagePending:
		return "pending"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// Session is one in-progress payment attempt. It is owned by a single
// flow: the orchestrator mutates it, nothing else does, and it is
// discarded when the modal closes. Closing the modal never cancels an
// already-broadcast transaction.
type Session struct {
	linkID   string
	stage    Stage
	address  string
	assets   []types.DiscoveredAsset
	selected *types.DiscoveredAsset
	txHash   string
	errMsg   string
	// verifyDone is the one-shot guard: the tx hash is handed to the
	// verifier at most once per payment attempt.
	verifyDone bool
}

func (s *Session) LinkID() string  { return s.linkID }
func (s *Session) Stage() Stage    { return s.stage }
func (s *Session) Address() string { return s.address }
func (s *Session) TxHash() string  { return s.txHash }

// Assets returns the discovered asset list attached at scan time. It
// is reused across retries without re-scanning.
func (s *Session) Assets() []types.DiscoveredAsset { return s.assets }

func (s *Session) Selected() *types.DiscoveredAsset { return s.selected }

// ErrorMessage returns the user-legible failure message. It is set in
// StageError and StagePending, empty otherwise.
func (s *Session) ErrorMessage() string { return s.errMsg }

func (s *Session) failWith(msg string) {
	s.stage = StageError
	s.errMsg = msg
}
