package types

// CrushPayError carries a machine-readable code alongside the message.
type CrushPayError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *CrushPayError) Error() string {
	return e.Message
}

// Error codes returned across the module. Verification failures are
// reported through VerificationResult.Reason using the same strings.
const (
	// -----------------------------
	// CONFIGURATION
	// -----------------------------
	ErrUnsupportedChain = "unsupported_chain"
	ErrMissingReceiver  = "missing_receiver_address"
	ErrInvalidRequest   = "invalid_request"
	ErrNoClientForChain = "no_client_for_chain"
	ErrUnknownToken     = "unknown_token"

	// -----------------------------
	// CHAIN STATE
	// -----------------------------
	ErrReceiptNotFound    = "receipt_not_found"
	ErrTxNotSuccessful    = "transaction_not_successful"
	ErrTxNotFound         = "transaction_not_found"
	ErrWrongRecipient     = "wrong_recipient"
	ErrInsufficientAmount = "insufficient_amount"
	ErrNoTransferLog      = "no_matching_transfer_log"
	ErrRPCFailure         = "rpc_failure"

	// -----------------------------
	// PAYMENT FLOW
	// -----------------------------
	ErrWalletRejected     = "wallet_rejected"
	ErrBroadcastFailed    = "broadcast_failed"
	ErrNoPayableAssets    = "no_payable_assets"
	ErrInsufficientAsset  = "selected_asset_insufficient"
	ErrConfirmationWait   = "confirmation_wait_timed_out"
	ErrVerificationFailed = "verification_failed"

	// -----------------------------
	// STORE
	// -----------------------------
	ErrLinkNotFound      = "link_not_found"
	ErrStoreUpdateFailed = "store_update_failed"
)
