package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/crushlink/crushpay/types"
)

// HTTPVerifier calls the verify-tx endpoint of a running Server. It
// implements payment.Verifier, letting a client-side orchestrator and
// the server-side verification service live in separate processes.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPVerifier targets the server at baseURL, e.g.
// "http://localhost:8080".
func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Verify posts the request and decodes the verdict. A denial is a
// decoded response, not an error; errors are reserved for transport
// and protocol failures.
func (v *HTTPVerifier) Verify(ctx context.Context, req *types.VerifyTxRequest) (*types.VerifyTxResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/verify-tx", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := v.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp types.VerifyTxResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode verify response (status %d): %w", httpResp.StatusCode, err)
	}
	return &resp, nil
}
