package verification

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crushlink/crushpay/clients"
	"github.com/crushlink/crushpay/registry"
	"github.com/crushlink/crushpay/store"
	"github.com/crushlink/crushpay/types"
)

const (
	testTxHash = "0x1111111111111111111111111111111111111111111111111111111111111111"
	usdcBase   = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

// fakeChain implements clients.ChainReader and counts every RPC-style
// call so tests can assert the no-chain-query contract.
type fakeChain struct {
	chainID  uint64
	receipts map[common.Hash]*ethtypes.Receipt
	txs      map[common.Hash]*ethtypes.Transaction
	logs     map[common.Address][]clients.TransferEvent
	rpcErr   error

	calls int
}

func (f *fakeChain) ChainID() uint64 { return f.chainID }

func (f *fakeChain) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	f.calls++
	return big.NewInt(0), nil
}

func (f *fakeChain) TokenBalance(context.Context, common.Address, common.Address) (*big.Int, error) {
	f.calls++
	return big.NewInt(0), nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, h common.Hash) (*ethtypes.Receipt, error) {
	f.calls++
	if f.rpcErr != nil {
		return nil, f.rpcErr
	}
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) TransactionByHash(_ context.Context, h common.Hash) (*ethtypes.Transaction, bool, error) {
	f.calls++
	if tx, ok := f.txs[h]; ok {
		return tx, false, nil
	}
	return nil, false, ethereum.NotFound
}

func (f *fakeChain) TransferLogs(_ context.Context, token common.Address, block *big.Int) ([]clients.TransferEvent, error) {
	f.calls++
	// Mirrors a real node query pinned to one block.
	var out []clients.TransferEvent
	for _, ev := range f.logs[token] {
		if ev.BlockNumber == block.Uint64() {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) { return 105, nil }
func (f *fakeChain) Close()                                      {}

func nativeTx(to common.Address, value *big.Int) *ethtypes.Transaction {
	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    value,
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

func successReceipt(block int64) *ethtypes.Receipt {
	return &ethtypes.Receipt{
		Status:      ethtypes.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(block),
	}
}

func newService(t *testing.T, chain *fakeChain) (*VerificationService, *store.MemoryStore) {
	t.Helper()
	links := store.NewMemoryStore()
	svc, err := NewVerificationService(links, registry.ReceiverAddress, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, svc.AddChainClient(chain.chainID, chain))
	return svc, links
}

func pendingLink(t *testing.T, links *store.MemoryStore) string {
	t.Helper()
	link := &types.CrushLink{CrushHandle: "@crush"}
	require.NoError(t, links.Create(context.Background(), link))
	return link.ID
}

func TestVerifyNativeTransfer(t *testing.T) {
	receiver := common.HexToAddress(registry.ReceiverAddress)
	hash := common.HexToHash(testTxHash)
	expected := big.NewInt(800_000_000_000_000)

	chain := &fakeChain{
		chainID:  8453,
		receipts: map[common.Hash]*ethtypes.Receipt{hash: successReceipt(100)},
		txs:      map[common.Hash]*ethtypes.Transaction{hash: nativeTx(receiver, expected)},
	}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:         testTxHash,
		LinkID:         linkID,
		ChainID:        8453,
		TokenAddress:   types.NativeToken,
		ExpectedAmount: expected.String(),
	})
	require.NoError(t, err)
	assert.True(t, res.Verified, "value equal to expected amount must verify")

	link, err := links.Get(context.Background(), linkID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejectedPaid, link.Status)
	assert.Equal(t, testTxHash, link.PaymentTxHash)
}

func TestVerifyNativeTransferOneUnitShort(t *testing.T) {
	receiver := common.HexToAddress(registry.ReceiverAddress)
	hash := common.HexToHash(testTxHash)
	expected := big.NewInt(800_000_000_000_000)
	paid := new(big.Int).Sub(expected, big.NewInt(1))

	chain := &fakeChain{
		chainID:  8453,
		receipts: map[common.Hash]*ethtypes.Receipt{hash: successReceipt(100)},
		txs:      map[common.Hash]*ethtypes.Transaction{hash: nativeTx(receiver, paid)},
	}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:         testTxHash,
		LinkID:         linkID,
		ChainID:        8453,
		TokenAddress:   types.NativeToken,
		ExpectedAmount: expected.String(),
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, types.ErrInsufficientAmount, res.Reason)

	link, _ := links.Get(context.Background(), linkID)
	assert.Equal(t, types.StatusPending, link.Status, "failed verification must not touch the link")
}

func TestVerifyNativeWrongRecipient(t *testing.T) {
	other := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	hash := common.HexToHash(testTxHash)

	chain := &fakeChain{
		chainID:  8453,
		receipts: map[common.Hash]*ethtypes.Receipt{hash: successReceipt(100)},
		txs:      map[common.Hash]*ethtypes.Transaction{hash: nativeTx(other, big.NewInt(1e15))},
	}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:       testTxHash,
		LinkID:       linkID,
		ChainID:      8453,
		TokenAddress: types.NativeToken,
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, types.ErrWrongRecipient, res.Reason)
}

func TestVerifyTokenTransfer(t *testing.T) {
	receiver := common.HexToAddress(registry.ReceiverAddress)
	token := common.HexToAddress(usdcBase)
	hash := common.HexToHash(testTxHash)

	chain := &fakeChain{
		chainID:  8453,
		receipts: map[common.Hash]*ethtypes.Receipt{hash: successReceipt(100)},
		logs: map[common.Address][]clients.TransferEvent{
			token: {
				// Matching event in a different block must not count.
				{To: receiver, Value: big.NewInt(2_000_000), BlockNumber: 99},
				{To: receiver, Value: big.NewInt(2_000_000), BlockNumber: 100},
			},
		},
	}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:         testTxHash,
		LinkID:         linkID,
		ChainID:        8453,
		TokenAddress:   usdcBase,
		ExpectedAmount: "2000000",
	})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, "2000000", res.Amount)
}

func TestVerifyTokenTransferWrongBlockOnly(t *testing.T) {
	receiver := common.HexToAddress(registry.ReceiverAddress)
	token := common.HexToAddress(usdcBase)
	hash := common.HexToHash(testTxHash)

	chain := &fakeChain{
		chainID:  8453,
		receipts: map[common.Hash]*ethtypes.Receipt{hash: successReceipt(100)},
		logs: map[common.Address][]clients.TransferEvent{
			token: {{To: receiver, Value: big.NewInt(2_000_000), BlockNumber: 101}},
		},
	}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:         testTxHash,
		LinkID:         linkID,
		ChainID:        8453,
		TokenAddress:   usdcBase,
		ExpectedAmount: "2000000",
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, types.ErrNoTransferLog, res.Reason)
}

func TestVerifyTokenTransferWrongRecipient(t *testing.T) {
	other := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	token := common.HexToAddress(usdcBase)
	hash := common.HexToHash(testTxHash)

	chain := &fakeChain{
		chainID:  8453,
		receipts: map[common.Hash]*ethtypes.Receipt{hash: successReceipt(100)},
		logs: map[common.Address][]clients.TransferEvent{
			token: {{To: other, Value: big.NewInt(5_000_000), BlockNumber: 100}},
		},
	}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:         testTxHash,
		LinkID:         linkID,
		ChainID:        8453,
		TokenAddress:   usdcBase,
		ExpectedAmount: "2000000",
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestVerifyUnsupportedChainNoRPCCall(t *testing.T) {
	chain := &fakeChain{chainID: 8453}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:         testTxHash,
		LinkID:         linkID,
		ChainID:        424242,
		TokenAddress:   types.NativeToken,
		ExpectedAmount: "1",
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, types.ErrUnsupportedChain, res.Reason)
	assert.Zero(t, chain.calls, "unsupported chain must be rejected before any chain query")
}

func TestVerifyMissingReceipt(t *testing.T) {
	chain := &fakeChain{chainID: 8453}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:       testTxHash,
		LinkID:       linkID,
		ChainID:      8453,
		TokenAddress: types.NativeToken,
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, types.ErrReceiptNotFound, res.Reason)
}

func TestVerifyRevertedReceipt(t *testing.T) {
	hash := common.HexToHash(testTxHash)
	chain := &fakeChain{
		chainID: 8453,
		receipts: map[common.Hash]*ethtypes.Receipt{
			hash: {Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(100)},
		},
	}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:       testTxHash,
		LinkID:       linkID,
		ChainID:      8453,
		TokenAddress: types.NativeToken,
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, types.ErrTxNotSuccessful, res.Reason)
}

func TestVerifyRPCFailureIsNotRetried(t *testing.T) {
	chain := &fakeChain{chainID: 8453, rpcErr: errors.New("connection refused")}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:       testTxHash,
		LinkID:       linkID,
		ChainID:      8453,
		TokenAddress: types.NativeToken,
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, types.ErrRPCFailure, res.Reason)
	assert.Equal(t, 1, chain.calls, "a transient RPC failure surfaces once, no internal retry")
}

func TestVerifyIdempotent(t *testing.T) {
	receiver := common.HexToAddress(registry.ReceiverAddress)
	hash := common.HexToHash(testTxHash)
	amount := big.NewInt(800_000_000_000_000)

	chain := &fakeChain{
		chainID:  8453,
		receipts: map[common.Hash]*ethtypes.Receipt{hash: successReceipt(100)},
		txs:      map[common.Hash]*ethtypes.Transaction{hash: nativeTx(receiver, amount)},
	}
	svc, links := newService(t, chain)
	linkID := pendingLink(t, links)

	req := &types.VerifyTxRequest{
		TxHash:         testTxHash,
		LinkID:         linkID,
		ChainID:        8453,
		TokenAddress:   types.NativeToken,
		ExpectedAmount: amount.String(),
	}

	for i := 0; i < 2; i++ {
		res, err := svc.VerifyTransaction(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, res.Verified, "call %d", i+1)
	}

	link, err := links.Get(context.Background(), linkID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejectedPaid, link.Status)
}

func TestVerifySucceedsDespiteStoreFailure(t *testing.T) {
	receiver := common.HexToAddress(registry.ReceiverAddress)
	hash := common.HexToHash(testTxHash)
	amount := big.NewInt(1e15)

	chain := &fakeChain{
		chainID:  8453,
		receipts: map[common.Hash]*ethtypes.Receipt{hash: successReceipt(100)},
		txs:      map[common.Hash]*ethtypes.Transaction{hash: nativeTx(receiver, amount)},
	}
	svc, _ := newService(t, chain)

	// Link never created: the status update fails with not-found, but
	// the chain-truth result is still returned.
	res, err := svc.VerifyTransaction(context.Background(), &types.VerifyTxRequest{
		TxHash:       testTxHash,
		LinkID:       "ghost",
		ChainID:      8453,
		TokenAddress: types.NativeToken,
	})
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestVerifyRejectsMalformedRequest(t *testing.T) {
	chain := &fakeChain{chainID: 8453}
	svc, _ := newService(t, chain)

	cases := []*types.VerifyTxRequest{
		{LinkID: "l", ChainID: 8453, TokenAddress: types.NativeToken},            // no hash
		{TxHash: testTxHash, ChainID: 8453, TokenAddress: types.NativeToken},     // no link
		{TxHash: "0xnothex", LinkID: "l", ChainID: 8453, TokenAddress: "native"}, // bad hash
		{TxHash: testTxHash, LinkID: "l", ChainID: 8453, TokenAddress: "native", ExpectedAmount: "two"},
	}
	for i, req := range cases {
		res, err := svc.VerifyTransaction(context.Background(), req)
		require.NoError(t, err, "case %d", i)
		assert.False(t, res.Verified, "case %d", i)
		assert.Equal(t, types.ErrInvalidRequest, res.Reason, "case %d", i)
	}
	assert.Zero(t, chain.calls)
}

func TestAddChainClientRejectsUnknownChain(t *testing.T) {
	links := store.NewMemoryStore()
	svc, err := NewVerificationService(links, registry.ReceiverAddress, time.Second)
	require.NoError(t, err)

	err = svc.AddChainClient(424242, &fakeChain{chainID: 424242})
	require.Error(t, err)

	var cpErr *types.CrushPayError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, types.ErrUnsupportedChain, cpErr.Code)
}

func TestNewVerificationServiceRejectsBadReceiver(t *testing.T) {
	_, err := NewVerificationService(store.NewMemoryStore(), "nope", time.Second)
	require.Error(t, err)
}
