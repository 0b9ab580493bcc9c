package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/crushlink/crushpay/clients"
)

const (
	nativeTransferGas = 21000
	// Fallback when gas estimation fails; plain ERC-20 transfers stay
	// well under this on every registered chain.
	tokenTransferGasFallback = 90000
)

// KeyWallet signs with a local private key against per-chain backends.
type KeyWallet struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	backends map[uint64]clients.ChainBackend
	active   uint64
}

var _ Wallet = (*KeyWallet)(nil)

// NewKeyWallet builds a wallet from a hex private key. The active
// chain starts on the first backend registered for the lowest chain ID
// touched by SwitchChain; callers normally SwitchChain before sending.
func NewKeyWallet(hexKey string, backends map[uint64]clients.ChainBackend) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeyWallet{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		backends: backends,
	}, nil
}

// Connect implements Wallet. A key wallet has nothing to prompt; it
// just reports its derived address.
func (w *KeyWallet) Connect(context.Context) (string, error) {
	return w.address.Hex(), nil
}

// Address implements Wallet.
func (w *KeyWallet) Address() string {
	return w.address.Hex()
}

// ChainID implements Wallet.
func (w *KeyWallet) ChainID() uint64 {
	return w.active
}

// SwitchChain implements Wallet.
func (w *KeyWallet) SwitchChain(_ context.Context, chainID uint64) error {
	if _, ok := w.backends[chainID]; !ok {
		return fmt.Errorf("no backend for chain %d", chainID)
	}
	w.active = chainID
	return nil
}

// SendNative implements Wallet.
func (w *KeyWallet) SendNative(ctx context.Context, to string, amount *big.Int) (string, error) {
	backend, err := w.activeBackend()
	if err != nil {
		return "", err
	}

	dest := common.HexToAddress(to)
	return w.submit(ctx, backend, &dest, amount, nil, nativeTransferGas)
}

// SendToken implements Wallet.
func (w *KeyWallet) SendToken(ctx context.Context, token, to string, amount *big.Int) (string, error) {
	backend, err := w.activeBackend()
	if err != nil {
		return "", err
	}

	data, err := clients.PackTransfer(common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer calldata: %w", err)
	}

	contract := common.HexToAddress(token)
	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From: w.address,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		gas = tokenTransferGasFallback
	}

	return w.submit(ctx, backend, &contract, big.NewInt(0), data, gas)
}

// WaitForConfirmations implements Wallet.
func (w *KeyWallet) WaitForConfirmations(ctx context.Context, txHash string, depth uint64) error {
	backend, err := w.activeBackend()
	if err != nil {
		return err
	}
	_, err = backend.WaitForConfirmations(ctx, common.HexToHash(txHash), depth)
	return err
}

func (w *KeyWallet) activeBackend() (clients.ChainBackend, error) {
	backend, ok := w.backends[w.active]
	if !ok {
		return nil, fmt.Errorf("no backend for active chain %d", w.active)
	}
	return backend, nil
}

func (w *KeyWallet) submit(
	ctx context.Context,
	backend clients.ChainBackend,
	to *common.Address,
	value *big.Int,
	data []byte,
	gas uint64,
) (string, error) {
	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(backend.ChainID()))
	signed, err := ethtypes.SignTx(tx, signer, w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}
