package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"dexArb/internal/chain"
)

// Wallet is the funding identity: it pays the attached value and signs submissions.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	reader  chain.BalanceReader
}

// New parses a hex private key, with or without the 0x prefix.
func New(hexKey string, reader chain.BalanceReader) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("funding key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse funding key: %w", err)
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		reader:  reader,
	}, nil
}

func (w *Wallet) Address() common.Address {
	return w.address
}

// Balance returns the latest native balance in wei.
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	if w.reader == nil {
		return nil, fmt.Errorf("balance reader is nil")
	}
	balance, err := w.reader.BalanceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", w.address.Hex(), err)
	}
	return balance, nil
}

// Sign signs tx for chainID with the funding key.
func (w *Wallet) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	signed, err := types.SignTx(tx, signer, w.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return signed, nil
}
