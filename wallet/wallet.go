// Package wallet adapts a local secp256k1 key to the signing capability of the
// workflow engine and to go-ethereum transactors.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

var ErrInvalidKey = errors.New("invalid private key")

// LocalWallet holds a private key in memory and signs EIP-712 typed data with it.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ interfaces.TypedDataSigner = (*LocalWallet)(nil)

func New(key *ecdsa.PrivateKey) *LocalWallet {
	return &LocalWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// FromHex parses a hex encoded private key, with or without 0x prefix.
func FromHex(hexKey string) (*LocalWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return New(key), nil
}

// Generate creates a wallet with a fresh random key.
func Generate() (*LocalWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return New(key), nil
}

func (w *LocalWallet) Address() common.Address {
	return w.address
}

// SignTypedData returns a 65 byte [R || S || V] signature over the EIP-712 hash of
// data, with V in {27, 28} as contracts expect.
func (w *LocalWallet) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hashing typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// TransactOpts returns transaction options signing with the wallet key on chainID.
func (w *LocalWallet) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(w.key, chainID)
}
