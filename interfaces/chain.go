package interfaces

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Call is a single contract invocation.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// ChainBackend combines the read/simulate and write capabilities the engine consumes.
//
// Simulate returns the raw return data of a dry-run call from Sender(). A revert is
// reported as *SimulationRevertError with the decoded reason.
//
// WaitForReceipt blocks until the transaction is mined or timeout elapses, in which
// case it returns *IndeterminateError.
type ChainBackend interface {
	ChainID() *big.Int
	Sender() common.Address
	Simulate(ctx context.Context, call Call) ([]byte, error)
	SendTransaction(ctx context.Context, call Call) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// TypedDataSigner is the required signing capability of a wallet.
// A wallet without typed-data support cannot be adapted to this interface, so the
// engine rejects it at construction rather than at signing time.
type TypedDataSigner interface {
	Address() common.Address
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}
