// Package chain implements the chain capabilities consumed by the workflow engine:
// simulating calls, submitting transactions and waiting for receipts.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Backend is the RPC surface the client needs. Both *ethclient.Client and the
// simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

const (
	defaultPollInterval = time.Second
	defaultReadRetries  = 3
)

// Client implements interfaces.ChainBackend on top of a go-ethereum backend.
type Client struct {
	backend      Backend
	chainID      *big.Int
	auth         *bind.TransactOpts
	log          *slog.Logger
	pollInterval time.Duration
}

// NewClient creates a client for chainID. Transactions require SetTransactOpts.
func NewClient(backend Backend, chainID *big.Int, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		backend:      backend,
		chainID:      new(big.Int).Set(chainID),
		log:          log,
		pollInterval: defaultPollInterval,
	}
}

// SetTransactOpts sets the transaction options required for functions that modify state.
// This must be called before SendTransaction.
func (c *Client) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// SetPollInterval sets how often WaitForReceipt polls for a receipt.
func (c *Client) SetPollInterval(d time.Duration) {
	c.pollInterval = d
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Sender is the transactor address, zero without transaction options.
func (c *Client) Sender() common.Address {
	if c.auth == nil {
		return common.Address{}
	}
	return c.auth.From
}

// Simulate executes call against the latest state without submitting it.
// Reverts are returned as *interfaces.SimulationRevertError and never retried;
// transport errors are retried with exponential backoff.
func (c *Client) Simulate(ctx context.Context, call interfaces.Call) ([]byte, error) {
	msg := ethereum.CallMsg{
		From:  c.Sender(),
		To:    &call.To,
		Data:  call.Data,
		Value: call.Value,
	}

	op := func() ([]byte, error) {
		out, err := c.backend.CallContract(ctx, msg, nil)
		if err == nil {
			return out, nil
		}
		if data, ok := revertData(err); ok {
			return nil, backoff.Permanent(&interfaces.SimulationRevertError{
				Target: call.To,
				Index:  -1,
				Reason: contracts.DecodeRevert(data),
				Data:   data,
			})
		}
		return nil, err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), defaultReadRetries), ctx)
	return backoff.RetryNotifyWithData(op, b, func(err error, next time.Duration) {
		c.log.Debug("Retrying call", "err", err, slog.String("to", call.To.Hex()), slog.Duration("next", next))
	})
}

// revertData extracts revert data from a call error. The boolean reports whether
// the error is a revert at all.
func revertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(s); decodeErr == nil {
				return data, true
			}
		}
		return nil, true
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return nil, true
	}
	return nil, false
}

// SendTransaction signs and submits call with the configured transactor.
func (c *Client) SendTransaction(ctx context.Context, call interfaces.Call) (common.Hash, error) {
	if c.auth == nil {
		return common.Hash{}, interfaces.ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx
	opts.Value = call.Value

	contract := bind.NewBoundContract(call.To, abi.ABI{}, c.backend, c.backend, c.backend)
	tx, err := contract.RawTransact(&opts, call.Data)
	if err != nil {
		if data, ok := revertData(err); ok {
			return common.Hash{}, &interfaces.SimulationRevertError{
				Target: call.To,
				Index:  -1,
				Reason: contracts.DecodeRevert(data),
				Data:   data,
			}
		}
		return common.Hash{}, fmt.Errorf("sending transaction to %s: %w", call.To.Hex(), err)
	}

	c.log.Debug("Transaction sent",
		slog.String("hash", tx.Hash().Hex()),
		slog.String("to", call.To.Hex()),
		slog.Uint64("nonce", tx.Nonce()))
	return tx.Hash(), nil
}

// WaitForReceipt polls for the receipt of txHash until it is mined or timeout elapses.
// A timeout yields *interfaces.IndeterminateError; the transaction is never resubmitted.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op := func() (*types.Receipt, error) {
		receipt, err := c.backend.TransactionReceipt(waitCtx, txHash)
		if err != nil {
			return nil, err
		}
		return receipt, nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), waitCtx)
	receipt, err := backoff.RetryWithData(op, b)
	if err != nil {
		if waitCtx.Err() != nil {
			return nil, &interfaces.IndeterminateError{TxHash: txHash, Err: waitCtx.Err()}
		}
		return nil, fmt.Errorf("waiting for %s: %w", txHash.Hex(), err)
	}
	return receipt, nil
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, account, nil)
}
