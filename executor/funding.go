package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/chain"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// fund makes sure the sender holds and has approved spender for every fee.
// A wrapped gas token shortfall is covered by depositing native tokens; any
// other shortfall is an *InsufficientFundsError.
func (e *Executor) fund(ctx context.Context, spender common.Address, fees []interfaces.Fee) error {
	sender := e.backend.Sender()
	wrapped := e.addrs.Address(contracts.WrappedIP)

	for _, fee := range fees {
		if fee.Amount == nil || fee.Amount.Sign() == 0 {
			continue
		}
		results, err := e.reader.Read(ctx, []chain.Read{
			{Target: fee.Token, Contract: contracts.ERC20, Method: "balanceOf", Args: []interface{}{sender}},
			{Target: fee.Token, Contract: contracts.ERC20, Method: "allowance", Args: []interface{}{sender, spender}},
		})
		if err != nil {
			return err
		}
		for _, res := range results {
			if res.Err != nil {
				return fmt.Errorf("reading %s balance: %w", fee.Token.Hex(), res.Err)
			}
		}
		balance := results[0].Values[0].(*big.Int)
		allowance := results[1].Values[0].(*big.Int)

		if balance.Cmp(fee.Amount) < 0 {
			if fee.Token != wrapped {
				return &interfaces.InsufficientFundsError{Token: fee.Token, Required: fee.Amount, Available: balance}
			}
			if err := e.wrap(ctx, new(big.Int).Sub(fee.Amount, balance)); err != nil {
				return err
			}
		}

		if allowance.Cmp(fee.Amount) < 0 {
			data, err := e.encoder.Approve(spender, fee.Amount)
			if err != nil {
				return err
			}
			e.log.Info("Approving fee spender",
				slog.String("token", fee.Token.Hex()),
				slog.String("spender", spender.Hex()),
				slog.String("amount", fee.Amount.String()))
			if _, err := e.sendAndWait(ctx, interfaces.Call{To: fee.Token, Data: data}, "approve", nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// wrap deposits amount of native tokens into the wrapped gas token.
func (e *Executor) wrap(ctx context.Context, amount *big.Int) error {
	native, err := e.backend.BalanceAt(ctx, e.backend.Sender())
	if err != nil {
		return err
	}
	if native.Cmp(amount) < 0 {
		return &interfaces.InsufficientFundsError{Required: amount, Available: native}
	}
	data, err := e.encoder.Deposit()
	if err != nil {
		return err
	}
	e.log.Info("Wrapping native tokens for fees", slog.String("amount", amount.String()))
	_, err = e.sendAndWait(ctx, interfaces.Call{To: e.addrs.Address(contracts.WrappedIP), Data: data, Value: amount}, "deposit", nil)
	return err
}
