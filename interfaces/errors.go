package interfaces

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoTransactOpts is returned when a transaction is attempted without first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// Stage names the pipeline stage that produced an error.
type Stage string

const (
	StageRead      Stage = "read"
	StageValidate  Stage = "validate"
	StageClassify  Stage = "classify"
	StageFund      Stage = "fund"
	StageSign      Stage = "sign"
	StageEncode    Stage = "encode"
	StageSimulate  Stage = "simulate"
	StageSubmit    Stage = "submit"
	StageConfirm   Stage = "confirm"
	StageReconcile Stage = "reconcile"
	StageFollowUp  Stage = "follow-up"
)

// StageError qualifies an error with the pipeline stage and the request or bucket
// index it relates to. Index is -1 when the error is not tied to one position.
type StageError struct {
	Stage Stage
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("failed to %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("failed to %s (index %d): %v", e.Stage, e.Index, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// WrapStage returns err wrapped in a StageError, or nil for a nil err.
func WrapStage(stage Stage, index int, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Index: index, Err: err}
}

// ValidationError reports a malformed request or signature request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// AlreadyRegisteredError is returned when an NFT that must be new is already an IP asset.
type AlreadyRegisteredError struct {
	NFTContract common.Address
	TokenID     *big.Int
	IPID        common.Address
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("NFT %s #%s is already registered as IP %s", e.NFTContract.Hex(), e.TokenID, e.IPID.Hex())
}

// NotRegisteredError is returned when an IP asset expected to exist is not registered.
type NotRegisteredError struct {
	IPID common.Address
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("IP %s is not registered", e.IPID.Hex())
}

// CountMismatchError is returned when parent ids and license terms ids differ in length.
type CountMismatchError struct {
	Parents int
	Terms   int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("parent IP ids (%d) and license terms ids (%d) must have the same length", e.Parents, e.Terms)
}

// UnregisteredParentError is returned when a derivative parent is not an IP asset.
type UnregisteredParentError struct {
	ParentIPID common.Address
}

func (e *UnregisteredParentError) Error() string {
	return fmt.Sprintf("parent IP %s is not registered", e.ParentIPID.Hex())
}

// LicenseNotAttachedError is returned when a parent does not carry the referenced terms.
type LicenseNotAttachedError struct {
	ParentIPID     common.Address
	LicenseTermsID *big.Int
}

func (e *LicenseNotAttachedError) Error() string {
	return fmt.Sprintf("license terms %s are not attached to parent IP %s", e.LicenseTermsID, e.ParentIPID.Hex())
}

// RevenueShareExceededError is returned when the cumulative royalty percent of the
// parents exceeds the caller's bound. Both values are in parts-per-hundred-million.
type RevenueShareExceededError struct {
	ParentIPID common.Address
	Actual     uint64
	Bound      uint64
}

func (e *RevenueShareExceededError) Error() string {
	return fmt.Sprintf("royalty percent %d of parent IP %s exceeds max revenue share %d", e.Actual, e.ParentIPID.Hex(), e.Bound)
}

// SumExceededError is returned when royalty shares add up to more than 100%.
type SumExceededError struct {
	Field string
	Sum   float64
	Max   float64
}

func (e *SumExceededError) Error() string {
	return fmt.Sprintf("%s sum %g exceeds %g", e.Field, e.Sum, e.Max)
}

// RangeError is returned when a numeric field falls outside its allowed range.
type RangeError struct {
	Field string
	Value string
	Min   string
	Max   string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s = %s out of range [%s, %s]", e.Field, e.Value, e.Min, e.Max)
}

// NotFoundError is returned when referenced on-chain data does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ChainReadError is a view call that never reached the chain, such as an RPC
// transport failure. Reverted reads are reported as SimulationRevertError instead.
type ChainReadError struct {
	Err error
}

func (e *ChainReadError) Error() string {
	return "chain read failed: " + e.Err.Error()
}

func (e *ChainReadError) Unwrap() error { return e.Err }

// AuthorizationError reports a missing signing capability or account.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization error: " + e.Reason
}

// SimulationRevertError is a dry-run revert with its decoded reason.
// Index is the position of the failing sub-call inside an aggregated batch, or -1.
type SimulationRevertError struct {
	Target common.Address
	Index  int
	Reason string
	Data   []byte
}

func (e *SimulationRevertError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("simulation of call %d to %s reverted: %s", e.Index, e.Target.Hex(), e.Reason)
	}
	return fmt.Sprintf("simulation of call to %s reverted: %s", e.Target.Hex(), e.Reason)
}

// TransactionFailedError is returned for a mined transaction with failed status.
type TransactionFailedError struct {
	TxHash  common.Hash
	Receipt *types.Receipt
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed", e.TxHash.Hex())
}

// IndeterminateError is returned when confirmation timed out and the mined state is unknown.
// Transactions are never resubmitted after this error.
type IndeterminateError struct {
	TxHash common.Hash
	Err    error
}

func (e *IndeterminateError) Error() string {
	return fmt.Sprintf("transaction %s state unknown: %v", e.TxHash.Hex(), e.Err)
}

func (e *IndeterminateError) Unwrap() error { return e.Err }

// PartialRegistrationError is returned when a receipt carries fewer registration
// events than the bucket had requests. The receipt is kept for manual reconciliation.
type PartialRegistrationError struct {
	Expected int
	Got      int
	Receipt  *types.Receipt
}

func (e *PartialRegistrationError) Error() string {
	return fmt.Sprintf("expected %d registration events, got %d", e.Expected, e.Got)
}

// InsufficientFundsError is returned when the sender cannot cover a bucket's fees.
type InsufficientFundsError struct {
	Token     common.Address
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for token %s: required %s, available %s", e.Token.Hex(), e.Required, e.Available)
}
