package interfaces

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Strategy selects how a bucket is submitted.
type Strategy int

const (
	// StrategyDirect calls the workflow contract from the sender, one request per transaction.
	StrategyDirect Strategy = iota
	// StrategyAggregated batches the calls of a bucket into one multicall on the
	// workflow contract itself, so msg.sender stays the sender and fees are pulled
	// by the workflow contract as for direct calls.
	StrategyAggregated
)

func (s Strategy) String() string {
	switch s {
	case StrategyAggregated:
		return "aggregated"
	default:
		return "direct"
	}
}

// Options is the options bag of one orchestration call. The zero value
// submits every request directly and stops at the first failing bucket.
type Options struct {
	UseMulticallWhenPossible bool
	// ContinueOnFailure runs every bucket even after one fails, dropping the
	// items that revert in simulation.
	ContinueOnFailure bool
	// EncodedTxDataOnly asks for unsigned call data instead of submission. Only
	// Engine.Prepare produces call data; Engine.Register rejects the flag with
	// ErrEncodedOnly.
	EncodedTxDataOnly bool
}

// DefaultOptions enables batching and aborts on the first failure.
func DefaultOptions() Options {
	return Options{
		UseMulticallWhenPossible: true,
	}
}

// WorkflowBucket is a contiguous run of requests sharing one destination and call shape.
type WorkflowBucket struct {
	Strategy    Strategy
	Destination common.Address
	// Method is the workflow function name every request of the bucket calls.
	Method  string
	Indices []int
	// Funding needed by the whole bucket, grouped by currency.
	Fees     []Fee
	TxHashes []common.Hash
}

// Size is the number of requests in the bucket.
func (b *WorkflowBucket) Size() int {
	return len(b.Indices)
}

// Spender is the address pulling the bucket's fees from the sender.
func (b *WorkflowBucket) Spender() common.Address {
	return b.Destination
}

// EncodedBucket is the unsigned call data of a bucket, produced when
// EncodedTxDataOnly is set. No signature is generated for it.
type EncodedBucket struct {
	Indices  []int
	Method   string
	Strategy Strategy
	To       common.Address
	Data     []byte
	Value    *big.Int
	// Calls holds the per-request calls wrapped by Data for aggregated buckets.
	Calls []Call
	Fees  []Fee
	// Spender must be approved for Fees before Data is submitted.
	Spender common.Address
	// Authorizations lists the requests whose call carries an empty signature.
	Authorizations []Authorization
}

// Authorization is the IP account call an external signer must authorize with
// an Execute signature before the request's workflow call can succeed.
type Authorization struct {
	Index int
	IPID  common.Address
	// Workflow is the contract the signature tuple is handed to.
	Workflow common.Address
	To       common.Address
	Data     []byte
}
