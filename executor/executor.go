// Package executor runs buckets against the chain: it funds the bucket's fees,
// signs and encodes its calls, simulates them, submits one transaction, waits
// for the receipt and reconciles it into per-request results.
//
// Once a transaction is submitted it is never resubmitted. A confirmation
// timeout leaves the bucket in an indeterminate state that is reported as such.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ruteri/ip-registration-workflows/aggregator"
	"github.com/ruteri/ip-registration-workflows/calldata"
	"github.com/ruteri/ip-registration-workflows/chain"
	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
	"github.com/ruteri/ip-registration-workflows/metrics"
	"github.com/ruteri/ip-registration-workflows/signature"
)

const (
	DefaultConfirmTimeout    = 2 * time.Minute
	DefaultSignatureDeadline = 1000 * time.Second
)

type Config struct {
	Backend    interfaces.ChainBackend
	Addresses  *chainconfig.ContractSet
	Signatures *signature.Generator
	// ConfirmTimeout bounds the wait for each receipt.
	ConfirmTimeout time.Duration
	// SignatureDeadline is how long signatures stay valid unless a request
	// overrides it.
	SignatureDeadline time.Duration
	Now               func() time.Time
	Log               *slog.Logger
}

type Executor struct {
	backend     interfaces.ChainBackend
	addrs       *chainconfig.ContractSet
	signatures  *signature.Generator
	encoder     *calldata.Encoder
	reader      *chain.BatchReader
	aggregator  *aggregator.Aggregator
	confirm     time.Duration
	sigDeadline time.Duration
	now         func() time.Time
	log         *slog.Logger
}

func New(cfg Config) *Executor {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	e := &Executor{
		backend:     cfg.Backend,
		addrs:       cfg.Addresses,
		signatures:  cfg.Signatures,
		encoder:     calldata.NewEncoder(cfg.Addresses),
		reader:      chain.NewBatchReader(cfg.Backend, cfg.Addresses.Address(contracts.Multicall3), log),
		aggregator:  aggregator.New(cfg.Addresses),
		confirm:     cfg.ConfirmTimeout,
		sigDeadline: cfg.SignatureDeadline,
		now:         cfg.Now,
		log:         log,
	}
	if e.confirm == 0 {
		e.confirm = DefaultConfirmTimeout
	}
	if e.sigDeadline == 0 {
		e.sigDeadline = DefaultSignatureDeadline
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// BucketOutcome is the result of executing one bucket. Results holds one entry
// per bucket index; entries of requests that were not registered carry Err.
// Err is set when the bucket as a whole failed.
type BucketOutcome struct {
	Bucket  *interfaces.WorkflowBucket
	Results []interfaces.ExecutionResult
	Err     error
}

// itemCall is the encoded workflow call of one request.
type itemCall struct {
	index int
	route calldata.Route
	data  []byte
}

func observe(stage interfaces.Stage) func() {
	timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues(string(stage)))
	return func() { timer.ObserveDuration() }
}

// Execute runs bucket. prepared is indexed by request index. In abort mode any
// failing request fails the whole bucket; otherwise requests failing before
// submission are dropped and the rest is submitted.
//
// Fees are wrapped and approved before simulation, since the workflow pulls
// them during the call. A revert found in simulation leaves those funding
// transactions in place.
func (e *Executor) Execute(ctx context.Context, bucket *interfaces.WorkflowBucket, prepared []*interfaces.PreparedRequest, opts interfaces.Options) *BucketOutcome {
	out := &BucketOutcome{Bucket: bucket}
	itemErrs := make(map[int]error)

	finish := func(bucketErr error) *BucketOutcome {
		out.Err = bucketErr
		for _, index := range bucket.Indices {
			if res := out.find(index); res != nil {
				continue
			}
			err := itemErrs[index]
			if err == nil {
				err = bucketErr
			}
			out.Results = append(out.Results, interfaces.ExecutionResult{Index: index, Err: err})
		}
		metrics.BucketsExecuted.WithLabelValues(bucket.Strategy.String(), metrics.Outcome(bucketErr)).Inc()
		return out
	}

	done := observe(interfaces.StageFund)
	err := e.fund(ctx, bucket.Spender(), bucket.Fees)
	done()
	if err != nil {
		return finish(interfaces.WrapStage(interfaces.StageFund, -1, err))
	}

	var calls []itemCall
	for _, index := range bucket.Indices {
		call, _, err := e.encodeItem(ctx, prepared[index], true)
		if err != nil {
			itemErrs[index] = err
			if !opts.ContinueOnFailure {
				return finish(err)
			}
			continue
		}
		calls = append(calls, call)
	}

	done = observe(interfaces.StageSimulate)
	calls, err = e.simulate(ctx, bucket, calls, itemErrs, !opts.ContinueOnFailure)
	done()
	if err != nil {
		return finish(err)
	}
	if len(calls) == 0 {
		return finish(nil)
	}

	tx, err := e.bucketCall(bucket, calls)
	if err != nil {
		return finish(interfaces.WrapStage(interfaces.StageEncode, -1, err))
	}
	indices := make([]int, len(calls))
	for i, c := range calls {
		indices[i] = c.index
	}

	e.log.Info("Submitting bucket",
		slog.String("method", bucket.Method),
		slog.String("strategy", bucket.Strategy.String()),
		slog.Int("size", len(calls)),
		slog.String("to", tx.To.Hex()))
	metrics.BucketSize.WithLabelValues(bucket.Strategy.String()).Observe(float64(len(calls)))

	done = observe(interfaces.StageConfirm)
	receipt, err := e.sendAndWait(ctx, tx, "registration", func(h common.Hash) { bucket.TxHashes = append(bucket.TxHashes, h) })
	done()
	if err != nil {
		return finish(err)
	}

	results, err := e.aggregator.ReconcileBucket(indices, receipt)
	if err != nil {
		err = interfaces.WrapStage(interfaces.StageReconcile, -1, err)
	}
	for i := range results {
		e.followUps(ctx, &results[i], prepared[results[i].Index])
	}
	out.Results = append(out.Results, results...)
	return finish(err)
}

func (o *BucketOutcome) find(index int) *interfaces.ExecutionResult {
	for i := range o.Results {
		if o.Results[i].Index == index {
			return &o.Results[i]
		}
	}
	return nil
}

// encodeItem encodes the workflow call of p. When the route needs an IP
// account authorization it is signed, or, when sign is false, returned for an
// external signer and the call carries an empty signature.
func (e *Executor) encodeItem(ctx context.Context, p *interfaces.PreparedRequest, sign bool) (itemCall, *interfaces.Authorization, error) {
	route, err := calldata.Select(&p.Request)
	if err != nil {
		return itemCall{}, nil, interfaces.WrapStage(interfaces.StageEncode, p.Index, err)
	}

	var sig interfaces.SignatureData
	var auth *interfaces.Authorization
	if method := e.authorization(route); method != nil {
		if sign {
			done := observe(interfaces.StageSign)
			sig, err = e.signatures.Sign(ctx, signature.SignatureRequest{
				IPID:     p.IPID,
				Deadline: e.deadline(p),
				Method:   method,
			})
			done()
			if err != nil {
				return itemCall{}, nil, interfaces.WrapStage(interfaces.StageSign, p.Index, err)
			}
		} else {
			to, data, err := e.signatures.SignedCall(p.IPID, method)
			if err != nil {
				return itemCall{}, nil, interfaces.WrapStage(interfaces.StageEncode, p.Index, err)
			}
			auth = &interfaces.Authorization{Index: p.Index, IPID: p.IPID, Workflow: e.encoder.Destination(route), To: to, Data: data}
		}
	}

	data, err := e.encoder.Registration(route, p, sig)
	if err != nil {
		return itemCall{}, nil, interfaces.WrapStage(interfaces.StageEncode, p.Index, err)
	}
	return itemCall{index: p.Index, route: route, data: data}, auth, nil
}

// authorization maps a route to the permission signature it needs, nil when
// the call needs none.
func (e *Executor) authorization(route calldata.Route) signature.Method {
	workflow := e.encoder.Destination(route)
	distribution := route.Contract == contracts.RoyaltyTokenDistributionWorkflows
	switch route.Auth {
	case calldata.AuthMetadata:
		return signature.SetMetadataMethod{Workflow: workflow}
	case calldata.AuthAttachTerms:
		if distribution {
			return signature.DeployRoyaltyVaultMethod{Workflow: workflow}
		}
		return signature.AttachTermsMethod{Workflow: workflow}
	case calldata.AuthDerivative:
		if distribution {
			return signature.DeployRoyaltyVaultMethod{Workflow: workflow, Derivative: true}
		}
		return signature.RegisterDerivativeMethod{Workflow: workflow}
	}
	return nil
}

func (e *Executor) deadline(p *interfaces.PreparedRequest) *big.Int {
	validity := e.sigDeadline
	if s := p.Request.Options.SignatureDeadlineSeconds; s > 0 {
		validity = time.Duration(s) * time.Second
	}
	return big.NewInt(e.now().Add(validity).Unix())
}

// bucketCall wraps the calls of a bucket into its transaction. Several calls
// go through the destination's own multicall so msg.sender is preserved.
func (e *Executor) bucketCall(bucket *interfaces.WorkflowBucket, calls []itemCall) (interfaces.Call, error) {
	if len(calls) == 1 {
		return interfaces.Call{To: bucket.Destination, Data: calls[0].data}, nil
	}
	datas := make([][]byte, len(calls))
	for i, c := range calls {
		datas[i] = c.data
	}
	data, err := e.encoder.Multicall(calls[0].route.Contract, datas)
	if err != nil {
		return interfaces.Call{}, err
	}
	return interfaces.Call{To: bucket.Destination, Data: data}, nil
}

// simulate dry-runs the bucket. When a batch reverts, each call is simulated on
// its own to find the culprits: abort mode fails the bucket naming the first,
// continue mode drops them and simulates the remainder again.
func (e *Executor) simulate(ctx context.Context, bucket *interfaces.WorkflowBucket, calls []itemCall, itemErrs map[int]error, abort bool) ([]itemCall, error) {
	for len(calls) > 0 {
		tx, err := e.bucketCall(bucket, calls)
		if err != nil {
			return nil, interfaces.WrapStage(interfaces.StageEncode, -1, err)
		}
		_, batchErr := e.backend.Simulate(ctx, tx)
		if batchErr == nil {
			return calls, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(calls) == 1 {
			err := interfaces.WrapStage(interfaces.StageSimulate, calls[0].index, batchErr)
			itemErrs[calls[0].index] = err
			if abort {
				return nil, err
			}
			return nil, nil
		}

		var remaining []itemCall
		for i, c := range calls {
			_, err := e.backend.Simulate(ctx, interfaces.Call{To: bucket.Destination, Data: c.data})
			if err == nil {
				remaining = append(remaining, c)
				continue
			}
			var revert *interfaces.SimulationRevertError
			if errors.As(err, &revert) {
				named := *revert
				named.Index = i
				err = &named
			}
			err = interfaces.WrapStage(interfaces.StageSimulate, c.index, err)
			itemErrs[c.index] = err
			if abort {
				return nil, err
			}
		}
		if len(remaining) == len(calls) {
			// Every call passes alone, so they conflict with each other.
			return nil, interfaces.WrapStage(interfaces.StageSimulate, -1, batchErr)
		}
		e.log.Warn("Dropping reverting requests from bucket",
			slog.String("method", bucket.Method),
			slog.Int("dropped", len(calls)-len(remaining)))
		calls = remaining
	}
	return nil, nil
}

// sendAndWait submits call and waits for its receipt. onSent sees the hash as
// soon as the transaction is accepted.
func (e *Executor) sendAndWait(ctx context.Context, call interfaces.Call, kind string, onSent func(common.Hash)) (*types.Receipt, error) {
	txHash, err := e.backend.SendTransaction(ctx, call)
	if err != nil {
		return nil, interfaces.WrapStage(interfaces.StageSubmit, -1, err)
	}
	metrics.TransactionsSent.WithLabelValues(kind).Inc()
	if onSent != nil {
		onSent(txHash)
	}

	receipt, err := e.backend.WaitForReceipt(ctx, txHash, e.confirm)
	if err != nil {
		return nil, interfaces.WrapStage(interfaces.StageConfirm, -1, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, interfaces.WrapStage(interfaces.StageConfirm, -1, &interfaces.TransactionFailedError{TxHash: txHash, Receipt: receipt})
	}
	return receipt, nil
}
