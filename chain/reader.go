package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Read is a single view call.
type Read struct {
	Target   common.Address
	Contract contracts.Name
	Method   string
	Args     []interface{}
}

// ReadResult carries the decoded outputs of a Read, or the error it failed with.
type ReadResult struct {
	Values []interface{}
	Err    error
}

// BatchReader groups view calls into a single Multicall3 aggregate3 call.
// Without a Multicall3 address, or if the aggregate call itself fails, the reads
// are issued one by one.
type BatchReader struct {
	chain     interfaces.ChainBackend
	multicall common.Address
	log       *slog.Logger
}

func NewBatchReader(chain interfaces.ChainBackend, multicall common.Address, log *slog.Logger) *BatchReader {
	if log == nil {
		log = slog.Default()
	}
	return &BatchReader{chain: chain, multicall: multicall, log: log}
}

// Call performs one read and returns its decoded outputs.
func (r *BatchReader) Call(ctx context.Context, read Read) ([]interface{}, error) {
	res, err := r.Read(ctx, []Read{read})
	if err != nil {
		return nil, err
	}
	return res[0].Values, res[0].Err
}

// Read performs reads and returns one result per read, in order. The returned
// error is set only when the reads could not be attempted at all; backend
// failures are returned as *interfaces.ChainReadError.
func (r *BatchReader) Read(ctx context.Context, reads []Read) ([]ReadResult, error) {
	if len(reads) == 0 {
		return nil, nil
	}

	calldata := make([][]byte, len(reads))
	for i, read := range reads {
		data, err := contracts.Pack(read.Contract, read.Method, read.Args...)
		if err != nil {
			return nil, err
		}
		calldata[i] = data
	}

	if len(reads) > 1 && r.multicall != (common.Address{}) {
		results, err := r.aggregate(ctx, reads, calldata)
		if err == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Debug("Aggregated read failed, falling back to individual calls", "err", err)
	}

	results := make([]ReadResult, len(reads))
	for i, read := range reads {
		out, err := r.chain.Simulate(ctx, interfaces.Call{To: read.Target, Data: calldata[i]})
		if err != nil {
			var revert *interfaces.SimulationRevertError
			if !errors.As(err, &revert) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, &interfaces.ChainReadError{Err: err}
			}
			results[i] = ReadResult{Err: err}
			continue
		}
		results[i] = decode(read, out)
	}
	return results, nil
}

func (r *BatchReader) aggregate(ctx context.Context, reads []Read, calldata [][]byte) ([]ReadResult, error) {
	calls := make([]contracts.Call3, len(reads))
	for i, read := range reads {
		calls[i] = contracts.Call3{Target: read.Target, AllowFailure: true, CallData: calldata[i]}
	}
	data, err := contracts.Pack(contracts.Multicall3, "aggregate3", calls)
	if err != nil {
		return nil, err
	}

	out, err := r.chain.Simulate(ctx, interfaces.Call{To: r.multicall, Data: data})
	if err != nil {
		return nil, err
	}
	values, err := contracts.Unpack(contracts.Multicall3, "aggregate3", out)
	if err != nil {
		return nil, err
	}
	returned := contracts.Convert[[]contracts.Call3Result](values[0])
	if len(returned) != len(reads) {
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(returned), len(reads))
	}

	r.log.Debug("Aggregated read", slog.Int("calls", len(reads)))

	results := make([]ReadResult, len(reads))
	for i, ret := range returned {
		if !ret.Success {
			results[i] = ReadResult{Err: &interfaces.SimulationRevertError{
				Target: reads[i].Target,
				Index:  i,
				Reason: contracts.DecodeRevert(ret.ReturnData),
				Data:   ret.ReturnData,
			}}
			continue
		}
		results[i] = decode(reads[i], ret.ReturnData)
	}
	return results, nil
}

func decode(read Read, out []byte) ReadResult {
	if len(out) == 0 {
		return ReadResult{Err: fmt.Errorf("%s.%s at %s returned no data", read.Contract, read.Method, read.Target.Hex())}
	}
	values, err := contracts.Unpack(read.Contract, read.Method, out)
	if err != nil {
		return ReadResult{Err: err}
	}
	return ReadResult{Values: values}
}
