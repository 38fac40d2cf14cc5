package executor

import (
	"context"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Encode produces the unsigned call data of bucket without touching the chain.
// Calls of routes that need an IP account authorization carry an empty
// signature and are listed in Authorizations. Fees are not funded: the caller
// approves Spender for Fees before submitting.
func (e *Executor) Encode(ctx context.Context, bucket *interfaces.WorkflowBucket, prepared []*interfaces.PreparedRequest) (interfaces.EncodedBucket, error) {
	calls := make([]itemCall, 0, bucket.Size())
	var auths []interfaces.Authorization
	for _, index := range bucket.Indices {
		call, auth, err := e.encodeItem(ctx, prepared[index], false)
		if err != nil {
			return interfaces.EncodedBucket{}, err
		}
		calls = append(calls, call)
		if auth != nil {
			auths = append(auths, *auth)
		}
	}

	tx, err := e.bucketCall(bucket, calls)
	if err != nil {
		return interfaces.EncodedBucket{}, interfaces.WrapStage(interfaces.StageEncode, -1, err)
	}
	encoded := interfaces.EncodedBucket{
		Indices:  append([]int{}, bucket.Indices...),
		Method:   bucket.Method,
		Strategy: bucket.Strategy,
		To:       tx.To,
		Data:     tx.Data,
		Value:    tx.Value,
		Fees:     interfaces.MergeFees(nil, bucket.Fees...),
		Spender:  bucket.Spender(),

		Authorizations: auths,
	}
	if len(calls) > 1 {
		for _, c := range calls {
			encoded.Calls = append(encoded.Calls, interfaces.Call{To: bucket.Destination, Data: c.data})
		}
	}
	return encoded, nil
}
