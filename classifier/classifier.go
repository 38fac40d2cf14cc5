// Package classifier groups validated requests into buckets that are submitted
// as one unit each.
//
// Classification is a single left-to-right scan: a request joins the previous
// bucket only when it targets the same workflow function with the same strategy,
// and Direct requests never share a bucket. Non-adjacent compatible requests are
// not merged, so buckets and the requests inside them keep the caller's order.
package classifier

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/calldata"
	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

type Classifier struct {
	encoder   *calldata.Encoder
	wrappedIP common.Address
}

func New(addrs *chainconfig.ContractSet) *Classifier {
	return &Classifier{
		encoder:   calldata.NewEncoder(addrs),
		wrappedIP: addrs.Address(contracts.WrappedIP),
	}
}

// Strategy decides how a single request can be submitted. Batching needs the
// sender to be allowed to mint and every fee to be payable in the wrapped gas
// token, which the workflow contract pulls through one approval.
func (c *Classifier) Strategy(p *interfaces.PreparedRequest, opts interfaces.Options) interfaces.Strategy {
	if !opts.UseMulticallWhenPossible {
		return interfaces.StrategyDirect
	}
	if _, mint := p.Request.Target.(interfaces.MintTarget); mint && (p.SPG == nil || !p.SPG.PublicMinting) {
		return interfaces.StrategyDirect
	}
	for _, fee := range p.Fees {
		if fee.Token != c.wrappedIP {
			return interfaces.StrategyDirect
		}
	}
	return interfaces.StrategyAggregated
}

// Classify buckets prepared requests, which must be in input order. It reads no
// chain state.
func (c *Classifier) Classify(prepared []*interfaces.PreparedRequest, opts interfaces.Options) ([]interfaces.WorkflowBucket, error) {
	var buckets []interfaces.WorkflowBucket
	for _, p := range prepared {
		route, err := calldata.Select(&p.Request)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", p.Index, err)
		}
		strategy := c.Strategy(p, opts)
		destination := c.encoder.Destination(route)

		if n := len(buckets); n > 0 {
			last := &buckets[n-1]
			if strategy == interfaces.StrategyAggregated &&
				last.Strategy == strategy &&
				last.Destination == destination &&
				last.Method == route.Method {
				last.Indices = append(last.Indices, p.Index)
				last.Fees = interfaces.MergeFees(last.Fees, p.Fees...)
				continue
			}
		}
		buckets = append(buckets, interfaces.WorkflowBucket{
			Strategy:    strategy,
			Destination: destination,
			Method:      route.Method,
			Indices:     []int{p.Index},
			Fees:        interfaces.MergeFees(nil, p.Fees...),
		})
	}
	return buckets, nil
}
