/*
Package workflow is the orchestration engine registering IP assets through the
protocol's workflow contracts.

An orchestration call runs a fixed pipeline:

 1. Validate: every request is checked against chain state concurrently. Any
    failure aborts the call before anything is signed or submitted.
 2. Classify: requests are grouped into buckets of adjacent requests sharing a
    destination contract, a method and a submission strategy.
 3. Execute: buckets run strictly in order. Each bucket is funded, signed just
    in time, simulated, submitted as one transaction and confirmed.
 4. Aggregate: receipts are reconciled into one ExecutionResult per request, in
    the caller's input order.

# Failure modes

By default the first failing bucket stops the call and every later request is
reported as not submitted. With Options.ContinueOnFailure every bucket runs,
requests failing before submission are dropped from their bucket and all
failures are returned together. Confirmed buckets are never unwound.

# External signing

Prepare stops after classification and returns the unsigned call data of every
bucket together with the IP account authorizations an external signer has to
produce. An Engine without a Signer can only prepare and validate requests, or
register requests that need no IP account authorization.

# Usage

	engine, err := workflow.New(workflow.Config{
	    Backend:   client,
	    Addresses: addresses,
	    Signer:    wallet,
	})
	if err != nil {
	    return err
	}
	results, err := engine.Register(ctx, requests, interfaces.DefaultOptions())
*/
package workflow
