package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/calldata"
	"github.com/ruteri/ip-registration-workflows/chain"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
	"github.com/ruteri/ip-registration-workflows/metrics"
	"github.com/ruteri/ip-registration-workflows/signature"
)

const (
	followUpLicenseLimit = "license-token-limit"
	followUpDistribute   = "distribute-royalty-tokens"
)

// followUps issues the secondary calls of a registered request. They are
// independent of each other and their failures are recorded on res without
// failing it.
func (e *Executor) followUps(ctx context.Context, res *interfaces.ExecutionResult, p *interfaces.PreparedRequest) {
	fail := func(kind string, err error) {
		metrics.FollowUps.WithLabelValues(kind, metrics.OutcomeFailure).Inc()
		e.log.Warn("Follow-up call failed",
			slog.String("kind", kind),
			slog.Int("index", res.Index),
			slog.String("ip_id", res.IPID.Hex()),
			slog.String("err", err.Error()))
		res.FollowUpErrors = append(res.FollowUpErrors, interfaces.WrapStage(interfaces.StageFollowUp, res.Index, err))
	}

	for k, entry := range p.LicenseTerms {
		if entry.MaxLicenseTokens == nil {
			continue
		}
		if k >= len(res.LicenseTermsIDs) {
			fail(followUpLicenseLimit, fmt.Errorf("no attached license terms id for entry %d", k))
			continue
		}
		txHash, err := e.setLicenseTokenLimit(ctx, res.IPID, res.LicenseTermsIDs[k], entry.MaxLicenseTokens)
		if err != nil {
			fail(followUpLicenseLimit, err)
			continue
		}
		metrics.FollowUps.WithLabelValues(followUpLicenseLimit, metrics.OutcomeSuccess).Inc()
		res.MaxLicenseTokensTxHashes = append(res.MaxLicenseTokensTxHashes, txHash)
	}

	route, err := calldata.Select(&p.Request)
	if err != nil || !route.Distribute {
		return
	}
	if res.IPRoyaltyVault == nil {
		fail(followUpDistribute, fmt.Errorf("no royalty vault deployed for %s", res.IPID.Hex()))
		return
	}
	txHash, err := e.distributeRoyaltyTokens(ctx, res.IPID, *res.IPRoyaltyVault, p)
	if err != nil {
		fail(followUpDistribute, err)
		return
	}
	metrics.FollowUps.WithLabelValues(followUpDistribute, metrics.OutcomeSuccess).Inc()
	res.DistributeRoyaltyTokensTxHash = &txHash
}

func (e *Executor) setLicenseTokenLimit(ctx context.Context, ipID common.Address, termsID, limit *big.Int) (common.Hash, error) {
	data, err := e.encoder.TotalLicenseTokenLimit(ipID, termsID, limit)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := e.sendAndWait(ctx, interfaces.Call{To: e.addrs.Address(contracts.TotalLicenseTokenLimitHook), Data: data}, followUpLicenseLimit, nil)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// distributeRoyaltyTokens moves the requested shares out of the IP's vault. The
// IP account approves the distribution workflow with a signature bound to its
// current state.
func (e *Executor) distributeRoyaltyTokens(ctx context.Context, ipID, vault common.Address, p *interfaces.PreparedRequest) (common.Hash, error) {
	values, err := e.reader.Call(ctx, chain.Read{Target: ipID, Contract: contracts.IPAccount, Method: "state"})
	if err != nil {
		return common.Hash{}, fmt.Errorf("reading IP account state: %w", err)
	}
	state := values[0].([32]byte)

	total := new(big.Int)
	for _, s := range p.Request.RoyaltyShares {
		total.Add(total, big.NewInt(int64(interfaces.ScalePercent(s.Percentage))))
	}

	sig, err := e.signatures.Sign(ctx, signature.SignatureRequest{
		IPID:     ipID,
		Deadline: e.deadline(p),
		State:    &state,
		Method:   signature.DistributeRoyaltyTokensMethod{IPRoyaltyVault: &vault, TotalAmount: total},
	})
	if err != nil {
		return common.Hash{}, err
	}
	data, err := e.encoder.DistributeRoyaltyTokens(ipID, vault, p.Request.RoyaltyShares, sig)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := e.sendAndWait(ctx, interfaces.Call{To: e.addrs.Address(contracts.RoyaltyTokenDistributionWorkflows), Data: data}, followUpDistribute, nil)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}
