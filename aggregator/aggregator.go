// Package aggregator turns transaction receipts back into per-request results.
//
// Registration events are matched to the requests of a bucket by position: the
// n-th IPRegistered event of a receipt belongs to the n-th submitted request.
// Attached license terms and deployed royalty vaults are then matched by ip id.
package aggregator

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// ErrNotSubmitted marks requests whose bucket was never submitted because an
// earlier bucket failed.
var ErrNotSubmitted = errors.New("not submitted: an earlier bucket failed")

type Aggregator struct {
	registry  common.Address
	licensing common.Address
	royalty   common.Address

	ipRegistered  common.Hash
	termsAttached common.Hash
	vaultDeployed common.Hash
}

func New(addrs *chainconfig.ContractSet) *Aggregator {
	return &Aggregator{
		registry:      addrs.Address(contracts.IPAssetRegistry),
		licensing:     addrs.Address(contracts.LicensingModule),
		royalty:       addrs.Address(contracts.RoyaltyModule),
		ipRegistered:  contracts.ABI(contracts.IPAssetRegistry).Events["IPRegistered"].ID,
		termsAttached: contracts.ABI(contracts.LicensingModule).Events["LicenseTermsAttached"].ID,
		vaultDeployed: contracts.ABI(contracts.RoyaltyModule).Events["IpRoyaltyVaultDeployed"].ID,
	}
}

// ReconcileBucket builds one result per submitted index from receipt. When the
// receipt carries fewer registrations than indices, the matched prefix is
// returned together with a *PartialRegistrationError.
func (a *Aggregator) ReconcileBucket(indices []int, receipt *types.Receipt) ([]interfaces.ExecutionResult, error) {
	var registrations []*types.Log
	terms := make(map[common.Address][]*big.Int)
	vaults := make(map[common.Address]common.Address)

	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 {
			continue
		}
		switch {
		case l.Address == a.registry && l.Topics[0] == a.ipRegistered && len(l.Topics) == 4:
			registrations = append(registrations, l)
		case l.Address == a.licensing && l.Topics[0] == a.termsAttached && len(l.Topics) == 3:
			values, err := contracts.ABI(contracts.LicensingModule).Unpack("LicenseTermsAttached", l.Data)
			if err != nil {
				return nil, err
			}
			ipID := common.BytesToAddress(l.Topics[2].Bytes())
			terms[ipID] = append(terms[ipID], values[1].(*big.Int))
		case l.Address == a.royalty && l.Topics[0] == a.vaultDeployed:
			values, err := contracts.ABI(contracts.RoyaltyModule).Unpack("IpRoyaltyVaultDeployed", l.Data)
			if err != nil {
				return nil, err
			}
			vaults[values[0].(common.Address)] = values[1].(common.Address)
		}
	}

	n := len(indices)
	if len(registrations) < n {
		n = len(registrations)
	}
	results := make([]interfaces.ExecutionResult, 0, n)
	for i := 0; i < n; i++ {
		l := registrations[i]
		values, err := contracts.ABI(contracts.IPAssetRegistry).Unpack("IPRegistered", l.Data)
		if err != nil {
			return nil, err
		}
		ipID := values[0].(common.Address)
		res := interfaces.ExecutionResult{
			Index:           indices[i],
			IPID:            ipID,
			TokenID:         new(big.Int).SetBytes(l.Topics[3].Bytes()),
			LicenseTermsIDs: terms[ipID],
			TxHash:          receipt.TxHash,
			Receipt:         receipt,
		}
		if vault, ok := vaults[ipID]; ok {
			res.IPRoyaltyVault = &vault
		}
		results = append(results, res)
	}

	if len(registrations) < len(indices) {
		return results, &interfaces.PartialRegistrationError{Expected: len(indices), Got: len(registrations), Receipt: receipt}
	}
	return results, nil
}

// Assemble merges bucket results into one result per request, in input order.
// Requests without a result are marked ErrNotSubmitted.
func Assemble(total int, results ...[]interfaces.ExecutionResult) []interfaces.ExecutionResult {
	out := make([]interfaces.ExecutionResult, total)
	seen := make([]bool, total)
	for _, batch := range results {
		for _, res := range batch {
			if res.Index < 0 || res.Index >= total {
				continue
			}
			out[res.Index] = res
			seen[res.Index] = true
		}
	}
	for i := range out {
		if !seen[i] {
			out[i] = interfaces.ExecutionResult{Index: i, Err: ErrNotSubmitted}
		}
	}
	return out
}
