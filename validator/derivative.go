package validator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/chain"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Linkage is the outcome of a derivative linkage check.
type Linkage struct {
	// Derivative is the request's derivative data with defaults filled in.
	Derivative *interfaces.DerivativeData
	// RoyaltyPercent is the cumulative royalty percent of the parents in
	// parts-per-hundred-million.
	RoyaltyPercent uint64
	// Fees are the predicted license minting fees, grouped by currency.
	Fees []interfaces.Fee
}

// MaxRevenueShareBound converts a 0-100 max revenue share into the on-chain unit.
// Nil or zero means no limit, i.e. 100%.
func MaxRevenueShareBound(maxRevenueShare *float64) uint64 {
	if maxRevenueShare == nil || *maxRevenueShare == 0 {
		return interfaces.MaxPercent
	}
	return uint64(interfaces.ScalePercent(*maxRevenueShare))
}

// ValidateDerivativeLinkage checks that every parent is registered and carries
// the referenced license terms, and that the cumulative royalty percent of the
// parents stays within maxRevenueShare. Predicted minting fees are returned for
// funding.
func (v *Validator) ValidateDerivativeLinkage(ctx context.Context, d *interfaces.DerivativeData) (*Linkage, error) {
	if len(d.ParentIPIDs) != len(d.LicenseTermsIDs) {
		return nil, &interfaces.CountMismatchError{Parents: len(d.ParentIPIDs), Terms: len(d.LicenseTermsIDs)}
	}
	if len(d.ParentIPIDs) == 0 || len(d.ParentIPIDs) > interfaces.MaxParents {
		return nil, &interfaces.RangeError{Field: "parentIpIds.length", Value: fmt.Sprint(len(d.ParentIPIDs)), Min: "1", Max: fmt.Sprint(interfaces.MaxParents)}
	}
	if d.MaxRevenueShare != nil && (*d.MaxRevenueShare < 0 || *d.MaxRevenueShare > 100) {
		return nil, &interfaces.RangeError{Field: "maxRevenueShare", Value: fmt.Sprint(*d.MaxRevenueShare), Min: "0", Max: "100"}
	}
	if d.MaxRts != nil && *d.MaxRts > interfaces.MaxPercent {
		return nil, &interfaces.RangeError{Field: "maxRts", Value: fmt.Sprint(*d.MaxRts), Min: "0", Max: fmt.Sprint(interfaces.MaxPercent)}
	}
	if d.MaxMintingFee != nil && d.MaxMintingFee.Sign() < 0 {
		return nil, &interfaces.RangeError{Field: "maxMintingFee", Value: d.MaxMintingFee.String(), Min: "0", Max: "unbounded"}
	}

	normalized := *d
	if normalized.LicenseTemplate == (common.Address{}) {
		normalized.LicenseTemplate = v.addrs.Address(contracts.PILicenseTemplate)
	}
	if normalized.MaxRts == nil {
		maxRts := uint32(interfaces.MaxPercent)
		normalized.MaxRts = &maxRts
	}
	seen := make(map[common.Address]bool, len(d.ParentIPIDs))
	for i, parent := range d.ParentIPIDs {
		if seen[parent] {
			return nil, &interfaces.ValidationError{Field: fmt.Sprintf("parentIpIds[%d]", i), Reason: "duplicate parent " + parent.Hex()}
		}
		seen[parent] = true
		if d.LicenseTermsIDs[i] == nil {
			return nil, &interfaces.ValidationError{Field: fmt.Sprintf("licenseTermsIds[%d]", i), Reason: "must be set"}
		}
	}

	template := normalized.LicenseTemplate
	const readsPerParent = 3
	reads := make([]chain.Read, 0, readsPerParent*len(d.ParentIPIDs))
	for i, parent := range d.ParentIPIDs {
		termsID := d.LicenseTermsIDs[i]
		reads = append(reads,
			v.read(contracts.IPAssetRegistry, "isRegistered", parent),
			v.read(contracts.LicenseRegistry, "hasIpAttachedLicenseTerms", parent, template, termsID),
			v.read(contracts.LicenseRegistry, "getRoyaltyPercent", parent, template, termsID),
		)
	}
	values, err := v.readAll(ctx, reads)
	if err != nil {
		return nil, err
	}

	bound := MaxRevenueShareBound(d.MaxRevenueShare)
	var cumulative uint64
	for i, parent := range d.ParentIPIDs {
		row := values[i*readsPerParent : (i+1)*readsPerParent]
		if !row[0][0].(bool) {
			return nil, &interfaces.UnregisteredParentError{ParentIPID: parent}
		}
		if !row[1][0].(bool) {
			return nil, &interfaces.LicenseNotAttachedError{ParentIPID: parent, LicenseTermsID: d.LicenseTermsIDs[i]}
		}
		cumulative += uint64(row[2][0].(uint32))
		if cumulative > bound {
			return nil, &interfaces.RevenueShareExceededError{ParentIPID: parent, Actual: cumulative, Bound: bound}
		}
	}

	fees, err := v.predictFees(ctx, &normalized)
	if err != nil {
		return nil, err
	}
	return &Linkage{Derivative: &normalized, RoyaltyPercent: cumulative, Fees: fees}, nil
}

// predictFees asks the licensing module for the fee of minting one license token
// of each parent and enforces maxMintingFee.
func (v *Validator) predictFees(ctx context.Context, d *interfaces.DerivativeData) ([]interfaces.Fee, error) {
	reads := make([]chain.Read, len(d.ParentIPIDs))
	for i, parent := range d.ParentIPIDs {
		reads[i] = v.read(contracts.LicensingModule, "predictMintingLicenseFee",
			parent, d.LicenseTemplate, d.LicenseTermsIDs[i], big.NewInt(1), v.backend.Sender(), []byte{})
	}
	values, err := v.readAll(ctx, reads)
	if err != nil {
		return nil, err
	}

	var fees []interfaces.Fee
	for i, row := range values {
		currency := row[0].(common.Address)
		amount := row[1].(*big.Int)
		if d.MaxMintingFee != nil && d.MaxMintingFee.Sign() > 0 && amount.Cmp(d.MaxMintingFee) > 0 {
			return nil, &interfaces.RangeError{
				Field: fmt.Sprintf("licenseMintingFee[%s]", d.ParentIPIDs[i].Hex()),
				Value: amount.String(),
				Min:   "0",
				Max:   d.MaxMintingFee.String(),
			}
		}
		fees = interfaces.MergeFees(fees, interfaces.Fee{Token: currency, Amount: amount})
	}
	return fees, nil
}
