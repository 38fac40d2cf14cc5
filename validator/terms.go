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

// ValidateLicenseTermsData checks every entry against the PIL policy rules and
// returns the entries with id references resolved into inline terms and with
// normalized licensing configs. Entries that cap license tokens get the total
// license token limit hook installed in their config.
func (v *Validator) ValidateLicenseTermsData(ctx context.Context, entries []interfaces.LicenseTermsData) ([]interfaces.LicenseTermsData, error) {
	out := make([]interfaces.LicenseTermsData, len(entries))
	for i, e := range entries {
		field := fmt.Sprintf("licenseTermsData[%d]", i)
		if (e.Terms == nil) == (e.LicenseTermsID == nil) {
			return nil, &interfaces.ValidationError{Field: field, Reason: "exactly one of terms and licenseTermsId must be set"}
		}
		out[i] = e
	}

	if err := v.resolveTermsReferences(ctx, out); err != nil {
		return nil, err
	}

	hook := v.addrs.Address(contracts.TotalLicenseTokenLimitHook)
	for i := range out {
		field := fmt.Sprintf("licenseTermsData[%d]", i)
		if err := ValidatePILTerms(field+".terms", out[i].Terms); err != nil {
			return nil, err
		}
		config, err := normalizeLicensingConfig(field, out[i], hook)
		if err != nil {
			return nil, err
		}
		out[i].LicensingConfig = config
	}

	if err := v.checkWhitelists(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveTermsReferences replaces licenseTermsId references with the registered terms.
func (v *Validator) resolveTermsReferences(ctx context.Context, entries []interfaces.LicenseTermsData) error {
	var refs []int
	var reads []chain.Read
	for i, e := range entries {
		if e.LicenseTermsID == nil {
			continue
		}
		if e.LicenseTermsID.Sign() <= 0 {
			return &interfaces.ValidationError{Field: fmt.Sprintf("licenseTermsData[%d].licenseTermsId", i), Reason: "must be positive"}
		}
		refs = append(refs, i)
		reads = append(reads,
			v.read(contracts.PILicenseTemplate, "exists", e.LicenseTermsID),
			v.read(contracts.PILicenseTemplate, "getLicenseTerms", e.LicenseTermsID),
		)
	}
	if len(refs) == 0 {
		return nil
	}

	values, err := v.readAll(ctx, reads)
	if err != nil {
		return err
	}
	for n, i := range refs {
		if !values[2*n][0].(bool) {
			return &interfaces.NotFoundError{Kind: "license terms", ID: entries[i].LicenseTermsID.String()}
		}
		entries[i].Terms = contracts.Convert[contracts.PILTerms](values[2*n+1][0]).Terms()
	}
	return nil
}

// ValidatePILTerms checks the chain independent PIL policy rules.
func ValidatePILTerms(field string, t *interfaces.PILTerms) error {
	zero := common.Address{}
	if t.DefaultMintingFee != nil && t.DefaultMintingFee.Sign() > 0 && t.RoyaltyPolicy == zero {
		return &interfaces.ValidationError{Field: field + ".royaltyPolicy", Reason: "required when defaultMintingFee is greater than 0"}
	}
	if t.DefaultMintingFee != nil && t.DefaultMintingFee.Sign() < 0 {
		return &interfaces.RangeError{Field: field + ".defaultMintingFee", Value: t.DefaultMintingFee.String(), Min: "0", Max: "unbounded"}
	}
	if t.CommercialRevShare < 0 || t.CommercialRevShare > 100 {
		return &interfaces.RangeError{Field: field + ".commercialRevShare", Value: fmt.Sprint(t.CommercialRevShare), Min: "0", Max: "100"}
	}
	for _, f := range []struct {
		name  string
		value *big.Int
	}{
		{"expiration", t.Expiration},
		{"commercialRevCeiling", t.CommercialRevCeiling},
		{"derivativeRevCeiling", t.DerivativeRevCeiling},
	} {
		if f.value != nil && f.value.Sign() < 0 {
			return &interfaces.RangeError{Field: field + "." + f.name, Value: f.value.String(), Min: "0", Max: "unbounded"}
		}
	}
	if t.RoyaltyPolicy != zero && t.Currency == zero {
		return &interfaces.ValidationError{Field: field + ".currency", Reason: "required when a royalty policy is set"}
	}

	if !t.CommercialUse {
		switch {
		case t.CommercialAttribution:
			return &interfaces.ValidationError{Field: field + ".commercialAttribution", Reason: "cannot add commercial attribution when commercial use is disabled"}
		case t.CommercializerChecker != zero:
			return &interfaces.ValidationError{Field: field + ".commercializerChecker", Reason: "cannot add a commercializer checker when commercial use is disabled"}
		case t.CommercialRevShare > 0:
			return &interfaces.ValidationError{Field: field + ".commercialRevShare", Reason: "cannot add a commercial revenue share when commercial use is disabled"}
		case t.CommercialRevCeiling != nil && t.CommercialRevCeiling.Sign() > 0:
			return &interfaces.ValidationError{Field: field + ".commercialRevCeiling", Reason: "cannot add a commercial revenue ceiling when commercial use is disabled"}
		case t.DerivativeRevCeiling != nil && t.DerivativeRevCeiling.Sign() > 0:
			return &interfaces.ValidationError{Field: field + ".derivativeRevCeiling", Reason: "cannot add a derivative revenue ceiling when commercial use is disabled"}
		case t.RoyaltyPolicy != zero:
			return &interfaces.ValidationError{Field: field + ".royaltyPolicy", Reason: "cannot add a royalty policy when commercial use is disabled"}
		}
	} else if t.RoyaltyPolicy == zero {
		return &interfaces.ValidationError{Field: field + ".royaltyPolicy", Reason: "required when commercial use is enabled"}
	}

	if !t.DerivativesAllowed {
		switch {
		case t.DerivativesAttribution:
			return &interfaces.ValidationError{Field: field + ".derivativesAttribution", Reason: "cannot add derivative attribution when derivatives are not allowed"}
		case t.DerivativesApproval:
			return &interfaces.ValidationError{Field: field + ".derivativesApproval", Reason: "cannot add derivative approval when derivatives are not allowed"}
		case t.DerivativesReciprocal:
			return &interfaces.ValidationError{Field: field + ".derivativesReciprocal", Reason: "cannot add derivatives reciprocal when derivatives are not allowed"}
		case t.DerivativeRevCeiling != nil && t.DerivativeRevCeiling.Sign() > 0:
			return &interfaces.ValidationError{Field: field + ".derivativeRevCeiling", Reason: "cannot add a derivative revenue ceiling when derivatives are not allowed"}
		}
	}
	return nil
}

// normalizeLicensingConfig fills a missing config with zero defaults and checks
// its ranges. A token cap turns the config on and points it at the limit hook.
func normalizeLicensingConfig(field string, e interfaces.LicenseTermsData, hook common.Address) (*interfaces.LicensingConfig, error) {
	config := interfaces.LicensingConfig{MintingFee: new(big.Int)}
	if e.LicensingConfig != nil {
		config = *e.LicensingConfig
		if config.MintingFee == nil {
			config.MintingFee = new(big.Int)
		}
	}
	if e.MaxLicenseTokens != nil && e.MaxLicenseTokens.Sign() < 0 {
		return nil, &interfaces.RangeError{Field: field + ".maxLicenseTokens", Value: e.MaxLicenseTokens.String(), Min: "0", Max: "unbounded"}
	}
	field += ".licensingConfig"

	if config.MintingFee.Sign() < 0 {
		return nil, &interfaces.RangeError{Field: field + ".mintingFee", Value: config.MintingFee.String(), Min: "0", Max: "unbounded"}
	}
	if config.MintingFee.Sign() > 0 && e.Terms.RoyaltyPolicy == (common.Address{}) {
		return nil, &interfaces.ValidationError{Field: field + ".mintingFee", Reason: "requires the terms to set a royalty policy"}
	}
	if config.CommercialRevShare < 0 || config.CommercialRevShare > 100 {
		return nil, &interfaces.RangeError{Field: field + ".commercialRevShare", Value: fmt.Sprint(config.CommercialRevShare), Min: "0", Max: "100"}
	}
	if config.ExpectMinimumGroupRewardShare < 0 || config.ExpectMinimumGroupRewardShare > 100 {
		return nil, &interfaces.RangeError{Field: field + ".expectMinimumGroupRewardShare", Value: fmt.Sprint(config.ExpectMinimumGroupRewardShare), Min: "0", Max: "100"}
	}

	if e.MaxLicenseTokens != nil {
		if config.LicensingHook != (common.Address{}) && config.LicensingHook != hook {
			return nil, &interfaces.ValidationError{Field: field + ".licensingHook", Reason: "maxLicenseTokens requires the total license token limit hook, got " + config.LicensingHook.Hex()}
		}
		config.IsSet = true
		config.LicensingHook = hook
	}
	return &config, nil
}

// checkWhitelists makes sure royalty policies and currencies are whitelisted by
// the royalty module. Each distinct address is read once.
func (v *Validator) checkWhitelists(ctx context.Context, entries []interfaces.LicenseTermsData) error {
	type check struct {
		addr   common.Address
		policy bool
		entry  int
	}
	seen := make(map[check]bool)
	var checks []check
	var reads []chain.Read
	for i, e := range entries {
		if e.Terms.RoyaltyPolicy == (common.Address{}) {
			continue
		}
		for _, c := range []check{{addr: e.Terms.RoyaltyPolicy, policy: true}, {addr: e.Terms.Currency}} {
			if seen[c] {
				continue
			}
			seen[c] = true
			c.entry = i
			checks = append(checks, c)
			if c.policy {
				reads = append(reads, v.read(contracts.RoyaltyModule, "isWhitelistedRoyaltyPolicy", c.addr))
			} else {
				reads = append(reads, v.read(contracts.RoyaltyModule, "isWhitelistedRoyaltyToken", c.addr))
			}
		}
	}
	if len(reads) == 0 {
		return nil
	}

	values, err := v.readAll(ctx, reads)
	if err != nil {
		return err
	}
	for n, c := range checks {
		if values[n][0].(bool) {
			continue
		}
		field := fmt.Sprintf("licenseTermsData[%d].terms.currency", c.entry)
		reason := "currency token " + c.addr.Hex() + " is not whitelisted"
		if c.policy {
			field = fmt.Sprintf("licenseTermsData[%d].terms.royaltyPolicy", c.entry)
			reason = "royalty policy " + c.addr.Hex() + " is not whitelisted"
		}
		return &interfaces.ValidationError{Field: field, Reason: reason}
	}
	return nil
}
