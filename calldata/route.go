// Package calldata encodes registration requests into workflow contract calls and
// decodes such calls back into requests.
//
// Every request maps to exactly one workflow function, chosen by Select from the
// request shape. Requests registering an existing NFT act on behalf of an IP account
// the workflow does not own, so their calls carry a permission signature; Route.Auth
// names the permission set the call needs.
package calldata

import (
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Authorization is the permission set a workflow call needs from an IP account.
type Authorization int

const (
	// AuthNone is used by minting calls, where the workflow owns the fresh token.
	AuthNone Authorization = iota
	// AuthMetadata covers CoreMetadataModule.setAll.
	AuthMetadata
	// AuthAttachTerms adds LicensingModule.attachLicenseTerms and setLicensingConfig.
	AuthAttachTerms
	// AuthDerivative adds LicensingModule.registerDerivative.
	AuthDerivative
)

func (a Authorization) String() string {
	switch a {
	case AuthMetadata:
		return "metadata"
	case AuthAttachTerms:
		return "attach-terms"
	case AuthDerivative:
		return "derivative"
	default:
		return "none"
	}
}

// Route is the workflow function serving a request.
type Route struct {
	Contract contracts.Name
	Method   string
	Auth     Authorization
	// Distribute is set when royalty tokens are distributed by a follow-up call
	// after the vault is deployed.
	Distribute bool
}

// Select picks the workflow function for a request.
func Select(req *interfaces.RegistrationRequest) (Route, error) {
	hasDerivative := req.Derivative != nil
	hasTerms := len(req.LicenseTerms) > 0
	hasShares := len(req.RoyaltyShares) > 0

	if hasDerivative && hasTerms {
		return Route{}, &interfaces.ValidationError{Field: "licenseTermsData", Reason: "derivatives inherit their parents' terms and cannot attach new ones"}
	}
	if hasShares && !hasDerivative && !hasTerms {
		return Route{}, &interfaces.ValidationError{Field: "royaltyShares", Reason: "royalty distribution requires license terms or derivative data"}
	}

	switch req.Target.(type) {
	case interfaces.MintTarget:
		switch {
		case hasDerivative && hasShares:
			return Route{Contract: contracts.RoyaltyTokenDistributionWorkflows, Method: "mintAndRegisterIpAndMakeDerivativeAndDistributeRoyaltyTokens"}, nil
		case hasDerivative:
			return Route{Contract: contracts.DerivativeWorkflows, Method: "mintAndRegisterIpAndMakeDerivative"}, nil
		case hasTerms && hasShares:
			return Route{Contract: contracts.RoyaltyTokenDistributionWorkflows, Method: "mintAndRegisterIpAndAttachPILTermsAndDistributeRoyaltyTokens"}, nil
		case hasTerms:
			return Route{Contract: contracts.LicenseAttachmentWorkflows, Method: "mintAndRegisterIpAndAttachPILTerms"}, nil
		default:
			return Route{Contract: contracts.RegistrationWorkflows, Method: "mintAndRegisterIp"}, nil
		}

	case interfaces.ExistingNFT:
		switch {
		case hasDerivative && hasShares:
			return Route{Contract: contracts.RoyaltyTokenDistributionWorkflows, Method: "registerIpAndMakeDerivativeAndDeployRoyaltyVault", Auth: AuthDerivative, Distribute: true}, nil
		case hasDerivative:
			return Route{Contract: contracts.DerivativeWorkflows, Method: "registerIpAndMakeDerivative", Auth: AuthDerivative}, nil
		case hasTerms && hasShares:
			return Route{Contract: contracts.RoyaltyTokenDistributionWorkflows, Method: "registerIpAndAttachPILTermsAndDeployRoyaltyVault", Auth: AuthAttachTerms, Distribute: true}, nil
		case hasTerms:
			return Route{Contract: contracts.LicenseAttachmentWorkflows, Method: "registerIpAndAttachPILTerms", Auth: AuthAttachTerms}, nil
		default:
			route := Route{Contract: contracts.RegistrationWorkflows, Method: "registerIp"}
			if !contracts.NewIPMetadata(req.Metadata).IsEmpty() {
				route.Auth = AuthMetadata
			}
			return route, nil
		}
	}

	return Route{}, &interfaces.ValidationError{Field: "target", Reason: "either an existing NFT or an SPG NFT contract is required"}
}
