package signature

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Method is the closed set of calls an IP account can be asked to authorize.
// Each variant knows how to build the call it authorizes.
type Method interface {
	// signedCall returns the target and data the IP account executes. state
	// reports whether the signature is bound to a caller-provided account state
	// instead of the zero state of a fresh account.
	signedCall(g *Generator, ipID common.Address) (to common.Address, data []byte, state bool, err error)
}

// PermissionGrantMethod grants arbitrary permissions. A single grant is set with
// setTransientPermission, several with setTransientBatchPermissions.
type PermissionGrantMethod struct {
	Grants []interfaces.PermissionGrant
}

// SetMetadataMethod lets Workflow set the IP's metadata on registration.
type SetMetadataMethod struct {
	Workflow common.Address
}

// AttachTermsMethod lets Workflow set metadata, attach license terms and
// configure licensing.
type AttachTermsMethod struct {
	Workflow common.Address
}

// RegisterDerivativeMethod lets Workflow set metadata and link the IP to parents.
type RegisterDerivativeMethod struct {
	Workflow common.Address
}

// DeployRoyaltyVaultMethod covers the royalty token distribution workflows that
// register an existing NFT and deploy its vault, with terms or as a derivative.
type DeployRoyaltyVaultMethod struct {
	Workflow   common.Address
	Derivative bool
}

// DistributeRoyaltyTokensMethod approves the royalty token distribution workflow
// to move TotalAmount royalty tokens out of the IP's vault.
type DistributeRoyaltyTokensMethod struct {
	IPRoyaltyVault *common.Address
	TotalAmount    *big.Int
}

// BatchRegisterDerivativeMethod executes arbitrary encoded data on To, typically
// LicensingModule.registerDerivative for an already registered IP.
type BatchRegisterDerivativeMethod struct {
	To         common.Address
	EncodeData []byte
}

func (m PermissionGrantMethod) signedCall(g *Generator, ipID common.Address) (common.Address, []byte, bool, error) {
	if len(m.Grants) == 0 {
		return common.Address{}, nil, false, &interfaces.ValidationError{Field: "grants", Reason: "at least one permission is required"}
	}
	data, err := g.grantData(m.Grants)
	return g.addrs.Address(contracts.AccessController), data, false, err
}

func (m SetMetadataMethod) signedCall(g *Generator, ipID common.Address) (common.Address, []byte, bool, error) {
	return g.workflowGrant(ipID, m.Workflow, false, false)
}

func (m AttachTermsMethod) signedCall(g *Generator, ipID common.Address) (common.Address, []byte, bool, error) {
	return g.workflowGrant(ipID, m.Workflow, true, false)
}

func (m RegisterDerivativeMethod) signedCall(g *Generator, ipID common.Address) (common.Address, []byte, bool, error) {
	return g.workflowGrant(ipID, m.Workflow, false, true)
}

func (m DeployRoyaltyVaultMethod) signedCall(g *Generator, ipID common.Address) (common.Address, []byte, bool, error) {
	return g.workflowGrant(ipID, m.Workflow, !m.Derivative, m.Derivative)
}

func (m DistributeRoyaltyTokensMethod) signedCall(g *Generator, ipID common.Address) (common.Address, []byte, bool, error) {
	if m.IPRoyaltyVault == nil || *m.IPRoyaltyVault == (common.Address{}) {
		return common.Address{}, nil, false, &interfaces.ValidationError{Field: "ipRoyaltyVault", Reason: "required for distributing royalty tokens"}
	}
	if m.TotalAmount == nil || m.TotalAmount.Sign() <= 0 {
		return common.Address{}, nil, false, &interfaces.ValidationError{Field: "totalAmount", Reason: "required for distributing royalty tokens"}
	}
	data, err := g.encoder.RoyaltyTokenApproval(m.TotalAmount)
	return *m.IPRoyaltyVault, data, true, err
}

func (m BatchRegisterDerivativeMethod) signedCall(g *Generator, ipID common.Address) (common.Address, []byte, bool, error) {
	if m.To == (common.Address{}) {
		return common.Address{}, nil, false, &interfaces.ValidationError{Field: "to", Reason: "required for batch derivative registration"}
	}
	if len(m.EncodeData) == 0 {
		return common.Address{}, nil, false, &interfaces.ValidationError{Field: "encodeData", Reason: "required for batch derivative registration"}
	}
	return m.To, m.EncodeData, true, nil
}

// WorkflowPermissions lists the permissions a workflow contract needs from ipID's
// account. Metadata is always included; terms and derivative add the licensing
// module functions the workflow calls.
func WorkflowPermissions(addrs *chainconfig.ContractSet, ipID, workflow common.Address, withTerms, withDerivative bool) []interfaces.PermissionGrant {
	grant := func(to contracts.Name, method string) interfaces.PermissionGrant {
		return interfaces.PermissionGrant{
			IPAccount:  ipID,
			Signer:     workflow,
			To:         addrs.Address(to),
			Func:       contracts.Selector(to, method),
			Permission: interfaces.PermissionAllow,
		}
	}
	grants := []interfaces.PermissionGrant{grant(contracts.CoreMetadataModule, "setAll")}
	if withTerms {
		grants = append(grants,
			grant(contracts.LicensingModule, "attachLicenseTerms"),
			grant(contracts.LicensingModule, "setLicensingConfig"),
		)
	}
	if withDerivative {
		grants = append(grants, grant(contracts.LicensingModule, "registerDerivative"))
	}
	return grants
}
