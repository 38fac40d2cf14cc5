package calldata

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Encoder builds call data for the contracts of one chain.
type Encoder struct {
	addrs *chainconfig.ContractSet
}

func NewEncoder(addrs *chainconfig.ContractSet) *Encoder {
	return &Encoder{addrs: addrs}
}

// Destination is the address a route's calls are sent to.
func (e *Encoder) Destination(route Route) common.Address {
	return e.addrs.Address(route.Contract)
}

// Registration encodes the workflow call registering a prepared request. sig is
// ignored by minting routes and may be zero for registerIp without metadata.
func (e *Encoder) Registration(route Route, p *interfaces.PreparedRequest, sig interfaces.SignatureData) ([]byte, error) {
	req := &p.Request
	metadata := contracts.NewIPMetadata(req.Metadata)
	signature := contracts.NewSignatureData(sig)

	var args []interface{}
	switch target := req.Target.(type) {
	case interfaces.MintTarget:
		if route.Auth != AuthNone {
			return nil, fmt.Errorf("%s cannot register a mint target", route.Method)
		}
		switch route.Method {
		case "mintAndRegisterIp":
			args = []interface{}{target.SPGNFTContract, target.Recipient, metadata, target.AllowDuplicates}
		case "mintAndRegisterIpAndAttachPILTerms":
			args = []interface{}{target.SPGNFTContract, target.Recipient, metadata, contracts.NewLicenseTermsData(p.LicenseTerms), target.AllowDuplicates}
		case "mintAndRegisterIpAndMakeDerivative":
			args = []interface{}{target.SPGNFTContract, contracts.NewMakeDerivative(p.Derivative), metadata, target.Recipient, target.AllowDuplicates}
		case "mintAndRegisterIpAndAttachPILTermsAndDistributeRoyaltyTokens":
			args = []interface{}{target.SPGNFTContract, target.Recipient, metadata, contracts.NewLicenseTermsData(p.LicenseTerms), contracts.NewRoyaltyShares(req.RoyaltyShares), target.AllowDuplicates}
		case "mintAndRegisterIpAndMakeDerivativeAndDistributeRoyaltyTokens":
			args = []interface{}{target.SPGNFTContract, target.Recipient, metadata, contracts.NewMakeDerivative(p.Derivative), contracts.NewRoyaltyShares(req.RoyaltyShares), target.AllowDuplicates}
		}

	case interfaces.ExistingNFT:
		tokenID := new(big.Int).Set(target.TokenID)
		switch route.Method {
		case "registerIp":
			args = []interface{}{target.Contract, tokenID, metadata, signature}
		case "registerIpAndAttachPILTerms", "registerIpAndAttachPILTermsAndDeployRoyaltyVault":
			args = []interface{}{target.Contract, tokenID, metadata, contracts.NewLicenseTermsData(p.LicenseTerms), signature}
		case "registerIpAndMakeDerivative":
			args = []interface{}{target.Contract, tokenID, contracts.NewMakeDerivative(p.Derivative), metadata, signature}
		case "registerIpAndMakeDerivativeAndDeployRoyaltyVault":
			args = []interface{}{target.Contract, tokenID, metadata, contracts.NewMakeDerivative(p.Derivative), signature}
		}
	}

	if args == nil {
		return nil, fmt.Errorf("no encoding of %s for request %d", route.Method, p.Index)
	}
	return contracts.Pack(route.Contract, route.Method, args...)
}

// Multicall wraps calls to the same workflow contract into one multicall.
func (e *Encoder) Multicall(contract contracts.Name, calls [][]byte) ([]byte, error) {
	return contracts.Pack(contract, "multicall", calls)
}

// DistributeRoyaltyTokens encodes the royalty token distribution of a deployed vault.
func (e *Encoder) DistributeRoyaltyTokens(ipID, vault common.Address, shares []interfaces.RoyaltyShare, sig interfaces.SignatureData) ([]byte, error) {
	return contracts.Pack(contracts.RoyaltyTokenDistributionWorkflows, "distributeRoyaltyTokens",
		ipID, vault, contracts.NewRoyaltyShares(shares), contracts.NewSignatureData(sig))
}

// RoyaltyTokenApproval is the vault call an IP account signs so the distribution
// workflow can move total royalty tokens.
func (e *Encoder) RoyaltyTokenApproval(total *big.Int) ([]byte, error) {
	return contracts.Pack(contracts.IPRoyaltyVault, "approve", e.addrs.Address(contracts.RoyaltyTokenDistributionWorkflows), total)
}

// TotalLicenseTokenLimit encodes the limit hook call for attached terms.
func (e *Encoder) TotalLicenseTokenLimit(ipID common.Address, termsID, limit *big.Int) ([]byte, error) {
	return contracts.Pack(contracts.TotalLicenseTokenLimitHook, "setTotalLicenseTokenLimit",
		ipID, e.addrs.Address(contracts.PILicenseTemplate), termsID, limit)
}

// Approve encodes an ERC20 approval.
func (e *Encoder) Approve(spender common.Address, amount *big.Int) ([]byte, error) {
	return contracts.Pack(contracts.ERC20, "approve", spender, amount)
}

// Deposit encodes wrapping native tokens into the wrapped gas token.
func (e *Encoder) Deposit() ([]byte, error) {
	return contracts.Pack(contracts.WrappedIP, "deposit")
}
