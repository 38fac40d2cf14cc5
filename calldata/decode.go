package calldata

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Decoded is a workflow call decoded back into the request it registers.
type Decoded struct {
	Contract  contracts.Name
	Method    string
	Request   interfaces.RegistrationRequest
	Signature *interfaces.SignatureData
}

// Workflows lists the contracts Decode understands.
var Workflows = []contracts.Name{
	contracts.RegistrationWorkflows,
	contracts.LicenseAttachmentWorkflows,
	contracts.DerivativeWorkflows,
	contracts.RoyaltyTokenDistributionWorkflows,
}

// DecodeBatch decodes a call to a workflow contract, unwrapping a multicall into
// its sub-calls in order.
func DecodeBatch(contract contracts.Name, data []byte) ([]*Decoded, error) {
	method, args, err := contracts.UnpackInputs(contract, data)
	if err != nil {
		return nil, err
	}
	if method.Name != "multicall" {
		d, err := decode(contract, method.Name, args)
		if err != nil {
			return nil, err
		}
		return []*Decoded{d}, nil
	}

	calls := args[0].([][]byte)
	out := make([]*Decoded, len(calls))
	for i, call := range calls {
		d, err := Decode(contract, call)
		if err != nil {
			return nil, fmt.Errorf("sub-call %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

// Decode decodes a single registration call.
func Decode(contract contracts.Name, data []byte) (*Decoded, error) {
	method, args, err := contracts.UnpackInputs(contract, data)
	if err != nil {
		return nil, err
	}
	if method.Name == "multicall" {
		return nil, fmt.Errorf("%s: nested multicall", contract)
	}
	return decode(contract, method.Name, args)
}

type namedArgs map[string]interface{}

func decode(contract contracts.Name, methodName string, values []interface{}) (*Decoded, error) {
	named := make(namedArgs, len(values))
	for i, input := range contracts.ABI(contract).Methods[methodName].Inputs {
		named[input.Name] = values[i]
	}

	d := &Decoded{Contract: contract, Method: methodName}
	req := &d.Request

	switch {
	case named.has("spgNftContract"):
		req.Target = interfaces.MintTarget{
			SPGNFTContract:  named["spgNftContract"].(common.Address),
			Recipient:       named["recipient"].(common.Address),
			AllowDuplicates: named["allowDuplicates"].(bool),
		}
	case named.has("nftContract"):
		req.Target = interfaces.ExistingNFT{
			Contract: named["nftContract"].(common.Address),
			TokenID:  named["tokenId"].(*big.Int),
		}
	default:
		return nil, fmt.Errorf("%s.%s is not a registration call", contract, methodName)
	}

	if v, ok := named["ipMetadata"]; ok {
		if m := contracts.Convert[contracts.IPMetadata](v); !m.IsEmpty() {
			req.Metadata = m.Metadata()
		}
	}
	if v, ok := named["derivData"]; ok {
		req.Derivative = contracts.Convert[contracts.MakeDerivative](v).Derivative()
	}
	if v, ok := named["licenseTermsData"]; ok {
		for _, e := range contracts.Convert[[]contracts.LicenseTermsData](v) {
			req.LicenseTerms = append(req.LicenseTerms, interfaces.LicenseTermsData{
				Terms:           e.Terms.Terms(),
				LicensingConfig: e.LicensingConfig.Config(),
			})
		}
	}
	if v, ok := named["royaltyShares"]; ok {
		for _, s := range contracts.Convert[[]contracts.RoyaltyShare](v) {
			req.RoyaltyShares = append(req.RoyaltyShares, interfaces.RoyaltyShare{
				Recipient:  s.Recipient,
				Percentage: float64(s.Percentage) / interfaces.PercentScale,
			})
		}
	}
	for _, name := range []string{"sigMetadata", "sigMetadataAndAttachAndConfig", "sigMetadataAndRegister"} {
		if v, ok := named[name]; ok {
			sig := contracts.Convert[contracts.SignatureData](v)
			d.Signature = &interfaces.SignatureData{Signer: sig.Signer, Deadline: sig.Deadline, Signature: sig.Signature}
		}
	}
	return d, nil
}

func (n namedArgs) has(name string) bool {
	_, ok := n[name]
	return ok
}
