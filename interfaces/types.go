// Package interfaces defines the core types and capabilities of the IP registration
// workflow engine. It provides the contract between components without implementation details.
package interfaces

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// PercentScale converts a 0-100 percentage into the on-chain parts-per-hundred-million unit.
	PercentScale = 1_000_000

	// MaxPercent is 100% expressed in parts-per-hundred-million.
	MaxPercent = 100 * PercentScale

	// MaxParents is the protocol limit on parents of a single derivative.
	MaxParents = 16
)

// ScalePercent converts a 0-100 percentage to parts-per-hundred-million.
// Callers are expected to range-check p before scaling.
func ScalePercent(p float64) uint32 {
	return uint32(math.Round(p * PercentScale))
}

// RegistrationTarget is the tagged variant selecting what gets registered:
// either an already minted NFT or a fresh mint from an SPG NFT collection.
type RegistrationTarget interface {
	isRegistrationTarget()
}

// ExistingNFT references a token that is already minted.
type ExistingNFT struct {
	Contract common.Address
	TokenID  *big.Int
}

// MintTarget mints a new token from an SPG NFT collection during registration.
type MintTarget struct {
	SPGNFTContract common.Address
	// Recipient of the minted token. Zero means the transaction sender.
	Recipient       common.Address
	AllowDuplicates bool
}

func (ExistingNFT) isRegistrationTarget() {}
func (MintTarget) isRegistrationTarget()  {}

// IPMetadata carries metadata URIs and their content hashes.
type IPMetadata struct {
	IPMetadataURI   string
	IPMetadataHash  [32]byte
	NFTMetadataURI  string
	NFTMetadataHash [32]byte
}

// DerivativeData links a new IP to its parents.
type DerivativeData struct {
	ParentIPIDs     []common.Address
	LicenseTermsIDs []*big.Int
	// LicenseTemplate defaults to the PIL license template when zero.
	LicenseTemplate common.Address
	// MaxMintingFee is the upper bound on license minting fees, nil or zero means no limit.
	MaxMintingFee *big.Int
	// MaxRts is the royalty token cap in parts-per-hundred-million, nil means MaxPercent.
	MaxRts *uint32
	// MaxRevenueShare is a 0-100 percentage, nil means 100.
	MaxRevenueShare *float64
}

// PILTerms is the inline programmable IP license policy.
// Percentages are expressed in the 0-100 range.
type PILTerms struct {
	Transferable              bool
	RoyaltyPolicy             common.Address
	DefaultMintingFee         *big.Int
	Expiration                *big.Int
	CommercialUse             bool
	CommercialAttribution     bool
	CommercializerChecker     common.Address
	CommercializerCheckerData []byte
	CommercialRevShare        float64
	CommercialRevCeiling      *big.Int
	DerivativesAllowed        bool
	DerivativesAttribution    bool
	DerivativesApproval       bool
	DerivativesReciprocal     bool
	DerivativeRevCeiling      *big.Int
	Currency                  common.Address
	URI                       string
}

// LicensingConfig overrides licensing behaviour for one attached policy.
type LicensingConfig struct {
	IsSet                         bool
	MintingFee                    *big.Int
	LicensingHook                 common.Address
	HookData                      []byte
	CommercialRevShare            float64
	Disabled                      bool
	ExpectMinimumGroupRewardShare float64
	ExpectGroupRewardPool         common.Address
}

// LicenseTermsData is either inline Terms or a reference to existing on-chain terms.
type LicenseTermsData struct {
	Terms           *PILTerms
	LicenseTermsID  *big.Int
	LicensingConfig *LicensingConfig
	// MaxLicenseTokens caps the number of license tokens through the limit hook.
	MaxLicenseTokens *big.Int
}

// RoyaltyShare assigns a percentage of the royalty tokens to a recipient.
type RoyaltyShare struct {
	Recipient  common.Address
	Percentage float64
}

// RequestOptions tune a single registration request.
type RequestOptions struct {
	// SignatureDeadlineSeconds overrides the engine-wide signature validity window.
	SignatureDeadlineSeconds uint64
}

// RegistrationRequest describes one registration. Its identity is its index in the
// caller's input slice.
type RegistrationRequest struct {
	Target        RegistrationTarget
	Derivative    *DerivativeData
	LicenseTerms  []LicenseTermsData
	RoyaltyShares []RoyaltyShare
	Metadata      *IPMetadata
	Options       RequestOptions
}

// Permission levels understood by the access controller.
type Permission uint8

const (
	PermissionAbstain Permission = iota
	PermissionAllow
	PermissionDeny
)

// PermissionGrant is a single row of an authorization list.
type PermissionGrant struct {
	IPAccount  common.Address
	Signer     common.Address
	To         common.Address
	Func       [4]byte
	Permission Permission
}

// SignatureData is the signature tuple handed to workflow contracts.
type SignatureData struct {
	Signer    common.Address
	Deadline  *big.Int
	Signature []byte
}

// SPGInfo describes the minting mode and fee of an SPG NFT collection.
type SPGInfo struct {
	PublicMinting bool
	MintFee       *big.Int
	MintFeeToken  common.Address
}

// Fee is an amount owed in one currency before a call can succeed.
type Fee struct {
	Token  common.Address
	Amount *big.Int
}

// PreparedRequest is a validated request plus the chain facts gathered for it.
type PreparedRequest struct {
	Index   int
	Request RegistrationRequest
	// IPID is the deterministic ip id of an existing NFT, zero for mint targets.
	IPID common.Address
	// SPG is set for mint targets.
	SPG *SPGInfo
	// Fees owed by the registration call, grouped by currency.
	Fees []Fee
	// Derivative is the normalized derivative argument, nil for originals.
	Derivative *DerivativeData
	// LicenseTerms are resolved to inline terms with normalized licensing configs.
	LicenseTerms []LicenseTermsData
	// RoyaltySharesTotal is the sum of royalty shares in parts-per-hundred-million.
	RoyaltySharesTotal uint32
}

// ExecutionResult is the outcome for a single request, in input order.
type ExecutionResult struct {
	Index                         int
	IPID                          common.Address
	TokenID                       *big.Int
	LicenseTermsIDs               []*big.Int
	IPRoyaltyVault                *common.Address
	MaxLicenseTokensTxHashes      []common.Hash
	DistributeRoyaltyTokensTxHash *common.Hash
	TxHash                        common.Hash
	Receipt                       *types.Receipt
	// Err is set when the item's bucket failed or the item was dropped from its batch.
	Err error
	// FollowUpErrors collects secondary call failures; they never fail the item.
	FollowUpErrors []error
}

// MergeFees adds fees to totals per token, keeping the first-seen token order.
// Neither input is modified.
func MergeFees(totals []Fee, fees ...Fee) []Fee {
	out := make([]Fee, len(totals), len(totals)+len(fees))
	for i, f := range totals {
		out[i] = Fee{Token: f.Token, Amount: new(big.Int).Set(f.Amount)}
	}
next:
	for _, f := range fees {
		if f.Amount == nil || f.Amount.Sign() == 0 {
			continue
		}
		for i := range out {
			if out[i].Token == f.Token {
				out[i].Amount.Add(out[i].Amount, f.Amount)
				continue next
			}
		}
		out = append(out, Fee{Token: f.Token, Amount: new(big.Int).Set(f.Amount)})
	}
	return out
}
