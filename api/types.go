package api

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/hashicorp/go-multierror"

	"github.com/ruteri/ip-registration-workflows/interfaces"
	"github.com/ruteri/ip-registration-workflows/metadata"
)

// RegistrationRequest is the JSON form of interfaces.RegistrationRequest.
// Exactly one of NFT and Mint must be set. Amounts are decimal or 0x-prefixed
// hex strings, percentages are 0-100 numbers.
type RegistrationRequest struct {
	NFT  *ExistingNFT `json:"nft,omitempty"`
	Mint *MintTarget  `json:"mint,omitempty"`

	Derivative    *DerivativeData    `json:"derivative,omitempty"`
	LicenseTerms  []LicenseTermsData `json:"license_terms,omitempty"`
	RoyaltyShares []RoyaltyShare     `json:"royalty_shares,omitempty"`
	Metadata      *Metadata          `json:"metadata,omitempty"`

	SignatureDeadlineSeconds uint64 `json:"signature_deadline_seconds,omitempty"`
}

type ExistingNFT struct {
	Contract common.Address        `json:"contract"`
	TokenID  *math.HexOrDecimal256 `json:"token_id"`
}

type MintTarget struct {
	SPGNFTContract  common.Address `json:"spg_nft_contract"`
	Recipient       common.Address `json:"recipient,omitempty"`
	AllowDuplicates bool           `json:"allow_duplicates,omitempty"`
}

type DerivativeData struct {
	ParentIPIDs     []common.Address        `json:"parent_ip_ids"`
	LicenseTermsIDs []*math.HexOrDecimal256 `json:"license_terms_ids"`
	LicenseTemplate common.Address          `json:"license_template,omitempty"`
	MaxMintingFee   *math.HexOrDecimal256   `json:"max_minting_fee,omitempty"`
	MaxRts          *uint32                 `json:"max_rts,omitempty"`
	MaxRevenueShare *float64                `json:"max_revenue_share,omitempty"`
}

type PILTerms struct {
	Transferable              bool                  `json:"transferable"`
	RoyaltyPolicy             common.Address        `json:"royalty_policy"`
	DefaultMintingFee         *math.HexOrDecimal256 `json:"default_minting_fee,omitempty"`
	Expiration                *math.HexOrDecimal256 `json:"expiration,omitempty"`
	CommercialUse             bool                  `json:"commercial_use"`
	CommercialAttribution     bool                  `json:"commercial_attribution"`
	CommercializerChecker     common.Address        `json:"commercializer_checker,omitempty"`
	CommercializerCheckerData hexutil.Bytes         `json:"commercializer_checker_data,omitempty"`
	CommercialRevShare        float64               `json:"commercial_rev_share"`
	CommercialRevCeiling      *math.HexOrDecimal256 `json:"commercial_rev_ceiling,omitempty"`
	DerivativesAllowed        bool                  `json:"derivatives_allowed"`
	DerivativesAttribution    bool                  `json:"derivatives_attribution"`
	DerivativesApproval       bool                  `json:"derivatives_approval"`
	DerivativesReciprocal     bool                  `json:"derivatives_reciprocal"`
	DerivativeRevCeiling      *math.HexOrDecimal256 `json:"derivative_rev_ceiling,omitempty"`
	Currency                  common.Address        `json:"currency"`
	URI                       string                `json:"uri"`
}

type LicensingConfig struct {
	IsSet                         bool                  `json:"is_set"`
	MintingFee                    *math.HexOrDecimal256 `json:"minting_fee,omitempty"`
	LicensingHook                 common.Address        `json:"licensing_hook,omitempty"`
	HookData                      hexutil.Bytes         `json:"hook_data,omitempty"`
	CommercialRevShare            float64               `json:"commercial_rev_share"`
	Disabled                      bool                  `json:"disabled"`
	ExpectMinimumGroupRewardShare float64               `json:"expect_minimum_group_reward_share"`
	ExpectGroupRewardPool         common.Address        `json:"expect_group_reward_pool,omitempty"`
}

type LicenseTermsData struct {
	Terms            *PILTerms             `json:"terms,omitempty"`
	LicenseTermsID   *math.HexOrDecimal256 `json:"license_terms_id,omitempty"`
	LicensingConfig  *LicensingConfig      `json:"licensing_config,omitempty"`
	MaxLicenseTokens *math.HexOrDecimal256 `json:"max_license_tokens,omitempty"`
}

type RoyaltyShare struct {
	Recipient  common.Address `json:"recipient"`
	Percentage float64        `json:"percentage"`
}

type Metadata struct {
	IPMetadataURI   string      `json:"ip_metadata_uri,omitempty"`
	IPMetadataHash  common.Hash `json:"ip_metadata_hash,omitempty"`
	NFTMetadataURI  string      `json:"nft_metadata_uri,omitempty"`
	NFTMetadataHash common.Hash `json:"nft_metadata_hash,omitempty"`
}

// Options mirrors interfaces.Options. Unset fields take the defaults of
// interfaces.DefaultOptions.
type Options struct {
	UseMulticallWhenPossible *bool `json:"use_multicall_when_possible,omitempty"`
	ContinueOnFailure        *bool `json:"continue_on_failure,omitempty"`
}

// PrepareRequest is the body of the prepare and validate endpoints.
type PrepareRequest struct {
	Requests []RegistrationRequest `json:"requests"`
	Options  *Options              `json:"options,omitempty"`
}

// PrepareResponse lists the unsigned buckets in submission order.
type PrepareResponse struct {
	Buckets []EncodedBucket `json:"buckets"`
}

type EncodedBucket struct {
	Indices        []int           `json:"indices"`
	Method         string          `json:"method"`
	Strategy       string          `json:"strategy"`
	To             common.Address  `json:"to"`
	Data           hexutil.Bytes   `json:"data"`
	Value          *hexutil.Big    `json:"value,omitempty"`
	Calls          []Call          `json:"calls,omitempty"`
	Fees           []Fee           `json:"fees,omitempty"`
	Spender        common.Address  `json:"spender"`
	Authorizations []Authorization `json:"authorizations,omitempty"`
}

type Call struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

type Fee struct {
	Token  common.Address `json:"token"`
	Amount *hexutil.Big   `json:"amount"`
}

type Authorization struct {
	Index    int            `json:"index"`
	IPID     common.Address `json:"ip_id"`
	Workflow common.Address `json:"workflow"`
	To       common.Address `json:"to"`
	Data     hexutil.Bytes  `json:"data"`
}

// ValidateResponse reports every failing request of a validate call.
type ValidateResponse struct {
	Valid  bool         `json:"valid"`
	Errors []ErrorEntry `json:"errors,omitempty"`
}

// ErrorEntry is one failure. Index is -1 when it is not tied to a request.
type ErrorEntry struct {
	Index int    `json:"index"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []ErrorEntry `json:"details,omitempty"`
}

// ExecutionResult is the JSON form of interfaces.ExecutionResult.
type ExecutionResult struct {
	Index                         int             `json:"index"`
	IPID                          common.Address  `json:"ip_id"`
	TokenID                       *hexutil.Big    `json:"token_id,omitempty"`
	LicenseTermsIDs               []*hexutil.Big  `json:"license_terms_ids,omitempty"`
	IPRoyaltyVault                *common.Address `json:"ip_royalty_vault,omitempty"`
	TxHash                        common.Hash     `json:"tx_hash"`
	MaxLicenseTokensTxHashes      []common.Hash   `json:"max_license_tokens_tx_hashes,omitempty"`
	DistributeRoyaltyTokensTxHash *common.Hash    `json:"distribute_royalty_tokens_tx_hash,omitempty"`
	Error                         string          `json:"error,omitempty"`
	FollowUpErrors                []string        `json:"follow_up_errors,omitempty"`
}

// PublishMetadataRequest is the body of the metadata publish endpoint.
type PublishMetadataRequest struct {
	IP  *metadata.IPMetadata  `json:"ip,omitempty"`
	NFT *metadata.NFTMetadata `json:"nft,omitempty"`
}

// ToRequests converts JSON requests, reporting the first malformed one.
func ToRequests(in []RegistrationRequest) ([]interfaces.RegistrationRequest, error) {
	out := make([]interfaces.RegistrationRequest, len(in))
	for i := range in {
		req, err := in[i].ToRequest()
		if err != nil {
			return nil, interfaces.WrapStage(interfaces.StageValidate, i, err)
		}
		out[i] = req
	}
	return out, nil
}

// ToRequest converts r into the engine's request type.
func (r *RegistrationRequest) ToRequest() (interfaces.RegistrationRequest, error) {
	var req interfaces.RegistrationRequest
	switch {
	case r.NFT != nil && r.Mint != nil:
		return req, &interfaces.ValidationError{Field: "target", Reason: "nft and mint are mutually exclusive"}
	case r.NFT != nil:
		req.Target = interfaces.ExistingNFT{Contract: r.NFT.Contract, TokenID: toBig(r.NFT.TokenID)}
	case r.Mint != nil:
		req.Target = interfaces.MintTarget{
			SPGNFTContract:  r.Mint.SPGNFTContract,
			Recipient:       r.Mint.Recipient,
			AllowDuplicates: r.Mint.AllowDuplicates,
		}
	default:
		return req, &interfaces.ValidationError{Field: "target", Reason: "one of nft or mint is required"}
	}

	if d := r.Derivative; d != nil {
		req.Derivative = &interfaces.DerivativeData{
			ParentIPIDs:     d.ParentIPIDs,
			LicenseTemplate: d.LicenseTemplate,
			MaxMintingFee:   toBig(d.MaxMintingFee),
			MaxRts:          d.MaxRts,
			MaxRevenueShare: d.MaxRevenueShare,
		}
		for _, id := range d.LicenseTermsIDs {
			req.Derivative.LicenseTermsIDs = append(req.Derivative.LicenseTermsIDs, toBig(id))
		}
	}

	for _, lt := range r.LicenseTerms {
		entry := interfaces.LicenseTermsData{
			LicenseTermsID:   toBig(lt.LicenseTermsID),
			MaxLicenseTokens: toBig(lt.MaxLicenseTokens),
		}
		if t := lt.Terms; t != nil {
			entry.Terms = &interfaces.PILTerms{
				Transferable:              t.Transferable,
				RoyaltyPolicy:             t.RoyaltyPolicy,
				DefaultMintingFee:         toBig(t.DefaultMintingFee),
				Expiration:                toBig(t.Expiration),
				CommercialUse:             t.CommercialUse,
				CommercialAttribution:     t.CommercialAttribution,
				CommercializerChecker:     t.CommercializerChecker,
				CommercializerCheckerData: t.CommercializerCheckerData,
				CommercialRevShare:        t.CommercialRevShare,
				CommercialRevCeiling:      toBig(t.CommercialRevCeiling),
				DerivativesAllowed:        t.DerivativesAllowed,
				DerivativesAttribution:    t.DerivativesAttribution,
				DerivativesApproval:       t.DerivativesApproval,
				DerivativesReciprocal:     t.DerivativesReciprocal,
				DerivativeRevCeiling:      toBig(t.DerivativeRevCeiling),
				Currency:                  t.Currency,
				URI:                       t.URI,
			}
		}
		if c := lt.LicensingConfig; c != nil {
			entry.LicensingConfig = &interfaces.LicensingConfig{
				IsSet:                         c.IsSet,
				MintingFee:                    toBig(c.MintingFee),
				LicensingHook:                 c.LicensingHook,
				HookData:                      c.HookData,
				CommercialRevShare:            c.CommercialRevShare,
				Disabled:                      c.Disabled,
				ExpectMinimumGroupRewardShare: c.ExpectMinimumGroupRewardShare,
				ExpectGroupRewardPool:         c.ExpectGroupRewardPool,
			}
		}
		req.LicenseTerms = append(req.LicenseTerms, entry)
	}

	for _, s := range r.RoyaltyShares {
		req.RoyaltyShares = append(req.RoyaltyShares, interfaces.RoyaltyShare{Recipient: s.Recipient, Percentage: s.Percentage})
	}

	if m := r.Metadata; m != nil {
		req.Metadata = &interfaces.IPMetadata{
			IPMetadataURI:   m.IPMetadataURI,
			IPMetadataHash:  m.IPMetadataHash,
			NFTMetadataURI:  m.NFTMetadataURI,
			NFTMetadataHash: m.NFTMetadataHash,
		}
	}
	req.Options.SignatureDeadlineSeconds = r.SignatureDeadlineSeconds
	return req, nil
}

// ToOptions applies o over interfaces.DefaultOptions.
func (o *Options) ToOptions() interfaces.Options {
	opts := interfaces.DefaultOptions()
	if o == nil {
		return opts
	}
	if o.UseMulticallWhenPossible != nil {
		opts.UseMulticallWhenPossible = *o.UseMulticallWhenPossible
	}
	if o.ContinueOnFailure != nil {
		opts.ContinueOnFailure = *o.ContinueOnFailure
	}
	return opts
}

func NewMetadata(m *interfaces.IPMetadata) *Metadata {
	if m == nil {
		return nil
	}
	return &Metadata{
		IPMetadataURI:   m.IPMetadataURI,
		IPMetadataHash:  m.IPMetadataHash,
		NFTMetadataURI:  m.NFTMetadataURI,
		NFTMetadataHash: m.NFTMetadataHash,
	}
}

func NewEncodedBucket(b interfaces.EncodedBucket) EncodedBucket {
	out := EncodedBucket{
		Indices:  b.Indices,
		Method:   b.Method,
		Strategy: b.Strategy.String(),
		To:       b.To,
		Data:     b.Data,
		Spender:  b.Spender,
	}
	if b.Value != nil && b.Value.Sign() > 0 {
		out.Value = (*hexutil.Big)(b.Value)
	}
	for _, c := range b.Calls {
		out.Calls = append(out.Calls, Call{To: c.To, Data: c.Data})
	}
	for _, f := range b.Fees {
		out.Fees = append(out.Fees, Fee{Token: f.Token, Amount: (*hexutil.Big)(f.Amount)})
	}
	for _, a := range b.Authorizations {
		out.Authorizations = append(out.Authorizations, Authorization{
			Index:    a.Index,
			IPID:     a.IPID,
			Workflow: a.Workflow,
			To:       a.To,
			Data:     a.Data,
		})
	}
	return out
}

func NewExecutionResult(r interfaces.ExecutionResult) ExecutionResult {
	out := ExecutionResult{
		Index:                         r.Index,
		IPID:                          r.IPID,
		IPRoyaltyVault:                r.IPRoyaltyVault,
		TxHash:                        r.TxHash,
		MaxLicenseTokensTxHashes:      r.MaxLicenseTokensTxHashes,
		DistributeRoyaltyTokensTxHash: r.DistributeRoyaltyTokensTxHash,
	}
	if r.TokenID != nil {
		out.TokenID = (*hexutil.Big)(r.TokenID)
	}
	for _, id := range r.LicenseTermsIDs {
		out.LicenseTermsIDs = append(out.LicenseTermsIDs, (*hexutil.Big)(id))
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	for _, err := range r.FollowUpErrors {
		out.FollowUpErrors = append(out.FollowUpErrors, err.Error())
	}
	return out
}

// ErrorEntries flattens err into one entry per wrapped failure.
func ErrorEntries(err error) []ErrorEntry {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []ErrorEntry
		for _, e := range merr.Errors {
			out = append(out, ErrorEntries(e)...)
		}
		return out
	}
	entry := ErrorEntry{Index: -1, Error: err.Error()}
	var stageErr *interfaces.StageError
	if errors.As(err, &stageErr) {
		entry.Index = stageErr.Index
		entry.Stage = string(stageErr.Stage)
	}
	return []ErrorEntry{entry}
}

func toBig(v *math.HexOrDecimal256) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(v))
}
