package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Tuple structs mirror the ABI components field by field and in order, which is
// what abi.ConvertType relies on when decoding.

type IPMetadata struct {
	IpMetadataURI   string
	IpMetadataHash  [32]byte
	NftMetadataURI  string
	NftMetadataHash [32]byte
}

type SignatureData struct {
	Signer    common.Address
	Deadline  *big.Int
	Signature []byte
}

type MakeDerivative struct {
	ParentIpIds     []common.Address
	LicenseTemplate common.Address
	LicenseTermsIds []*big.Int
	RoyaltyContext  []byte
	MaxMintingFee   *big.Int
	MaxRts          uint32
	MaxRevenueShare uint32
}

type PILTerms struct {
	Transferable              bool
	RoyaltyPolicy             common.Address
	DefaultMintingFee         *big.Int
	Expiration                *big.Int
	CommercialUse             bool
	CommercialAttribution     bool
	CommercializerChecker     common.Address
	CommercializerCheckerData []byte
	CommercialRevShare        uint32
	CommercialRevCeiling      *big.Int
	DerivativesAllowed        bool
	DerivativesAttribution    bool
	DerivativesApproval       bool
	DerivativesReciprocal     bool
	DerivativeRevCeiling      *big.Int
	Currency                  common.Address
	Uri                       string
}

type LicensingConfig struct {
	IsSet                         bool
	MintingFee                    *big.Int
	LicensingHook                 common.Address
	HookData                      []byte
	CommercialRevShare            uint32
	Disabled                      bool
	ExpectMinimumGroupRewardShare uint32
	ExpectGroupRewardPool         common.Address
}

type LicenseTermsData struct {
	Terms           PILTerms
	LicensingConfig LicensingConfig
}

type RoyaltyShare struct {
	Recipient  common.Address
	Percentage uint32
}

type Permission struct {
	IpAccount  common.Address
	Signer     common.Address
	To         common.Address
	Func       [4]byte
	Permission uint8
}

type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type Call3Result struct {
	Success    bool
	ReturnData []byte
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// NewIPMetadata converts request metadata. Nil metadata encodes as empty fields.
func NewIPMetadata(m *interfaces.IPMetadata) IPMetadata {
	if m == nil {
		return IPMetadata{}
	}
	return IPMetadata{
		IpMetadataURI:   m.IPMetadataURI,
		IpMetadataHash:  m.IPMetadataHash,
		NftMetadataURI:  m.NFTMetadataURI,
		NftMetadataHash: m.NFTMetadataHash,
	}
}

// Metadata converts back to the request representation.
func (m IPMetadata) Metadata() *interfaces.IPMetadata {
	return &interfaces.IPMetadata{
		IPMetadataURI:   m.IpMetadataURI,
		IPMetadataHash:  m.IpMetadataHash,
		NFTMetadataURI:  m.NftMetadataURI,
		NFTMetadataHash: m.NftMetadataHash,
	}
}

// IsEmpty reports whether no metadata is set.
func (m IPMetadata) IsEmpty() bool {
	return m.IpMetadataURI == "" && m.NftMetadataURI == "" &&
		m.IpMetadataHash == [32]byte{} && m.NftMetadataHash == [32]byte{}
}

func NewSignatureData(s interfaces.SignatureData) SignatureData {
	sig := s.Signature
	if sig == nil {
		sig = []byte{}
	}
	return SignatureData{Signer: s.Signer, Deadline: orZero(s.Deadline), Signature: sig}
}

// NewMakeDerivative converts normalized derivative data. MaxRts and MaxRevenueShare
// must already be set.
func NewMakeDerivative(d *interfaces.DerivativeData) MakeDerivative {
	terms := make([]*big.Int, len(d.LicenseTermsIDs))
	for i, id := range d.LicenseTermsIDs {
		terms[i] = orZero(id)
	}
	var maxRts uint32 = interfaces.MaxPercent
	if d.MaxRts != nil {
		maxRts = *d.MaxRts
	}
	var maxRevenueShare uint32 = interfaces.MaxPercent
	if d.MaxRevenueShare != nil && *d.MaxRevenueShare != 0 {
		maxRevenueShare = interfaces.ScalePercent(*d.MaxRevenueShare)
	}
	return MakeDerivative{
		ParentIpIds:     append([]common.Address{}, d.ParentIPIDs...),
		LicenseTemplate: d.LicenseTemplate,
		LicenseTermsIds: terms,
		RoyaltyContext:  []byte{},
		MaxMintingFee:   orZero(d.MaxMintingFee),
		MaxRts:          maxRts,
		MaxRevenueShare: maxRevenueShare,
	}
}

// Derivative converts back to the request representation.
func (d MakeDerivative) Derivative() *interfaces.DerivativeData {
	maxRts := d.MaxRts
	maxRevenueShare := float64(d.MaxRevenueShare) / interfaces.PercentScale
	return &interfaces.DerivativeData{
		ParentIPIDs:     d.ParentIpIds,
		LicenseTermsIDs: d.LicenseTermsIds,
		LicenseTemplate: d.LicenseTemplate,
		MaxMintingFee:   d.MaxMintingFee,
		MaxRts:          &maxRts,
		MaxRevenueShare: &maxRevenueShare,
	}
}

func NewPILTerms(t *interfaces.PILTerms) PILTerms {
	data := t.CommercializerCheckerData
	if data == nil {
		data = []byte{}
	}
	return PILTerms{
		Transferable:              t.Transferable,
		RoyaltyPolicy:             t.RoyaltyPolicy,
		DefaultMintingFee:         orZero(t.DefaultMintingFee),
		Expiration:                orZero(t.Expiration),
		CommercialUse:             t.CommercialUse,
		CommercialAttribution:     t.CommercialAttribution,
		CommercializerChecker:     t.CommercializerChecker,
		CommercializerCheckerData: data,
		CommercialRevShare:        interfaces.ScalePercent(t.CommercialRevShare),
		CommercialRevCeiling:      orZero(t.CommercialRevCeiling),
		DerivativesAllowed:        t.DerivativesAllowed,
		DerivativesAttribution:    t.DerivativesAttribution,
		DerivativesApproval:       t.DerivativesApproval,
		DerivativesReciprocal:     t.DerivativesReciprocal,
		DerivativeRevCeiling:      orZero(t.DerivativeRevCeiling),
		Currency:                  t.Currency,
		Uri:                       t.URI,
	}
}

// Terms converts on-chain terms to the request representation.
func (t PILTerms) Terms() *interfaces.PILTerms {
	return &interfaces.PILTerms{
		Transferable:              t.Transferable,
		RoyaltyPolicy:             t.RoyaltyPolicy,
		DefaultMintingFee:         t.DefaultMintingFee,
		Expiration:                t.Expiration,
		CommercialUse:             t.CommercialUse,
		CommercialAttribution:     t.CommercialAttribution,
		CommercializerChecker:     t.CommercializerChecker,
		CommercializerCheckerData: t.CommercializerCheckerData,
		CommercialRevShare:        float64(t.CommercialRevShare) / interfaces.PercentScale,
		CommercialRevCeiling:      t.CommercialRevCeiling,
		DerivativesAllowed:        t.DerivativesAllowed,
		DerivativesAttribution:    t.DerivativesAttribution,
		DerivativesApproval:       t.DerivativesApproval,
		DerivativesReciprocal:     t.DerivativesReciprocal,
		DerivativeRevCeiling:      t.DerivativeRevCeiling,
		Currency:                  t.Currency,
		URI:                       t.Uri,
	}
}

func NewLicensingConfig(c *interfaces.LicensingConfig) LicensingConfig {
	if c == nil {
		return LicensingConfig{MintingFee: new(big.Int), HookData: []byte{}}
	}
	hookData := c.HookData
	if hookData == nil {
		hookData = []byte{}
	}
	return LicensingConfig{
		IsSet:                         c.IsSet,
		MintingFee:                    orZero(c.MintingFee),
		LicensingHook:                 c.LicensingHook,
		HookData:                      hookData,
		CommercialRevShare:            interfaces.ScalePercent(c.CommercialRevShare),
		Disabled:                      c.Disabled,
		ExpectMinimumGroupRewardShare: interfaces.ScalePercent(c.ExpectMinimumGroupRewardShare),
		ExpectGroupRewardPool:         c.ExpectGroupRewardPool,
	}
}

// Config converts back to the request representation.
func (c LicensingConfig) Config() *interfaces.LicensingConfig {
	return &interfaces.LicensingConfig{
		IsSet:                         c.IsSet,
		MintingFee:                    c.MintingFee,
		LicensingHook:                 c.LicensingHook,
		HookData:                      c.HookData,
		CommercialRevShare:            float64(c.CommercialRevShare) / interfaces.PercentScale,
		Disabled:                      c.Disabled,
		ExpectMinimumGroupRewardShare: float64(c.ExpectMinimumGroupRewardShare) / interfaces.PercentScale,
		ExpectGroupRewardPool:         c.ExpectGroupRewardPool,
	}
}

// NewLicenseTermsData converts resolved entries. Every entry must carry inline terms.
func NewLicenseTermsData(entries []interfaces.LicenseTermsData) []LicenseTermsData {
	out := make([]LicenseTermsData, len(entries))
	for i, e := range entries {
		out[i] = LicenseTermsData{
			Terms:           NewPILTerms(e.Terms),
			LicensingConfig: NewLicensingConfig(e.LicensingConfig),
		}
	}
	return out
}

func NewRoyaltyShares(shares []interfaces.RoyaltyShare) []RoyaltyShare {
	out := make([]RoyaltyShare, len(shares))
	for i, s := range shares {
		out[i] = RoyaltyShare{Recipient: s.Recipient, Percentage: interfaces.ScalePercent(s.Percentage)}
	}
	return out
}

func NewPermissions(grants []interfaces.PermissionGrant) []Permission {
	out := make([]Permission, len(grants))
	for i, g := range grants {
		out[i] = Permission{
			IpAccount:  g.IPAccount,
			Signer:     g.Signer,
			To:         g.To,
			Func:       g.Func,
			Permission: uint8(g.Permission),
		}
	}
	return out
}

// Convert copies a decoded ABI value into the tuple struct T.
func Convert[T any](v interface{}) T {
	return *abi.ConvertType(v, new(T)).(*T)
}
