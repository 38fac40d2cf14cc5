package calldata

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

var (
	spg       = common.HexToAddress("0x00000000000000000000000000000000000005b9")
	nft       = common.HexToAddress("0x00000000000000000000000000000000000000f7")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	parent    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	policy    = common.HexToAddress("0xBe54FB168b3c982b7AaE60dB6CF75Bd8447b390E")
	currency  = common.HexToAddress("0x1514000000000000000000000000000000000000")
)

func testEncoder(t *testing.T) (*Encoder, *chainconfig.ContractSet) {
	cs, err := chainconfig.Defaults().ForChain(big.NewInt(chainconfig.AeneidChainID))
	require.NoError(t, err)
	return NewEncoder(cs), cs
}

func commercialTerms() *interfaces.PILTerms {
	return &interfaces.PILTerms{
		Transferable:          true,
		RoyaltyPolicy:         policy,
		DefaultMintingFee:     big.NewInt(5),
		Expiration:            big.NewInt(0),
		CommercialUse:         true,
		CommercialAttribution: true,
		CommercialRevShare:    10,
		DerivativesAllowed:    true,
		Currency:              currency,
		URI:                   "ipfs://terms",
	}
}

func TestSelect(t *testing.T) {
	mint := interfaces.MintTarget{SPGNFTContract: spg}
	existing := interfaces.ExistingNFT{Contract: nft, TokenID: big.NewInt(1)}
	deriv := &interfaces.DerivativeData{ParentIPIDs: []common.Address{parent}, LicenseTermsIDs: []*big.Int{big.NewInt(1)}}
	terms := []interfaces.LicenseTermsData{{Terms: commercialTerms()}}
	shares := []interfaces.RoyaltyShare{{Recipient: recipient, Percentage: 10}}
	metadata := &interfaces.IPMetadata{IPMetadataURI: "ipfs://ip"}

	tests := []struct {
		name string
		req  interfaces.RegistrationRequest
		want Route
	}{
		{"mint", interfaces.RegistrationRequest{Target: mint}, Route{Contract: contracts.RegistrationWorkflows, Method: "mintAndRegisterIp"}},
		{"mint terms", interfaces.RegistrationRequest{Target: mint, LicenseTerms: terms}, Route{Contract: contracts.LicenseAttachmentWorkflows, Method: "mintAndRegisterIpAndAttachPILTerms"}},
		{"mint derivative", interfaces.RegistrationRequest{Target: mint, Derivative: deriv}, Route{Contract: contracts.DerivativeWorkflows, Method: "mintAndRegisterIpAndMakeDerivative"}},
		{"mint terms shares", interfaces.RegistrationRequest{Target: mint, LicenseTerms: terms, RoyaltyShares: shares}, Route{Contract: contracts.RoyaltyTokenDistributionWorkflows, Method: "mintAndRegisterIpAndAttachPILTermsAndDistributeRoyaltyTokens"}},
		{"mint derivative shares", interfaces.RegistrationRequest{Target: mint, Derivative: deriv, RoyaltyShares: shares}, Route{Contract: contracts.RoyaltyTokenDistributionWorkflows, Method: "mintAndRegisterIpAndMakeDerivativeAndDistributeRoyaltyTokens"}},
		{"register", interfaces.RegistrationRequest{Target: existing}, Route{Contract: contracts.RegistrationWorkflows, Method: "registerIp"}},
		{"register metadata", interfaces.RegistrationRequest{Target: existing, Metadata: metadata}, Route{Contract: contracts.RegistrationWorkflows, Method: "registerIp", Auth: AuthMetadata}},
		{"register terms", interfaces.RegistrationRequest{Target: existing, LicenseTerms: terms}, Route{Contract: contracts.LicenseAttachmentWorkflows, Method: "registerIpAndAttachPILTerms", Auth: AuthAttachTerms}},
		{"register derivative", interfaces.RegistrationRequest{Target: existing, Derivative: deriv}, Route{Contract: contracts.DerivativeWorkflows, Method: "registerIpAndMakeDerivative", Auth: AuthDerivative}},
		{"register terms shares", interfaces.RegistrationRequest{Target: existing, LicenseTerms: terms, RoyaltyShares: shares}, Route{Contract: contracts.RoyaltyTokenDistributionWorkflows, Method: "registerIpAndAttachPILTermsAndDeployRoyaltyVault", Auth: AuthAttachTerms, Distribute: true}},
		{"register derivative shares", interfaces.RegistrationRequest{Target: existing, Derivative: deriv, RoyaltyShares: shares}, Route{Contract: contracts.RoyaltyTokenDistributionWorkflows, Method: "registerIpAndMakeDerivativeAndDeployRoyaltyVault", Auth: AuthDerivative, Distribute: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(&tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var verr *interfaces.ValidationError
	_, err := Select(&interfaces.RegistrationRequest{Target: mint, RoyaltyShares: shares})
	assert.ErrorAs(t, err, &verr)
	_, err = Select(&interfaces.RegistrationRequest{Target: mint, Derivative: deriv, LicenseTerms: terms})
	assert.ErrorAs(t, err, &verr)
	_, err = Select(&interfaces.RegistrationRequest{})
	assert.ErrorAs(t, err, &verr)
}

// prepare mirrors the normalization done by the validator.
func prepare(req interfaces.RegistrationRequest) *interfaces.PreparedRequest {
	p := &interfaces.PreparedRequest{Request: req, Derivative: req.Derivative}
	for _, e := range req.LicenseTerms {
		if e.LicensingConfig == nil {
			e.LicensingConfig = &interfaces.LicensingConfig{MintingFee: new(big.Int)}
		}
		p.LicenseTerms = append(p.LicenseTerms, e)
	}
	return p
}

func roundTrip(t *testing.T, e *Encoder, req interfaces.RegistrationRequest, sig interfaces.SignatureData) (*Decoded, []byte) {
	t.Helper()
	route, err := Select(&req)
	require.NoError(t, err)
	data, err := e.Registration(route, prepare(req), sig)
	require.NoError(t, err)

	decoded, err := Decode(route.Contract, data)
	require.NoError(t, err)
	assert.Equal(t, route.Method, decoded.Method)

	again, err := e.Registration(route, prepare(decoded.Request), sig)
	require.NoError(t, err)
	assert.Equal(t, data, again, "re-encoding the decoded request must reproduce the call")
	return decoded, data
}

func TestDecodeEncode_MintWithTermsAndShares(t *testing.T) {
	e, _ := testEncoder(t)
	req := interfaces.RegistrationRequest{
		Target:        interfaces.MintTarget{SPGNFTContract: spg, Recipient: recipient, AllowDuplicates: true},
		LicenseTerms:  []interfaces.LicenseTermsData{{Terms: commercialTerms()}},
		RoyaltyShares: []interfaces.RoyaltyShare{{Recipient: recipient, Percentage: 40}, {Recipient: parent, Percentage: 60}},
		Metadata:      &interfaces.IPMetadata{IPMetadataURI: "ipfs://ip", NFTMetadataHash: [32]byte{7}},
	}

	decoded, _ := roundTrip(t, e, req, interfaces.SignatureData{})

	target, ok := decoded.Request.Target.(interfaces.MintTarget)
	require.True(t, ok)
	assert.Equal(t, req.Target, target)
	assert.Equal(t, req.Metadata, decoded.Request.Metadata)
	assert.Equal(t, req.RoyaltyShares, decoded.Request.RoyaltyShares)
	require.Len(t, decoded.Request.LicenseTerms, 1)
	terms := decoded.Request.LicenseTerms[0].Terms
	assert.Equal(t, policy, terms.RoyaltyPolicy)
	assert.Equal(t, currency, terms.Currency)
	assert.Equal(t, 10.0, terms.CommercialRevShare)
	assert.Zero(t, terms.DefaultMintingFee.Cmp(big.NewInt(5)))
	assert.Nil(t, decoded.Signature)
}

func TestDecodeEncode_ExistingDerivative(t *testing.T) {
	e, cs := testEncoder(t)
	maxShare := 50.0
	req := interfaces.RegistrationRequest{
		Target: interfaces.ExistingNFT{Contract: nft, TokenID: big.NewInt(77)},
		Derivative: &interfaces.DerivativeData{
			ParentIPIDs:     []common.Address{parent, recipient},
			LicenseTermsIDs: []*big.Int{big.NewInt(1), big.NewInt(9)},
			LicenseTemplate: cs.Address(contracts.PILicenseTemplate),
			MaxMintingFee:   big.NewInt(100),
			MaxRevenueShare: &maxShare,
		},
	}
	sig := interfaces.SignatureData{Signer: recipient, Deadline: big.NewInt(1234), Signature: []byte{1, 2, 3}}

	decoded, _ := roundTrip(t, e, req, sig)

	target, ok := decoded.Request.Target.(interfaces.ExistingNFT)
	require.True(t, ok)
	assert.Equal(t, nft, target.Contract)
	assert.Equal(t, uint64(77), target.TokenID.Uint64())

	d := decoded.Request.Derivative
	require.NotNil(t, d)
	assert.Equal(t, req.Derivative.ParentIPIDs, d.ParentIPIDs)
	require.Len(t, d.LicenseTermsIDs, 2)
	assert.Equal(t, uint64(9), d.LicenseTermsIDs[1].Uint64())
	assert.Equal(t, uint32(50_000_000), contracts.NewMakeDerivative(d).MaxRevenueShare)

	require.NotNil(t, decoded.Signature)
	assert.Equal(t, sig.Signer, decoded.Signature.Signer)
	assert.Equal(t, sig.Signature, decoded.Signature.Signature)
}

func TestDecodeBatch_Multicall(t *testing.T) {
	e, _ := testEncoder(t)
	route := Route{Contract: contracts.RegistrationWorkflows, Method: "mintAndRegisterIp"}

	var calls [][]byte
	for i := 0; i < 3; i++ {
		req := interfaces.RegistrationRequest{Target: interfaces.MintTarget{SPGNFTContract: spg, Recipient: common.BigToAddress(big.NewInt(int64(i + 1)))}}
		data, err := e.Registration(route, prepare(req), interfaces.SignatureData{})
		require.NoError(t, err)
		calls = append(calls, data)
	}
	batch, err := e.Multicall(contracts.RegistrationWorkflows, calls)
	require.NoError(t, err)

	decoded, err := DecodeBatch(contracts.RegistrationWorkflows, batch)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	for i, d := range decoded {
		assert.Equal(t, common.BigToAddress(big.NewInt(int64(i+1))), d.Request.Target.(interfaces.MintTarget).Recipient)
	}

	single, err := DecodeBatch(contracts.RegistrationWorkflows, calls[0])
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = Decode(contracts.RegistrationWorkflows, batch)
	assert.Error(t, err)
}

func TestEncoder_FollowUps(t *testing.T) {
	e, cs := testEncoder(t)

	data, err := e.TotalLicenseTokenLimit(parent, big.NewInt(3), big.NewInt(100))
	require.NoError(t, err)
	method, args, err := contracts.UnpackInputs(contracts.TotalLicenseTokenLimitHook, data)
	require.NoError(t, err)
	assert.Equal(t, "setTotalLicenseTokenLimit", method.Name)
	assert.Equal(t, cs.Address(contracts.PILicenseTemplate), args[1])
	assert.Equal(t, uint64(100), args[3].(*big.Int).Uint64())

	approval, err := e.RoyaltyTokenApproval(big.NewInt(interfaces.MaxPercent))
	require.NoError(t, err)
	_, args, err = contracts.UnpackInputs(contracts.IPRoyaltyVault, approval)
	require.NoError(t, err)
	assert.Equal(t, cs.Address(contracts.RoyaltyTokenDistributionWorkflows), args[0])
}
