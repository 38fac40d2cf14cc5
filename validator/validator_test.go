package validator

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/ip-registration-workflows/chain"
	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

func newTestValidator(t *testing.T) (*Validator, *chain.MockChain, *chainconfig.ContractSet) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cs, err := chainconfig.Defaults().ForChain(big.NewInt(chainconfig.AeneidChainID))
	require.NoError(t, err)
	m := chain.NewMockChain(cs, crypto.PubkeyToAddress(key.PublicKey))
	return New(m, cs, nil), m, cs
}

func commercialTerms(cs *chainconfig.ContractSet, revShare float64, fee int64) *interfaces.PILTerms {
	return &interfaces.PILTerms{
		Transferable:       true,
		RoyaltyPolicy:      chain.MockRoyaltyPolicy,
		DefaultMintingFee:  big.NewInt(fee),
		CommercialUse:      true,
		CommercialRevShare: revShare,
		DerivativesAllowed: true,
		Currency:           cs.Address(contracts.WrappedIP),
		URI:                "ipfs://terms",
	}
}

// parentWithTerms registers an IP asset carrying the given terms.
func parentWithTerms(t *testing.T, m *chain.MockChain, terms *interfaces.PILTerms) (common.Address, *big.Int) {
	t.Helper()
	spg := m.CreateSPGCollection(true, nil, common.Address{}, m.Sender())
	ipID := m.RegisterIPAsset(spg, m.MintNFT(spg, m.Sender()))
	termsID := m.RegisterTerms(contracts.NewPILTerms(terms))
	m.AttachTerms(ipID, termsID, nil)
	return ipID, termsID
}

func TestMaxRevenueShareBound(t *testing.T) {
	one, half, full, zero := 1.0, 0.5, 100.0, 0.0

	// The on-chain unit is parts-per-hundred-million: 1% is 10^6.
	assert.Equal(t, uint64(1_000_000), MaxRevenueShareBound(&one))
	assert.Equal(t, uint64(500_000), MaxRevenueShareBound(&half))
	assert.Equal(t, uint64(100_000_000), MaxRevenueShareBound(&full))
	assert.Equal(t, uint64(100_000_000), MaxRevenueShareBound(&zero))
	assert.Equal(t, uint64(100_000_000), MaxRevenueShareBound(nil))
}

func TestValidateDerivativeLinkage(t *testing.T) {
	v, m, cs := newTestValidator(t)
	ctx := context.Background()

	full, termsFull := parentWithTerms(t, m, commercialTerms(cs, 100, 0))
	small, termsSmall := parentWithTerms(t, m, commercialTerms(cs, 10, 7))

	t.Run("count mismatch", func(t *testing.T) {
		_, err := v.ValidateDerivativeLinkage(ctx, &interfaces.DerivativeData{
			ParentIPIDs:     []common.Address{full, small},
			LicenseTermsIDs: []*big.Int{termsFull},
		})
		var mismatch *interfaces.CountMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 2, mismatch.Parents)
		assert.Equal(t, 1, mismatch.Terms)
	})

	t.Run("revenue share exceeded", func(t *testing.T) {
		maxShare := 1.0
		_, err := v.ValidateDerivativeLinkage(ctx, &interfaces.DerivativeData{
			ParentIPIDs:     []common.Address{full},
			LicenseTermsIDs: []*big.Int{termsFull},
			MaxRevenueShare: &maxShare,
		})
		var exceeded *interfaces.RevenueShareExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, full, exceeded.ParentIPID)
		assert.Equal(t, uint64(100_000_000), exceeded.Actual)
		assert.Equal(t, uint64(1_000_000), exceeded.Bound)
	})

	t.Run("cumulative share", func(t *testing.T) {
		_, err := v.ValidateDerivativeLinkage(ctx, &interfaces.DerivativeData{
			ParentIPIDs:     []common.Address{small, full},
			LicenseTermsIDs: []*big.Int{termsSmall, termsFull},
		})
		var exceeded *interfaces.RevenueShareExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, full, exceeded.ParentIPID)
		assert.Equal(t, uint64(110_000_000), exceeded.Actual)
	})

	t.Run("unregistered parent", func(t *testing.T) {
		stranger := common.HexToAddress("0x0000000000000000000000000000000000001234")
		_, err := v.ValidateDerivativeLinkage(ctx, &interfaces.DerivativeData{
			ParentIPIDs:     []common.Address{stranger},
			LicenseTermsIDs: []*big.Int{termsFull},
		})
		var unregistered *interfaces.UnregisteredParentError
		require.ErrorAs(t, err, &unregistered)
		assert.Equal(t, stranger, unregistered.ParentIPID)
	})

	t.Run("license not attached", func(t *testing.T) {
		_, err := v.ValidateDerivativeLinkage(ctx, &interfaces.DerivativeData{
			ParentIPIDs:     []common.Address{small},
			LicenseTermsIDs: []*big.Int{termsFull},
		})
		var notAttached *interfaces.LicenseNotAttachedError
		require.ErrorAs(t, err, &notAttached)
		assert.Equal(t, small, notAttached.ParentIPID)
	})

	t.Run("too many parents", func(t *testing.T) {
		parents := make([]common.Address, interfaces.MaxParents+1)
		ids := make([]*big.Int, interfaces.MaxParents+1)
		_, err := v.ValidateDerivativeLinkage(ctx, &interfaces.DerivativeData{ParentIPIDs: parents, LicenseTermsIDs: ids})
		var rangeErr *interfaces.RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, "parentIpIds.length", rangeErr.Field)
	})

	t.Run("defaults and fees", func(t *testing.T) {
		linkage, err := v.ValidateDerivativeLinkage(ctx, &interfaces.DerivativeData{
			ParentIPIDs:     []common.Address{small},
			LicenseTermsIDs: []*big.Int{termsSmall},
		})
		require.NoError(t, err)
		assert.Equal(t, cs.Address(contracts.PILicenseTemplate), linkage.Derivative.LicenseTemplate)
		require.NotNil(t, linkage.Derivative.MaxRts)
		assert.Equal(t, uint32(interfaces.MaxPercent), *linkage.Derivative.MaxRts)
		assert.Equal(t, uint64(10_000_000), linkage.RoyaltyPercent)
		require.Len(t, linkage.Fees, 1)
		assert.Equal(t, cs.Address(contracts.WrappedIP), linkage.Fees[0].Token)
		assert.Equal(t, int64(7), linkage.Fees[0].Amount.Int64())
	})

	t.Run("max minting fee", func(t *testing.T) {
		_, err := v.ValidateDerivativeLinkage(ctx, &interfaces.DerivativeData{
			ParentIPIDs:     []common.Address{small},
			LicenseTermsIDs: []*big.Int{termsSmall},
			MaxMintingFee:   big.NewInt(5),
		})
		var rangeErr *interfaces.RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, "7", rangeErr.Value)
	})
}

func TestValidateRoyaltyShares(t *testing.T) {
	a := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	b := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	total, err := ValidateRoyaltyShares([]interfaces.RoyaltyShare{{Recipient: a, Percentage: 60}, {Recipient: b, Percentage: 40}})
	require.NoError(t, err)
	assert.Equal(t, uint32(100_000_000), total)

	_, err = ValidateRoyaltyShares([]interfaces.RoyaltyShare{{Recipient: a, Percentage: 60}, {Recipient: b, Percentage: 41}})
	var sumErr *interfaces.SumExceededError
	require.ErrorAs(t, err, &sumErr)
	assert.Equal(t, 101.0, sumErr.Sum)

	_, err = ValidateRoyaltyShares([]interfaces.RoyaltyShare{{Recipient: a, Percentage: -1}})
	var rangeErr *interfaces.RangeError
	require.ErrorAs(t, err, &rangeErr)

	_, err = ValidateRoyaltyShares([]interfaces.RoyaltyShare{{Percentage: 1}})
	var validationErr *interfaces.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "royaltyShares[0].recipient", validationErr.Field)
}

func TestValidateLicenseTermsData(t *testing.T) {
	v, m, cs := newTestValidator(t)
	ctx := context.Background()

	t.Run("fee requires royalty policy", func(t *testing.T) {
		terms := commercialTerms(cs, 0, 10)
		terms.RoyaltyPolicy = common.Address{}
		_, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{{Terms: terms}})
		var validationErr *interfaces.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "licenseTermsData[0].terms.royaltyPolicy", validationErr.Field)
	})

	t.Run("rev share range", func(t *testing.T) {
		_, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{{Terms: commercialTerms(cs, 101, 0)}})
		var rangeErr *interfaces.RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, "licenseTermsData[0].terms.commercialRevShare", rangeErr.Field)
	})

	t.Run("first negative field is reported", func(t *testing.T) {
		terms := commercialTerms(cs, 5, 0)
		terms.Expiration = big.NewInt(-1)
		terms.CommercialRevCeiling = big.NewInt(-2)
		terms.DerivativeRevCeiling = big.NewInt(-3)
		for i := 0; i < 20; i++ {
			err := ValidatePILTerms("terms", terms)
			var rangeErr *interfaces.RangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, "terms.expiration", rangeErr.Field)
		}
	})

	t.Run("non commercial flags", func(t *testing.T) {
		_, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{{Terms: &interfaces.PILTerms{CommercialAttribution: true}}})
		var validationErr *interfaces.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "licenseTermsData[0].terms.commercialAttribution", validationErr.Field)
	})

	t.Run("derivative flags", func(t *testing.T) {
		terms := commercialTerms(cs, 5, 0)
		terms.DerivativesAllowed = false
		terms.DerivativesReciprocal = true
		_, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{{Terms: terms}})
		var validationErr *interfaces.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "licenseTermsData[0].terms.derivativesReciprocal", validationErr.Field)
	})

	t.Run("currency not whitelisted", func(t *testing.T) {
		terms := commercialTerms(cs, 5, 0)
		terms.Currency = common.HexToAddress("0x00000000000000000000000000000000000000cc")
		_, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{{Terms: terms}})
		var validationErr *interfaces.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "licenseTermsData[0].terms.currency", validationErr.Field)
	})

	t.Run("exactly one source", func(t *testing.T) {
		_, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{{}})
		var validationErr *interfaces.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{{LicenseTermsID: big.NewInt(999)}})
		var notFound *interfaces.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "999", notFound.ID)
	})

	t.Run("resolves and normalizes", func(t *testing.T) {
		registered := commercialTerms(cs, 15, 3)
		id := m.RegisterTerms(contracts.NewPILTerms(registered))

		out, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{
			{LicenseTermsID: id},
			{Terms: &interfaces.PILTerms{Transferable: true}, MaxLicenseTokens: big.NewInt(100)},
		})
		require.NoError(t, err)
		require.Len(t, out, 2)

		require.NotNil(t, out[0].Terms)
		assert.Equal(t, 15.0, out[0].Terms.CommercialRevShare)
		assert.Equal(t, "ipfs://terms", out[0].Terms.URI)
		require.NotNil(t, out[0].LicensingConfig)
		assert.False(t, out[0].LicensingConfig.IsSet)
		assert.Zero(t, out[0].LicensingConfig.MintingFee.Sign())

		assert.True(t, out[1].LicensingConfig.IsSet)
		assert.Equal(t, cs.Address(contracts.TotalLicenseTokenLimitHook), out[1].LicensingConfig.LicensingHook)
	})

	t.Run("conflicting hook", func(t *testing.T) {
		_, err := v.ValidateLicenseTermsData(ctx, []interfaces.LicenseTermsData{{
			Terms:            &interfaces.PILTerms{},
			LicensingConfig:  &interfaces.LicensingConfig{IsSet: true, LicensingHook: common.HexToAddress("0x00000000000000000000000000000000000000dd")},
			MaxLicenseTokens: big.NewInt(1),
		}})
		var validationErr *interfaces.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "licenseTermsData[0].licensingConfig.licensingHook", validationErr.Field)
	})
}

func TestValidateRegistrationTarget(t *testing.T) {
	v, m, _ := newTestValidator(t)
	ctx := context.Background()
	spg := m.CreateSPGCollection(true, nil, common.Address{}, m.Sender())

	fresh := m.MintNFT(spg, m.Sender())
	ipID, err := v.ValidateRegistrationTarget(ctx, spg, fresh, true)
	require.NoError(t, err)
	assert.Equal(t, m.IPIDFor(spg, fresh), ipID)

	_, err = v.ValidateRegistrationTarget(ctx, spg, fresh, false)
	var notRegistered *interfaces.NotRegisteredError
	require.ErrorAs(t, err, &notRegistered)

	m.RegisterIPAsset(spg, fresh)
	_, err = v.ValidateRegistrationTarget(ctx, spg, fresh, true)
	var already *interfaces.AlreadyRegisteredError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, ipID, already.IPID)
}

func TestPrepare(t *testing.T) {
	v, m, cs := newTestValidator(t)
	ctx := context.Background()
	wip := cs.Address(contracts.WrappedIP)
	spg := m.CreateSPGCollection(true, big.NewInt(4), wip, m.Sender())
	parent, termsID := parentWithTerms(t, m, commercialTerms(cs, 10, 6))

	t.Run("mint derivative", func(t *testing.T) {
		p, err := v.Prepare(ctx, 3, interfaces.RegistrationRequest{
			Target:     interfaces.MintTarget{SPGNFTContract: spg},
			Derivative: &interfaces.DerivativeData{ParentIPIDs: []common.Address{parent}, LicenseTermsIDs: []*big.Int{termsID}},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, p.Index)
		assert.True(t, p.SPG.PublicMinting)
		assert.Equal(t, m.Sender(), p.Request.Target.(interfaces.MintTarget).Recipient)
		require.Len(t, p.Fees, 1)
		assert.Equal(t, wip, p.Fees[0].Token)
		assert.Equal(t, int64(10), p.Fees[0].Amount.Int64())
		require.NotNil(t, p.Derivative)
	})

	t.Run("existing nft owned by someone else", func(t *testing.T) {
		tokenID := m.MintNFT(spg, common.HexToAddress("0x00000000000000000000000000000000000000e1"))
		_, err := v.Prepare(ctx, 0, interfaces.RegistrationRequest{
			Target:   interfaces.ExistingNFT{Contract: spg, TokenID: tokenID},
			Metadata: &interfaces.IPMetadata{IPMetadataURI: "ipfs://x"},
		})
		var authErr *interfaces.AuthorizationError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("existing nft", func(t *testing.T) {
		tokenID := m.MintNFT(spg, m.Sender())
		p, err := v.Prepare(ctx, 1, interfaces.RegistrationRequest{
			Target:        interfaces.ExistingNFT{Contract: spg, TokenID: tokenID},
			LicenseTerms:  []interfaces.LicenseTermsData{{Terms: commercialTerms(cs, 5, 0)}},
			RoyaltyShares: []interfaces.RoyaltyShare{{Recipient: m.Sender(), Percentage: 12.5}},
		})
		require.NoError(t, err)
		assert.Equal(t, m.IPIDFor(spg, tokenID), p.IPID)
		assert.Empty(t, p.Fees)
		assert.Equal(t, uint32(12_500_000), p.RoyaltySharesTotal)
		require.Len(t, p.LicenseTerms, 1)
		assert.NotNil(t, p.LicenseTerms[0].LicensingConfig)
	})

	t.Run("invalid shape", func(t *testing.T) {
		_, err := v.Prepare(ctx, 0, interfaces.RegistrationRequest{})
		var validationErr *interfaces.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}
