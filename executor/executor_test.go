package executor

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/ip-registration-workflows/chain"
	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/classifier"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
	"github.com/ruteri/ip-registration-workflows/signature"
	"github.com/ruteri/ip-registration-workflows/validator"
	"github.com/ruteri/ip-registration-workflows/wallet"
)

type fixture struct {
	m          *chain.MockChain
	cs         *chainconfig.ContractSet
	exec       *Executor
	validator  *validator.Validator
	classifier *classifier.Classifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w, err := wallet.Generate()
	require.NoError(t, err)
	cs, err := chainconfig.Defaults().ForChain(big.NewInt(chainconfig.AeneidChainID))
	require.NoError(t, err)
	m := chain.NewMockChain(cs, w.Address())
	return &fixture{
		m:  m,
		cs: cs,
		exec: New(Config{
			Backend:        m,
			Addresses:      cs,
			Signatures:     signature.NewGenerator(m.ChainID(), cs, w, nil),
			ConfirmTimeout: 50 * time.Millisecond,
		}),
		validator:  validator.New(m, cs, nil),
		classifier: classifier.New(cs),
	}
}

// plan validates and classifies requests the way the engine does.
func (f *fixture) plan(t *testing.T, opts interfaces.Options, requests ...interfaces.RegistrationRequest) ([]*interfaces.PreparedRequest, []interfaces.WorkflowBucket) {
	t.Helper()
	prepared := make([]*interfaces.PreparedRequest, len(requests))
	for i, req := range requests {
		p, err := f.validator.Prepare(context.Background(), i, req)
		require.NoError(t, err)
		prepared[i] = p
	}
	buckets, err := f.classifier.Classify(prepared, opts)
	require.NoError(t, err)
	return prepared, buckets
}

func mintRequest(spg common.Address, nftHash byte) interfaces.RegistrationRequest {
	req := interfaces.RegistrationRequest{Target: interfaces.MintTarget{SPGNFTContract: spg}}
	if nftHash != 0 {
		req.Metadata = &interfaces.IPMetadata{NFTMetadataURI: "ipfs://nft", NFTMetadataHash: [32]byte{nftHash}}
	}
	return req
}

func TestExecute_AggregatedMintsWithFees(t *testing.T) {
	f := newFixture(t)
	wip := f.cs.Address(contracts.WrappedIP)
	owner := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	spg := f.m.CreateSPGCollection(true, big.NewInt(5), wip, owner)
	f.m.SetNativeBalance(f.m.Sender(), big.NewInt(100))

	prepared, buckets := f.plan(t, interfaces.DefaultOptions(), mintRequest(spg, 0), mintRequest(spg, 0))
	require.Len(t, buckets, 1)
	require.Equal(t, interfaces.StrategyAggregated, buckets[0].Strategy)

	out := f.exec.Execute(context.Background(), &buckets[0], prepared, interfaces.DefaultOptions())
	require.NoError(t, out.Err)
	require.Len(t, out.Results, 2)
	for i, res := range out.Results {
		require.NoError(t, res.Err)
		assert.Equal(t, i, res.Index)
		assert.Equal(t, int64(i+1), res.TokenID.Int64())
		assert.Equal(t, f.m.IPIDFor(spg, res.TokenID), res.IPID)
		assert.Equal(t, out.Results[0].TxHash, res.TxHash)
	}

	// deposit, approve, multicall
	sent := f.m.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, wip, sent[0].To)
	assert.Equal(t, int64(10), sent[0].Value.Int64())
	assert.Equal(t, wip, sent[1].To)
	assert.Equal(t, f.cs.Address(contracts.RegistrationWorkflows), sent[2].To)
	assert.Equal(t, contracts.Selector(contracts.RegistrationWorkflows, "multicall"), [4]byte(sent[2].Data[:4]))
	assert.Equal(t, int64(10), f.m.ERC20Balance(wip, owner).Int64())
	require.Len(t, buckets[0].TxHashes, 1)
}

func TestExecute_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	token := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	f.m.WhitelistRoyaltyToken(token)
	spg := f.m.CreateSPGCollection(true, big.NewInt(5), token, f.m.Sender())

	prepared, buckets := f.plan(t, interfaces.DefaultOptions(), mintRequest(spg, 0))
	require.Equal(t, interfaces.StrategyDirect, buckets[0].Strategy)

	out := f.exec.Execute(context.Background(), &buckets[0], prepared, interfaces.DefaultOptions())
	var funds *interfaces.InsufficientFundsError
	require.ErrorAs(t, out.Err, &funds)
	assert.Equal(t, token, funds.Token)
	var stageErr *interfaces.StageError
	require.ErrorAs(t, out.Err, &stageErr)
	assert.Equal(t, interfaces.StageFund, stageErr.Stage)
	require.Len(t, out.Results, 1)
	assert.Error(t, out.Results[0].Err)
	assert.Empty(t, f.m.Sent())
}

func TestExecute_RevertingItem(t *testing.T) {
	setup := func(t *testing.T) (*fixture, common.Address) {
		f := newFixture(t)
		spg := f.m.CreateSPGCollection(true, nil, common.Address{}, f.m.Sender())
		// Mint the hash the first request duplicates.
		data, err := contracts.Pack(contracts.RegistrationWorkflows, "mintAndRegisterIp", spg, f.m.Sender(),
			contracts.NewIPMetadata(mintRequest(spg, 9).Metadata), true)
		require.NoError(t, err)
		_, err = f.m.SendTransaction(context.Background(), interfaces.Call{To: f.cs.Address(contracts.RegistrationWorkflows), Data: data})
		require.NoError(t, err)
		return f, spg
	}

	t.Run("abort", func(t *testing.T) {
		f, spg := setup(t)
		opts := interfaces.DefaultOptions()
		prepared, buckets := f.plan(t, opts, mintRequest(spg, 9), mintRequest(spg, 0))
		require.Len(t, buckets, 1)

		out := f.exec.Execute(context.Background(), &buckets[0], prepared, opts)
		var revert *interfaces.SimulationRevertError
		require.ErrorAs(t, out.Err, &revert)
		assert.Equal(t, 0, revert.Index)
		assert.Contains(t, revert.Reason, "SPGNFT__DuplicatedNFTMetadataHash")
		assert.Len(t, f.m.Sent(), 1)
	})

	t.Run("continue", func(t *testing.T) {
		f, spg := setup(t)
		opts := interfaces.DefaultOptions()
		opts.ContinueOnFailure = true
		prepared, buckets := f.plan(t, opts, mintRequest(spg, 9), mintRequest(spg, 0), mintRequest(spg, 0))
		require.Len(t, buckets, 1)

		out := f.exec.Execute(context.Background(), &buckets[0], prepared, opts)
		require.NoError(t, out.Err)
		require.Len(t, out.Results, 3)

		byIndex := map[int]interfaces.ExecutionResult{}
		for _, res := range out.Results {
			byIndex[res.Index] = res
		}
		var stageErr *interfaces.StageError
		require.ErrorAs(t, byIndex[0].Err, &stageErr)
		assert.Equal(t, interfaces.StageSimulate, stageErr.Stage)
		assert.Equal(t, 0, stageErr.Index)
		require.NoError(t, byIndex[1].Err)
		require.NoError(t, byIndex[2].Err)
		assert.Equal(t, int64(2), byIndex[1].TokenID.Int64())
		assert.Equal(t, int64(3), byIndex[2].TokenID.Int64())
		assert.Len(t, f.m.Sent(), 2)
	})

	t.Run("conflicting items", func(t *testing.T) {
		f, spg := setup(t)
		opts := interfaces.DefaultOptions()
		opts.ContinueOnFailure = true
		prepared, buckets := f.plan(t, opts, mintRequest(spg, 7), mintRequest(spg, 7))

		out := f.exec.Execute(context.Background(), &buckets[0], prepared, opts)
		var stageErr *interfaces.StageError
		require.ErrorAs(t, out.Err, &stageErr)
		assert.Equal(t, interfaces.StageSimulate, stageErr.Stage)
		assert.Len(t, f.m.Sent(), 1)
	})
}

func TestExecute_FollowUps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wip := f.cs.Address(contracts.WrappedIP)
	spg := f.m.CreateSPGCollection(true, nil, common.Address{}, f.m.Sender())

	t.Run("license token limit", func(t *testing.T) {
		prepared, buckets := f.plan(t, interfaces.DefaultOptions(), interfaces.RegistrationRequest{
			Target: interfaces.MintTarget{SPGNFTContract: spg},
			LicenseTerms: []interfaces.LicenseTermsData{
				{Terms: &interfaces.PILTerms{Transferable: true}, MaxLicenseTokens: big.NewInt(100)},
				{Terms: &interfaces.PILTerms{}},
			},
		})
		out := f.exec.Execute(ctx, &buckets[0], prepared, interfaces.DefaultOptions())
		require.NoError(t, out.Err)
		res := out.Results[0]
		require.NoError(t, res.Err)
		require.Len(t, res.LicenseTermsIDs, 2)
		assert.Len(t, res.MaxLicenseTokensTxHashes, 1)
		assert.Empty(t, res.FollowUpErrors)
		assert.Equal(t, int64(100), f.m.LicenseTokenLimit(res.IPID, res.LicenseTermsIDs[0]).Int64())
		assert.Nil(t, res.DistributeRoyaltyTokensTxHash)
	})

	t.Run("royalty distribution", func(t *testing.T) {
		recipient := common.HexToAddress("0x00000000000000000000000000000000000000d1")
		tokenID := f.m.MintNFT(spg, f.m.Sender())
		prepared, buckets := f.plan(t, interfaces.DefaultOptions(), interfaces.RegistrationRequest{
			Target: interfaces.ExistingNFT{Contract: spg, TokenID: tokenID},
			LicenseTerms: []interfaces.LicenseTermsData{{Terms: &interfaces.PILTerms{
				RoyaltyPolicy:      chain.MockRoyaltyPolicy,
				CommercialUse:      true,
				CommercialRevShare: 10,
				DerivativesAllowed: true,
				Currency:           wip,
			}}},
			RoyaltyShares: []interfaces.RoyaltyShare{{Recipient: recipient, Percentage: 30}},
		})
		require.Equal(t, "registerIpAndAttachPILTermsAndDeployRoyaltyVault", buckets[0].Method)

		out := f.exec.Execute(ctx, &buckets[0], prepared, interfaces.DefaultOptions())
		require.NoError(t, out.Err)
		res := out.Results[0]
		require.NoError(t, res.Err)
		assert.Empty(t, res.FollowUpErrors)
		require.NotNil(t, res.IPRoyaltyVault)
		require.NotNil(t, res.DistributeRoyaltyTokensTxHash)
		assert.Equal(t, int64(30_000_000), f.m.ERC20Balance(*res.IPRoyaltyVault, recipient).Int64())
		assert.Equal(t, int64(70_000_000), f.m.ERC20Balance(*res.IPRoyaltyVault, res.IPID).Int64())
	})

	t.Run("failure is attached to the item", func(t *testing.T) {
		f.m.RevertCalls(f.cs.Address(contracts.TotalLicenseTokenLimitHook), contracts.Selector(contracts.TotalLicenseTokenLimitHook, "setTotalLicenseTokenLimit"), "hook paused")
		prepared, buckets := f.plan(t, interfaces.DefaultOptions(), interfaces.RegistrationRequest{
			Target:       interfaces.MintTarget{SPGNFTContract: spg},
			LicenseTerms: []interfaces.LicenseTermsData{{Terms: &interfaces.PILTerms{Expiration: big.NewInt(1)}, MaxLicenseTokens: big.NewInt(5)}},
		})
		out := f.exec.Execute(ctx, &buckets[0], prepared, interfaces.DefaultOptions())
		require.NoError(t, out.Err)
		res := out.Results[0]
		require.NoError(t, res.Err)
		assert.NotEqual(t, common.Address{}, res.IPID)
		require.Len(t, res.FollowUpErrors, 1)
		var stageErr *interfaces.StageError
		require.ErrorAs(t, res.FollowUpErrors[0], &stageErr)
		assert.Equal(t, interfaces.StageFollowUp, stageErr.Stage)
		assert.Empty(t, res.MaxLicenseTokensTxHashes)
	})
}

func TestExecute_IndeterminateIsNotRetried(t *testing.T) {
	f := newFixture(t)
	spg := f.m.CreateSPGCollection(true, nil, common.Address{}, f.m.Sender())
	prepared, buckets := f.plan(t, interfaces.DefaultOptions(), mintRequest(spg, 0))

	f.m.HoldReceipts(true)
	out := f.exec.Execute(context.Background(), &buckets[0], prepared, interfaces.DefaultOptions())
	var indeterminate *interfaces.IndeterminateError
	require.ErrorAs(t, out.Err, &indeterminate)
	assert.Len(t, f.m.Sent(), 1)
	require.Len(t, buckets[0].TxHashes, 1)
	assert.Equal(t, buckets[0].TxHashes[0], indeterminate.TxHash)
}

func TestEncode(t *testing.T) {
	f := newFixture(t)
	spg := f.m.CreateSPGCollection(true, big.NewInt(2), f.cs.Address(contracts.WrappedIP), f.m.Sender())
	tokenID := f.m.MintNFT(spg, f.m.Sender())

	prepared, buckets := f.plan(t, interfaces.DefaultOptions(),
		mintRequest(spg, 0),
		mintRequest(spg, 0),
		interfaces.RegistrationRequest{
			Target:   interfaces.ExistingNFT{Contract: spg, TokenID: tokenID},
			Metadata: &interfaces.IPMetadata{IPMetadataURI: "ipfs://ip"},
		},
	)
	require.Len(t, buckets, 2)

	encoded, err := f.exec.Encode(context.Background(), &buckets[0], prepared)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, encoded.Indices)
	assert.Len(t, encoded.Calls, 2)
	assert.Equal(t, f.cs.Address(contracts.RegistrationWorkflows), encoded.Spender)
	require.Len(t, encoded.Fees, 1)
	assert.Equal(t, int64(4), encoded.Fees[0].Amount.Int64())

	unsigned, err := f.exec.Encode(context.Background(), &buckets[1], prepared)
	require.NoError(t, err)
	assert.Empty(t, unsigned.Calls)
	require.Len(t, unsigned.Authorizations, 1)
	auth := unsigned.Authorizations[0]
	assert.Equal(t, 2, auth.Index)
	assert.Equal(t, f.m.IPIDFor(spg, tokenID), auth.IPID)
	assert.Equal(t, f.cs.Address(contracts.RegistrationWorkflows), auth.Workflow)
	assert.Equal(t, f.cs.Address(contracts.AccessController), auth.To)
	assert.Equal(t, contracts.Selector(contracts.AccessController, "setTransientBatchPermissions"), [4]byte(auth.Data[:4]))

	// Without the signature the workflow rejects the call.
	_, err = f.m.Simulate(context.Background(), interfaces.Call{To: unsigned.To, Data: unsigned.Data})
	require.Error(t, err)
	assert.Empty(t, f.m.Sent())
}

func TestExecute_FailedTransaction(t *testing.T) {
	f := newFixture(t)
	spg := f.m.CreateSPGCollection(true, nil, common.Address{}, f.m.Sender())
	f.m.FailOnSend(contracts.Selector(contracts.RegistrationWorkflows, "multicall"))

	prepared, buckets := f.plan(t, interfaces.DefaultOptions(), mintRequest(spg, 0), mintRequest(spg, 0))
	require.Len(t, buckets, 1)
	require.Equal(t, interfaces.StrategyAggregated, buckets[0].Strategy)

	out := f.exec.Execute(context.Background(), &buckets[0], prepared, interfaces.DefaultOptions())

	var stageErr *interfaces.StageError
	require.ErrorAs(t, out.Err, &stageErr)
	assert.Equal(t, interfaces.StageConfirm, stageErr.Stage)

	var failed *interfaces.TransactionFailedError
	require.ErrorAs(t, out.Err, &failed)
	require.Len(t, buckets[0].TxHashes, 1)
	assert.Equal(t, buckets[0].TxHashes[0], failed.TxHash)
	require.NotNil(t, failed.Receipt)

	require.Len(t, out.Results, 2)
	for _, res := range out.Results {
		assert.ErrorAs(t, res.Err, &failed)
		assert.Equal(t, common.Address{}, res.IPID)
	}
	assert.Len(t, f.m.Sent(), 1)
	assert.False(t, f.m.IsRegistered(f.m.IPIDFor(spg, big.NewInt(1))))
}

func TestExecute_RevertAfterFunding(t *testing.T) {
	f := newFixture(t)
	wip := f.cs.Address(contracts.WrappedIP)
	workflow := f.cs.Address(contracts.RegistrationWorkflows)
	spg := f.m.CreateSPGCollection(true, big.NewInt(5), wip, f.m.Sender())
	f.m.SetNativeBalance(f.m.Sender(), big.NewInt(100))
	f.m.RevertCalls(workflow, contracts.Selector(contracts.RegistrationWorkflows, "mintAndRegisterIp"), "paused")

	prepared, buckets := f.plan(t, interfaces.DefaultOptions(), mintRequest(spg, 0))
	out := f.exec.Execute(context.Background(), &buckets[0], prepared, interfaces.DefaultOptions())

	var revert *interfaces.SimulationRevertError
	require.ErrorAs(t, out.Err, &revert)
	assert.Contains(t, revert.Reason, "paused")

	// The fee is wrapped and approved before the call can be simulated; the
	// registration itself is never submitted.
	sent := f.m.Sent()
	require.Len(t, sent, 2)
	for _, call := range sent {
		assert.Equal(t, wip, call.To)
	}
	assert.Empty(t, buckets[0].TxHashes)
	assert.Equal(t, int64(5), f.m.Allowance(wip, f.m.Sender(), workflow).Int64())
}
