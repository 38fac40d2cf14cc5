package classifier

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
	publicSPG  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	privateSPG = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	nft        = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	otherToken = common.HexToAddress("0x00000000000000000000000000000000000000a4")
)

func newTestClassifier(t *testing.T) (*Classifier, *chainconfig.ContractSet) {
	t.Helper()
	cs, err := chainconfig.Defaults().ForChain(big.NewInt(chainconfig.AeneidChainID))
	require.NoError(t, err)
	return New(cs), cs
}

func mint(index int, public bool, fees ...interfaces.Fee) *interfaces.PreparedRequest {
	spg := publicSPG
	if !public {
		spg = privateSPG
	}
	return &interfaces.PreparedRequest{
		Index:   index,
		Request: interfaces.RegistrationRequest{Target: interfaces.MintTarget{SPGNFTContract: spg}},
		SPG:     &interfaces.SPGInfo{PublicMinting: public},
		Fees:    fees,
	}
}

func existing(index int) *interfaces.PreparedRequest {
	return &interfaces.PreparedRequest{
		Index:   index,
		Request: interfaces.RegistrationRequest{Target: interfaces.ExistingNFT{Contract: nft, TokenID: big.NewInt(int64(index))}},
	}
}

func indices(buckets []interfaces.WorkflowBucket) [][]int {
	out := make([][]int, len(buckets))
	for i, b := range buckets {
		out[i] = b.Indices
	}
	return out
}

func TestClassify(t *testing.T) {
	c, cs := newTestClassifier(t)
	wip := cs.Address(contracts.WrappedIP)
	wipFee := func(n int64) interfaces.Fee { return interfaces.Fee{Token: wip, Amount: big.NewInt(n)} }

	tests := []struct {
		name       string
		prepared   []*interfaces.PreparedRequest
		opts       interfaces.Options
		want       [][]int
		strategies []interfaces.Strategy
	}{
		{
			name:       "adjacent public mints share a bucket",
			prepared:   []*interfaces.PreparedRequest{mint(0, true), mint(1, true), mint(2, true)},
			opts:       interfaces.DefaultOptions(),
			want:       [][]int{{0, 1, 2}},
			strategies: []interfaces.Strategy{interfaces.StrategyAggregated},
		},
		{
			name:       "private minting splits the run",
			prepared:   []*interfaces.PreparedRequest{mint(0, true), mint(1, false), mint(2, true)},
			opts:       interfaces.DefaultOptions(),
			want:       [][]int{{0}, {1}, {2}},
			strategies: []interfaces.Strategy{interfaces.StrategyAggregated, interfaces.StrategyDirect, interfaces.StrategyAggregated},
		},
		{
			name:       "non adjacent compatible requests are not merged",
			prepared:   []*interfaces.PreparedRequest{mint(0, true), existing(1), mint(2, true)},
			opts:       interfaces.DefaultOptions(),
			want:       [][]int{{0}, {1}, {2}},
			strategies: []interfaces.Strategy{interfaces.StrategyAggregated, interfaces.StrategyAggregated, interfaces.StrategyAggregated},
		},
		{
			name:       "direct requests never share",
			prepared:   []*interfaces.PreparedRequest{mint(0, false), mint(1, false)},
			opts:       interfaces.DefaultOptions(),
			want:       [][]int{{0}, {1}},
			strategies: []interfaces.Strategy{interfaces.StrategyDirect, interfaces.StrategyDirect},
		},
		{
			name:       "multicall disabled",
			prepared:   []*interfaces.PreparedRequest{existing(0), existing(1)},
			opts:       interfaces.Options{},
			want:       [][]int{{0}, {1}},
			strategies: []interfaces.Strategy{interfaces.StrategyDirect, interfaces.StrategyDirect},
		},
		{
			name:       "fee in another token forces direct",
			prepared:   []*interfaces.PreparedRequest{mint(0, true, wipFee(1)), mint(1, true, interfaces.Fee{Token: otherToken, Amount: big.NewInt(1)}), mint(2, true, wipFee(2))},
			opts:       interfaces.DefaultOptions(),
			want:       [][]int{{0}, {1}, {2}},
			strategies: []interfaces.Strategy{interfaces.StrategyAggregated, interfaces.StrategyDirect, interfaces.StrategyAggregated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets, err := c.Classify(tt.prepared, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, indices(buckets))
			for i, b := range buckets {
				assert.Equal(t, tt.strategies[i], b.Strategy, "bucket %d", i)
			}
		})
	}
}

func TestClassify_RoutesAndFees(t *testing.T) {
	c, cs := newTestClassifier(t)
	wip := cs.Address(contracts.WrappedIP)

	prepared := []*interfaces.PreparedRequest{
		mint(0, true, interfaces.Fee{Token: wip, Amount: big.NewInt(3)}),
		mint(1, true, interfaces.Fee{Token: wip, Amount: big.NewInt(4)}),
		existing(2),
	}
	buckets, err := c.Classify(prepared, interfaces.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, cs.Address(contracts.RegistrationWorkflows), buckets[0].Destination)
	assert.Equal(t, "mintAndRegisterIp", buckets[0].Method)
	require.Len(t, buckets[0].Fees, 1)
	assert.Equal(t, int64(7), buckets[0].Fees[0].Amount.Int64())
	assert.Equal(t, buckets[0].Destination, buckets[0].Spender())

	assert.Equal(t, "registerIp", buckets[1].Method)
	assert.Empty(t, buckets[1].Fees)

	// Classification is pure.
	again, err := c.Classify(prepared, interfaces.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, buckets, again)
	assert.Equal(t, int64(3), prepared[0].Fees[0].Amount.Int64())
}

func TestClassify_InvalidShape(t *testing.T) {
	c, _ := newTestClassifier(t)
	_, err := c.Classify([]*interfaces.PreparedRequest{{Index: 4}}, interfaces.DefaultOptions())
	var validationErr *interfaces.ValidationError
	require.ErrorAs(t, err, &validationErr)
}
