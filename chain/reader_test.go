package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

func TestBatchReader_Read(t *testing.T) {
	m, cs, _ := newTestMock(t)
	spg := m.CreateSPGCollection(true, big.NewInt(3), cs.Address(contracts.WrappedIP), m.Sender())
	tokenID := m.MintNFT(spg, m.Sender())
	ipID := m.RegisterIPAsset(spg, tokenID)

	reads := []Read{
		{Target: cs.Address(contracts.IPAssetRegistry), Contract: contracts.IPAssetRegistry, Method: "isRegistered", Args: []interface{}{ipID}},
		{Target: spg, Contract: contracts.SPGNFT, Method: "mintFee"},
		{Target: spg, Contract: contracts.SPGNFT, Method: "ownerOf", Args: []interface{}{big.NewInt(42)}},
	}

	for name, multicall := range map[string]common.Address{
		"aggregated": cs.Address(contracts.Multicall3),
		"individual": {},
	} {
		t.Run(name, func(t *testing.T) {
			reader := NewBatchReader(m, multicall, nil)
			results, err := reader.Read(context.Background(), reads)
			require.NoError(t, err)
			require.Len(t, results, 3)

			require.NoError(t, results[0].Err)
			assert.Equal(t, true, results[0].Values[0])

			require.NoError(t, results[1].Err)
			assert.Equal(t, int64(3), results[1].Values[0].(*big.Int).Int64())

			var revert *interfaces.SimulationRevertError
			require.ErrorAs(t, results[2].Err, &revert)
			assert.Equal(t, "ERC721NonexistentToken", revert.Reason)
		})
	}

	// Aggregated reads cost a single simulation and no transaction.
	assert.Empty(t, m.Sent())
}

func TestBatchReader_Call(t *testing.T) {
	m, cs, _ := newTestMock(t)
	reader := NewBatchReader(m, cs.Address(contracts.Multicall3), nil)

	values, err := reader.Call(context.Background(), Read{
		Target:   cs.Address(contracts.RoyaltyModule),
		Contract: contracts.RoyaltyModule,
		Method:   "isWhitelistedRoyaltyPolicy",
		Args:     []interface{}{MockRoyaltyPolicy},
	})
	require.NoError(t, err)
	assert.Equal(t, true, values[0])
}

type unreachableChain struct {
	*MockChain
}

func (unreachableChain) Simulate(context.Context, interfaces.Call) ([]byte, error) {
	return nil, errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")
}

func TestBatchReader_BackendFailure(t *testing.T) {
	m, cs, _ := newTestMock(t)
	reader := NewBatchReader(unreachableChain{m}, cs.Address(contracts.Multicall3), nil)

	_, err := reader.Read(context.Background(), []Read{
		{Target: cs.Address(contracts.IPAssetRegistry), Contract: contracts.IPAssetRegistry, Method: "isRegistered", Args: []interface{}{common.Address{}}},
		{Target: cs.Address(contracts.IPAssetRegistry), Contract: contracts.IPAssetRegistry, Method: "isRegistered", Args: []interface{}{common.Address{1}}},
	})
	var readErr *interfaces.ChainReadError
	require.ErrorAs(t, err, &readErr)
	assert.Contains(t, readErr.Error(), "connection refused")

	var revert *interfaces.SimulationRevertError
	assert.False(t, errors.As(err, &revert))
}
