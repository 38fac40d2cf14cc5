package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

func newTestMock(t *testing.T) (*MockChain, *chainconfig.ContractSet, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cs, err := chainconfig.Defaults().ForChain(big.NewInt(chainconfig.AeneidChainID))
	require.NoError(t, err)
	m := NewMockChain(cs, crypto.PubkeyToAddress(key.PublicKey))
	return m, cs, key
}

func send(t *testing.T, m *MockChain, call interfaces.Call) *types.Receipt {
	t.Helper()
	txHash, err := m.SendTransaction(context.Background(), call)
	require.NoError(t, err)
	receipt, err := m.WaitForReceipt(context.Background(), txHash, time.Second)
	require.NoError(t, err)
	return receipt
}

func signTyped(t *testing.T, key *ecdsa.PrivateKey, data apitypes.TypedData) []byte {
	t.Helper()
	hash, _, err := apitypes.TypedDataAndHash(data)
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27
	return sig
}

func TestMockChain_MintWithFee(t *testing.T) {
	m, cs, _ := newTestMock(t)
	sender := m.Sender()
	wip := cs.Address(contracts.WrappedIP)
	workflow := cs.Address(contracts.RegistrationWorkflows)
	collectionOwner := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	spg := m.CreateSPGCollection(true, big.NewInt(10), wip, collectionOwner)
	m.MintERC20(wip, sender, big.NewInt(25))

	mint, err := contracts.Pack(contracts.RegistrationWorkflows, "mintAndRegisterIp", spg, sender, contracts.NewIPMetadata(nil), true)
	require.NoError(t, err)

	// Without an allowance the fee pull fails in simulation.
	_, err = m.Simulate(context.Background(), interfaces.Call{To: workflow, Data: mint})
	var revert *interfaces.SimulationRevertError
	require.ErrorAs(t, err, &revert)
	assert.Contains(t, revert.Reason, "ERC20InsufficientAllowance")

	approve, err := contracts.Pack(contracts.ERC20, "approve", workflow, big.NewInt(20))
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, send(t, m, interfaces.Call{To: wip, Data: approve}).Status)

	batch, err := contracts.Pack(contracts.RegistrationWorkflows, "multicall", [][]byte{mint, mint})
	require.NoError(t, err)
	receipt := send(t, m, interfaces.Call{To: workflow, Data: batch})
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	registered := contracts.ABI(contracts.IPAssetRegistry).Events["IPRegistered"].ID
	var tokenIDs []uint64
	for _, l := range receipt.Logs {
		if l.Topics[0] == registered {
			tokenIDs = append(tokenIDs, l.Topics[3].Big().Uint64())
		}
	}
	assert.Equal(t, []uint64{1, 2}, tokenIDs)

	assert.Equal(t, sender, m.TokenOwner(spg, big.NewInt(2)))
	assert.True(t, m.IsRegistered(m.IPIDFor(spg, big.NewInt(1))))
	assert.Equal(t, int64(5), m.ERC20Balance(wip, sender).Int64())
	assert.Equal(t, int64(20), m.ERC20Balance(wip, collectionOwner).Int64())
	assert.Zero(t, m.Allowance(wip, sender, workflow).Sign())
}

func TestMockChain_PrivateCollection(t *testing.T) {
	m, cs, _ := newTestMock(t)
	owner := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	spg := m.CreateSPGCollection(false, nil, common.Address{}, owner)

	mint, err := contracts.Pack(contracts.RegistrationWorkflows, "mintAndRegisterIp", spg, m.Sender(), contracts.NewIPMetadata(nil), true)
	require.NoError(t, err)
	call := interfaces.Call{To: cs.Address(contracts.RegistrationWorkflows), Data: mint}

	_, err = m.Simulate(context.Background(), call)
	var revert *interfaces.SimulationRevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, "Workflow__CallerNotAuthorizedToMint", revert.Reason)

	m.AddMinter(spg, m.Sender())
	_, err = m.Simulate(context.Background(), call)
	assert.NoError(t, err)
}

func TestMockChain_RegisterWithSignature(t *testing.T) {
	m, cs, key := newTestMock(t)
	now := time.Unix(1_700_000_000, 0)
	m.SetClock(func() time.Time { return now })

	workflow := cs.Address(contracts.RegistrationWorkflows)
	spg := m.CreateSPGCollection(true, nil, common.Address{}, m.Sender())
	tokenID := m.MintNFT(spg, m.Sender())
	ipID := m.IPIDFor(spg, tokenID)

	metadata := &interfaces.IPMetadata{IPMetadataURI: "ipfs://ip", IPMetadataHash: [32]byte{1}}
	module := cs.Address(contracts.CoreMetadataModule)
	grant, err := contracts.Pack(contracts.AccessController, "setTransientBatchPermissions", []contracts.Permission{{
		IpAccount:  ipID,
		Signer:     workflow,
		To:         module,
		Func:       contracts.Selector(contracts.CoreMetadataModule, "setAll"),
		Permission: uint8(interfaces.PermissionAllow),
	}})
	require.NoError(t, err)

	accessController := cs.Address(contracts.AccessController)
	nonce, err := contracts.ExecuteNonce([32]byte{}, accessController, grant)
	require.NoError(t, err)
	deadline := big.NewInt(now.Unix() + 100)
	sig := signTyped(t, key, contracts.ExecuteTypedData(m.ChainID(), ipID, accessController, grant, nonce, deadline))

	register := func(sig []byte) []byte {
		data, err := contracts.Pack(contracts.RegistrationWorkflows, "registerIp", spg, tokenID, contracts.NewIPMetadata(metadata),
			contracts.SignatureData{Signer: m.Sender(), Deadline: deadline, Signature: sig})
		require.NoError(t, err)
		return data
	}

	bad := append([]byte{}, sig...)
	bad[10] ^= 0xff
	_, err = m.Simulate(context.Background(), interfaces.Call{To: workflow, Data: register(bad)})
	require.Error(t, err)

	receipt := send(t, m, interfaces.Call{To: workflow, Data: register(sig)})
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, "ipfs://ip", m.Metadata(ipID).IpMetadataURI)
	assert.Equal(t, nonce, m.IPState(ipID))

	// The signature is bound to the consumed state.
	_, err = m.Simulate(context.Background(), interfaces.Call{To: workflow, Data: register(sig)})
	assert.Error(t, err)
}

func TestMockChain_FailedTransactionKeepsState(t *testing.T) {
	m, cs, _ := newTestMock(t)
	workflow := cs.Address(contracts.RegistrationWorkflows)
	spg := m.CreateSPGCollection(true, nil, common.Address{}, m.Sender())

	mint, err := contracts.Pack(contracts.RegistrationWorkflows, "mintAndRegisterIp", spg, m.Sender(), contracts.NewIPMetadata(nil), true)
	require.NoError(t, err)

	m.FailOnSend(contracts.Selector(contracts.RegistrationWorkflows, "mintAndRegisterIp"))
	receipt := send(t, m, interfaces.Call{To: workflow, Data: mint})
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
	assert.False(t, m.IsRegistered(m.IPIDFor(spg, big.NewInt(1))))
	assert.Len(t, m.Sent(), 1)
}

func TestMockChain_HeldReceiptsAreIndeterminate(t *testing.T) {
	m, cs, _ := newTestMock(t)
	m.HoldReceipts(true)

	txHash, err := m.SendTransaction(context.Background(), interfaces.Call{To: cs.Address(contracts.WrappedIP), Data: common.FromHex("0xd0e30db0")})
	require.NoError(t, err)

	_, err = m.WaitForReceipt(context.Background(), txHash, 10*time.Millisecond)
	var indeterminate *interfaces.IndeterminateError
	require.ErrorAs(t, err, &indeterminate)
	assert.Equal(t, txHash, indeterminate.TxHash)
}
