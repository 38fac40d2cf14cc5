package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// revertingCode reverts every call with the 4 bytes 0xdeadbeef.
var revertingCode = common.FromHex("0x63deadbeef60e01b60005260046000fd")

var revertingAddress = common.HexToAddress("0x00000000000000000000000000000000000DeaD0")

// SetupTestChain creates a simulated chain with a funded transactor and a contract
// that always reverts.
func SetupTestChain() (*simulated.Backend, *bind.TransactOpts, *ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, big.NewInt(1337))
	if err != nil {
		return nil, nil, nil, err
	}

	balance := new(big.Int)
	balance.SetString("10000000000000000000", 10) // 10 ETH

	genesisAlloc := types.GenesisAlloc{
		auth.From:        {Balance: balance},
		revertingAddress: {Code: revertingCode, Balance: new(big.Int)},
	}
	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(8000000))
	return backend, auth, privateKey, nil
}

func TestClient_SendAndWait(t *testing.T) {
	backend, auth, _, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	// Plain value transfers skip gas estimation, which needs contract code.
	auth.GasLimit = 21000

	client := NewClient(backend.Client(), big.NewInt(1337), nil)
	client.SetTransactOpts(auth)
	client.SetPollInterval(10 * time.Millisecond)
	assert.Equal(t, auth.From, client.Sender())

	recipient := common.HexToAddress("0x0000000000000000000000000000000000001234")
	txHash, err := client.SendTransaction(context.Background(), interfaces.Call{To: recipient, Value: big.NewInt(1000)})
	require.NoError(t, err)

	backend.Commit()

	receipt, err := client.WaitForReceipt(context.Background(), txHash, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	balance, err := client.BalanceAt(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), balance)
}

func TestClient_WaitTimeoutIsIndeterminate(t *testing.T) {
	backend, _, _, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	client := NewClient(backend.Client(), big.NewInt(1337), nil)
	client.SetPollInterval(10 * time.Millisecond)

	unknown := common.HexToHash("0x01")
	_, err = client.WaitForReceipt(context.Background(), unknown, 50*time.Millisecond)
	require.Error(t, err)

	var indeterminate *interfaces.IndeterminateError
	require.ErrorAs(t, err, &indeterminate)
	assert.Equal(t, unknown, indeterminate.TxHash)
}

func TestClient_SimulateRevert(t *testing.T) {
	backend, auth, _, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	client := NewClient(backend.Client(), big.NewInt(1337), nil)
	client.SetTransactOpts(auth)

	_, err = client.Simulate(context.Background(), interfaces.Call{To: revertingAddress, Data: []byte{0x01, 0x02, 0x03, 0x04}})
	require.Error(t, err)

	var revert *interfaces.SimulationRevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, revertingAddress, revert.Target)
	assert.Equal(t, "execution reverted: 0xdeadbeef", revert.Reason)
}

func TestClient_SendWithoutTransactOpts(t *testing.T) {
	backend, _, _, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	client := NewClient(backend.Client(), big.NewInt(1337), nil)
	assert.Equal(t, common.Address{}, client.Sender())

	_, err = client.SendTransaction(context.Background(), interfaces.Call{To: revertingAddress})
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
}
