package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/ip-registration-workflows/contracts"
)

func TestFromHex(t *testing.T) {
	w, err := FromHex("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), w.Address())

	_, err = FromHex("not a key")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSignTypedData_Recovers(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	ipID := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	data := []byte{0xde, 0xad}
	nonce, err := contracts.ExecuteNonce([32]byte{}, to, data)
	require.NoError(t, err)

	typed := contracts.ExecuteTypedData(big.NewInt(1315), ipID, to, data, nonce, big.NewInt(1000))
	sig, err := w.SignTypedData(context.Background(), typed)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	signer, err := contracts.RecoverTypedDataSigner(typed, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), signer)

	// A different chain id changes the domain and the recovered address.
	other := contracts.ExecuteTypedData(big.NewInt(1514), ipID, to, data, nonce, big.NewInt(1000))
	signer, err = contracts.RecoverTypedDataSigner(other, sig)
	require.NoError(t, err)
	assert.NotEqual(t, w.Address(), signer)
}

func TestSignTypedData_Cancelled(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.SignTypedData(ctx, contracts.ExecuteTypedData(big.NewInt(1), common.Address{}, common.Address{}, nil, [32]byte{}, big.NewInt(1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransactOpts(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	opts, err := w.TransactOpts(big.NewInt(1315))
	require.NoError(t, err)
	assert.Equal(t, w.Address(), opts.From)
}
