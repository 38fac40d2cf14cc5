package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// IPAccountDomainName and IPAccountDomainVersion form the EIP-712 domain of every IP account.
	IPAccountDomainName    = "Story Protocol IP Account"
	IPAccountDomainVersion = "1"
)

var executeArgs = func() abi.Arguments {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	bytesType, _ := abi.NewType("bytes", "", nil)
	return abi.Arguments{{Type: bytes32Type}, {Type: bytesType}}
}()

// ExecuteNonce derives the nonce an IP account expects for executing data on to:
// keccak256(abi.encode(state, execute(to, 0, data))).
func ExecuteNonce(state [32]byte, to common.Address, data []byte) ([32]byte, error) {
	executeCall, err := Pack(IPAccount, "execute", to, new(big.Int), data)
	if err != nil {
		return [32]byte{}, err
	}
	encoded, err := executeArgs.Pack(state, executeCall)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encoding execute nonce: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// ExecuteTypedData builds the EIP-712 Execute message authorizing ipID's account
// to call to with data, valid until deadline.
func ExecuteTypedData(chainID *big.Int, ipID, to common.Address, data []byte, nonce [32]byte, deadline *big.Int) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Execute": {
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "data", Type: "bytes"},
				{Name: "nonce", Type: "bytes32"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Execute",
		Domain: apitypes.TypedDataDomain{
			Name:              IPAccountDomainName,
			Version:           IPAccountDomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: ipID.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"to":       to.Hex(),
			"value":    new(big.Int),
			"data":     hexutil.Encode(data),
			"nonce":    hexutil.Encode(nonce[:]),
			"deadline": new(big.Int).Set(deadline),
		},
	}
}

// RecoverTypedDataSigner returns the address that produced sig over data.
func RecoverTypedDataSigner(data apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return common.Address{}, err
	}
	normalized := append([]byte{}, sig...)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
