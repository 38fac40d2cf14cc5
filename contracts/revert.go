package contracts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DecodeRevert renders revert data as a readable reason: Error(string) messages,
// Panic(uint256) codes and the protocol custom errors. Unknown data is hex encoded.
func DecodeRevert(data []byte) string {
	if len(data) == 0 {
		return "execution reverted"
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	if len(data) >= 4 {
		for name, e := range ABI(ProtocolErrors).Errors {
			if !bytes.Equal(e.ID[:4], data[:4]) {
				continue
			}
			args, err := e.Inputs.Unpack(data[4:])
			if err != nil || len(args) == 0 {
				return name
			}
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = formatArg(a)
			}
			return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
		}
	}
	return "execution reverted: " + hexutil.Encode(data)
}

func formatArg(v interface{}) string {
	switch a := v.(type) {
	case [4]byte:
		return hexutil.Encode(a[:])
	case [32]byte:
		return hexutil.Encode(a[:])
	case fmt.Stringer:
		return a.String()
	default:
		return fmt.Sprint(a)
	}
}

// RevertData encodes a protocol custom error, used by simulators to produce
// revert data identical to the deployed contracts.
func RevertData(name string, args ...interface{}) []byte {
	e, ok := ABI(ProtocolErrors).Errors[name]
	if !ok {
		panic(fmt.Sprintf("unknown protocol error %q", name))
	}
	encoded, err := e.Inputs.Pack(args...)
	if err != nil {
		panic(fmt.Sprintf("packing %s: %v", name, err))
	}
	return append(append([]byte{}, e.ID[:4]...), encoded...)
}

// RevertReasonData encodes a plain Error(string) revert.
func RevertReasonData(reason string) []byte {
	stringType, _ := abi.NewType("string", "", nil)
	encoded, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	// keccak256("Error(string)")[:4]
	return append([]byte{0x08, 0xc3, 0x79, 0xa0}, encoded...)
}
