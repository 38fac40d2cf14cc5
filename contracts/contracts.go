// Package contracts holds the static ABI metadata of the IP protocol contracts:
// ABI definitions, a process-wide parsed ABI cache, tuple structs and revert decoding.
//
// Nothing in this package is chain specific. Addresses live in chainconfig.
package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Name identifies a protocol contract.
type Name string

const (
	IPAssetRegistry                   Name = "IPAssetRegistry"
	LicenseRegistry                   Name = "LicenseRegistry"
	LicensingModule                   Name = "LicensingModule"
	PILicenseTemplate                 Name = "PILicenseTemplate"
	RoyaltyModule                     Name = "RoyaltyModule"
	CoreMetadataModule                Name = "CoreMetadataModule"
	AccessController                  Name = "AccessController"
	RegistrationWorkflows             Name = "RegistrationWorkflows"
	LicenseAttachmentWorkflows        Name = "LicenseAttachmentWorkflows"
	DerivativeWorkflows               Name = "DerivativeWorkflows"
	RoyaltyTokenDistributionWorkflows Name = "RoyaltyTokenDistributionWorkflows"
	WrappedIP                         Name = "WrappedIP"
	Multicall3                        Name = "Multicall3"
	TotalLicenseTokenLimitHook        Name = "TotalLicenseTokenLimitHook"

	// Contracts without a fixed address.
	IPAccount      Name = "IPAccount"
	SPGNFT         Name = "SPGNFT"
	ERC20          Name = "ERC20"
	IPRoyaltyVault Name = "IPRoyaltyVault"
	ProtocolErrors Name = "ProtocolErrors"
)

// Addressed lists the contracts every chain configuration must provide.
var Addressed = []Name{
	IPAssetRegistry,
	LicenseRegistry,
	LicensingModule,
	PILicenseTemplate,
	RoyaltyModule,
	CoreMetadataModule,
	AccessController,
	RegistrationWorkflows,
	LicenseAttachmentWorkflows,
	DerivativeWorkflows,
	RoyaltyTokenDistributionWorkflows,
	WrappedIP,
	Multicall3,
	TotalLicenseTokenLimitHook,
}

var definitions = map[Name]string{
	IPAssetRegistry:                   IPAssetRegistryABI,
	LicenseRegistry:                   LicenseRegistryABI,
	LicensingModule:                   LicensingModuleABI,
	PILicenseTemplate:                 PILicenseTemplateABI,
	RoyaltyModule:                     RoyaltyModuleABI,
	CoreMetadataModule:                CoreMetadataModuleABI,
	AccessController:                  AccessControllerABI,
	RegistrationWorkflows:             RegistrationWorkflowsABI,
	LicenseAttachmentWorkflows:        LicenseAttachmentWorkflowsABI,
	DerivativeWorkflows:               DerivativeWorkflowsABI,
	RoyaltyTokenDistributionWorkflows: RoyaltyTokenDistributionWorkflowsABI,
	WrappedIP:                         ERC20ABI,
	Multicall3:                        Multicall3ABI,
	TotalLicenseTokenLimitHook:        TotalLicenseTokenLimitHookABI,
	IPAccount:                         IPAccountABI,
	SPGNFT:                            SPGNFTABI,
	ERC20:                             ERC20ABI,
	IPRoyaltyVault:                    ERC20ABI,
	ProtocolErrors:                    ProtocolErrorsABI,
}

var (
	parseOnce sync.Once
	parsed    map[Name]*abi.ABI
	parseErr  error
)

func parseAll() {
	parsed = make(map[Name]*abi.ABI, len(definitions))
	for name, def := range definitions {
		a, err := abi.JSON(strings.NewReader(def))
		if err != nil {
			parseErr = fmt.Errorf("parsing %s ABI: %w", name, err)
			return
		}
		parsed[name] = &a
	}
}

// ABI returns the parsed ABI of a contract. ABIs are parsed once per process and
// shared by every engine. The returned value must not be modified.
func ABI(name Name) *abi.ABI {
	parseOnce.Do(parseAll)
	if parseErr != nil {
		panic(parseErr)
	}
	a, ok := parsed[name]
	if !ok {
		panic(fmt.Sprintf("unknown contract %q", name))
	}
	return a
}

// Pack encodes a call to method of contract name.
func Pack(name Name, method string, args ...interface{}) ([]byte, error) {
	data, err := ABI(name).Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s.%s: %w", name, method, err)
	}
	return data, nil
}

// Unpack decodes the return data of method into its output values.
func Unpack(name Name, method string, data []byte) ([]interface{}, error) {
	out, err := ABI(name).Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s.%s: %w", name, method, err)
	}
	return out, nil
}

// Selector returns the 4-byte function selector of method.
func Selector(name Name, method string) [4]byte {
	m, ok := ABI(name).Methods[method]
	if !ok {
		panic(fmt.Sprintf("unknown method %s.%s", name, method))
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	return sel
}

// MethodOf resolves the method of contract name invoked by calldata.
func MethodOf(name Name, data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	return ABI(name).MethodById(data[:4])
}

// UnpackInputs decodes calldata into the input values of the method it calls.
func UnpackInputs(name Name, data []byte) (*abi.Method, []interface{}, error) {
	method, err := MethodOf(name, data)
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("unpacking %s.%s inputs: %w", name, method.Name, err)
	}
	return method, args, nil
}
