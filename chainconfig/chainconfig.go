// Package chainconfig maps chain ids to the deployed addresses of the protocol contracts.
//
// Addresses are never global: an engine receives one ContractSet at construction.
// Built-in defaults cover Story mainnet and the Aeneid testnet and can be
// overridden by a YAML address book:
//
//	chains:
//	  1315:
//	    name: aeneid
//	    contracts:
//	      RegistrationWorkflows: "0xbe39E1C756e921BD25DF86e7AAa31106d1eb0424"
package chainconfig

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/ruteri/ip-registration-workflows/contracts"
)

const (
	MainnetChainID = 1514
	AeneidChainID  = 1315
)

var (
	// ErrUnknownChain is returned for a chain id without configuration.
	ErrUnknownChain = errors.New("unknown chain id")

	// ErrMissingContract is returned when a configuration lacks a required contract address.
	ErrMissingContract = errors.New("missing contract address")
)

// ContractSet holds the contract addresses of one chain.
type ContractSet struct {
	ChainID   *big.Int
	Name      string
	Addresses map[contracts.Name]common.Address
}

// Address returns the address of a contract, zero when unset.
func (cs *ContractSet) Address(name contracts.Name) common.Address {
	return cs.Addresses[name]
}

// Validate checks that every addressed contract has a non-zero address.
func (cs *ContractSet) Validate() error {
	if cs.ChainID == nil || cs.ChainID.Sign() <= 0 {
		return fmt.Errorf("invalid chain id %v", cs.ChainID)
	}
	for _, name := range contracts.Addressed {
		if cs.Addresses[name] == (common.Address{}) {
			return fmt.Errorf("%w: %s on chain %s", ErrMissingContract, name, cs.ChainID)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (cs *ContractSet) Clone() *ContractSet {
	out := &ContractSet{
		ChainID:   new(big.Int).Set(cs.ChainID),
		Name:      cs.Name,
		Addresses: make(map[contracts.Name]common.Address, len(cs.Addresses)),
	}
	for k, v := range cs.Addresses {
		out.Addresses[k] = v
	}
	return out
}

// AddressBook maps chain ids to contract sets.
type AddressBook map[uint64]*ContractSet

// ForChain returns a copy of the contract set of chainID.
func (ab AddressBook) ForChain(chainID *big.Int) (*ContractSet, error) {
	if chainID == nil || !chainID.IsUint64() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownChain, chainID)
	}
	cs, ok := ab[chainID.Uint64()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chainID)
	}
	return cs.Clone(), nil
}

var coreAddresses = map[contracts.Name]common.Address{
	contracts.IPAssetRegistry:                   common.HexToAddress("0x77319B4031e6eF1250907aa00018B8B1c67a244b"),
	contracts.LicenseRegistry:                   common.HexToAddress("0x529a750E02d8E2f15649c13D69a465286a780e24"),
	contracts.LicensingModule:                   common.HexToAddress("0x04fbd8a2e56dd85CFD5500A4A4DfA955B9f1dE6f"),
	contracts.PILicenseTemplate:                 common.HexToAddress("0x2E896b0b2Fdb7457499B56AAaA4AE55BCB4Cd316"),
	contracts.RoyaltyModule:                     common.HexToAddress("0xD2f60c40fEbccf6311f8B47c4f2Ec6b040400086"),
	contracts.CoreMetadataModule:                common.HexToAddress("0x6E81a25C99C6e8430aeC7353325EB138aFE5DC16"),
	contracts.AccessController:                  common.HexToAddress("0xcCF37d0a503Ee1D4C11208672e622ed3DFB2275a"),
	contracts.RegistrationWorkflows:             common.HexToAddress("0xbe39E1C756e921BD25DF86e7AAa31106d1eb0424"),
	contracts.LicenseAttachmentWorkflows:        common.HexToAddress("0xcC2E862bCee5B6036Db0de6E06Ae87e524a79fd8"),
	contracts.DerivativeWorkflows:               common.HexToAddress("0x9e2d496f72C547C2C535B167e06ED8729B374a4f"),
	contracts.RoyaltyTokenDistributionWorkflows: common.HexToAddress("0xa38f42B8d33809917f23997B8423054aAB97322C"),
	contracts.WrappedIP:                         common.HexToAddress("0x1514000000000000000000000000000000000000"),
	contracts.Multicall3:                        common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11"),
}

func withCore(chainID int64, name string, hook common.Address) *ContractSet {
	cs := &ContractSet{
		ChainID:   big.NewInt(chainID),
		Name:      name,
		Addresses: make(map[contracts.Name]common.Address, len(coreAddresses)+1),
	}
	for k, v := range coreAddresses {
		cs.Addresses[k] = v
	}
	cs.Addresses[contracts.TotalLicenseTokenLimitHook] = hook
	return cs
}

// Defaults returns the built-in address book.
func Defaults() AddressBook {
	return AddressBook{
		MainnetChainID: withCore(MainnetChainID, "mainnet", common.HexToAddress("0xB72C9812114a0Fc74D49e01385bd266A75960Cda")),
		AeneidChainID:  withCore(AeneidChainID, "aeneid", common.HexToAddress("0xaBAD364Bfa41230272b08f171E0Ca939bD600478")),
	}
}

type fileChain struct {
	Name      string            `yaml:"name"`
	Contracts map[string]string `yaml:"contracts"`
}

type fileFormat struct {
	Chains map[uint64]fileChain `yaml:"chains"`
}

// Parse merges a YAML address book over the built-in defaults. Chains absent
// from the defaults must list every contract.
func Parse(data []byte) (AddressBook, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing address book: %w", err)
	}

	book := Defaults()
	for chainID, fc := range f.Chains {
		cs, ok := book[chainID]
		if !ok {
			cs = &ContractSet{
				ChainID:   new(big.Int).SetUint64(chainID),
				Addresses: make(map[contracts.Name]common.Address),
			}
			book[chainID] = cs
		}
		if fc.Name != "" {
			cs.Name = fc.Name
		}
		for name, hex := range fc.Contracts {
			if !common.IsHexAddress(hex) {
				return nil, fmt.Errorf("chain %d: invalid address %q for %s", chainID, hex, name)
			}
			cs.Addresses[contracts.Name(name)] = common.HexToAddress(hex)
		}
		if err := cs.Validate(); err != nil {
			return nil, err
		}
	}
	return book, nil
}

// Load reads an address book file. An empty path returns the defaults.
func Load(path string) (AddressBook, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading address book: %w", err)
	}
	return Parse(data)
}
