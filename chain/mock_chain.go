package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// MockRoyaltyPolicy is a royalty policy address whitelisted by every MockChain.
var MockRoyaltyPolicy = common.HexToAddress("0xBe54FB168b3c982b7AaE60dB6CF75Bd8447b390E")

// mockDeployer derives addresses of collections created by the mock.
var mockDeployer = common.HexToAddress("0x000000000000000000000000000000000000De91")

type callKey struct {
	to       common.Address
	selector [4]byte
}

// MockChain provides an in-memory implementation of interfaces.ChainBackend that
// executes the protocol contracts at the ABI level: calldata is decoded with the
// same ABIs the engine encodes with, state changes are applied atomically per
// transaction and receipts carry the logs the deployed contracts emit.
type MockChain struct {
	mutex     sync.RWMutex
	chainID   *big.Int
	sender    common.Address
	addresses *chainconfig.ContractSet
	state     *mockState
	now       func() time.Time

	block    uint64
	txCount  uint64
	receipts map[common.Hash]*types.Receipt
	sent     []interfaces.Call

	reverts      map[callKey]string
	failOnSend   map[[4]byte]bool
	holdReceipts bool
}

// NewMockChain creates a mock chain using the addresses of cs, transacting as sender.
func NewMockChain(cs *chainconfig.ContractSet, sender common.Address) *MockChain {
	m := &MockChain{
		chainID:    new(big.Int).Set(cs.ChainID),
		sender:     sender,
		addresses:  cs.Clone(),
		state:      newMockState(),
		now:        time.Now,
		receipts:   make(map[common.Hash]*types.Receipt),
		reverts:    make(map[callKey]string),
		failOnSend: make(map[[4]byte]bool),
	}
	m.state.policies[MockRoyaltyPolicy] = true
	m.state.tokens[m.addr(contracts.WrappedIP)] = true
	return m
}

func (m *MockChain) addr(name contracts.Name) common.Address {
	return m.addresses.Address(name)
}

// SetClock overrides the block timestamp source.
func (m *MockChain) SetClock(now func() time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.now = now
}

// SetNativeBalance sets the native token balance of an account.
func (m *MockChain) SetNativeBalance(account common.Address, amount *big.Int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.state.native[account] = new(big.Int).Set(amount)
}

// MintERC20 credits amount of token to account.
func (m *MockChain) MintERC20(token, account common.Address, amount *big.Int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.state.setBalance(token, account, new(big.Int).Add(m.state.balanceOf(token, account), amount))
}

// WhitelistRoyaltyToken marks token as an accepted license currency.
func (m *MockChain) WhitelistRoyaltyToken(token common.Address) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.state.tokens[token] = true
}

// CreateSPGCollection deploys an SPG NFT collection and returns its address.
// Private collections only let owner and added minters mint.
func (m *MockChain) CreateSPGCollection(public bool, fee *big.Int, feeToken, owner common.Address) common.Address {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	addr := crypto.CreateAddress(mockDeployer, uint64(len(m.state.collections)))
	m.state.collections[addr] = &mockCollection{
		public:   public,
		fee:      orZero(fee),
		feeToken: feeToken,
		owner:    owner,
		minters:  map[common.Address]bool{owner: true},
		next:     1,
		owners:   make(map[int64]common.Address),
		hashes:   make(map[[32]byte]bool),
	}
	return addr
}

// AddMinter grants minter on a private collection.
func (m *MockChain) AddMinter(collection, minter common.Address) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.state.collections[collection].minters[minter] = true
}

// MintNFT mints the next token of collection to owner, outside any workflow.
func (m *MockChain) MintNFT(collection, owner common.Address) *big.Int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	col := m.state.collections[collection]
	id := col.next
	col.next++
	col.owners[id] = owner
	return big.NewInt(id)
}

// RegisterIPAsset registers an already minted token and returns its ip id.
func (m *MockChain) RegisterIPAsset(collection common.Address, tokenID *big.Int) common.Address {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ipID := m.ipIDFor(collection, tokenID)
	m.state.ips[ipID] = &mockIP{tokenContract: collection, tokenID: new(big.Int).Set(tokenID)}
	return ipID
}

// RegisterTerms registers license terms and returns their id.
func (m *MockChain) RegisterTerms(terms contracts.PILTerms) *big.Int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return big.NewInt(m.state.registerTerms(terms))
}

// AttachTerms attaches registered terms to an IP asset with an optional config.
func (m *MockChain) AttachTerms(ipID common.Address, termsID *big.Int, config *contracts.LicensingConfig) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	a := mockAttachment{template: m.addr(contracts.PILicenseTemplate), termsID: termsID.Int64()}
	if config != nil {
		a.config = *config
	}
	m.state.attached[ipID] = append(m.state.attached[ipID], a)
}

// RevertCalls makes every call to the selector on to revert with reason, in
// simulation and execution alike.
func (m *MockChain) RevertCalls(to common.Address, selector [4]byte, reason string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.reverts[callKey{to: to, selector: selector}] = reason
}

// FailOnSend makes transactions whose outer selector matches get mined with a
// failed status while their simulation still succeeds.
func (m *MockChain) FailOnSend(selector [4]byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failOnSend[selector] = true
}

// HoldReceipts keeps submitted transactions pending so confirmation waits time out.
func (m *MockChain) HoldReceipts(hold bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.holdReceipts = hold
}

// Sent returns every submitted transaction in order.
func (m *MockChain) Sent() []interfaces.Call {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]interfaces.Call{}, m.sent...)
}

// ERC20Balance returns the token balance of account.
func (m *MockChain) ERC20Balance(token, account common.Address) *big.Int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return new(big.Int).Set(m.state.balanceOf(token, account))
}

// Allowance returns the token allowance granted by owner to spender.
func (m *MockChain) Allowance(token, owner, spender common.Address) *big.Int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return new(big.Int).Set(m.state.allowance(token, owner, spender))
}

// IPState returns the signature state of an IP account.
func (m *MockChain) IPState(ipID common.Address) [32]byte {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if ip, ok := m.state.ips[ipID]; ok {
		return ip.state
	}
	return [32]byte{}
}

// IsRegistered reports whether ipID is a registered IP asset.
func (m *MockChain) IsRegistered(ipID common.Address) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.state.ips[ipID]
	return ok
}

// Metadata returns the metadata recorded for an IP asset.
func (m *MockChain) Metadata(ipID common.Address) contracts.IPMetadata {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if ip, ok := m.state.ips[ipID]; ok {
		return ip.metadata
	}
	return contracts.IPMetadata{}
}

// AttachedTerms returns the license terms ids attached to ipID.
func (m *MockChain) AttachedTerms(ipID common.Address) []*big.Int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var out []*big.Int
	for _, a := range m.state.attached[ipID] {
		out = append(out, big.NewInt(a.termsID))
	}
	return out
}

// Parents returns the parents of a derivative IP.
func (m *MockChain) Parents(ipID common.Address) []common.Address {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]common.Address{}, m.state.parents[ipID]...)
}

// Vault returns the royalty vault of ipID, zero if none was deployed.
func (m *MockChain) Vault(ipID common.Address) common.Address {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.state.vaults[ipID]
}

// LicenseTokenLimit returns the total license token limit set through the hook.
func (m *MockChain) LicenseTokenLimit(ipID common.Address, termsID *big.Int) *big.Int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return cloneBig(m.state.limits[limitKey{ip: ipID, termsID: termsID.Int64()}])
}

// TokenOwner returns the owner of a token of collection.
func (m *MockChain) TokenOwner(collection common.Address, tokenID *big.Int) common.Address {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if col, ok := m.state.collections[collection]; ok {
		return col.owners[tokenID.Int64()]
	}
	return common.Address{}
}

// IPIDFor computes the deterministic ip id of a token on this chain.
func (m *MockChain) IPIDFor(tokenContract common.Address, tokenID *big.Int) common.Address {
	return m.ipIDFor(tokenContract, tokenID)
}

func (m *MockChain) ipIDFor(tokenContract common.Address, tokenID *big.Int) common.Address {
	uint256Type, _ := abi.NewType("uint256", "", nil)
	addressType, _ := abi.NewType("address", "", nil)
	encoded, _ := abi.Arguments{{Type: uint256Type}, {Type: addressType}, {Type: uint256Type}}.Pack(m.chainID, tokenContract, tokenID)
	return common.BytesToAddress(crypto.Keccak256(encoded)[12:])
}

// ChainBackend implementation.

func (m *MockChain) ChainID() *big.Int {
	return new(big.Int).Set(m.chainID)
}

func (m *MockChain) Sender() common.Address {
	return m.sender
}

func (m *MockChain) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return new(big.Int).Set(m.state.nativeOf(account)), nil
}

func (m *MockChain) Simulate(ctx context.Context, call interfaces.Call) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	x := m.newExec(m.state.clone())
	out, err := x.topLevel(m.sender, call)
	if err != nil {
		return nil, toSimulationError(call.To, err)
	}
	return out, nil
}

func (m *MockChain) SendTransaction(ctx context.Context, call interfaces.Call) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sent = append(m.sent, call)
	m.txCount++
	m.block++
	txHash := crypto.Keccak256Hash(m.sender.Bytes(), new(big.Int).SetUint64(m.txCount).Bytes(), call.To.Bytes(), call.Data)

	receipt := &types.Receipt{
		Type:        types.DynamicFeeTxType,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(m.block),
		GasUsed:     21000,
		Logs:        []*types.Log{},
	}

	x := m.newExec(m.state.clone())
	_, err := x.topLevel(m.sender, call)
	var selector [4]byte
	if len(call.Data) >= 4 {
		copy(selector[:], call.Data[:4])
	}
	if err == nil && !m.failOnSend[selector] {
		m.state = x.st
		receipt.Status = types.ReceiptStatusSuccessful
		for i, l := range x.logs {
			l.TxHash = txHash
			l.BlockNumber = m.block
			l.Index = uint(i)
			receipt.Logs = append(receipt.Logs, l)
		}
	} else {
		receipt.Status = types.ReceiptStatusFailed
	}
	m.receipts[txHash] = receipt
	return txHash, nil
}

func (m *MockChain) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	m.mutex.RLock()
	hold := m.holdReceipts
	receipt, ok := m.receipts[txHash]
	m.mutex.RUnlock()

	if hold {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		<-waitCtx.Done()
		return nil, &interfaces.IndeterminateError{TxHash: txHash, Err: waitCtx.Err()}
	}
	if !ok {
		return nil, fmt.Errorf("waiting for %s: %w", txHash.Hex(), ethereum.NotFound)
	}
	return receipt, nil
}

// revertError carries raw revert data through the simulated call stack.
type revertError struct {
	data []byte
}

func (e *revertError) Error() string {
	return contracts.DecodeRevert(e.data)
}

func revertWith(name string, args ...interface{}) error {
	return &revertError{data: contracts.RevertData(name, args...)}
}

func revertReason(format string, args ...interface{}) error {
	return &revertError{data: contracts.RevertReasonData(fmt.Sprintf(format, args...))}
}

func toSimulationError(target common.Address, err error) error {
	var revert *revertError
	if errors.As(err, &revert) {
		return &interfaces.SimulationRevertError{
			Target: target,
			Index:  -1,
			Reason: contracts.DecodeRevert(revert.data),
			Data:   revert.data,
		}
	}
	return err
}
