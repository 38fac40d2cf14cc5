package chain

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

type permKey struct {
	ip       common.Address
	signer   common.Address
	to       common.Address
	selector [4]byte
}

// mockExec is the context of one simulated transaction.
type mockExec struct {
	m     *MockChain
	st    *mockState
	logs  []*types.Log
	now   time.Time
	perms map[permKey]bool
}

func (m *MockChain) newExec(st *mockState) *mockExec {
	return &mockExec{m: m, st: st, now: m.now(), perms: make(map[permKey]bool)}
}

func (x *mockExec) addr(name contracts.Name) common.Address {
	return x.m.addr(name)
}

func (x *mockExec) topLevel(from common.Address, call interfaces.Call) ([]byte, error) {
	if call.Value != nil && call.Value.Sign() > 0 {
		bal := x.st.nativeOf(from)
		if bal.Cmp(call.Value) < 0 {
			return nil, revertReason("insufficient funds for transfer")
		}
		x.st.native[from] = new(big.Int).Sub(bal, call.Value)
		x.st.native[call.To] = new(big.Int).Add(x.st.nativeOf(call.To), call.Value)
	}
	return x.call(from, call.To, call.Value, call.Data)
}

// call executes data on to with from as msg.sender.
func (x *mockExec) call(from, to common.Address, value *big.Int, data []byte) ([]byte, error) {
	if len(data) >= 4 {
		var selector [4]byte
		copy(selector[:], data[:4])
		if reason, ok := x.m.reverts[callKey{to: to, selector: selector}]; ok {
			return nil, revertReason("%s", reason)
		}
	}

	switch to {
	case x.addr(contracts.IPAssetRegistry):
		return x.ipAssetRegistry(data)
	case x.addr(contracts.LicenseRegistry):
		return x.licenseRegistry(data)
	case x.addr(contracts.PILicenseTemplate):
		return x.licenseTemplate(data)
	case x.addr(contracts.LicensingModule):
		return x.licensingModule(data)
	case x.addr(contracts.RoyaltyModule):
		return x.royaltyModule(data)
	case x.addr(contracts.AccessController):
		return x.accessController(from, data)
	case x.addr(contracts.Multicall3):
		return x.multicall3(data)
	case x.addr(contracts.TotalLicenseTokenLimitHook):
		return x.licenseLimitHook(from, data)
	case x.addr(contracts.WrappedIP):
		return x.erc20(contracts.WrappedIP, from, to, value, data)
	case x.addr(contracts.RegistrationWorkflows):
		return x.workflow(contracts.RegistrationWorkflows, from, to, data)
	case x.addr(contracts.LicenseAttachmentWorkflows):
		return x.workflow(contracts.LicenseAttachmentWorkflows, from, to, data)
	case x.addr(contracts.DerivativeWorkflows):
		return x.workflow(contracts.DerivativeWorkflows, from, to, data)
	case x.addr(contracts.RoyaltyTokenDistributionWorkflows):
		return x.workflow(contracts.RoyaltyTokenDistributionWorkflows, from, to, data)
	}

	if _, ok := x.st.collections[to]; ok {
		return x.spgNFT(to, data)
	}
	if _, ok := x.st.ips[to]; ok {
		return x.ipAccount(from, to, data)
	}
	if x.st.tokens[to] || x.isVault(to) {
		return x.erc20(contracts.ERC20, from, to, value, data)
	}
	// Accounts without code accept anything and return nothing.
	return nil, nil
}

func (x *mockExec) isVault(addr common.Address) bool {
	for _, v := range x.st.vaults {
		if v == addr {
			return true
		}
	}
	return false
}

func unpack(name contracts.Name, data []byte) (*abi.Method, []interface{}, error) {
	method, args, err := contracts.UnpackInputs(name, data)
	if err != nil {
		return nil, nil, revertReason("%s: unsupported call", name)
	}
	return method, args, nil
}

func ret(method *abi.Method, values ...interface{}) ([]byte, error) {
	out, err := method.Outputs.Pack(values...)
	if err != nil {
		return nil, revertReason("%s: output encoding: %v", method.Name, err)
	}
	return out, nil
}

func (x *mockExec) emit(address common.Address, contract contracts.Name, event string, indexed []common.Hash, data ...interface{}) {
	ev := contracts.ABI(contract).Events[event]
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(err)
	}
	x.logs = append(x.logs, &types.Log{
		Address: address,
		Topics:  append([]common.Hash{ev.ID}, indexed...),
		Data:    packed,
	})
}

func (x *mockExec) ipAssetRegistry(data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.IPAssetRegistry, data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "ipId":
		return ret(method, x.m.ipIDFor(args[1].(common.Address), args[2].(*big.Int)))
	case "isRegistered":
		_, ok := x.st.ips[args[0].(common.Address)]
		return ret(method, ok)
	}
	return nil, revertReason("IPAssetRegistry: unsupported %s", method.Name)
}

func (x *mockExec) licenseRegistry(data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.LicenseRegistry, data)
	if err != nil {
		return nil, err
	}
	a, ok := x.st.attachment(args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int).Int64())
	switch method.Name {
	case "hasIpAttachedLicenseTerms":
		return ret(method, ok)
	case "getRoyaltyPercent":
		if !ok {
			return ret(method, uint32(0))
		}
		return ret(method, x.st.royaltyPercent(a))
	}
	return nil, revertReason("LicenseRegistry: unsupported %s", method.Name)
}

func (x *mockExec) licenseTemplate(data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.PILicenseTemplate, data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "exists":
		_, ok := x.st.termsByID(args[0].(*big.Int).Int64())
		return ret(method, ok)
	case "getLicenseTerms":
		terms, ok := x.st.termsByID(args[0].(*big.Int).Int64())
		if !ok {
			terms = contracts.NewPILTerms(&interfaces.PILTerms{})
		}
		return ret(method, terms)
	case "getLicenseTermsId":
		terms := contracts.Convert[contracts.PILTerms](args[0])
		return ret(method, big.NewInt(x.st.termsByKey[termsKey(terms)]))
	}
	return nil, revertReason("PILicenseTemplate: unsupported %s", method.Name)
}

func (x *mockExec) licensingModule(data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.LicensingModule, data)
	if err != nil {
		return nil, err
	}
	if method.Name != "predictMintingLicenseFee" {
		return nil, revertReason("LicensingModule: unsupported %s", method.Name)
	}
	licensor := args[0].(common.Address)
	termsID := args[2].(*big.Int)
	a, ok := x.st.attachment(licensor, args[1].(common.Address), termsID.Int64())
	if !ok {
		return nil, revertWith("LicenseRegistry__ParentIpHasNoLicenseTerms", licensor, termsID)
	}
	currency, fee := x.st.mintingFee(a)
	return ret(method, currency, new(big.Int).Mul(fee, args[3].(*big.Int)))
}

func (x *mockExec) royaltyModule(data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.RoyaltyModule, data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "isWhitelistedRoyaltyPolicy":
		return ret(method, x.st.policies[args[0].(common.Address)])
	case "isWhitelistedRoyaltyToken":
		return ret(method, x.st.tokens[args[0].(common.Address)])
	case "ipRoyaltyVaults":
		return ret(method, x.st.vaults[args[0].(common.Address)])
	}
	return nil, revertReason("RoyaltyModule: unsupported %s", method.Name)
}

// accessController records transient permissions. Only an IP account may set
// permissions for itself.
func (x *mockExec) accessController(from common.Address, data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.AccessController, data)
	if err != nil {
		return nil, err
	}
	var perms []contracts.Permission
	switch method.Name {
	case "setTransientBatchPermissions":
		perms = contracts.Convert[[]contracts.Permission](args[0])
	case "setTransientPermission":
		perms = []contracts.Permission{{
			IpAccount:  args[0].(common.Address),
			Signer:     args[1].(common.Address),
			To:         args[2].(common.Address),
			Func:       args[3].([4]byte),
			Permission: args[4].(uint8),
		}}
	}
	for _, p := range perms {
		if p.IpAccount != from {
			return nil, revertWith("AccessController__PermissionDenied", p.IpAccount, from, p.To, p.Func)
		}
		x.perms[permKey{ip: p.IpAccount, signer: p.Signer, to: p.To, selector: p.Func}] = p.Permission == uint8(interfaces.PermissionAllow)
	}
	return nil, nil
}

func (x *mockExec) requirePermission(ip, signer, to common.Address, selector [4]byte) error {
	if !x.perms[permKey{ip: ip, signer: signer, to: to, selector: selector}] {
		return revertWith("AccessController__PermissionDenied", ip, signer, to, selector)
	}
	return nil
}

func (x *mockExec) multicall3(data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.Multicall3, data)
	if err != nil {
		return nil, err
	}
	calls := contracts.Convert[[]contracts.Call3](args[0])
	results := make([]contracts.Call3Result, len(calls))
	self := x.addr(contracts.Multicall3)
	for i, c := range calls {
		saved, savedLogs := x.st.clone(), len(x.logs)
		out, err := x.call(self, c.Target, nil, c.CallData)
		if err != nil {
			var revert *revertError
			if !errors.As(err, &revert) || !c.AllowFailure {
				return nil, revertReason("Multicall3: call failed")
			}
			x.st, x.logs = saved, x.logs[:savedLogs]
			results[i] = contracts.Call3Result{Success: false, ReturnData: revert.data}
			continue
		}
		if out == nil {
			out = []byte{}
		}
		results[i] = contracts.Call3Result{Success: true, ReturnData: out}
	}
	return ret(method, results)
}

func (x *mockExec) licenseLimitHook(from common.Address, data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.TotalLicenseTokenLimitHook, data)
	if err != nil {
		return nil, err
	}
	licensor := args[0].(common.Address)
	template := args[1].(common.Address)
	termsID := args[2].(*big.Int)
	owner, ok := x.st.ownerOfIP(licensor)
	if !ok || owner != from {
		return nil, revertWith("AccessController__PermissionDenied", licensor, from, x.addr(contracts.TotalLicenseTokenLimitHook), contracts.Selector(contracts.TotalLicenseTokenLimitHook, method.Name))
	}
	if _, ok := x.st.attachment(licensor, template, termsID.Int64()); !ok {
		return nil, revertWith("LicenseRegistry__ParentIpHasNoLicenseTerms", licensor, termsID)
	}
	x.st.limits[limitKey{ip: licensor, termsID: termsID.Int64()}] = new(big.Int).Set(args[3].(*big.Int))
	return nil, nil
}

func (x *mockExec) erc20(name contracts.Name, from, token common.Address, value *big.Int, data []byte) ([]byte, error) {
	method, args, err := unpack(name, data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		return ret(method, x.st.balanceOf(token, args[0].(common.Address)))
	case "allowance":
		return ret(method, x.st.allowance(token, args[0].(common.Address), args[1].(common.Address)))
	case "approve":
		x.st.approve(token, from, args[0].(common.Address), args[1].(*big.Int))
		return ret(method, true)
	case "deposit":
		if token != x.addr(contracts.WrappedIP) {
			return nil, revertReason("deposit not supported")
		}
		if value != nil && value.Sign() > 0 {
			x.st.setBalance(token, from, new(big.Int).Add(x.st.balanceOf(token, from), value))
		}
		return nil, nil
	}
	return nil, revertReason("ERC20: unsupported %s", method.Name)
}

func (x *mockExec) spgNFT(collection common.Address, data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.SPGNFT, data)
	if err != nil {
		return nil, err
	}
	col := x.st.collections[collection]
	switch method.Name {
	case "publicMinting":
		return ret(method, col.public)
	case "mintFee":
		return ret(method, col.fee)
	case "mintFeeToken":
		return ret(method, col.feeToken)
	case "ownerOf":
		owner, ok := col.owners[args[0].(*big.Int).Int64()]
		if !ok {
			return nil, revertReason("ERC721NonexistentToken")
		}
		return ret(method, owner)
	}
	return nil, revertReason("SPGNFT: unsupported %s", method.Name)
}

func (x *mockExec) ipAccount(from, ipID common.Address, data []byte) ([]byte, error) {
	method, args, err := unpack(contracts.IPAccount, data)
	if err != nil {
		return nil, err
	}
	ip := x.st.ips[ipID]
	switch method.Name {
	case "state":
		return ret(method, ip.state)
	case "owner":
		owner, _ := x.st.ownerOfIP(ipID)
		return ret(method, owner)
	case "execute":
		owner, _ := x.st.ownerOfIP(ipID)
		if owner != from {
			return nil, revertWith("IPAccount__InvalidSignature")
		}
		out, err := x.call(ipID, args[0].(common.Address), nil, args[2].([]byte))
		if err != nil {
			return nil, err
		}
		return ret(method, nonNil(out))
	case "executeWithSig":
		sig := contracts.SignatureData{
			Signer:    args[3].(common.Address),
			Deadline:  args[4].(*big.Int),
			Signature: args[5].([]byte),
		}
		out, err := x.executeWithSig(ipID, sig, args[0].(common.Address), args[2].([]byte))
		if err != nil {
			return nil, err
		}
		return ret(method, nonNil(out))
	}
	return nil, revertReason("IPAccount: unsupported %s", method.Name)
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// executeWithSig verifies an Execute signature by the IP owner against the
// current account state, advances the state and performs the call.
func (x *mockExec) executeWithSig(ipID common.Address, sig contracts.SignatureData, to common.Address, data []byte) ([]byte, error) {
	ip, ok := x.st.ips[ipID]
	if !ok {
		return nil, revertReason("IPAccount: not registered")
	}
	if sig.Deadline == nil || sig.Deadline.Cmp(big.NewInt(x.now.Unix())) < 0 {
		return nil, revertWith("IPAccount__ExpiredSignature")
	}
	nonce, err := contracts.ExecuteNonce(ip.state, to, data)
	if err != nil {
		return nil, revertReason("IPAccount: %v", err)
	}
	typed := contracts.ExecuteTypedData(x.m.chainID, ipID, to, data, nonce, sig.Deadline)
	recovered, err := contracts.RecoverTypedDataSigner(typed, sig.Signature)
	if err != nil || recovered != sig.Signer {
		return nil, revertWith("IPAccount__InvalidSignature")
	}
	if owner, _ := x.st.ownerOfIP(ipID); owner != sig.Signer {
		return nil, revertWith("IPAccount__InvalidSignature")
	}
	ip.state = nonce
	return x.call(ipID, to, nil, data)
}

func termsKey(t contracts.PILTerms) common.Hash {
	data, err := contracts.Pack(contracts.PILicenseTemplate, "getLicenseTermsId", t)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(data[4:])
}

// registerTerms returns the id of identical registered terms or registers them.
func (s *mockState) registerTerms(t contracts.PILTerms) int64 {
	key := termsKey(t)
	if id, ok := s.termsByKey[key]; ok {
		return id
	}
	s.terms = append(s.terms, t)
	id := int64(len(s.terms))
	s.termsByKey[key] = id
	return id
}
