package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

type mockCollection struct {
	public   bool
	fee      *big.Int
	feeToken common.Address
	owner    common.Address
	minters  map[common.Address]bool
	next     int64
	owners   map[int64]common.Address
	hashes   map[[32]byte]bool
}

type mockIP struct {
	tokenContract common.Address
	tokenID       *big.Int
	state         [32]byte
	metadata      contracts.IPMetadata
}

type mockAttachment struct {
	template common.Address
	termsID  int64
	config   contracts.LicensingConfig
}

type limitKey struct {
	ip      common.Address
	termsID int64
}

// mockState is the whole simulated world. Every transaction runs against a clone
// which replaces the original only when the transaction succeeds.
type mockState struct {
	native      map[common.Address]*big.Int
	balances    map[common.Address]map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]map[common.Address]*big.Int
	collections map[common.Address]*mockCollection
	ips         map[common.Address]*mockIP
	terms       []contracts.PILTerms
	termsByKey  map[common.Hash]int64
	attached    map[common.Address][]mockAttachment
	parents     map[common.Address][]common.Address
	vaults      map[common.Address]common.Address
	vaultCount  uint64
	limits      map[limitKey]*big.Int
	policies    map[common.Address]bool
	tokens      map[common.Address]bool
}

func newMockState() *mockState {
	return &mockState{
		native:      make(map[common.Address]*big.Int),
		balances:    make(map[common.Address]map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
		collections: make(map[common.Address]*mockCollection),
		ips:         make(map[common.Address]*mockIP),
		termsByKey:  make(map[common.Hash]int64),
		attached:    make(map[common.Address][]mockAttachment),
		parents:     make(map[common.Address][]common.Address),
		vaults:      make(map[common.Address]common.Address),
		limits:      make(map[limitKey]*big.Int),
		policies:    make(map[common.Address]bool),
		tokens:      make(map[common.Address]bool),
	}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneBalances(in map[common.Address]*big.Int) map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(in))
	for k, v := range in {
		out[k] = cloneBig(v)
	}
	return out
}

func (s *mockState) clone() *mockState {
	c := newMockState()
	c.native = cloneBalances(s.native)
	for token, m := range s.balances {
		c.balances[token] = cloneBalances(m)
	}
	for token, owners := range s.allowances {
		co := make(map[common.Address]map[common.Address]*big.Int, len(owners))
		for owner, spenders := range owners {
			co[owner] = cloneBalances(spenders)
		}
		c.allowances[token] = co
	}
	for addr, col := range s.collections {
		cc := *col
		cc.fee = cloneBig(col.fee)
		cc.minters = make(map[common.Address]bool, len(col.minters))
		for k, v := range col.minters {
			cc.minters[k] = v
		}
		cc.owners = make(map[int64]common.Address, len(col.owners))
		for k, v := range col.owners {
			cc.owners[k] = v
		}
		cc.hashes = make(map[[32]byte]bool, len(col.hashes))
		for k, v := range col.hashes {
			cc.hashes[k] = v
		}
		c.collections[addr] = &cc
	}
	for addr, ip := range s.ips {
		ci := *ip
		ci.tokenID = cloneBig(ip.tokenID)
		c.ips[addr] = &ci
	}
	c.terms = append([]contracts.PILTerms{}, s.terms...)
	for k, v := range s.termsByKey {
		c.termsByKey[k] = v
	}
	for k, v := range s.attached {
		c.attached[k] = append([]mockAttachment{}, v...)
	}
	for k, v := range s.parents {
		c.parents[k] = append([]common.Address{}, v...)
	}
	for k, v := range s.vaults {
		c.vaults[k] = v
	}
	c.vaultCount = s.vaultCount
	for k, v := range s.limits {
		c.limits[k] = cloneBig(v)
	}
	for k, v := range s.policies {
		c.policies[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	return c
}

func (s *mockState) nativeOf(addr common.Address) *big.Int {
	if v, ok := s.native[addr]; ok {
		return v
	}
	return new(big.Int)
}

func (s *mockState) balanceOf(token, owner common.Address) *big.Int {
	if v, ok := s.balances[token][owner]; ok {
		return v
	}
	return new(big.Int)
}

func (s *mockState) setBalance(token, owner common.Address, amount *big.Int) {
	if s.balances[token] == nil {
		s.balances[token] = make(map[common.Address]*big.Int)
	}
	s.balances[token][owner] = new(big.Int).Set(amount)
}

func (s *mockState) allowance(token, owner, spender common.Address) *big.Int {
	if v, ok := s.allowances[token][owner][spender]; ok {
		return v
	}
	return new(big.Int)
}

func (s *mockState) approve(token, owner, spender common.Address, amount *big.Int) {
	if s.allowances[token] == nil {
		s.allowances[token] = make(map[common.Address]map[common.Address]*big.Int)
	}
	if s.allowances[token][owner] == nil {
		s.allowances[token][owner] = make(map[common.Address]*big.Int)
	}
	s.allowances[token][owner][spender] = new(big.Int).Set(amount)
}

func (s *mockState) transfer(token, from, to common.Address, amount *big.Int) error {
	bal := s.balanceOf(token, from)
	if bal.Cmp(amount) < 0 {
		return revertWith("ERC20InsufficientBalance", from, new(big.Int).Set(bal), new(big.Int).Set(amount))
	}
	s.setBalance(token, from, new(big.Int).Sub(bal, amount))
	s.setBalance(token, to, new(big.Int).Add(s.balanceOf(token, to), amount))
	return nil
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func (s *mockState) transferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	allowed := s.allowance(token, from, spender)
	if allowed.Cmp(amount) < 0 {
		return revertWith("ERC20InsufficientAllowance", spender, new(big.Int).Set(allowed), new(big.Int).Set(amount))
	}
	if err := s.transfer(token, from, to, amount); err != nil {
		return err
	}
	if allowed.Cmp(maxUint256) != 0 {
		s.approve(token, from, spender, new(big.Int).Sub(allowed, amount))
	}
	return nil
}

// ownerOfIP resolves the owner of the NFT bound to an IP account.
func (s *mockState) ownerOfIP(ipID common.Address) (common.Address, bool) {
	ip, ok := s.ips[ipID]
	if !ok {
		return common.Address{}, false
	}
	col, ok := s.collections[ip.tokenContract]
	if !ok {
		return common.Address{}, false
	}
	owner, ok := col.owners[ip.tokenID.Int64()]
	return owner, ok
}

func (s *mockState) attachment(ipID, template common.Address, termsID int64) (mockAttachment, bool) {
	for _, a := range s.attached[ipID] {
		if a.template == template && a.termsID == termsID {
			return a, true
		}
	}
	return mockAttachment{}, false
}

func (s *mockState) termsByID(id int64) (contracts.PILTerms, bool) {
	if id < 1 || id > int64(len(s.terms)) {
		return contracts.PILTerms{}, false
	}
	return s.terms[id-1], true
}

// royaltyPercent mirrors LicenseRegistry.getRoyaltyPercent: the licensing config
// share when set, the terms share otherwise.
func (s *mockState) royaltyPercent(a mockAttachment) uint32 {
	if a.config.IsSet && a.config.CommercialRevShare != 0 {
		return a.config.CommercialRevShare
	}
	terms, _ := s.termsByID(a.termsID)
	return terms.CommercialRevShare
}

func (s *mockState) mintingFee(a mockAttachment) (common.Address, *big.Int) {
	terms, _ := s.termsByID(a.termsID)
	if a.config.IsSet && a.config.MintingFee != nil && a.config.MintingFee.Sign() > 0 {
		return terms.Currency, new(big.Int).Set(a.config.MintingFee)
	}
	return terms.Currency, orZero(terms.DefaultMintingFee)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// royaltyTokenSupply is the fixed supply of every royalty vault token.
var royaltyTokenSupply = big.NewInt(interfaces.MaxPercent)
