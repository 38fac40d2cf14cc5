package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Permission lists the workflow contracts request from an IP account, in order.
// The signature package builds the same lists.
func (x *mockExec) metadataGrant() (common.Address, [4]byte) {
	return x.addr(contracts.CoreMetadataModule), contracts.Selector(contracts.CoreMetadataModule, "setAll")
}

func (x *mockExec) workflowPermissions(self, ipID common.Address, withTerms, withDerivative bool) []contracts.Permission {
	allow := uint8(interfaces.PermissionAllow)
	module, setAll := x.metadataGrant()
	perms := []contracts.Permission{{IpAccount: ipID, Signer: self, To: module, Func: setAll, Permission: allow}}
	licensing := x.addr(contracts.LicensingModule)
	if withTerms {
		perms = append(perms,
			contracts.Permission{IpAccount: ipID, Signer: self, To: licensing, Func: contracts.Selector(contracts.LicensingModule, "attachLicenseTerms"), Permission: allow},
			contracts.Permission{IpAccount: ipID, Signer: self, To: licensing, Func: contracts.Selector(contracts.LicensingModule, "setLicensingConfig"), Permission: allow},
		)
	}
	if withDerivative {
		perms = append(perms,
			contracts.Permission{IpAccount: ipID, Signer: self, To: licensing, Func: contracts.Selector(contracts.LicensingModule, "registerDerivative"), Permission: allow},
		)
	}
	return perms
}

// grantWithSig has ipID's account set the transient permissions of a workflow,
// authorized by sig.
func (x *mockExec) grantWithSig(self, ipID common.Address, sig contracts.SignatureData, withTerms, withDerivative bool) error {
	data, err := contracts.Pack(contracts.AccessController, "setTransientBatchPermissions", x.workflowPermissions(self, ipID, withTerms, withDerivative))
	if err != nil {
		return revertReason("%v", err)
	}
	_, err = x.executeWithSig(ipID, sig, x.addr(contracts.AccessController), data)
	return err
}

func (x *mockExec) workflow(name contracts.Name, from, self common.Address, data []byte) ([]byte, error) {
	method, args, err := unpack(name, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "multicall":
		calls := args[0].([][]byte)
		results := make([][]byte, len(calls))
		for i, c := range calls {
			out, err := x.call(from, self, nil, c)
			if err != nil {
				return nil, err
			}
			results[i] = nonNil(out)
		}
		return ret(method, results)

	case "mintAndRegisterIp":
		meta := contracts.Convert[contracts.IPMetadata](args[2])
		ipID, tokenID, err := x.mintAndRegister(self, from, args[0].(common.Address), args[1].(common.Address), meta, args[3].(bool))
		if err != nil {
			return nil, err
		}
		return ret(method, ipID, tokenID)

	case "registerIp":
		meta := contracts.Convert[contracts.IPMetadata](args[2])
		sig := contracts.Convert[contracts.SignatureData](args[3])
		ipID, err := x.register(args[0].(common.Address), args[1].(*big.Int), meta)
		if err != nil {
			return nil, err
		}
		if sig.Signer != (common.Address{}) {
			if err := x.grantWithSig(self, ipID, sig, false, false); err != nil {
				return nil, err
			}
		}
		if err := x.setMetadata(self, ipID, meta, true); err != nil {
			return nil, err
		}
		return ret(method, ipID)

	case "mintAndRegisterIpAndAttachPILTerms":
		meta := contracts.Convert[contracts.IPMetadata](args[2])
		terms := contracts.Convert[[]contracts.LicenseTermsData](args[3])
		ipID, tokenID, err := x.mintAndRegister(self, from, args[0].(common.Address), args[1].(common.Address), meta, args[4].(bool))
		if err != nil {
			return nil, err
		}
		ids, err := x.attachTerms(self, ipID, terms, false)
		if err != nil {
			return nil, err
		}
		return ret(method, ipID, tokenID, ids)

	case "registerIpAndAttachPILTerms", "registerIpAndAttachPILTermsAndDeployRoyaltyVault":
		meta := contracts.Convert[contracts.IPMetadata](args[2])
		terms := contracts.Convert[[]contracts.LicenseTermsData](args[3])
		sig := contracts.Convert[contracts.SignatureData](args[4])
		ipID, err := x.register(args[0].(common.Address), args[1].(*big.Int), meta)
		if err != nil {
			return nil, err
		}
		if err := x.grantWithSig(self, ipID, sig, true, false); err != nil {
			return nil, err
		}
		if err := x.setMetadata(self, ipID, meta, true); err != nil {
			return nil, err
		}
		ids, err := x.attachTerms(self, ipID, terms, true)
		if err != nil {
			return nil, err
		}
		if method.Name == "registerIpAndAttachPILTerms" {
			return ret(method, ipID, ids)
		}
		return ret(method, ipID, ids, x.deployVault(ipID))

	case "mintAndRegisterIpAndMakeDerivative":
		deriv := contracts.Convert[contracts.MakeDerivative](args[1])
		meta := contracts.Convert[contracts.IPMetadata](args[2])
		ipID, tokenID, err := x.mintAndRegister(self, from, args[0].(common.Address), args[3].(common.Address), meta, args[4].(bool))
		if err != nil {
			return nil, err
		}
		if err := x.makeDerivative(self, from, ipID, deriv, false); err != nil {
			return nil, err
		}
		return ret(method, ipID, tokenID)

	case "registerIpAndMakeDerivative":
		deriv := contracts.Convert[contracts.MakeDerivative](args[2])
		meta := contracts.Convert[contracts.IPMetadata](args[3])
		sig := contracts.Convert[contracts.SignatureData](args[4])
		ipID, err := x.registerDerivativeWithSig(self, from, args[0].(common.Address), args[1].(*big.Int), meta, deriv, sig)
		if err != nil {
			return nil, err
		}
		return ret(method, ipID)

	case "registerIpAndMakeDerivativeAndDeployRoyaltyVault":
		meta := contracts.Convert[contracts.IPMetadata](args[2])
		deriv := contracts.Convert[contracts.MakeDerivative](args[3])
		sig := contracts.Convert[contracts.SignatureData](args[4])
		ipID, err := x.registerDerivativeWithSig(self, from, args[0].(common.Address), args[1].(*big.Int), meta, deriv, sig)
		if err != nil {
			return nil, err
		}
		return ret(method, ipID, x.deployVault(ipID))

	case "mintAndRegisterIpAndAttachPILTermsAndDistributeRoyaltyTokens":
		meta := contracts.Convert[contracts.IPMetadata](args[2])
		terms := contracts.Convert[[]contracts.LicenseTermsData](args[3])
		shares := contracts.Convert[[]contracts.RoyaltyShare](args[4])
		ipID, tokenID, err := x.mintAndRegister(self, from, args[0].(common.Address), args[1].(common.Address), meta, args[5].(bool))
		if err != nil {
			return nil, err
		}
		ids, err := x.attachTerms(self, ipID, terms, false)
		if err != nil {
			return nil, err
		}
		if err := x.distributeFromIP(ipID, x.deployVault(ipID), shares); err != nil {
			return nil, err
		}
		return ret(method, ipID, tokenID, ids)

	case "mintAndRegisterIpAndMakeDerivativeAndDistributeRoyaltyTokens":
		meta := contracts.Convert[contracts.IPMetadata](args[2])
		deriv := contracts.Convert[contracts.MakeDerivative](args[3])
		shares := contracts.Convert[[]contracts.RoyaltyShare](args[4])
		ipID, tokenID, err := x.mintAndRegister(self, from, args[0].(common.Address), args[1].(common.Address), meta, args[5].(bool))
		if err != nil {
			return nil, err
		}
		if err := x.makeDerivative(self, from, ipID, deriv, false); err != nil {
			return nil, err
		}
		if err := x.distributeFromIP(ipID, x.deployVault(ipID), shares); err != nil {
			return nil, err
		}
		return ret(method, ipID, tokenID)

	case "distributeRoyaltyTokens":
		ipID := args[0].(common.Address)
		vault := args[1].(common.Address)
		shares := contracts.Convert[[]contracts.RoyaltyShare](args[2])
		sig := contracts.Convert[contracts.SignatureData](args[3])
		if x.st.vaults[ipID] != vault {
			return nil, revertReason("Workflow__InvalidRoyaltyVault")
		}
		total := new(big.Int)
		for _, s := range shares {
			total.Add(total, big.NewInt(int64(s.Percentage)))
		}
		approve, err := contracts.Pack(contracts.IPRoyaltyVault, "approve", self, total)
		if err != nil {
			return nil, revertReason("%v", err)
		}
		if _, err := x.executeWithSig(ipID, sig, vault, approve); err != nil {
			return nil, err
		}
		for _, s := range shares {
			if err := x.st.transferFrom(vault, self, ipID, s.Recipient, big.NewInt(int64(s.Percentage))); err != nil {
				return nil, err
			}
		}
		return ret(method)
	}

	return nil, revertReason("%s: unsupported %s", name, method.Name)
}

func (x *mockExec) registerDerivativeWithSig(self, payer, nft common.Address, tokenID *big.Int, meta contracts.IPMetadata, deriv contracts.MakeDerivative, sig contracts.SignatureData) (common.Address, error) {
	ipID, err := x.register(nft, tokenID, meta)
	if err != nil {
		return common.Address{}, err
	}
	if err := x.grantWithSig(self, ipID, sig, false, true); err != nil {
		return common.Address{}, err
	}
	if err := x.setMetadata(self, ipID, meta, true); err != nil {
		return common.Address{}, err
	}
	if err := x.makeDerivative(self, payer, ipID, deriv, true); err != nil {
		return common.Address{}, err
	}
	return ipID, nil
}

func (x *mockExec) mintAndRegister(self, payer, spg, recipient common.Address, meta contracts.IPMetadata, allowDuplicates bool) (common.Address, *big.Int, error) {
	col, ok := x.st.collections[spg]
	if !ok {
		return common.Address{}, nil, revertReason("Workflow__NotSPGNFT")
	}
	if !col.public && !col.minters[payer] {
		return common.Address{}, nil, revertWith("Workflow__CallerNotAuthorizedToMint")
	}
	if recipient == (common.Address{}) {
		return common.Address{}, nil, revertReason("ERC721InvalidReceiver")
	}
	if col.fee.Sign() > 0 {
		if err := x.st.transferFrom(col.feeToken, self, payer, col.owner, col.fee); err != nil {
			return common.Address{}, nil, err
		}
	}
	id := col.next
	if meta.NftMetadataHash != ([32]byte{}) {
		if !allowDuplicates && col.hashes[meta.NftMetadataHash] {
			return common.Address{}, nil, revertWith("SPGNFT__DuplicatedNFTMetadataHash", spg, big.NewInt(id), meta.NftMetadataHash)
		}
		col.hashes[meta.NftMetadataHash] = true
	}
	col.next++
	col.owners[id] = recipient

	tokenID := big.NewInt(id)
	ipID, err := x.register(spg, tokenID, meta)
	if err != nil {
		return common.Address{}, nil, err
	}
	if err := x.setMetadata(self, ipID, meta, false); err != nil {
		return common.Address{}, nil, err
	}
	return ipID, tokenID, nil
}

func (x *mockExec) register(tokenContract common.Address, tokenID *big.Int, meta contracts.IPMetadata) (common.Address, error) {
	col, ok := x.st.collections[tokenContract]
	if !ok {
		return common.Address{}, revertReason("ERC721NonexistentToken")
	}
	if _, ok := col.owners[tokenID.Int64()]; !ok {
		return common.Address{}, revertReason("ERC721NonexistentToken")
	}
	ipID := x.m.ipIDFor(tokenContract, tokenID)
	if _, ok := x.st.ips[ipID]; ok {
		return common.Address{}, revertWith("IPAssetRegistry__AlreadyRegistered")
	}
	x.st.ips[ipID] = &mockIP{tokenContract: tokenContract, tokenID: new(big.Int).Set(tokenID)}

	name := fmt.Sprintf("%s: SPG #%s", x.m.chainID, tokenID)
	x.emit(x.addr(contracts.IPAssetRegistry), contracts.IPAssetRegistry, "IPRegistered",
		[]common.Hash{
			common.BigToHash(x.m.chainID),
			common.BytesToHash(tokenContract.Bytes()),
			common.BigToHash(tokenID),
		},
		ipID, name, meta.NftMetadataURI, big.NewInt(x.now.Unix()))
	return ipID, nil
}

// setMetadata records metadata. Calls on behalf of an IP the workflow does not
// own need the setAll permission.
func (x *mockExec) setMetadata(self, ipID common.Address, meta contracts.IPMetadata, needsPermission bool) error {
	if meta.IsEmpty() {
		return nil
	}
	if needsPermission {
		module, setAll := x.metadataGrant()
		if err := x.requirePermission(ipID, self, module, setAll); err != nil {
			return err
		}
	}
	x.st.ips[ipID].metadata = meta
	return nil
}

func (x *mockExec) attachTerms(self, ipID common.Address, entries []contracts.LicenseTermsData, needsPermission bool) ([]*big.Int, error) {
	licensing := x.addr(contracts.LicensingModule)
	template := x.addr(contracts.PILicenseTemplate)
	ids := make([]*big.Int, 0, len(entries))
	for _, e := range entries {
		t := e.Terms
		if t.RoyaltyPolicy != (common.Address{}) && !x.st.policies[t.RoyaltyPolicy] {
			return nil, revertReason("PILicenseTemplate__RoyaltyPolicyNotWhitelisted")
		}
		if t.Currency != (common.Address{}) && !x.st.tokens[t.Currency] {
			return nil, revertReason("PILicenseTemplate__CurrencyTokenNotWhitelisted")
		}
		id := x.st.registerTerms(t)

		if needsPermission {
			if err := x.requirePermission(ipID, self, licensing, contracts.Selector(contracts.LicensingModule, "attachLicenseTerms")); err != nil {
				return nil, err
			}
		}
		if _, ok := x.st.attachment(ipID, template, id); !ok {
			x.st.attached[ipID] = append(x.st.attached[ipID], mockAttachment{template: template, termsID: id})
			x.emit(licensing, contracts.LicensingModule, "LicenseTermsAttached",
				[]common.Hash{common.BytesToHash(self.Bytes()), common.BytesToHash(ipID.Bytes())},
				template, big.NewInt(id))
		}
		if e.LicensingConfig.IsSet {
			if needsPermission {
				if err := x.requirePermission(ipID, self, licensing, contracts.Selector(contracts.LicensingModule, "setLicensingConfig")); err != nil {
					return nil, err
				}
			}
			for i, a := range x.st.attached[ipID] {
				if a.template == template && a.termsID == id {
					x.st.attached[ipID][i].config = e.LicensingConfig
				}
			}
		}
		ids = append(ids, big.NewInt(id))
	}
	return ids, nil
}

func (x *mockExec) makeDerivative(self, payer, child common.Address, d contracts.MakeDerivative, needsPermission bool) error {
	if len(d.ParentIpIds) == 0 || len(d.ParentIpIds) != len(d.LicenseTermsIds) {
		return revertReason("LicensingModule__LicenseTermsLengthMismatch")
	}
	if needsPermission {
		if err := x.requirePermission(child, self, x.addr(contracts.LicensingModule), contracts.Selector(contracts.LicensingModule, "registerDerivative")); err != nil {
			return err
		}
	}

	var royalty uint64
	fees := make(map[common.Address]*big.Int)
	var inherited []mockAttachment
	for i, parent := range d.ParentIpIds {
		termsID := d.LicenseTermsIds[i]
		if _, ok := x.st.ips[parent]; !ok {
			return revertReason("LicensingModule__ParentIpNotRegistered")
		}
		a, ok := x.st.attachment(parent, d.LicenseTemplate, termsID.Int64())
		if !ok {
			return revertWith("LicenseRegistry__ParentIpHasNoLicenseTerms", parent, termsID)
		}
		royalty += uint64(x.st.royaltyPercent(a))
		currency, fee := x.st.mintingFee(a)
		if d.MaxMintingFee != nil && d.MaxMintingFee.Sign() > 0 && fee.Cmp(d.MaxMintingFee) > 0 {
			return revertReason("LicensingModule__LicenseFeeExceedsMaxMintingFee")
		}
		if fees[currency] == nil {
			fees[currency] = new(big.Int)
		}
		fees[currency].Add(fees[currency], fee)
		inherited = append(inherited, mockAttachment{template: a.template, termsID: a.termsID})
	}
	if d.MaxRevenueShare != 0 && royalty > uint64(d.MaxRevenueShare) {
		return revertWith("RoyaltyModule__AboveMaxPercent")
	}
	for currency, fee := range fees {
		if fee.Sign() == 0 {
			continue
		}
		if err := x.st.transferFrom(currency, self, payer, x.addr(contracts.RoyaltyModule), fee); err != nil {
			return err
		}
	}
	for _, a := range inherited {
		if _, ok := x.st.attachment(child, a.template, a.termsID); !ok {
			x.st.attached[child] = append(x.st.attached[child], a)
		}
	}
	x.st.parents[child] = append([]common.Address{}, d.ParentIpIds...)
	return nil
}

// deployVault returns the royalty vault of ipID, deploying it with the whole
// royalty token supply credited to the IP account.
func (x *mockExec) deployVault(ipID common.Address) common.Address {
	if v, ok := x.st.vaults[ipID]; ok {
		return v
	}
	royaltyModule := x.addr(contracts.RoyaltyModule)
	vault := crypto.CreateAddress(royaltyModule, x.st.vaultCount)
	x.st.vaultCount++
	x.st.vaults[ipID] = vault
	x.st.setBalance(vault, ipID, royaltyTokenSupply)
	x.emit(royaltyModule, contracts.RoyaltyModule, "IpRoyaltyVaultDeployed", nil, ipID, vault)
	return vault
}

func (x *mockExec) distributeFromIP(ipID, vault common.Address, shares []contracts.RoyaltyShare) error {
	for _, s := range shares {
		if err := x.st.transfer(vault, ipID, s.Recipient, big.NewInt(int64(s.Percentage))); err != nil {
			return err
		}
	}
	return nil
}
