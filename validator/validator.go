// Package validator implements the read-only pre-flight checks run on every
// registration request before anything is signed or submitted.
//
// Checks read chain state through a chain.BatchReader so that the reads of one
// check are grouped into a single Multicall3 call. Validators hold no mutable
// state and may be used concurrently.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/calldata"
	"github.com/ruteri/ip-registration-workflows/chain"
	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// Validator checks requests against the state of one chain.
type Validator struct {
	backend interfaces.ChainBackend
	reader  *chain.BatchReader
	addrs   *chainconfig.ContractSet
	log     *slog.Logger
}

func New(backend interfaces.ChainBackend, addrs *chainconfig.ContractSet, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{
		backend: backend,
		reader:  chain.NewBatchReader(backend, addrs.Address(contracts.Multicall3), log),
		addrs:   addrs,
		log:     log,
	}
}

func (v *Validator) read(target contracts.Name, method string, args ...interface{}) chain.Read {
	return chain.Read{Target: v.addrs.Address(target), Contract: target, Method: method, Args: args}
}

// readAll performs reads and fails on the first failed read.
func (v *Validator) readAll(ctx context.Context, reads []chain.Read) ([][]interface{}, error) {
	results, err := v.reader.Read(ctx, reads)
	if err != nil {
		return nil, err
	}
	values := make([][]interface{}, len(results))
	for i, res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("reading %s.%s: %w", reads[i].Contract, reads[i].Method, res.Err)
		}
		values[i] = res.Values
	}
	return values, nil
}

// ValidateRegistrationTarget resolves the ip id of an NFT and checks its
// registration status: it must be unregistered when mustBeUnregistered is set,
// registered otherwise.
func (v *Validator) ValidateRegistrationTarget(ctx context.Context, nftContract common.Address, tokenID *big.Int, mustBeUnregistered bool) (common.Address, error) {
	if nftContract == (common.Address{}) {
		return common.Address{}, &interfaces.ValidationError{Field: "nftContract", Reason: "must not be the zero address"}
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return common.Address{}, &interfaces.ValidationError{Field: "tokenId", Reason: "must be set and non-negative"}
	}

	values, err := v.readAll(ctx, []chain.Read{v.read(contracts.IPAssetRegistry, "ipId", v.backend.ChainID(), nftContract, tokenID)})
	if err != nil {
		return common.Address{}, err
	}
	ipID := values[0][0].(common.Address)

	values, err = v.readAll(ctx, []chain.Read{v.read(contracts.IPAssetRegistry, "isRegistered", ipID)})
	if err != nil {
		return common.Address{}, err
	}
	registered := values[0][0].(bool)

	switch {
	case mustBeUnregistered && registered:
		return ipID, &interfaces.AlreadyRegisteredError{NFTContract: nftContract, TokenID: tokenID, IPID: ipID}
	case !mustBeUnregistered && !registered:
		return ipID, &interfaces.NotRegisteredError{IPID: ipID}
	}
	return ipID, nil
}

// ValidateRoyaltyShares checks recipients and percentages and returns the share
// total in parts-per-hundred-million.
func (v *Validator) ValidateRoyaltyShares(shares []interfaces.RoyaltyShare) (uint32, error) {
	return ValidateRoyaltyShares(shares)
}

// ValidateRoyaltyShares is the chain independent share check.
func ValidateRoyaltyShares(shares []interfaces.RoyaltyShare) (uint32, error) {
	var total uint64
	var sum float64
	for i, s := range shares {
		field := fmt.Sprintf("royaltyShares[%d]", i)
		if s.Recipient == (common.Address{}) {
			return 0, &interfaces.ValidationError{Field: field + ".recipient", Reason: "must not be the zero address"}
		}
		if s.Percentage < 0 || s.Percentage > 100 {
			return 0, &interfaces.RangeError{Field: field + ".percentage", Value: fmt.Sprint(s.Percentage), Min: "0", Max: "100"}
		}
		sum += s.Percentage
		total += uint64(interfaces.ScalePercent(s.Percentage))
	}
	if total > interfaces.MaxPercent {
		return 0, &interfaces.SumExceededError{Field: "royaltyShares.percentage", Sum: sum, Max: 100}
	}
	return uint32(total), nil
}

// Prepare runs every check applicable to req and returns it together with the
// chain facts the classifier and executor need.
func (v *Validator) Prepare(ctx context.Context, index int, req interfaces.RegistrationRequest) (*interfaces.PreparedRequest, error) {
	route, err := calldata.Select(&req)
	if err != nil {
		return nil, err
	}
	p := &interfaces.PreparedRequest{Index: index, Request: req}
	var fees []interfaces.Fee

	switch target := req.Target.(type) {
	case interfaces.MintTarget:
		info, err := v.spgInfo(ctx, target.SPGNFTContract)
		if err != nil {
			return nil, err
		}
		p.SPG = info
		fees = interfaces.MergeFees(fees, interfaces.Fee{Token: info.MintFeeToken, Amount: info.MintFee})
		if target.Recipient == (common.Address{}) {
			target.Recipient = v.backend.Sender()
			p.Request.Target = target
		}

	case interfaces.ExistingNFT:
		ipID, err := v.ValidateRegistrationTarget(ctx, target.Contract, target.TokenID, true)
		if err != nil {
			return nil, err
		}
		p.IPID = ipID
		if route.Auth != calldata.AuthNone {
			if err := v.checkOwner(ctx, target); err != nil {
				return nil, err
			}
		}
	}

	if req.Derivative != nil {
		linkage, err := v.ValidateDerivativeLinkage(ctx, req.Derivative)
		if err != nil {
			return nil, err
		}
		p.Derivative = linkage.Derivative
		fees = interfaces.MergeFees(fees, linkage.Fees...)
	}

	if len(req.LicenseTerms) > 0 {
		terms, err := v.ValidateLicenseTermsData(ctx, req.LicenseTerms)
		if err != nil {
			return nil, err
		}
		p.LicenseTerms = terms
	}

	if len(req.RoyaltyShares) > 0 {
		total, err := ValidateRoyaltyShares(req.RoyaltyShares)
		if err != nil {
			return nil, err
		}
		p.RoyaltySharesTotal = total
	}

	p.Fees = fees
	v.log.Debug("Request validated",
		slog.Int("index", index),
		slog.String("route", route.Method),
		slog.Int("fees", len(p.Fees)))
	return p, nil
}

func (v *Validator) spgInfo(ctx context.Context, spg common.Address) (*interfaces.SPGInfo, error) {
	if spg == (common.Address{}) {
		return nil, &interfaces.ValidationError{Field: "spgNftContract", Reason: "must not be the zero address"}
	}
	values, err := v.readAll(ctx, []chain.Read{
		{Target: spg, Contract: contracts.SPGNFT, Method: "publicMinting"},
		{Target: spg, Contract: contracts.SPGNFT, Method: "mintFee"},
		{Target: spg, Contract: contracts.SPGNFT, Method: "mintFeeToken"},
	})
	if err != nil {
		return nil, fmt.Errorf("SPG NFT contract %s: %w", spg.Hex(), err)
	}
	return &interfaces.SPGInfo{
		PublicMinting: values[0][0].(bool),
		MintFee:       values[1][0].(*big.Int),
		MintFeeToken:  values[2][0].(common.Address),
	}, nil
}

// checkOwner makes sure the sender owns the NFT, since registering it on behalf
// of its IP account needs the owner's signature.
func (v *Validator) checkOwner(ctx context.Context, target interfaces.ExistingNFT) error {
	values, err := v.readAll(ctx, []chain.Read{{Target: target.Contract, Contract: contracts.SPGNFT, Method: "ownerOf", Args: []interface{}{target.TokenID}}})
	if err != nil {
		return err
	}
	if owner := values[0][0].(common.Address); owner != v.backend.Sender() {
		return &interfaces.AuthorizationError{Reason: fmt.Sprintf("NFT %s #%s is owned by %s, not the sender %s", target.Contract.Hex(), target.TokenID, owner.Hex(), v.backend.Sender().Hex())}
	}
	return nil
}
