// Package signature produces the EIP-712 authorizations IP accounts require
// before a workflow contract may act on their behalf.
//
// Every signature is an Execute(to, value, data, nonce, deadline) message under
// the IP account's own domain. The nonce chains the account state:
// keccak256(abi.encode(state, execute(to, 0, data))). Signatures are produced
// just before the call consuming them and are single use, since the account
// state moves to the nonce once executed.
package signature

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/calldata"
	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/contracts"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// SignatureRequest asks the IP account's owner to authorize one call.
type SignatureRequest struct {
	IPID     common.Address
	Deadline *big.Int
	// State is the IP account state the signature is bound to. Permission
	// methods default to the zero state of an account created in the same call;
	// state methods require it.
	State  *[32]byte
	Method Method
}

// Generator signs requests for one chain with one wallet.
type Generator struct {
	chainID *big.Int
	addrs   *chainconfig.ContractSet
	encoder *calldata.Encoder
	signer  interfaces.TypedDataSigner
	log     *slog.Logger
}

func NewGenerator(chainID *big.Int, addrs *chainconfig.ContractSet, signer interfaces.TypedDataSigner, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{chainID: chainID, addrs: addrs, encoder: calldata.NewEncoder(addrs), signer: signer, log: log}
}

// Signer is the address signatures are produced for, zero without a wallet.
func (g *Generator) Signer() common.Address {
	if g.signer == nil {
		return common.Address{}
	}
	return g.signer.Address()
}

// Generate validates req and returns the 65 byte signature. Request errors are
// reported before the wallet is asked to sign.
func (g *Generator) Generate(ctx context.Context, req SignatureRequest) ([]byte, error) {
	if req.Method == nil {
		return nil, &interfaces.ValidationError{Field: "method", Reason: "required"}
	}
	if req.IPID == (common.Address{}) {
		return nil, &interfaces.ValidationError{Field: "ipId", Reason: "required"}
	}
	if req.Deadline == nil || req.Deadline.Sign() <= 0 {
		return nil, &interfaces.ValidationError{Field: "deadline", Reason: "required"}
	}

	to, data, needsState, err := req.Method.signedCall(g, req.IPID)
	if err != nil {
		return nil, err
	}
	var state [32]byte
	switch {
	case req.State != nil:
		state = *req.State
	case needsState:
		return nil, &interfaces.ValidationError{Field: "state", Reason: "required for state signatures"}
	}

	if g.signer == nil {
		return nil, &interfaces.AuthorizationError{Reason: "no wallet configured for signing"}
	}
	if g.signer.Address() == (common.Address{}) {
		return nil, &interfaces.AuthorizationError{Reason: "wallet has no account"}
	}

	nonce, err := contracts.ExecuteNonce(state, to, data)
	if err != nil {
		return nil, err
	}
	typed := contracts.ExecuteTypedData(g.chainID, req.IPID, to, data, nonce, req.Deadline)
	sig, err := g.signer.SignTypedData(ctx, typed)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &interfaces.AuthorizationError{Reason: "signing failed: " + err.Error()}
	}

	g.log.Debug("Signed IP account execution",
		slog.String("ip_id", req.IPID.Hex()),
		slog.String("to", to.Hex()),
		slog.String("deadline", req.Deadline.String()))
	return sig, nil
}

// SignedCall returns the call the IP account executes once m is authorized,
// without signing it. External signers sign Execute over it themselves.
func (g *Generator) SignedCall(ipID common.Address, m Method) (common.Address, []byte, error) {
	if m == nil {
		return common.Address{}, nil, &interfaces.ValidationError{Field: "method", Reason: "required"}
	}
	if ipID == (common.Address{}) {
		return common.Address{}, nil, &interfaces.ValidationError{Field: "ipId", Reason: "required"}
	}
	to, data, _, err := m.signedCall(g, ipID)
	return to, data, err
}

// Sign is Generate returning the signature tuple workflow contracts expect.
func (g *Generator) Sign(ctx context.Context, req SignatureRequest) (interfaces.SignatureData, error) {
	sig, err := g.Generate(ctx, req)
	if err != nil {
		return interfaces.SignatureData{}, err
	}
	return interfaces.SignatureData{Signer: g.Signer(), Deadline: new(big.Int).Set(req.Deadline), Signature: sig}, nil
}

func (g *Generator) grantData(grants []interfaces.PermissionGrant) ([]byte, error) {
	if len(grants) == 1 {
		p := grants[0]
		return contracts.Pack(contracts.AccessController, "setTransientPermission", p.IPAccount, p.Signer, p.To, p.Func, uint8(p.Permission))
	}
	return contracts.Pack(contracts.AccessController, "setTransientBatchPermissions", contracts.NewPermissions(grants))
}

// workflowGrant is the batch permission call a workflow contract executes
// through the IP account during registration.
func (g *Generator) workflowGrant(ipID, workflow common.Address, withTerms, withDerivative bool) (common.Address, []byte, bool, error) {
	if workflow == (common.Address{}) {
		return common.Address{}, nil, false, &interfaces.ValidationError{Field: "workflow", Reason: "required"}
	}
	grants := WorkflowPermissions(g.addrs, ipID, workflow, withTerms, withDerivative)
	data, err := contracts.Pack(contracts.AccessController, "setTransientBatchPermissions", contracts.NewPermissions(grants))
	return g.addrs.Address(contracts.AccessController), data, false, err
}
