package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/ip-registration-workflows/api"
	"github.com/ruteri/ip-registration-workflows/chain"
	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/cmd/flags"
	"github.com/ruteri/ip-registration-workflows/interfaces"
	"github.com/ruteri/ip-registration-workflows/wallet"
	"github.com/ruteri/ip-registration-workflows/workflow"
)

// newEngine dials the RPC and builds an engine for its chain. With
// withSigner the private key flag is required and authorizes transactions.
func newEngine(cCtx *cli.Context, logger *slog.Logger, withSigner bool) (*workflow.Engine, error) {
	rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
	logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
	ethClient, err := ethclient.DialContext(cCtx.Context, rpcAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}
	chainID, err := ethClient.ChainID(cCtx.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	book, err := chainconfig.Load(cCtx.String(flags.AddressBookFlag.Name))
	if err != nil {
		return nil, err
	}
	addresses, err := book.ForChain(chainID)
	if err != nil {
		return nil, err
	}

	client := chain.NewClient(ethClient, chainID, logger)
	cfg := workflow.Config{
		Backend:           client,
		Addresses:         addresses,
		ConfirmTimeout:    cCtx.Duration(flags.ConfirmTimeoutFlag.Name),
		SignatureDeadline: cCtx.Duration(flags.SignatureDeadlineFlag.Name),
		Log:               logger,
	}

	if withSigner {
		key := cCtx.String(flags.PrivateKeyFlag.Name)
		if key == "" {
			return nil, fmt.Errorf("--%s is required", flags.PrivateKeyFlag.Name)
		}
		w, err := wallet.FromHex(key)
		if err != nil {
			return nil, err
		}
		auth, err := w.TransactOpts(chainID)
		if err != nil {
			return nil, err
		}
		client.SetTransactOpts(auth)
		cfg.Signer = w
		logger.Info("Using sender", "address", w.Address().Hex())
	}

	logger.Info("Connected", "chainID", chainID, "network", addresses.Name)
	return workflow.New(cfg)
}

func readRequests(cCtx *cli.Context) (*api.PrepareRequest, []interfaces.RegistrationRequest, error) {
	path := cCtx.String(flags.RequestsFlag.Name)
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cCtx.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading requests: %w", err)
	}

	body := &api.PrepareRequest{}
	if err := json.Unmarshal(data, &body.Requests); err != nil {
		return nil, nil, fmt.Errorf("parsing requests: %w", err)
	}
	noMulticall := cCtx.Bool(flags.NoMulticallFlag.Name)
	continueOnFailure := cCtx.Bool(flags.ContinueOnFailureFlag.Name)
	useMulticall := !noMulticall
	body.Options = &api.Options{UseMulticallWhenPossible: &useMulticall, ContinueOnFailure: &continueOnFailure}

	reqs, err := api.ToRequests(body.Requests)
	if err != nil {
		return nil, nil, err
	}
	return body, reqs, nil
}

func printJSON(cCtx *cli.Context, v interface{}) error {
	enc := json.NewEncoder(cCtx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
