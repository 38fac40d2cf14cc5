package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/ip-registration-workflows/api"
	"github.com/ruteri/ip-registration-workflows/api/metadatahandler"
	"github.com/ruteri/ip-registration-workflows/api/workflowhandler"
	"github.com/ruteri/ip-registration-workflows/cmd/flags"
	"github.com/ruteri/ip-registration-workflows/httpserver"
	"github.com/ruteri/ip-registration-workflows/metadata"
	"github.com/ruteri/ip-registration-workflows/storage"
)

var chainFlags = []cli.Flag{
	flags.RpcAddrFlag,
	flags.AddressBookFlag,
	flags.ConfirmTimeoutFlag,
	flags.SignatureDeadlineFlag,
}

var batchFlags = []cli.Flag{
	flags.RequestsFlag,
	flags.NoMulticallFlag,
	flags.ContinueOnFailureFlag,
}

var registerCommand = &cli.Command{
	Name:  "register",
	Usage: "Validate, sign and submit a batch of registration requests",
	Flags: append(append([]cli.Flag{flags.PrivateKeyFlag}, chainFlags...), batchFlags...),
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		body, reqs, err := readRequests(cCtx)
		if err != nil {
			return err
		}
		engine, err := newEngine(cCtx, logger, true)
		if err != nil {
			return err
		}

		results, runErr := engine.Register(cCtx.Context, reqs, body.Options.ToOptions())
		if results != nil {
			out := make([]api.ExecutionResult, 0, len(results))
			for _, res := range results {
				out = append(out, api.NewExecutionResult(res))
			}
			if err := printJSON(cCtx, out); err != nil {
				return err
			}
		}
		return runErr
	},
}

var prepareCommand = &cli.Command{
	Name:  "prepare",
	Usage: "Print the unsigned call data of a batch without submitting it",
	Flags: append(append([]cli.Flag{flags.ServerFlag}, chainFlags...), batchFlags...),
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		body, reqs, err := readRequests(cCtx)
		if err != nil {
			return err
		}

		if server := cCtx.String(flags.ServerFlag.Name); server != "" {
			client := &workflowhandler.Client{ServerAddr: server}
			resp, err := client.Prepare(cCtx.Context, body)
			if err != nil {
				return err
			}
			return printJSON(cCtx, resp)
		}

		engine, err := newEngine(cCtx, logger, false)
		if err != nil {
			return err
		}
		buckets, err := engine.Prepare(cCtx.Context, reqs, body.Options.ToOptions())
		if err != nil {
			return err
		}
		resp := api.PrepareResponse{}
		for _, b := range buckets {
			resp.Buckets = append(resp.Buckets, api.NewEncodedBucket(b))
		}
		return printJSON(cCtx, resp)
	},
}

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Check a batch of requests against chain state",
	Flags: append(append([]cli.Flag{flags.ServerFlag}, chainFlags...), batchFlags...),
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		body, reqs, err := readRequests(cCtx)
		if err != nil {
			return err
		}

		var resp *api.ValidateResponse
		if server := cCtx.String(flags.ServerFlag.Name); server != "" {
			client := &workflowhandler.Client{ServerAddr: server}
			if resp, err = client.Validate(cCtx.Context, body); err != nil {
				return err
			}
		} else {
			engine, err := newEngine(cCtx, logger, false)
			if err != nil {
				return err
			}
			resp = &api.ValidateResponse{Valid: true}
			if err := engine.Validate(cCtx.Context, reqs); err != nil {
				resp.Valid = false
				resp.Errors = api.ErrorEntries(err)
			}
		}

		if err := printJSON(cCtx, resp); err != nil {
			return err
		}
		if !resp.Valid {
			return cli.Exit(fmt.Sprintf("%d invalid requests", len(resp.Errors)), 1)
		}
		return nil
	},
}

var publishMetadataCommand = &cli.Command{
	Name:  "publish-metadata",
	Usage: "Store IP and NFT metadata documents and print the request metadata referencing them",
	Flags: []cli.Flag{
		flags.StorageFlag,
		&cli.StringFlag{Name: "ip", Usage: "JSON file with the IP metadata document"},
		&cli.StringFlag{Name: "nft", Usage: "JSON file with the NFT metadata document"},
	},
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		uris := cCtx.StringSlice(flags.StorageFlag.Name)
		if len(uris) == 0 {
			return fmt.Errorf("at least one --%s is required", flags.StorageFlag.Name)
		}
		backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(uris)
		if err != nil {
			return err
		}

		var body api.PublishMetadataRequest
		if path := cCtx.String("ip"); path != "" {
			body.IP = &metadata.IPMetadata{}
			if err := readJSON(path, body.IP); err != nil {
				return err
			}
		}
		if path := cCtx.String("nft"); path != "" {
			body.NFT = &metadata.NFTMetadata{}
			if err := readJSON(path, body.NFT); err != nil {
				return err
			}
		}
		if body.IP == nil && body.NFT == nil {
			return errors.New("--ip or --nft is required")
		}

		meta, err := metadata.NewPublisher(backend, logger).Publish(cCtx.Context, body.IP, body.NFT)
		if err != nil {
			return err
		}
		return printJSON(cCtx, api.NewMetadata(meta))
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the validation, preparation and metadata API",
	Flags: append(append([]cli.Flag{flags.StorageFlag}, chainFlags...), flags.ServerFlags...),
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		engine, err := newEngine(cCtx, logger, false)
		if err != nil {
			return err
		}

		handlers := []httpserver.RouteRegistrar{workflowhandler.NewHandler(engine, logger)}
		if uris := cCtx.StringSlice(flags.StorageFlag.Name); len(uris) > 0 {
			backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(uris)
			if err != nil {
				return err
			}
			handlers = append(handlers, metadatahandler.NewHandler(metadata.NewPublisher(backend, logger), logger))
			logger.Info("Metadata API enabled", "storage", backend.LocationURI())
		}

		server := httpserver.New(flags.ConfigureServer(cCtx, logger), handlers...)
		server.RunInBackground()

		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
		<-exit
		logger.Info("Shutdown signal received")

		server.Shutdown()
		logger.Info("Server shutdown complete")
		return nil
	},
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
