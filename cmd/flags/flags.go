// Package flags holds the command line flags and setup helpers shared by the commands.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/ip-registration-workflows/common"
	"github.com/ruteri/ip-registration-workflows/httpserver"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
		Output:  cCtx.App.ErrWriter,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	Usage:   "address to connect to RPC",
	EnvVars: []string{"RPC_ADDR"},
}

var AddressBookFlag = &cli.StringFlag{
	Name:  "address-book",
	Usage: "YAML file overriding the built-in contract addresses per chain",
}

var PrivateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "hex-encoded private key of the sender and signer",
	EnvVars: []string{"PRIVATE_KEY"},
}

var RequestsFlag = &cli.StringFlag{
	Name:     "requests",
	Required: true,
	Usage:    "JSON file with a list of registration requests, '-' for stdin",
}

var NoMulticallFlag = &cli.BoolFlag{
	Name:  "no-multicall",
	Usage: "submit every request in its own transaction",
}

var ContinueOnFailureFlag = &cli.BoolFlag{
	Name:  "continue-on-failure",
	Usage: "keep executing buckets after one fails",
}

var ConfirmTimeoutFlag = &cli.DurationFlag{
	Name:  "confirm-timeout",
	Value: 2 * time.Minute,
	Usage: "how long to wait for each transaction receipt",
}

var SignatureDeadlineFlag = &cli.DurationFlag{
	Name:  "signature-deadline",
	Value: 1000 * time.Second,
	Usage: "validity window of IP account permission signatures",
}

var ServerFlag = &cli.StringFlag{
	Name:  "server",
	Usage: "base URL of a preparation service to use instead of the local engine",
}

var StorageFlag = &cli.StringSliceFlag{
	Name:  "storage",
	Usage: "metadata storage backend URI (file://, ipfs://, s3://), repeat for redundancy",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "ipworkflow",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
