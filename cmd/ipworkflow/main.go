package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/ip-registration-workflows/cmd/flags"
	"github.com/ruteri/ip-registration-workflows/common"
)

func main() {
	app := &cli.App{
		Name:    "ipworkflow",
		Usage:   "Register IP assets in batches through the protocol workflow contracts",
		Version: common.Version,
		Flags:   flags.CommonFlags,
		Commands: []*cli.Command{
			registerCommand,
			prepareCommand,
			validateCommand,
			publishMetadataCommand,
			serveCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
