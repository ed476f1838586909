package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "notroom",
		Usage: "Notary payments and background check service",
		Commands: []*cli.Command{
			serveCommand,
			seedCommand,
			sweepCommand,
			taxdocsCommand,
			nanoidCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
