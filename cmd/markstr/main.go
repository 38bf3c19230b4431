package main

import (
	"fmt"
	"os"

	"github.com/ark-network/markstr/internal/config"
	"github.com/ark-network/markstr/internal/core/application"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var svc application.Service

func main() {
	app := cli.NewApp()

	app.Version = fmt.Sprintf("%s (%s, %s)", version, commit, date)
	app.Name = "markstr"
	app.Usage = "binary prediction markets settled by a nostr oracle through a covenant coin pool"
	app.Commands = append(
		app.Commands,
		&createCommand,
		&infoCommand,
		&listCommand,
		&betCommand,
		&addressCommand,
		&depositCommand,
		&fundCommand,
		&settleCommand,
		&withdrawCommand,
		&oracleCommand,
		&watchCommand,
		&generateIdCommand,
		&validateAddressCommand,
		&convertCommand,
		&hashCommand,
	)
	app.After = func(ctx *cli.Context) error {
		if svc != nil {
			svc.Stop()
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func getService() (application.Service, error) {
	if svc != nil {
		return svc, nil
	}

	c, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	log.SetLevel(log.Level(c.LogLevel))

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}

	appSvc, err := c.AppService()
	if err != nil {
		return nil, err
	}

	svc = appSvc
	return svc, nil
}
