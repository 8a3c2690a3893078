package main

/*
 * Central runs one beacon scan from the command line: discover the
 * marker, connect, reassemble the notified payload and print the report.
 */

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/gattlink"
	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/palmki"
)

func main() {
	app := cli.NewApp()
	app.Name = "central"
	app.Usage = "scan for a Palmki beacon and read its chunked payload"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "marker", Value: palmki.Marker, Usage: "manufacturer data marker to scan for"},
		cli.StringFlag{Name: "service", Value: palmki.PayloadServiceID, Usage: "payload service UUID"},
		cli.StringFlag{Name: "characteristic", Value: palmki.PayloadCharacteristicID, Usage: "payload characteristic UUID"},
		cli.DurationFlag{Name: "scan", Value: palmki.DefaultScanWindow, Usage: "scan window"},
		cli.DurationFlag{Name: "connect", Value: palmki.DefaultConnectTimeout, Usage: "connect timeout"},
		cli.DurationFlag{Name: "stream", Value: palmki.DefaultStreamBudget, Usage: "total wait budget for the chunked payload"},
		cli.BoolFlag{Name: "no-probe", Usage: "skip the radio availability probe"},
		cli.BoolFlag{Name: "poll-scan", Usage: "use the bounded poll scan strategy"},
		cli.StringFlag{Name: "level", Value: "info", Usage: "logging level, eg: error, warn, info, debug"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("central")
	}
}

func run(c *cli.Context) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(c.String("level"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("invalid log level %q", c.String("level")), 2)
	}
	zerolog.SetGlobalLevel(lvl)

	var opts []gattlink.Option
	if c.Bool("no-probe") {
		opts = append(opts, gattlink.WithAvailabilityProbe(false))
	}
	if c.Bool("poll-scan") {
		opts = append(opts, gattlink.WithEventDrivenScan(false))
	}
	radio, err := gattlink.New(log.Logger, opts...)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	cfg := palmki.Config{
		Marker:             c.String("marker"),
		ServiceUUID:        c.String("service"),
		CharacteristicUUID: c.String("characteristic"),
		ScanWindow:         c.Duration("scan"),
		ConnectTimeout:     c.Duration("connect"),
		StreamBudget:       c.Duration("stream"),
	}
	report := palmki.NewWorkflow(radio, cfg, log.Logger).Run(context.Background())

	fmt.Printf("status: %s\n", report.Status)
	if report.Info != "" {
		fmt.Println(report.Info)
	}
	if report.Status != palmki.StatusFinished {
		return cli.NewExitError("", 1)
	}
	return nil
}
