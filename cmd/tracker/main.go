package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bus-tracker/internal/config"
	"bus-tracker/internal/poller"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		setupLogging("console", false)
		log.Fatal().Err(err).Msg("config error")
	}
	setupLogging(cfg.LogFormat, cfg.Debug)

	app := &cli.App{
		Name:  "bus-tracker",
		Usage: "follow one vehicle along a fixed stop sequence and drive a live map widget",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "poll the vehicle feed and serve the tracker",
				Action: func(c *cli.Context) error {
					return run(c.Context, cfg)
				},
			},
			{
				Name:  "check-stops",
				Usage: "validate the stop seed file and print it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Value: cfg.StopsFile,
						Usage: "stop seed file (empty uses the built-in stops)",
					},
				},
				Action: func(c *cli.Context) error {
					stops, err := config.LoadStops(c.String("file"))
					if err != nil {
						return err
					}
					out, err := config.MarshalStops(stops)
					if err != nil {
						return err
					}
					fmt.Print(string(out))
					log.Info().Int("stops", len(stops)).Msg("stop file ok")
					return nil
				},
			},
			{
				Name:  "fetch",
				Usage: "fetch one vehicle sample and print it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "endpoint",
						Value: cfg.VehicleEndpoint,
						Usage: "vehicle position endpoint",
					},
				},
				Action: func(c *cli.Context) error {
					p := poller.New(c.String("endpoint"), cfg.PollInterval, cfg.HTTPTimeout, nil, nil)
					ctx, cancel := context.WithTimeout(c.Context, cfg.HTTPTimeout)
					defer cancel()
					smp, err := p.FetchOnce(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%s (V1=%s V2=%s) at %s\n", smp.Position, smp.RawLat, smp.RawLng, smp.ReceivedAt.Format(time.RFC3339))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func setupLogging(format string, debug bool) {
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}
