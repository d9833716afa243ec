package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/minutewatch/internal/app"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.DefaultContextLogger = &log.Logger
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "err:", err)
		os.Exit(1)
	}
}

// run locates candidates with the same configuration the main binary would
// use: config file, then env, then an optional listing URL argument.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("debuglocate", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML or JSON config file")
	envFiles := fs.String("env", ".env", "Comma-separated dotenv files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var paths []string
	for _, p := range strings.Split(*envFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if err := app.LoadEnvFiles(paths...); err != nil {
		return err
	}

	var cfg app.Config
	if strings.TrimSpace(*configPath) != "" {
		fc, err := app.LoadConfigFile(*configPath)
		if err != nil {
			return err
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	if fs.NArg() > 0 {
		cfg.LocatorMode = app.ModeListing
		cfg.ListingURL = fs.Arg(0)
	}
	// Only the locator runs; no model is needed.
	cfg.DryRun = true

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	links, err := a.Locate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "mode=%s candidates=%d\n", a.Config().LocatorMode, len(links))
	for i, l := range links {
		fmt.Fprintf(out, "%d. %s  %-6s %s\n", i+1, l.DateString(), l.Kind, l.RawURL)
	}
	return nil
}
