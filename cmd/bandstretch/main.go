package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bandstretch/pkg/config"
	"bandstretch/pkg/pipeline"
	"bandstretch/pkg/surface"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "bandstretch.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	imagePath := flag.String("image", "", "Base image (PNG or JPEG)")
	dataSource := flag.String("data", "", "Series file path or http(s) URL")
	chunk := flag.Int("chunk", 0, "Index of the row to visualize")
	resample := flag.Int("resample", 0, "Resample the series to this many samples (0 keeps it)")
	order := flag.String("order", "", "Band order: forward or flipped")
	surfaceKind := flag.String("surface", "", "Presentation surface: png or sixel")
	output := flag.String("output", "", "Frame file for the png surface")
	exportPath := flag.String("export", "", "Also save the final frame as a PNG to this path")
	pinNative := flag.Bool("pin-native", true, "Render at the image's native resolution")
	numCores := flag.Int("cores", 0, "Number of goroutines used by the stretch (default: config or all CPUs)")
	follow := flag.Bool("follow", false, "Keep running to serve data refreshes and terminal resizes")
	loglevel := flag.String("loglevel", "", "log level: debug, info, warn or error")
	logfile := flag.String("logfile", "", "log file")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "image":
			cfg.Image.Path = *imagePath
		case "data":
			cfg.Data.Source = *dataSource
		case "chunk":
			cfg.Data.Chunk = *chunk
		case "resample":
			cfg.Data.ResampleLength = *resample
		case "order":
			cfg.Transform.Order = *order
		case "surface":
			cfg.Surface.Kind = *surfaceKind
		case "output":
			cfg.Surface.Output = *output
		case "pin-native":
			cfg.Surface.PinNative = *pinNative
		case "cores":
			cfg.Transform.NumCores = *numCores
		case "loglevel":
			cfg.Logging.Level = *loglevel
		case "logfile":
			cfg.Logging.File = *logfile
		}
	})

	setupLogging(cfg.Logging.Level, cfg.Logging.File)
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		log.Debug().Msg("resolved configuration:\n" + spew.Sdump(cfg))
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("invalid configuration")
	}

	if err := run(cfg, *follow, *exportPath); err != nil {
		var gerr *surface.GraphicsInitError
		if errors.As(err, &gerr) {
			fmt.Fprintf(os.Stderr, "Your terminal or output does not support the %s surface: %v\n", gerr.Backend, gerr.Err)
		}
		log.Fatal().Err(err).Msg("bandstretch failed")
	}
}

func run(cfg *config.Config, follow bool, exportPath string) error {
	order, err := cfg.Order()
	if err != nil {
		return err
	}
	policy, err := cfg.DegeneratePolicy()
	if err != nil {
		return err
	}
	surfaceOpts, err := cfg.SurfaceOptions()
	if err != nil {
		return err
	}

	s, err := surface.New(cfg.Surface.Kind, cfg.Surface.Output, surfaceOpts)
	if err != nil {
		return err
	}
	defer s.Close()

	params := &pipeline.Params{
		ImagePath:       cfg.Image.Path,
		ImageWidth:      cfg.Image.Width,
		ImageHeight:     cfg.Image.Height,
		Load:            cfg.LoadOptions(),
		Order:           order,
		Degenerate:      policy,
		NumCores:        cfg.Transform.NumCores,
		RefreshInterval: cfg.Data.RefreshInterval,
		Follow:          follow || cfg.Data.RefreshInterval > 0,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.NewPipeline(params, s)

	startTime := time.Now()
	if err := p.Run(ctx); err != nil {
		return err
	}
	processingTime := time.Since(startTime)

	if exportPath != "" {
		if err := surface.Export(s, exportPath); err != nil {
			return errors.Wrap(err, "export failed")
		}
		log.Info().Str("path", exportPath).Msg("frame exported")
	}

	stats := p.Stats()
	log.Info().
		Int("renders", stats.Renders).
		Int("failures", stats.Failures).
		Int("superseded", p.Dropped()).
		Int("samples", stats.LastSeries.Len).
		Float64("min", stats.LastSeries.Min).
		Float64("max", stats.LastSeries.Max).
		Dur("lastRender", stats.LastRender).
		Dur("total", processingTime).
		Msg("done")

	return nil
}

func setupLogging(level, file string) {
	if os.Getenv("DEBUG") != "" {
		level = "debug"
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "", "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		fmt.Fprintln(os.Stderr, "error: unknown log level")
	}

	if file != "" {
		f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			panic(err)
		}

		log.Logger = log.Output(f)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
