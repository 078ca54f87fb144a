package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/mlscore/internal/scorecheck"
	"github.com/okian/mlscore/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumVectors  = 1000
	defaultVectorLen   = 8
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 5 * time.Minute
)

func main() {
	fs := pflag.NewFlagSet("score-check", pflag.ExitOnError)
	var (
		baseURL    = fs.StringP("url", "u", "http://localhost:5000", "Base URL of the service")
		numVectors = fs.IntP("vectors", "n", defaultNumVectors, "Number of feature vectors to score")
		vectorLen  = fs.IntP("length", "l", defaultVectorLen, "Random features per vector")
		workers    = fs.IntP("workers", "w", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = fs.Duration("timeout", defaultTimeout, "HTTP request timeout")
		runTimeout = fs.Duration("run-timeout", defaultTestTimeout, "Upper bound for the whole run")
		outputFile = fs.StringP("output", "o", "", "Write generated vectors to this JSON file")
		logFormat  = fs.String("log-format", logger.FormatText, "Log format: text or json")
		verbose    = fs.BoolP("verbose", "v", false, "Log every failure and probe")
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "score-check drives a running mlscore service: health, identity checks and negative probes.\n\nUsage:\n  score-check [flags]\n\nFlags:\n%s", fs.FlagUsages())
	}
	_ = fs.Parse(os.Args[1:])

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *runTimeout)
	defer cancel()

	config := &scorecheck.Config{
		BaseURL:    *baseURL,
		NumVectors: *numVectors,
		VectorLen:  *vectorLen,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, err := scorecheck.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "score check failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
}
