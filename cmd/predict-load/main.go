package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/oralscan/internal/loadtest"
	"github.com/okian/oralscan/pkg/logger"
)

// Default configuration constants.
const (
	defaultRepeat      = 10
	defaultIdentities  = 8
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8080", "Base URL of the service")
		imageDir   = flag.String("images", "", "Directory of images to upload (default: synthetic images)")
		repeat     = flag.Int("repeat", defaultRepeat, "Times every image is submitted")
		identities = flag.Int("identities", defaultIdentities, "Number of synthetic callers")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent uploads")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		token      = flag.String("token", "", "Bearer token sent with every request")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:    *baseURL,
		ImageDir:   *imageDir,
		Repeat:     *repeat,
		Identities: *identities,
		Workers:    *workers,
		Timeout:    *timeout,
		Token:      *token,
		Verbose:    *verbose,
	}
	if _, err := loadtest.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
