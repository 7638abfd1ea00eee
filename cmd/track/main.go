// Command track follows an order the way the checkout page does: it polls
// the public status endpoint until payment settles and prints where the
// customer is sent next.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"qr-ordering/internal/config"
	"qr-ordering/internal/logger"
	"qr-ordering/internal/poller"
)

func main() {
	urlFlag := flag.String("url", "", "Service base URL (default PUBLIC_BASE_URL, then the local server port)")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: track [-url base] <track-code>")
		os.Exit(2)
	}
	code := flag.Arg(0)

	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", "Invalid configuration: "+err.Error())
	}
	baseURL := resolveBaseURL(*urlFlag, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status, err := poller.New(baseURL, cfg.App.PollInterval, log).WaitForPayment(ctx, code)
	if err != nil {
		log.Fatal("POLLER", "Stopped waiting for "+code+": "+err.Error())
	}
	fmt.Printf("%s -> %s\n", status.DisplayName(), baseURL+poller.TrackingPath(code))
}

// resolveBaseURL prefers the flag, then the configured public URL, then the
// server on this machine.
func resolveBaseURL(flagValue string, cfg *config.Config) string {
	if v := strings.TrimRight(strings.TrimSpace(flagValue), "/"); v != "" {
		return v
	}
	if cfg.App.PublicBaseURL != "" {
		return cfg.App.PublicBaseURL
	}
	return "http://localhost" + cfg.Server.Port
}
