package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/captchaview/internal/infrastructure/config"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override environment values
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	scriptDomain := flag.String("script-domain", cfg.Provider.ScriptDomain, "Host serving the provider script")
	enterprise := flag.Bool("enterprise", cfg.Render.Enterprise, "Render the enterprise widget by default")
	diagnostics := flag.String("diagnostics", cfg.Render.Diagnostics, "Setup checkpoint reporting: off, console or expire")
	poolSize := flag.Int("pool", cfg.Sandbox.PoolSize, "Number of simulation sandboxes")
	probeTTL := flag.Duration("probe-ttl", cfg.Provider.ProbeTTL, "How long provider reachability is cached (0 disables /v1/provider)")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Provider.ScriptDomain = *scriptDomain
	cfg.Render.Enterprise = *enterprise
	cfg.Render.Diagnostics = *diagnostics
	cfg.Sandbox.PoolSize = *poolSize
	cfg.Provider.ProbeTTL = *probeTTL
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
			os.Exit(1)
		}
	case err := <-errChan:
		srv.Close()
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}
}
