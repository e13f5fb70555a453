package hedged

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"autohedge/api"
	"autohedge/backtest"
	"autohedge/config"
	"autohedge/fetcher"
	"autohedge/metrics"
	"autohedge/store"
)

// Run starts the dashboard service and blocks until SIGINT/SIGTERM.
func Run(args []string) int {
	flags := flag.NewFlagSet("hedged", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var (
		configPath string
		port       int
	)

	flags.StringVar(&configPath, "config", "", "service config (YAML); defaults to ./config.yaml when present")
	flags.IntVar(&port, "port", 0, "override server.port")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		}
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg := config.GetConfig(configPath)
	if port > 0 {
		cfg.Port = port
	}

	provider, closeProvider, err := fetcher.Build(cfg.FetchOptions())
	if err != nil {
		log.Printf("[ERROR] data providers: %v\n", err)
		return 1
	}
	defer closeProvider()

	st, err := store.Open(cfg.Store, cfg.OutputDir, cfg.DBPath)
	if err != nil {
		log.Printf("[ERROR] open %s store: %v\n", cfg.Store, err)
		return 1
	}
	defer st.Close()

	m := metrics.New()
	server := api.NewServer(backtest.NewRunner(provider), st, m, api.Options{
		Port:      cfg.Port,
		RateLimit: cfg.RateLimit,
	})

	log.Println("=== autohedge backtest service ===")
	log.Printf("[data] providers: %v (redis cache: %t)\n", cfg.Providers, cfg.RedisAddr != "")
	log.Printf("[store] %s backend, output dir %s\n", cfg.Store, cfg.OutputDir)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	code := 0
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil {
			log.Printf("[ERROR] HTTP server: %v\n", err)
			code = 1
		}
	}

	log.Println("shutting down...")
	if err := server.Shutdown(); err != nil {
		log.Printf("[WARN] shutdown: %v\n", err)
	}
	log.Println("stopped")
	return code
}
