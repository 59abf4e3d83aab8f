package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngenesis/ngenesis/internal/auth"
	"github.com/ngenesis/ngenesis/internal/automation"
	"github.com/ngenesis/ngenesis/internal/config"
	"github.com/ngenesis/ngenesis/internal/fabricate"
	"github.com/ngenesis/ngenesis/internal/forge"
	"github.com/ngenesis/ngenesis/internal/imagegen"
	"github.com/ngenesis/ngenesis/internal/observer"
	"github.com/ngenesis/ngenesis/internal/pipeline"
	"github.com/ngenesis/ngenesis/internal/planner"
	"github.com/ngenesis/ngenesis/internal/ratelimit"
	"github.com/ngenesis/ngenesis/internal/registry"
	"github.com/ngenesis/ngenesis/internal/store"
	"github.com/ngenesis/ngenesis/internal/watch"
	"github.com/ngenesis/ngenesis/web/api"
)

var servePort int

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent generation server",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Capabilities.GeminiAPIKey == "" {
		return fmt.Errorf("gemini_api_key is required (config or GEMINI_API_KEY)")
	}

	f, err := forge.New(cfg.General.SandboxDir)
	if err != nil {
		return fmt.Errorf("preparing sandbox: %w", err)
	}

	st, err := store.New(cfg.General.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	reg := registry.New()
	limiter := ratelimit.New(10, time.Minute)
	gemini := planner.NewGemini(cfg.Capabilities.GeminiAPIKey, limiter)

	engine := pipeline.New(reg, gemini, f).WithRecorder(st)

	deps := api.Deps{
		Registry: reg,
		Engine:   engine,
		Forge:    f,
		Store:    st,
		Auth:     auth.New(st, cfg.General.JWTSecret),
		Synth:    gemini,
	}

	if key := cfg.Capabilities.FreepikAPIKey; key != "" {
		icons := imagegen.New(key, cfg.Capabilities.StyleReferenceURL)
		engine.WithIcons(icons)
		deps.Icons = icons
		log.Printf("[serve] icon generation enabled")
	}
	if key := cfg.Capabilities.FabricateAPIKey; key != "" {
		engine.WithTestData(fabricate.New(key))
		log.Printf("[serve] test data generation enabled")
	}
	if key := cfg.Capabilities.TinyFishAPIKey; key != "" {
		deps.Runner = automation.New(key)
		log.Printf("[serve] web automation enabled")
	}

	var monitor watch.Monitor
	if key := cfg.Capabilities.YutoriAPIKey; key != "" {
		monitor = watch.New(key, cfg.Capabilities.WebhookURL)
		engine.WithMonitor(monitor)
		deps.Monitor = monitor
		log.Printf("[serve] change monitoring enabled")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	if servePort != 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Web.Host, servePort)
	}
	server := api.NewServer(deps, addr)
	engine.WithNotifier(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// sandbox observer feeds artifact notifications to the SSE stream
	sw, err := observer.New(cfg.General.SandboxDir, server.ArtifactWritten)
	if err != nil {
		return fmt.Errorf("starting sandbox observer: %w", err)
	}
	sw.Start(ctx)
	defer sw.Stop()

	// periodic scout digest for the dashboard
	if monitor != nil {
		digester, err := watch.NewDigester(monitor, cfg.Capabilities.ScoutDigestCron, server.ScoutDigest)
		if err != nil {
			return fmt.Errorf("starting scout digest: %w", err)
		}
		go digester.Run()
		defer digester.Stop()
	}

	log.Printf("[serve] listening on %s", addr)
	return server.Start()
}
