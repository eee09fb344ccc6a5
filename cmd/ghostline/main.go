package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/ghostline/internal/capability"
	"github.com/rahul/ghostline/internal/engine"
	"github.com/rahul/ghostline/internal/gateway"
	"github.com/rahul/ghostline/internal/governance"
	"github.com/rahul/ghostline/internal/observability"
	"github.com/rahul/ghostline/internal/store"
	"github.com/rahul/ghostline/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	// .env is optional; config.json can carry the secrets directly.
	godotenv.Load()

	cfg := config.LoadConfig("config.json")
	logger := observability.NewLogger()

	db, err := store.Open(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	policy := governance.NewDefaultPolicy()
	if cfg.Governance.PolicyPath != "" {
		if err := policy.LoadFile(cfg.Governance.PolicyPath); err != nil {
			log.Fatalf("failed to load governance policy: %v", err)
		}
	}

	// Capability modules. The messaging module joins after the gateway
	// comes up.
	registry := capability.NewRegistry()

	if err := capability.NewPC("screenshots").Register(registry); err != nil {
		log.Fatal(err)
	}
	if err := capability.NewFileSystem(cfg.App.Workspace).Register(registry); err != nil {
		log.Fatal(err)
	}
	if err := capability.NewBrowser("screenshots", cfg.Engine.HeadlessBrowser).Register(registry); err != nil {
		log.Fatal(err)
	}
	if web, err := capability.NewWeb(); err != nil {
		log.Printf("Warning: web module disabled: %v", err)
	} else if err := web.Register(registry); err != nil {
		log.Fatal(err)
	}
	if err := capability.NewAPIConnector().Register(registry); err != nil {
		log.Fatal(err)
	}
	if err := capability.NewMemory(db).Register(registry); err != nil {
		log.Fatal(err)
	}
	if err := capability.NewSchedulerCap(db).Register(registry); err != nil {
		log.Fatal(err)
	}

	// LLM planner (using the default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	planner := engine.NewLLMPlanner(llm, registry.Catalog, logger)

	confirmExpiry := time.Duration(cfg.Engine.ConfirmExpirySeconds) * time.Second
	if confirmExpiry <= 0 {
		confirmExpiry = 2 * time.Minute
	}

	reporter := engine.NewLateReporter()
	gate := engine.NewGate(policy, confirmExpiry, db)
	dispatcher := engine.NewDispatcher(registry, gate, reporter, logger)
	coordinator := engine.NewCoordinator(planner, dispatcher, reporter, logger,
		cfg.Engine.FailureBudget, cfg.Engine.MaxGoalSteps)
	eng := engine.New(planner, dispatcher, coordinator, reporter, db, logger)

	// Gateway: one chat transport, chosen by config.
	var gw gateway.Messenger
	if tgCfg, ok := cfg.GetGateway("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, eng, gate, tgCfg.AllowedChat, logger)
		if err != nil {
			log.Fatal(err)
		}
		reporter.Bind(tg)
		gw = tg
	} else if dcCfg, ok := cfg.GetGateway("discord"); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, eng, gate, logger)
		if err != nil {
			log.Fatal(err)
		}
		reporter.Bind(dc)
		gw = dc
	} else {
		log.Fatal("No gateway is enabled in config")
	}

	if sender, ok := gw.(capability.Sender); ok {
		if err := capability.NewNotifier(sender).Register(registry); err != nil {
			log.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := engine.NewScheduler(eng, scheduleStore{db},
		time.Duration(cfg.Engine.SchedulerPollSeconds)*time.Second, logger)
	go scheduler.Start(ctx)

	// Live resource dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	go func() {
		if err := gw.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
			stop()
		}
	}()

	<-ctx.Done()

	gw.Stop()
	observability.CleanupTerminal()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
}

// scheduleStore adapts the persistence layer's schedule rows to the
// engine's view of a trigger.
type scheduleStore struct {
	db *store.Store
}

func (s scheduleStore) DueSchedules() ([]engine.Schedule, error) {
	rows, err := s.db.DueSchedules()
	if err != nil {
		return nil, err
	}
	due := make([]engine.Schedule, len(rows))
	for i, r := range rows {
		due[i] = engine.Schedule{
			ID:              r.ID,
			Command:         r.Command,
			Target:          r.Target,
			IntervalSeconds: r.IntervalSeconds,
		}
	}
	return due, nil
}

func (s scheduleStore) UpdateScheduleLastRun(id int64) error { return s.db.UpdateScheduleLastRun(id) }
func (s scheduleStore) DeleteSchedule(id int64) error        { return s.db.DeleteSchedule(id) }
