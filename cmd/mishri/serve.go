package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/rahul/mishri-pev/internal/agent"
	"github.com/rahul/mishri-pev/internal/gateway"
	"github.com/rahul/mishri-pev/internal/observability"
	"github.com/rahul/mishri-pev/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat gateways, scheduler and live dashboard",
	Long: `Start every enabled chat gateway (Telegram, Discord). Each incoming message
is treated as a goal; risky plans and steps are confirmed in the same chat.
Scheduled checks run in the background and report back to their chat.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	observability.PrintBanner()
	observability.InitializeTerminal()
	defer observability.CleanupTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	term := observability.NewTermWriter()
	log.SetOutput(term)

	rt, err := newRuntime(cfg, term)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.planner == nil {
		return errors.New("serve needs an enabled LLM provider")
	}

	hub := gateway.NewHub()
	approvals := gateway.NewApprovals(hub.Send, rt.confirmTimeout())
	rt.notify.SetMessenger(hub)

	engine := rt.engine(approvals)
	dispatcher := gateway.NewDispatcher(engine, rt.history, approvals, hub.Send)

	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, dispatcher)
		if err != nil {
			return err
		}
		hub.Register("", tg)
	}
	if dcCfg, ok := cfg.GetDiscordConfig(); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, dispatcher)
		if err != nil {
			return err
		}
		hub.Register(gateway.DiscordPrefix, dc)
	}
	gateways := hub.Messengers()
	if len(gateways) == 0 {
		return errors.New("no chat gateway is enabled")
	}
	// Tasks scheduled by `mishri run` report to the log.
	hub.Register(gateway.CLIChatID, gateway.LogMessenger{})

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	scheduler := agent.NewScheduler(engine, rt.history, hub, gateway.FormatReport)
	go scheduler.Start(ctx)

	// Start Live Resource Dashboard (1-second updates)
	go every(ctx, time.Second, observability.PrintLiveStatus)
	go every(ctx, 30*time.Second, func() {
		observability.Heartbeat()
		rt.logger.LogHeartbeat()
	})

	var wg sync.WaitGroup
	for _, g := range gateways {
		wg.Add(1)
		go func(g gateway.Messenger) {
			defer wg.Done()
			runGateway(ctx, g, stop)
		}(g)
	}

	// Wait for shutdown signal
	<-ctx.Done()
	for _, g := range gateways {
		_ = g.Stop()
	}
	wg.Wait()
	dispatcher.Wait()

	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
	return nil
}

// runGateway blocks in g.Start and calls fail when the gateway dies before
// shutdown. Errors raised while shutting down are only logged.
func runGateway(ctx context.Context, g gateway.Messenger, fail func()) {
	err := g.Start(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		log.Printf("Gateway stopped: %v", err)
	default:
		log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
		fail() // stop caller if gateway dies
	}
}

func every(ctx context.Context, d time.Duration, fn func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
