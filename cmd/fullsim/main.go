// Command fullsim runs the fullness scene headless: a player, a ring of NPCs
// and a giver, driven by the tick engine and observable over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/fullness/internal/api"
	"github.com/talgya/fullness/internal/config"
	"github.com/talgya/fullness/internal/engine"
	"github.com/talgya/fullness/internal/events"
	"github.com/talgya/fullness/internal/journal"
	"github.com/talgya/fullness/internal/persistence"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML tuning file (defaults when empty)")
		dbPath     = flag.String("db", "data/fullsim.db", "SQLite database path (empty disables persistence)")
		journalDir = flag.String("journal", "data/journal", "event journal directory (empty disables)")
		port       = flag.Int("port", 8080, "HTTP API port (0 disables)")
		seed       = flag.Int64("seed", 0, "random seed (0 uses the config seed, then a random one)")
		npcCount   = flag.Int("npcs", 6, "NPCs in a fresh scene")
		givers     = flag.Int("givers", 1, "givers in a fresh scene")
		autopilot  = flag.Bool("autopilot", false, "drive the player automatically")
		maxTicks   = flag.Uint64("ticks", 0, "stop after this many ticks (0 runs until interrupted)")
		saveEvery  = flag.Int("save-every", 10, "reports between autosaves")
		level      = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	setupLogging(*level)
	started := time.Now()

	tun := config.Default()
	if *configPath != "" {
		var err error
		if tun, err = config.Load(*configPath); err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		slog.Info("config loaded", "path", *configPath)
	}
	if *seed != 0 {
		tun.Seed = *seed
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if *dbPath != "" {
		os.MkdirAll(filepath.Dir(*dbPath), 0o755)
		var err error
		if db, err = persistence.Open(*dbPath); err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", *dbPath)
	}

	// ── Simulation ────────────────────────────────────────────────────
	live := config.NewLive(tun)
	sim := engine.NewSimulation(engine.Options{
		Live:        live,
		Seed:        tun.Seed,
		PlayerSpeed: tun.Speeds.Approach,
	})
	defer sim.Close()

	var startTick uint64
	if db != nil && db.HasState() {
		st, err := db.LoadState()
		if err != nil {
			slog.Error("failed to load saved scene", "error", err)
			os.Exit(1)
		}
		sim.Restore(st.Tick, st.Player, st.Actors)
		sim.Stats = st.Stats
		startTick = st.Tick
	} else {
		slog.Info("no saved state found, spawning new scene")
		sim.SpawnScene(engine.SceneConfig{NPCs: *npcCount, Givers: *givers})
	}

	// ── Event sinks ──────────────────────────────────────────────────
	var pending eventBuffer
	if db != nil {
		unsub := sim.Bus.SubscribeAll(func(_ context.Context, e events.Event) {
			pending.add(e)
			if rec, ok := persistence.TransferFromEvent(e); ok {
				if err := db.RecordTransfer(rec); err != nil {
					slog.Warn("ledger write failed", "error", err)
				}
			}
		})
		defer unsub()
	}
	if *journalDir != "" {
		jw := journal.NewWriter(*journalDir, "events", "")
		unsub := jw.Subscribe(sim.Bus)
		defer func() {
			unsub()
			if err := jw.Close(); err != nil {
				slog.Warn("journal close failed", "error", err)
			}
		}()
		slog.Info("journal enabled", "dir", *journalDir)
	}

	save := func(reason string) {
		if db == nil {
			return
		}
		if err := db.SaveEvents(pending.drain()); err != nil {
			slog.Error("event save failed", "reason", reason, "error", err)
		}
		if err := db.SaveState(sim.Snapshot()); err != nil {
			slog.Error("save failed", "reason", reason, "error", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim.Interval())
	eng.SetTick(startTick)
	eng.ReportEvery = uint64(tun.ReportEvery)

	var pilot *autoPilot
	if *autopilot {
		pilot = newAutoPilot(tun.Seed, tun.TickRateHz)
		slog.Info("autopilot enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reports := 0
	eng.OnTick = func(tick uint64, dt float64) {
		if pilot != nil {
			pilot.drive(sim, tick)
		}
		sim.Step(tick, dt)
		if *maxTicks > 0 && tick >= startTick+*maxTicks {
			eng.Stop()
		}
	}
	eng.OnReport = func(tick uint64) {
		sim.Report(tick)
		reports++
		if *saveEvery > 0 && reports%*saveEvery == 0 {
			save("autosave")
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	var apiServer *api.Server
	if *port > 0 {
		adminKey := os.Getenv("FULLSIM_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("FULLSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		apiServer = &api.Server{Sim: sim, Eng: eng, DB: db, Port: *port, AdminKey: adminKey}
		apiServer.Start()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", *port)
	}

	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(startTick, sim.Interval()))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("API shutdown", "error", err)
		}
		cancel()
	}

	slog.Info("final save...")
	save("shutdown")

	snap := sim.Snapshot()
	slog.Info("simulation stopped",
		"tick", snap.Tick,
		"sim_time", snap.SimTime,
		"started", humanize.Time(started),
		"transfers", snap.Stats.TransfersCompleted,
		"givers_consumed", snap.Stats.GiversConsumed,
	)
}

// setupLogging picks a text handler on a terminal and JSON otherwise.
func setupLogging(level string) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

// eventBuffer holds events between database flushes.
type eventBuffer struct {
	mu  sync.Mutex
	evs []events.Event
}

func (b *eventBuffer) add(e events.Event) {
	b.mu.Lock()
	b.evs = append(b.evs, e)
	b.mu.Unlock()
}

func (b *eventBuffer) drain() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.evs
	b.evs = nil
	return out
}
