package main

import (
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"arena-core/internal/api"
	"arena-core/internal/combat"
	"arena-core/internal/config"
	"arena-core/internal/geom"
	"arena-core/internal/network"
	"arena-core/internal/sim"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎯 ================================")
	log.Println("🎯  ARENA CORE")
	log.Println("🎯 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()

	role := getEnvWithDefault("ROLE", "host")
	log.Printf("🎮 Role: %s, %d TPS, %d Hz snapshots", role, appConfig.Sim.TickRate, appConfig.Sim.SnapshotHz)

	// Start debug server
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	// Match journal
	journal := combat.NewJournal()
	if appConfig.Journal.Enabled {
		if err := journal.Start(appConfig.Journal.Path); err != nil {
			log.Printf("⚠️ Journal disabled: %v", err)
		} else if appConfig.Journal.Path != "" {
			log.Printf("📝 Journal: %s", appConfig.Journal.Path)
		}
	}

	switch role {
	case "host":
		runHost(appConfig, journal)
	case "client":
		runClient(appConfig, journal)
	default:
		log.Fatalf("Unknown ROLE %q (want host or client)", role)
	}

	journal.Stop()
	log.Println("👋 Goodbye!")
}

// arenaSolids is the static world geometry occluding shots: the floor
// is implicit (ground clamp), so just a center cover block and two side
// pillars.
func arenaSolids() []geom.Shape {
	return []geom.Shape{
		{Kind: geom.KindBox, Center: geom.Vec3{Y: 1, Z: 0}, HalfW: 1.5, HalfH: 1, HalfD: 0.4},
		{Kind: geom.KindCylinder, Center: geom.Vec3{X: -4, Y: 1.5, Z: 0}, Radius: 0.5, HalfHeight: 1.5},
		{Kind: geom.KindCylinder, Center: geom.Vec3{X: 4, Y: 1.5, Z: 0}, Radius: 0.5, HalfHeight: 1.5},
	}
}

func runHost(cfg config.AppConfig, journal *combat.Journal) {
	registry := combat.NewWeaponRegistry()

	match := sim.NewMatch(sim.MatchOptions{
		Host:       true,
		LocalName:  getEnvWithDefault("PLAYER_NAME", "host"),
		RemoteName: "challenger",
		Class:      "soldier",
		WeaponID:   getEnvWithDefault("WEAPON", "rifle"),
		Registry:   registry,
		Solids:     arenaSolids(),
		Journal:    journal,
		Sim:        cfg.Sim,
		Movement:   cfg.Movement,
		Tuning:     cfg.Tuning,
	})

	server := api.NewServer(match, registry, journal, cfg.Net.PeerPath, func(link *network.WSLink) {
		match.AttachTransport(link)
	})
	defer server.Stop()

	go func() {
		addr := ":" + strconv.Itoa(cfg.Net.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("🔗 Waiting for peer on ws://localhost:%d%s", cfg.Net.Port, cfg.Net.PeerPath)

	runLoop(match, cfg, journal)
}

func runClient(cfg config.AppConfig, journal *combat.Journal) {
	link, err := network.DialWS(cfg.Net.HostURL)
	if err != nil {
		log.Fatalf("Failed to reach host: %v", err)
	}
	log.Printf("🔗 Connected to host at %s", cfg.Net.HostURL)

	match := sim.NewMatch(sim.MatchOptions{
		Host:       false,
		LocalName:  getEnvWithDefault("PLAYER_NAME", "challenger"),
		RemoteName: "host",
		Class:      "soldier",
		WeaponID:   getEnvWithDefault("WEAPON", "rifle"),
		Solids:     arenaSolids(),
		Journal:    journal,
		Transport:  link,
		Sim:        cfg.Sim,
		Movement:   cfg.Movement,
		Tuning:     cfg.Tuning,
	})

	runLoop(match, cfg, journal)
}

// runLoop drives the fixed-rate tick until a signal or a fatal
// disconnect. Input capture belongs to the embedding front end; a
// headless peer runs on neutral input.
func runLoop(match *sim.Match, cfg config.AppConfig, journal *combat.Journal) {
	ticker := time.NewTicker(time.Second / time.Duration(cfg.Sim.TickRate))
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Simulation running. Press Ctrl+C to stop.")

	var lastStale, lastJournalDropped, lastSnapshots uint64
	for {
		select {
		case <-quit:
			log.Println("🛑 Shutting down...")
			match.Teardown()
			return

		case now := <-ticker.C:
			start := time.Now()
			report := match.Tick(now, sim.Input{})
			api.RecordTick(time.Since(start))

			if report.ShotsFired > 0 {
				api.RecordShots(report.ShotsFired)
			}
			if report.Reconciled {
				api.RecordReconcile(math.Sqrt(report.Reconcile.ErrorSq), report.Reconcile.Snapped)
			}

			status := match.Status()
			api.UpdateProjectileCount(status.Projectiles)
			for ; lastSnapshots < status.SnapshotsSent; lastSnapshots++ {
				api.RecordSnapshotSent()
			}
			if d := status.StaleDropped - lastStale; d > 0 {
				api.RecordStaleDropped(d)
				lastStale = status.StaleDropped
			}
			if d := journal.DroppedCount() - lastJournalDropped; d > 0 {
				api.RecordJournalDropped(d)
				lastJournalDropped = journal.DroppedCount()
			}

			if report.Disconnected {
				log.Printf("🔌 Connection lost: %s", report.DisconnectReason)
				return
			}
			if report.RoundOver {
				log.Printf("🏆 Round over, winner %s", report.WinnerID)
				match.Teardown()
				return
			}
		}
	}
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
