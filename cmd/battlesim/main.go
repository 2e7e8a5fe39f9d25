// Package main provides the headless battle simulator: it loads an encounter
// and plays it to completion with a scripted autopilot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/riposte/internal/config"
	"github.com/cory-johannsen/riposte/internal/game/dice"
	"github.com/cory-johannsen/riposte/internal/game/encounter"
	"github.com/cory-johannsen/riposte/internal/game/qte"
	"github.com/cory-johannsen/riposte/internal/observability"
	"github.com/cory-johannsen/riposte/internal/scripting"
	"github.com/cory-johannsen/riposte/internal/sim"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	encounterPath := flag.String("encounter", "content/encounters/gauntlet.yaml", "path to encounter YAML file")
	contentDir := flag.String("content", "content", "content root holding players/ and enemies/ template directories")
	scriptPath := flag.String("script", "", "Lua autopilot script; empty = attack every turn and parry at the window center")
	seed := flag.Int64("seed", 0, "RNG seed; 0 = encounter seed, then battle.seed, then random")
	qteOnly := flag.Int("qte-only", 0, "run N standalone parry windows instead of an encounter")
	realtime := flag.Bool("realtime", false, "pace frames in wall-clock time at simulation.tick")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *qteOnly > 0 {
		runParries(ctx, cfg, logger, *seed, *qteOnly, *scriptPath)
		return
	}

	enc, err := encounter.LoadFile(*encounterPath)
	if err != nil {
		logger.Fatal("loading encounter", zap.Error(err))
	}
	catalog, err := encounter.LoadCatalog(*contentDir)
	if err != nil {
		logger.Fatal("loading content", zap.String("dir", *contentDir), zap.Error(err))
	}
	player, waves, err := enc.Resolve(catalog)
	if err != nil {
		logger.Fatal("resolving encounter", zap.Error(err))
	}

	runSeed, err := sim.ResolveSeed(*seed, enc.Seed, cfg.Battle.Seed)
	if err != nil {
		logger.Fatal("drawing seed", zap.Error(err))
	}
	pilot := newPilot(logger, runSeed, *scriptPath)
	defer pilot.Close()

	opts := sim.Options{
		Config:    cfg,
		Player:    player,
		Waves:     waves,
		Seed:      runSeed,
		Autopilot: pilot,
		Logger:    logger,
	}
	if *realtime {
		opts.Clock = sim.NewClock(cfg.Simulation.Tick, cfg.Simulation.Tick)
	}

	logger.Info("starting encounter",
		zap.String("encounter", enc.ID),
		zap.String("player", player.ID),
		zap.Int("waves", len(waves)),
		zap.Int64("seed", runSeed),
		zap.Duration("startup", time.Since(start)),
	)

	sum, err := sim.Run(ctx, opts)
	printSummary(enc, sum)
	if err != nil {
		logger.Error("simulation stopped early", zap.Error(err))
		os.Exit(1)
	}
}

func newPilot(logger *zap.Logger, seed int64, path string) *scripting.Autopilot {
	pilot := scripting.NewAutopilot(dice.NewSeededSource(seed+1), 0, logger)
	if path == "" {
		return pilot
	}
	if err := pilot.LoadFile(filepath.Clean(path)); err != nil {
		pilot.Close()
		logger.Fatal("loading autopilot script", zap.Error(err))
	}
	logger.Info("autopilot script loaded", zap.String("path", path))
	return pilot
}

func runParries(ctx context.Context, cfg config.Config, logger *zap.Logger, seed int64, n int, scriptPath string) {
	runSeed, err := sim.ResolveSeed(seed, cfg.Battle.Seed)
	if err != nil {
		logger.Fatal("drawing seed", zap.Error(err))
	}
	pilot := newPilot(logger, runSeed, scriptPath)
	defer pilot.Close()

	results, err := sim.RunParrySessions(ctx, cfg, runSeed, n, pilot, logger)
	counts := make(map[qte.Quality]int)
	for i, r := range results {
		counts[r.Quality]++
		hit := "none"
		if r.HitTime != qte.NoHit {
			hit = r.HitTime.String()
		}
		fmt.Printf("%3d  key=%-5s center=%.3f  %-7s accuracy=%.3f hit=%s\n",
			i+1, r.Window.RequiredKey, r.Window.Center, r.Quality, r.Accuracy, hit)
	}
	fmt.Printf("seed %d: %d perfect, %d success, %d fail\n",
		runSeed, counts[qte.QualityPerfect], counts[qte.QualitySuccess], counts[qte.QualityFail])
	if err != nil {
		logger.Error("parry sessions stopped early", zap.Error(err))
	}
}

func printSummary(enc *encounter.Encounter, s sim.Summary) {
	fmt.Printf("encounter %s (%s)\n", enc.ID, enc.Name)
	fmt.Printf("  battle   %s seed %d\n", s.BattleID, s.Seed)
	fmt.Printf("  outcome  %s after %v (%d frames, %d turns)\n", s.Outcome, s.Elapsed, s.Frames, s.Turns)
	fmt.Printf("  waves    %d/%d cleared\n", s.WavesCleared, s.Waves)
	fmt.Printf("  player   %d/%d HP, peak combo %s\n", s.PlayerHP, s.PlayerMaxHP, s.PeakStage)
	fmt.Printf("  parries  %d perfect, %d success, %d fail\n",
		s.Parries[qte.QualityPerfect], s.Parries[qte.QualitySuccess], s.Parries[qte.QualityFail])
}
