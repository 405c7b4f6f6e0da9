package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"voxelcolony.ai/internal/persistence/indexdb"
	persistlog "voxelcolony.ai/internal/persistence/log"
	"voxelcolony.ai/internal/sim/scenario"
	"voxelcolony.ai/internal/sim/terrain"
	"voxelcolony.ai/internal/sim/tuning"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "./configs/scenarios/quarry.yaml", "scenario file")
		tuningPath   = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults are used if missing)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		ticks        = flag.Uint64("ticks", 1000, "ticks to run (0 runs until interrupted)")
		dt           = flag.Float64("dt", 0.2, "time units per tick")
		seed         = flag.Int64("seed", 0, "world seed (0 keeps the scenario seed)")
		rate         = flag.Int("rate", 0, "ticks per second (0 keeps the scenario rate; unpaced if unset)")
		addr         = flag.String("addr", "", "status http listen address (empty to disable)")
		disableDB    = flag.Bool("disable_db", false, "disable run indexing")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[colony] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	scen, err := scenario.Load(*scenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	if *rate > 0 {
		scen.TickRateHz = *rate
	}
	w, err := scenario.Build(scen, tune, *seed)
	if err != nil {
		logger.Fatalf("build world: %v", err)
	}
	w.SetLogger(log.New(os.Stdout, "[sim] ", log.LstdFlags|log.Lmicroseconds))

	runID := uuid.NewString()
	runDir := filepath.Join(*dataDir, "runs", runID)
	started := time.Now().UTC()
	if err := persistlog.WriteManifest(runDir, persistlog.RunManifest{
		RunID:    runID,
		Scenario: *scenarioPath,
		Tuning:   *tuningPath,
		Seed:     w.Config().Seed,
		DT:       *dt,
		Ticks:    *ticks,
		Started:  started,
	}); err != nil {
		logger.Fatalf("write manifest: %v", err)
	}

	tickLog := persistlog.NewTickLogger(runDir)
	defer func() {
		if err := tickLog.Close(); err != nil {
			logger.Printf("close tick log: %v", err)
		}
	}()

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(*dataDir, runID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		rec := indexdb.RunRecord{RunID: runID, WorldID: scen.ID, Scenario: *scenarioPath, Seed: w.Config().Seed, DT: *dt, StartedAt: started}
		if err := idx.RecordRun(rec, tune); err != nil {
			logger.Printf("index backend: record run: %v", err)
		}
	}

	st := newStatus(w)
	sinks := fanout{tickLog, st}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	w.SetTickLogger(sinks)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if strings.TrimSpace(*addr) != "" {
		srv := &http.Server{
			Addr:              *addr,
			Handler:           st.mux(runID),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(ctx2)
		}()
		go func() {
			logger.Printf("status listening on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("status server: %v", err)
			}
		}()
	}

	logger.Printf("run %s: scenario=%s seed=%d units=%d dir=%s", runID, scen.ID, w.Config().Seed, len(w.Units()), runDir)
	runErr := w.Run(ctx, *dt, *ticks)
	stop()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Printf("world stopped: %v", runErr)
	}

	sum := w.Summary()
	if idx != nil {
		idx.FinishRun(sum)
	}
	if err := tickLog.Flush(); err != nil {
		logger.Printf("flush tick log: %v", err)
	}
	sx, sy, sz := w.Grid().Size()
	if err := persistlog.WriteFinal(runDir, persistlog.FinalState{
		Tick:   w.CurrentTick(),
		Digest: w.Digest(),
		Size:   [3]int{sx, sy, sz},
		Grid:   terrain.EncodeRLE(w.Grid().Kinds()),
	}); err != nil {
		logger.Printf("write final state: %v", err)
	}
	fmt.Printf("run %s: tick=%d time=%.1f units=%d factions=%v materials=%d cave_ins=%d digest=%s\n",
		runID, sum.Tick, sum.Time, sum.Units, sum.Factions, sum.Materials, sum.CaveIns, w.Digest())
}
