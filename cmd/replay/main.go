package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "voxelcolony.ai/internal/persistence/log"
	"voxelcolony.ai/internal/sim/scenario"
	"voxelcolony.ai/internal/sim/terrain"
	"voxelcolony.ai/internal/sim/tuning"
	"voxelcolony.ai/internal/sim/world"
)

func main() {
	var (
		runDir       = flag.String("run", "", "run directory containing run.json and events/")
		scenarioPath = flag.String("scenario", "", "scenario file (default: from run.json)")
		tuningPath   = flag.String("tuning", "", "tuning file (default: from run.json)")
		unitName     = flag.String("unit", "", "print the events of this unit while replaying")
		fromTick     = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick       = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	m, err := persistlog.ReadManifest(*runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read manifest:", err)
		os.Exit(1)
	}
	if *scenarioPath != "" {
		m.Scenario = *scenarioPath
	}
	if *tuningPath != "" {
		m.Tuning = *tuningPath
	}
	fmt.Printf("run %s scenario=%s seed=%d dt=%v ticks=%d\n", m.RunID, m.Scenario, m.Seed, m.DT, m.Ticks)

	w, err := rebuild(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rebuild:", err)
		os.Exit(1)
	}

	files, err := persistlog.ListEventFiles(filepath.Join(*runDir, "events"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *runDir)
		os.Exit(1)
	}

	r := &replayer{w: w, dt: m.DT, verifyFrom: *fromTick, toTick: *toTick, unit: *unitName}
	for _, path := range files {
		err := persistlog.ReadTickLog(path, r.step)
		if errors.Is(err, errDone) {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay %s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
	}
	if err := checkFinal(*runDir, w); err != nil {
		fmt.Fprintln(os.Stderr, "final state:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (last tick=%d)\n", r.checked, w.CurrentTick())
}

// checkFinal compares the replayed grid with the one the run stopped on. It is
// skipped when the run has no final state or the replay stopped early.
func checkFinal(runDir string, w *world.World) error {
	f, err := persistlog.ReadFinal(runDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if f.Tick != w.CurrentTick() {
		return nil
	}
	want, err := terrain.DecodeRLE(f.Grid)
	if err != nil {
		return err
	}
	got := w.Grid().Kinds()
	if len(got) != len(want) {
		return fmt.Errorf("grid size: got=%d want=%d cubes", len(got), len(want))
	}
	diff := 0
	for i := range got {
		if got[i] != want[i] {
			diff++
		}
	}
	if diff > 0 {
		return fmt.Errorf("%d cubes differ at tick %d", diff, f.Tick)
	}
	if d := w.Digest(); d != f.Digest {
		return fmt.Errorf("digest: got=%s want=%s", d, f.Digest)
	}
	return nil
}

func rebuild(m persistlog.RunManifest) (*world.World, error) {
	tune := tuning.Defaults()
	if strings.TrimSpace(m.Tuning) != "" {
		t, err := tuning.Load(m.Tuning)
		switch {
		case err == nil:
			tune = t
		case os.IsNotExist(err):
			// The run itself fell back to defaults.
		default:
			return nil, err
		}
	}
	s, err := scenario.Load(m.Scenario)
	if err != nil {
		return nil, err
	}
	return scenario.Build(s, tune, m.Seed)
}

var errDone = errors.New("replay: reached to_tick")

type replayer struct {
	w          *world.World
	dt         float64
	verifyFrom uint64
	toTick     uint64
	unit       string
	checked    uint64
}

func (r *replayer) step(entry world.TickLogEntry) error {
	if r.toTick != 0 && entry.Tick > r.toTick {
		return errDone
	}
	if entry.Tick != r.w.CurrentTick() {
		return fmt.Errorf("tick gap: want=%d got=%d", r.w.CurrentTick(), entry.Tick)
	}
	tick, digest, err := r.w.StepOnce(r.dt)
	if err != nil {
		return err
	}
	if tick != entry.Tick {
		return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
	}
	if r.unit != "" {
		for _, ev := range entry.Events {
			if ev["unit"] == r.unit || ev["target"] == r.unit {
				fmt.Printf("tick %d %s %v\n", entry.Tick, ev.Type(), ev)
			}
		}
	}
	if tick >= r.verifyFrom {
		r.checked++
		if digest != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
		}
	}
	return nil
}
