package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"voxelcolony.ai/internal/sim/world"
)

// fanout hands every tick entry to each logger in turn.
type fanout []world.TickLogger

func (f fanout) WriteTick(e world.TickLogEntry) error {
	var errs []error
	for _, l := range f {
		if err := l.WriteTick(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type statusView struct {
	Tick      uint64  `json:"tick"`
	Time      float64 `json:"time"`
	Digest    string  `json:"digest"`
	Units     int     `json:"units"`
	Factions  []int   `json:"factions"`
	Materials int     `json:"materials"`
	CaveIns   int     `json:"cave_ins"`
	Events    uint64  `json:"events_total"`
}

// status publishes a copy of the world summary after every tick. WriteTick
// runs on the world goroutine; HTTP handlers only read the published copy.
type status struct {
	w      *world.World
	events uint64
	cur    atomic.Pointer[statusView]
}

func newStatus(w *world.World) *status {
	s := &status{w: w}
	s.cur.Store(&statusView{})
	return s
}

func (s *status) WriteTick(e world.TickLogEntry) error {
	s.events += uint64(len(e.Events))
	sum := s.w.Summary()
	s.cur.Store(&statusView{
		Tick:      e.Tick,
		Time:      sum.Time,
		Digest:    e.Digest,
		Units:     sum.Units,
		Factions:  sum.Factions,
		Materials: sum.Materials,
		CaveIns:   sum.CaveIns,
		Events:    s.events,
	})
	return nil
}

func (s *status) mux(runID string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			RunID string `json:"run_id"`
			*statusView
		}{RunID: runID, statusView: s.cur.Load()}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		v := s.cur.Load()
		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP voxelcolony_world_tick Last completed tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_world_tick gauge\n")
		fmt.Fprintf(rw, "voxelcolony_world_tick{run=%q} %d\n", runID, v.Tick)
		fmt.Fprintf(rw, "# HELP voxelcolony_world_units Live units.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_world_units gauge\n")
		fmt.Fprintf(rw, "voxelcolony_world_units{run=%q} %d\n", runID, v.Units)
		fmt.Fprintf(rw, "# HELP voxelcolony_faction_units Live units per faction.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_faction_units gauge\n")
		for id, n := range v.Factions {
			fmt.Fprintf(rw, "voxelcolony_faction_units{run=%q,faction=\"%d\"} %d\n", runID, id, n)
		}
		fmt.Fprintf(rw, "# HELP voxelcolony_world_materials Loose materials.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_world_materials gauge\n")
		fmt.Fprintf(rw, "voxelcolony_world_materials{run=%q} %d\n", runID, v.Materials)
		fmt.Fprintf(rw, "# HELP voxelcolony_world_cave_ins Pending cave-ins.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_world_cave_ins gauge\n")
		fmt.Fprintf(rw, "voxelcolony_world_cave_ins{run=%q} %d\n", runID, v.CaveIns)
		fmt.Fprintf(rw, "# HELP voxelcolony_events_total Events logged so far.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_events_total counter\n")
		fmt.Fprintf(rw, "voxelcolony_events_total{run=%q} %d\n", runID, v.Events)
	})
	return mux
}
