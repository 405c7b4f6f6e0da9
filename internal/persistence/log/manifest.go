package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	manifestName = "run.json"
	finalName    = "final.json"
)

// RunManifest records what a run directory was produced from, so the run can
// be replayed.
type RunManifest struct {
	RunID    string    `json:"run_id"`
	Scenario string    `json:"scenario"`
	Tuning   string    `json:"tuning,omitempty"`
	Seed     int64     `json:"seed"`
	DT       float64   `json:"dt"`
	Ticks    uint64    `json:"ticks"`
	Started  time.Time `json:"started"`
}

// FinalState is the world as it was when the run stopped. Grid holds the cube
// kinds in grid order, run-length encoded.
type FinalState struct {
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`
	Size   [3]int `json:"size"`
	Grid   string `json:"grid"`
}

func WriteManifest(runDir string, m RunManifest) error {
	return writeJSON(runDir, manifestName, m)
}

func ReadManifest(runDir string) (RunManifest, error) {
	var m RunManifest
	err := readJSON(runDir, manifestName, &m)
	return m, err
}

func WriteFinal(runDir string, f FinalState) error {
	return writeJSON(runDir, finalName, f)
}

// ReadFinal returns an os.IsNotExist error for runs that were cut short.
func ReadFinal(runDir string) (FinalState, error) {
	var f FinalState
	err := readJSON(runDir, finalName, &f)
	return f, err
}

func writeJSON(runDir, name string, v any) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(runDir, name+".tmp")
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(runDir, name))
}

func readJSON(runDir, name string, v any) error {
	b, err := os.ReadFile(filepath.Join(runDir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
