package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxelcolony.ai/internal/persistence/indexdb"
	"voxelcolony.ai/internal/sim/tuning"
	"voxelcolony.ai/internal/sim/world"
)

// runtimeIndex is the read model a run reports to. It never feeds back into
// the simulation.
type runtimeIndex interface {
	world.TickLogger
	Close() error
	RecordRun(r indexdb.RunRecord, tune tuning.Tuning) error
	FinishRun(sum world.Summary)
}

// openRuntimeIndex picks the backend from VC_INDEX_BACKEND (sqlite by
// default). A nil index with a nil error means indexing is off.
func openRuntimeIndex(dataDir, runID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VC_INDEX_BACKEND")))
	switch backend {
	case "", "sqlite":
		path := strings.TrimSpace(os.Getenv("VC_INDEX_SQLITE_PATH"))
		if path == "" {
			path = filepath.Join(dataDir, "index", "runs.sqlite")
		}
		idx, err := indexdb.OpenSQLite(path, runID)
		if err != nil {
			return nil, fmt.Errorf("sqlite index %s: %w", path, err)
		}
		logger.Printf("index: sqlite %s", path)
		return idx, nil
	case "d1":
		cfg := indexdb.D1Config{
			Endpoint:      os.Getenv("VC_INDEX_D1_INGEST_URL"),
			Token:         strings.TrimSpace(os.Getenv("VC_INDEX_D1_TOKEN")),
			RunID:         runID,
			BatchSize:     envInt("VC_INDEX_D1_BATCH_SIZE", 128),
			MaxRetained:   envInt("VC_INDEX_D1_MAX_RETAINED", 0),
			FlushInterval: time.Duration(envInt("VC_INDEX_D1_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		}
		idx, err := indexdb.OpenD1(cfg)
		if err != nil {
			return nil, fmt.Errorf("d1 index: %w", err)
		}
		logger.Printf("index: d1 %s batch=%d", strings.TrimSpace(cfg.Endpoint), cfg.BatchSize)
		return idx, nil
	case "none", "off":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported VC_INDEX_BACKEND %q (want sqlite, d1 or none)", backend)
	}
}

// envInt reads a positive integer, falling back to def.
func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
