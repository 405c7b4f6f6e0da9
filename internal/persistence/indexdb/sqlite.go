package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/tuning"
	"voxelcolony.ai/internal/sim/world"
)

// RunRecord describes one simulation run.
type RunRecord struct {
	RunID     string
	WorldID   string
	Scenario  string
	Seed      int64
	DT        float64
	StartedAt time.Time
}

// Stats counts requests dropped because the writer fell behind.
type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropTickTotal  uint64
	DropRunTotal   uint64
	FlushFailTotal uint64
}

type SQLiteIndex struct {
	db    *sql.DB
	runID string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropRun   atomic.Uint64
	flushFail atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqFinish
)

type req struct {
	kind reqKind

	tick    world.TickLogEntry
	summary world.Summary
}

// OpenSQLite opens (or creates) the index at path. Ticks written through the
// returned index are attributed to runID.
func OpenSQLite(path, runID string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		// Large enough that a fast unpaced run does not drop ticks.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			scenario TEXT NOT NULL,
			seed INTEGER NOT NULL,
			dt REAL NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			final_tick INTEGER,
			units INTEGER,
			materials INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			time REAL NOT NULL,
			digest TEXT NOT NULL,
			events INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			unit TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_unit_tick ON events(run_id, unit, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(run_id, type, tick);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			task TEXT NOT NULL,
			unit TEXT NOT NULL,
			event TEXT NOT NULL,
			priority INTEGER,
			code TEXT,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_task_tick ON tasks(run_id, task, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropRunTotal:   s.dropRun.Load(),
		FlushFailTotal: s.flushFail.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

// RecordRun stores the run row together with the tuning it runs under.
func (s *SQLiteIndex) RecordRun(r RunRecord, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO runs(run_id,world_id,scenario,seed,dt,tuning_digest,tuning_json,started_at) VALUES(?,?,?,?,?,?,?,?)`,
		r.RunID, r.WorldID, r.Scenario, r.Seed, r.DT, hex.EncodeToString(sum[:]), string(b), r.StartedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// FinishRun records the final state of the run once queued ticks are written.
func (s *SQLiteIndex) FinishRun(sum world.Summary) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqFinish, summary: sum}:
	default:
		s.dropRun.Add(1)
	}
}

// TickRow is one indexed tick.
type TickRow struct {
	Tick   uint64
	Time   float64
	Digest string
	Events int
}

// Ticks returns the indexed ticks of a run in order.
func (s *SQLiteIndex) Ticks(ctx context.Context, runID string) ([]TickRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tick,time,digest,events FROM ticks WHERE run_id=? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var r TickRow
		var tick int64
		if err := rows.Scan(&tick, &r.Time, &r.Digest, &r.Events); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TaskRow is one task lifecycle event.
type TaskRow struct {
	Tick     uint64
	Task     string
	Unit     string
	Event    string
	Priority int
	Code     string
}

// TaskHistory returns the lifecycle events of task in a run, oldest first.
func (s *SQLiteIndex) TaskHistory(ctx context.Context, runID, task string) ([]TaskRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick,task,unit,event,COALESCE(priority,0),COALESCE(code,'') FROM tasks WHERE run_id=? AND task=? ORDER BY tick,seq`,
		runID, task)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskRow
	for rows.Next() {
		var r TaskRow
		var tick int64
		if err := rows.Scan(&tick, &r.Task, &r.Unit, &r.Event, &r.Priority, &r.Code); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,time,digest,events) VALUES(?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(run_id,tick,seq,type,unit,raw_json) VALUES(?,?,?,?,?,?)`)
	insertTask, _ := s.db.Prepare(`INSERT OR REPLACE INTO tasks(run_id,tick,seq,task,unit,event,priority,code) VALUES(?,?,?,?,?,?,?,?)`)
	finishRun, _ := s.db.Prepare(`UPDATE runs SET finished_at=?, final_tick=?, units=?, materials=? WHERE run_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertEvent, insertTask, finishRun} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.flushFail.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.flushFail.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			tick := int64(e.Tick)
			if !exec(insertTick, s.runID, tick, e.Time, e.Digest, len(e.Events)) {
				continue
			}
			for i, ev := range e.Events {
				raw, _ := json.Marshal(ev)
				if !exec(insertEvent, s.runID, tick, i, ev.Type(), nullString(eventString(ev, "unit")), string(raw)) {
					break
				}
				if !isTaskEvent(ev.Type()) {
					continue
				}
				prio, hasPrio := eventInt(ev, "priority")
				var p any
				if hasPrio {
					p = prio
				}
				if !exec(insertTask, s.runID, tick, i, eventString(ev, "task"), eventString(ev, "unit"), ev.Type(), p, nullString(eventString(ev, "code"))) {
					break
				}
			}

		case reqFinish:
			sum := r.summary
			exec(finishRun, time.Now().UTC().Format(time.RFC3339Nano), int64(sum.Tick), sum.Units, sum.Materials, s.runID)
			// Make the final row visible right away.
			commit()
			continue
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func isTaskEvent(typ string) bool {
	switch typ {
	case protocol.EventTaskBound, protocol.EventTaskInterrupted, protocol.EventTaskFinished:
		return true
	}
	return false
}

func eventString(ev protocol.Event, key string) string {
	s, _ := ev[key].(string)
	return s
}

func eventInt(ev protocol.Event, key string) (int, bool) {
	switch v := ev[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
