package indexdb

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/tuning"
	"voxelcolony.ai/internal/sim/world"
)

// D1Config configures the HTTP ingest index (a worker in front of a
// Cloudflare D1 database).
type D1Config struct {
	Endpoint      string
	Token         string
	RunID         string
	BatchSize     int
	MaxRetained   int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

type D1Index struct {
	cfg        D1Config
	httpClient *http.Client

	ch   chan d1Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	queueDropped    atomic.Uint64
	retainedDropped atomic.Uint64
	flushFail       atomic.Uint64
}

// D1Stats counts what the ingest index failed to deliver.
type D1Stats struct {
	QueueDepth           int
	QueueCapacity        int
	QueueDroppedTotal    uint64
	RetainedDroppedTotal uint64
	FlushFailTotal       uint64
}

type d1Event struct {
	Kind    string `json:"kind"`
	RunID   string `json:"run_id"`
	Payload any    `json:"payload"`
}

type d1RunPayload struct {
	WorldID      string  `json:"world_id"`
	Scenario     string  `json:"scenario"`
	Seed         int64   `json:"seed"`
	DT           float64 `json:"dt"`
	TuningDigest string  `json:"tuning_digest"`
	TuningJSON   string  `json:"tuning_json"`
	StartedAt    string  `json:"started_at"`
}

type d1TickPayload struct {
	Tick   uint64           `json:"tick"`
	Time   float64          `json:"time"`
	Digest string           `json:"digest"`
	Events []protocol.Event `json:"events,omitempty"`
}

type d1FinishPayload struct {
	FinishedAt string `json:"finished_at"`
	FinalTick  uint64 `json:"final_tick"`
	Units      int    `json:"units"`
	Materials  int    `json:"materials"`
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.RunID = strings.TrimSpace(cfg.RunID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.RunID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 64 * cfg.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &D1Index{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		ch: make(chan d1Event, 32768),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()

	return d, nil
}

func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) Stats() D1Stats {
	return D1Stats{
		QueueDepth:           len(d.ch),
		QueueCapacity:        cap(d.ch),
		QueueDroppedTotal:    d.queueDropped.Load(),
		RetainedDroppedTotal: d.retainedDropped.Load(),
		FlushFailTotal:       d.flushFail.Load(),
	}
}

func (d *D1Index) WriteTick(entry world.TickLogEntry) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	d.enqueue(d1Event{Kind: "tick", RunID: d.cfg.RunID, Payload: d1TickPayload{
		Tick:   entry.Tick,
		Time:   entry.Time,
		Digest: entry.Digest,
		Events: entry.Events,
	}})
	return nil
}

func (d *D1Index) RecordRun(r RunRecord, tune tuning.Tuning) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	d.enqueue(d1Event{Kind: "run", RunID: d.cfg.RunID, Payload: d1RunPayload{
		WorldID:      r.WorldID,
		Scenario:     r.Scenario,
		Seed:         r.Seed,
		DT:           r.DT,
		TuningDigest: hex.EncodeToString(sum[:]),
		TuningJSON:   string(b),
		StartedAt:    r.StartedAt.UTC().Format(time.RFC3339Nano),
	}})
	return nil
}

func (d *D1Index) FinishRun(sum world.Summary) {
	if d == nil || d.closed.Load() {
		return
	}
	d.enqueue(d1Event{Kind: "finish", RunID: d.cfg.RunID, Payload: d1FinishPayload{
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
		FinalTick:  sum.Tick,
		Units:      sum.Units,
		Materials:  sum.Materials,
	}})
}

func (d *D1Index) enqueue(ev d1Event) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	default:
		d.queueDropped.Add(1)
		d.printf("d1 index queue full; drop kind=%s run=%s", ev.Kind, ev.RunID)
	}
}

func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]d1Event, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			// Keep the batch for the next flush; shed the oldest events
			// once too much is retained.
			d.flushFail.Add(1)
			d.printf("d1 index flush failed batch=%d err=%v", len(batch), err)
			if over := len(batch) - d.cfg.MaxRetained; over > 0 {
				d.retainedDropped.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(events []d1Event) error {
	if len(events) == 0 {
		return nil
	}

	body := struct {
		Events []d1Event `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-vc-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
