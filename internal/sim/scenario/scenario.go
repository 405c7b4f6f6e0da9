package scenario

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/material"
	"voxelcolony.ai/internal/sim/program"
	"voxelcolony.ai/internal/sim/terrain"
	"voxelcolony.ai/internal/sim/tuning"
	"voxelcolony.ai/internal/sim/unit"
	"voxelcolony.ai/internal/sim/world"
)

// Scenario is the starting state of a run.
type Scenario struct {
	ID   string `yaml:"id"`
	Size [3]int `yaml:"size"`
	Seed int64  `yaml:"seed"`
	// TickRateHz paces World.Run; 0 runs unpaced.
	TickRateHz int `yaml:"tick_rate_hz,omitempty"`

	// Layers lists the terrain bottom-up. Each layer is a list of rows (y),
	// each row a string of cubes (x): '.' air, '#' rock, 'T' tree,
	// 'W' workshop. Missing rows and columns are air.
	Layers    [][]string         `yaml:"layers"`
	Units     []UnitSpec         `yaml:"units"`
	Materials []MaterialSpec     `yaml:"materials,omitempty"`
	Programs  []program.Document `yaml:"programs,omitempty"`
}

type UnitSpec struct {
	Name             string          `yaml:"name"`
	At               [3]int          `yaml:"at"`
	Faction          *int            `yaml:"faction,omitempty"`
	Attributes       unit.Attributes `yaml:"attributes,omitempty"`
	DefaultBehaviour bool            `yaml:"default_behaviour"`
}

type MaterialSpec struct {
	Kind string `yaml:"kind"`
	At   [3]int `yaml:"at"`
}

//go:embed schema.json
var schemaJSON string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("scenario.schema.json", schemaJSON)
})

// Load reads a scenario file, checks its shape against the scenario schema,
// then normalizes and validates it.
func Load(path string) (Scenario, error) {
	var s Scenario
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := checkShape(b); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func checkShape(b []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	// The validator expects JSON values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func (s *Scenario) Normalize() {
	if strings.TrimSpace(s.ID) == "" {
		s.ID = "scenario"
	}
	for i := range s.Units {
		s.Units[i].Name = strings.TrimSpace(s.Units[i].Name)
		if s.Units[i].Name == "" {
			s.Units[i].Name = fmt.Sprintf("unit-%d", i)
		}
	}
}

func (s *Scenario) Validate() error {
	var errs []error
	if s.Size[0] <= 0 || s.Size[1] <= 0 || s.Size[2] <= 0 {
		errs = append(errs, fmt.Errorf("size must be positive (got %v)", s.Size))
	}
	if s.TickRateHz < 0 {
		errs = append(errs, fmt.Errorf("tick_rate_hz must not be negative"))
	}
	if len(s.Layers) > s.Size[2] {
		errs = append(errs, fmt.Errorf("%d layers exceed height %d", len(s.Layers), s.Size[2]))
	}
	for z, layer := range s.Layers {
		if len(layer) > s.Size[1] {
			errs = append(errs, fmt.Errorf("layer %d: %d rows exceed depth %d", z, len(layer), s.Size[1]))
		}
		for y, row := range layer {
			if len(row) > s.Size[0] {
				errs = append(errs, fmt.Errorf("layer %d row %d: %d cubes exceed width %d", z, y, len(row), s.Size[0]))
			}
			for x, ch := range row {
				if _, ok := kindOf(ch); !ok {
					errs = append(errs, fmt.Errorf("layer %d row %d column %d: unknown cube %q", z, y, x, ch))
				}
			}
		}
	}
	seen := map[string]bool{}
	for i, u := range s.Units {
		if seen[u.Name] {
			errs = append(errs, fmt.Errorf("units[%d]: duplicate name %q", i, u.Name))
		}
		seen[u.Name] = true
	}
	for i, m := range s.Materials {
		if _, ok := materialKind(m.Kind); !ok {
			errs = append(errs, fmt.Errorf("materials[%d]: unknown kind %q", i, m.Kind))
		}
	}
	for i, p := range s.Programs {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("programs[%d]: missing name", i))
		}
	}
	return errors.Join(errs...)
}

func kindOf(ch rune) (terrain.Kind, bool) {
	switch ch {
	case '.', ' ':
		return terrain.Air, true
	case '#':
		return terrain.Rock, true
	case 'T':
		return terrain.Tree, true
	case 'W':
		return terrain.Workshop, true
	default:
		return terrain.Air, false
	}
}

func materialKind(s string) (material.Kind, bool) {
	switch strings.ToLower(s) {
	case "log":
		return material.Log, true
	case "boulder":
		return material.Boulder, true
	default:
		return 0, false
	}
}

func cube(v [3]int) geom.Cube { return geom.Cube{X: v[0], Y: v[1], Z: v[2]} }

// Build creates the world described by s. A non-zero seed overrides the
// scenario seed.
func Build(s Scenario, tun tuning.Tuning, seed int64) (*world.World, error) {
	if seed == 0 {
		seed = s.Seed
	}
	w, err := world.New(world.WorldConfig{ID: s.ID, SizeX: s.Size[0], SizeY: s.Size[1], SizeZ: s.Size[2], Seed: seed, TickRateHz: s.TickRateHz}, tun)
	if err != nil {
		return nil, err
	}
	g := w.Grid()
	for z, layer := range s.Layers {
		for y, row := range layer {
			for x, ch := range row {
				k, ok := kindOf(ch)
				if !ok {
					return nil, fmt.Errorf("layer %d row %d column %d: unknown cube %q", z, y, x, ch)
				}
				if err := g.Set(geom.Cube{X: x, Y: y, Z: z}, k); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, m := range s.Materials {
		k, ok := materialKind(m.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown material %q", m.Kind)
		}
		if _, err := w.AddMaterial(k, cube(m.At)); err != nil {
			return nil, fmt.Errorf("material at %v: %w", m.At, err)
		}
	}
	for _, spec := range s.Units {
		cfg := unit.Config{Name: spec.Name, At: cube(spec.At), Attributes: spec.Attributes, DefaultBehaviour: spec.DefaultBehaviour}
		if spec.Faction != nil {
			_, err = w.AddUnit(cfg, *spec.Faction)
		} else {
			_, err = w.SpawnUnit(cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", spec.Name, err)
		}
	}
	opts := program.Options(w.Tuning())
	for i := range s.Programs {
		d := &s.Programs[i]
		f, err := w.Faction(d.Faction)
		if err != nil {
			return nil, fmt.Errorf("program %s: %w", d.Name, err)
		}
		tasks, err := d.Tasks(opts)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			f.Scheduler().AddTask(t)
		}
	}
	return w, nil
}
