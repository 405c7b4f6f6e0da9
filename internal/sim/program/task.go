package program

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/sched"
	"voxelcolony.ai/internal/sim/script"
	"voxelcolony.ai/internal/sim/tuning"
)

// Document is a named program with the cubes it was issued for.
type Document struct {
	Name     string    `yaml:"name"`
	Priority int       `yaml:"priority"`
	Faction  int       `yaml:"faction"`
	Selected [][3]int  `yaml:"selected,omitempty"`
	Program  yaml.Node `yaml:"program"`
}

// Compile decodes the program tree.
func (d *Document) Compile() (script.Statement, error) {
	if d.Program.Kind == 0 {
		return nil, fmt.Errorf("%w: program %q has no body", ErrSyntax, d.Name)
	}
	s, err := Statement(&d.Program)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", d.Name, err)
	}
	return s, nil
}

func (d *Document) SelectedCubes() []geom.Cube {
	out := make([]geom.Cube, 0, len(d.Selected))
	for _, s := range d.Selected {
		out = append(out, geom.Cube{X: s[0], Y: s[1], Z: s[2]})
	}
	return out
}

// Tasks compiles the document and builds its tasks.
func (d *Document) Tasks(opts sched.Options) ([]*sched.Task, error) {
	s, err := d.Compile()
	if err != nil {
		return nil, err
	}
	return Tasks(d.Name, d.Priority, s, d.SelectedCubes(), opts), nil
}

// Tasks builds one task per selected cube, or exactly one task with no
// selected cube. All tasks share the statement tree; each run forks it.
func Tasks(name string, priority int, program script.Statement, selected []geom.Cube, opts sched.Options) []*sched.Task {
	if len(selected) == 0 {
		return []*sched.Task{sched.NewTask(name, priority, program, script.None, opts)}
	}
	out := make([]*sched.Task, 0, len(selected))
	for _, c := range selected {
		label := fmt.Sprintf("%s@%d,%d,%d", name, c.X, c.Y, c.Z)
		out = append(out, sched.NewTask(label, priority, program, script.At(c), opts))
	}
	return out
}

// Options maps the tuning constants onto task options.
func Options(t *tuning.Tuning) sched.Options {
	return sched.Options{
		TickDuration:     t.Tick.TaskDuration,
		MicroStep:        t.Tick.MicroStep,
		InterruptPenalty: t.Tasks.InterruptPenalty,
	}
}
