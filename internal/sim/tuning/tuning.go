package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds every empirically fixed constant of the simulation.
type Tuning struct {
	Tick       Tick           `yaml:"tick" json:"tick"`
	Movement   Movement       `yaml:"movement" json:"movement"`
	Falling    Falling        `yaml:"falling" json:"falling"`
	Work       Work           `yaml:"work" json:"work"`
	Combat     Combat         `yaml:"combat" json:"combat"`
	Rest       Rest           `yaml:"rest" json:"rest"`
	Experience Experience     `yaml:"experience" json:"experience"`
	Attributes Attributes     `yaml:"attributes" json:"attributes"`
	Groups     Groups         `yaml:"groups" json:"groups"`
	Tasks      Tasks          `yaml:"tasks" json:"tasks"`
	Terrain    Terrain        `yaml:"terrain" json:"terrain"`
	Autonomy   []AutonomyRule `yaml:"autonomy" json:"autonomy"`
}

type Tick struct {
	MaxDuration  float64 `yaml:"max_duration" json:"max_duration"`
	MicroStep    float64 `yaml:"micro_step" json:"micro_step"`
	TaskDuration float64 `yaml:"task_duration" json:"task_duration"`
}

type Movement struct {
	BaseSpeedFactor      float64 `yaml:"base_speed_factor" json:"base_speed_factor"`
	UpFactor             float64 `yaml:"up_factor" json:"up_factor"`
	DownFactor           float64 `yaml:"down_factor" json:"down_factor"`
	SprintMultiplier     float64 `yaml:"sprint_multiplier" json:"sprint_multiplier"`
	SprintStaminaPerSec  float64 `yaml:"sprint_stamina_per_sec" json:"sprint_stamina_per_sec"`
	AutonomousSprintRate float64 `yaml:"autonomous_sprint_chance" json:"autonomous_sprint_chance"`
}

type Falling struct {
	Speed          float64 `yaml:"speed" json:"speed"`
	DamagePerLevel float64 `yaml:"damage_per_level" json:"damage_per_level"`
}

type Work struct {
	// Duration of one job is DurationNumerator / strength.
	DurationNumerator float64 `yaml:"duration_numerator" json:"duration_numerator"`
}

type Combat struct {
	AttackDuration float64 `yaml:"attack_duration" json:"attack_duration"`
	DodgeFactor    float64 `yaml:"dodge_factor" json:"dodge_factor"`
	BlockFactor    float64 `yaml:"block_factor" json:"block_factor"`
	DamageDivisor  float64 `yaml:"damage_divisor" json:"damage_divisor"`
}

type Rest struct {
	Interval        float64 `yaml:"interval" json:"interval"`
	HitPointDivisor float64 `yaml:"hit_point_divisor" json:"hit_point_divisor"`
	StaminaDivisor  float64 `yaml:"stamina_divisor" json:"stamina_divisor"`
	ForcedInterval  float64 `yaml:"forced_interval" json:"forced_interval"`
}

type Experience struct {
	Move               int `yaml:"move" json:"move"`
	Work               int `yaml:"work" json:"work"`
	Combat             int `yaml:"combat" json:"combat"`
	PointsPerAttribute int `yaml:"points_per_attribute" json:"points_per_attribute"`
}

type Attributes struct {
	Min        int `yaml:"min" json:"min"`
	Max        int `yaml:"max" json:"max"`
	InitialMin int `yaml:"initial_min" json:"initial_min"`
	InitialMax int `yaml:"initial_max" json:"initial_max"`
}

type Groups struct {
	Capacity    int `yaml:"capacity" json:"capacity"`
	MaxFactions int `yaml:"max_factions" json:"max_factions"`
}

type Tasks struct {
	InterruptPenalty int `yaml:"interrupt_penalty" json:"interrupt_penalty"`
}

type Terrain struct {
	CollapseDropChance float64 `yaml:"collapse_drop_chance" json:"collapse_drop_chance"`
	CaveInMaxDelay     float64 `yaml:"cave_in_max_delay" json:"cave_in_max_delay"`
	MaterialMinWeight  int     `yaml:"material_min_weight" json:"material_min_weight"`
	MaterialMaxWeight  int     `yaml:"material_max_weight" json:"material_max_weight"`
}

// AutonomyRule is one weighted default-behaviour choice. When is an optional
// expr guard evaluated against the unit's AutonomyEnv.
type AutonomyRule struct {
	Behaviour string  `yaml:"behaviour" json:"behaviour"`
	Weight    float64 `yaml:"weight" json:"weight"`
	When      string  `yaml:"when,omitempty" json:"when,omitempty"`
}

// Defaults returns the constants of the original design.
func Defaults() Tuning {
	return Tuning{
		Tick: Tick{
			MaxDuration:  0.2,
			MicroStep:    0.001,
			TaskDuration: 0.2,
		},
		Movement: Movement{
			BaseSpeedFactor:      1.5,
			UpFactor:             0.5,
			DownFactor:           1.2,
			SprintMultiplier:     2,
			SprintStaminaPerSec:  10,
			AutonomousSprintRate: 0.05,
		},
		Falling: Falling{
			Speed:          3,
			DamagePerLevel: 10,
		},
		Work: Work{DurationNumerator: 500},
		Combat: Combat{
			AttackDuration: 1,
			DodgeFactor:    0.2,
			BlockFactor:    0.25,
			DamageDivisor:  10,
		},
		Rest: Rest{
			Interval:        0.2,
			HitPointDivisor: 200,
			StaminaDivisor:  100,
			ForcedInterval:  180,
		},
		Experience: Experience{
			Move:               1,
			Work:               10,
			Combat:             20,
			PointsPerAttribute: 10,
		},
		Attributes: Attributes{
			Min:        1,
			Max:        200,
			InitialMin: 25,
			InitialMax: 100,
		},
		Groups: Groups{
			Capacity:    50,
			MaxFactions: 5,
		},
		Tasks: Tasks{InterruptPenalty: 1},
		Terrain: Terrain{
			CollapseDropChance: 0.25,
			CaveInMaxDelay:     5,
			MaterialMinWeight:  10,
			MaterialMaxWeight:  50,
		},
		Autonomy: []AutonomyRule{
			{Behaviour: "fight", Weight: 1},
			{Behaviour: "work", Weight: 1},
			{Behaviour: "rest", Weight: 1},
			{Behaviour: "move", Weight: 1},
		},
	}
}

// Load reads a tuning file on top of Defaults. Keys absent from the file keep
// their default values; a present autonomy list replaces the default list.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0 (got %v)", name, v))
		}
	}
	positive("tick.max_duration", t.Tick.MaxDuration)
	positive("tick.micro_step", t.Tick.MicroStep)
	positive("tick.task_duration", t.Tick.TaskDuration)
	positive("movement.base_speed_factor", t.Movement.BaseSpeedFactor)
	positive("falling.speed", t.Falling.Speed)
	positive("work.duration_numerator", t.Work.DurationNumerator)
	positive("combat.attack_duration", t.Combat.AttackDuration)
	positive("combat.damage_divisor", t.Combat.DamageDivisor)
	positive("rest.interval", t.Rest.Interval)
	positive("rest.hit_point_divisor", t.Rest.HitPointDivisor)
	positive("rest.stamina_divisor", t.Rest.StaminaDivisor)
	positive("rest.forced_interval", t.Rest.ForcedInterval)

	if t.Tick.MicroStep > t.Tick.TaskDuration {
		errs = append(errs, fmt.Errorf("tick.micro_step must not exceed tick.task_duration"))
	}
	if t.Attributes.Min < 1 || t.Attributes.Max < t.Attributes.Min {
		errs = append(errs, fmt.Errorf("attributes: invalid range [%d,%d]", t.Attributes.Min, t.Attributes.Max))
	}
	if t.Attributes.InitialMin < t.Attributes.Min || t.Attributes.InitialMax > t.Attributes.Max || t.Attributes.InitialMax < t.Attributes.InitialMin {
		errs = append(errs, fmt.Errorf("attributes: invalid initial range [%d,%d]", t.Attributes.InitialMin, t.Attributes.InitialMax))
	}
	if t.Groups.Capacity <= 0 || t.Groups.MaxFactions <= 0 {
		errs = append(errs, fmt.Errorf("groups: capacity and max_factions must be > 0"))
	}
	if t.Tasks.InterruptPenalty <= 0 {
		errs = append(errs, fmt.Errorf("tasks.interrupt_penalty must be > 0"))
	}
	if t.Terrain.CollapseDropChance < 0 || t.Terrain.CollapseDropChance > 1 {
		errs = append(errs, fmt.Errorf("terrain.collapse_drop_chance must be within [0,1]"))
	}
	if t.Terrain.MaterialMinWeight <= 0 || t.Terrain.MaterialMaxWeight < t.Terrain.MaterialMinWeight {
		errs = append(errs, fmt.Errorf("terrain: invalid material weight range"))
	}
	for i, r := range t.Autonomy {
		switch r.Behaviour {
		case "fight", "work", "rest", "move":
		default:
			errs = append(errs, fmt.Errorf("autonomy[%d]: unknown behaviour %q", i, r.Behaviour))
		}
		if r.Weight < 0 {
			errs = append(errs, fmt.Errorf("autonomy[%d]: negative weight", i))
		}
	}
	return errors.Join(errs...)
}
