package unit

import (
	"fmt"
	"math/rand"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"voxelcolony.ai/internal/sim/tuning"
)

// Default behaviours an idle unit can pick.
const (
	BehaviourFight = "fight"
	BehaviourWork  = "work"
	BehaviourRest  = "rest"
	BehaviourMove  = "move"
)

// AutonomyEnv is the snapshot autonomy guards are evaluated against.
type AutonomyEnv struct {
	HitPoints    float64 `expr:"hp"`
	MaxHitPoints float64 `expr:"max_hp"`
	Stamina      float64 `expr:"stamina"`
	MaxStamina   float64 `expr:"max_stamina"`
	Carrying     bool    `expr:"carrying"`
	Z            int     `expr:"z"`
	Experience   int     `expr:"experience"`
	EnemiesNear  int     `expr:"enemies_near"`
	Enemies      int     `expr:"enemies"`
	Friends      int     `expr:"friends"`
}

type autonomyRule struct {
	behaviour string
	weight    float64
	guard     *vm.Program
}

// Autonomy picks a default behaviour by weighted chance among the rules whose
// guard holds. Rules are compiled once and shared by every unit.
type Autonomy struct {
	rules []autonomyRule
}

func NewAutonomy(rules []tuning.AutonomyRule) (*Autonomy, error) {
	a := &Autonomy{}
	for i, r := range rules {
		switch r.Behaviour {
		case BehaviourFight, BehaviourWork, BehaviourRest, BehaviourMove:
		default:
			return nil, fmt.Errorf("autonomy[%d]: unknown behaviour %q", i, r.Behaviour)
		}
		ar := autonomyRule{behaviour: r.Behaviour, weight: r.Weight}
		if r.When != "" {
			prog, err := expr.Compile(r.When, expr.Env(AutonomyEnv{}), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("autonomy[%d] %s: %w", i, r.Behaviour, err)
			}
			ar.guard = prog
		}
		a.rules = append(a.rules, ar)
	}
	return a, nil
}

// Choose returns the picked behaviour, or "" when no rule applies.
func (a *Autonomy) Choose(env AutonomyEnv, r *rand.Rand) (string, error) {
	var eligible []autonomyRule
	total := 0.0
	for _, rule := range a.rules {
		if rule.weight <= 0 {
			continue
		}
		if rule.guard != nil {
			out, err := vm.Run(rule.guard, env)
			if err != nil {
				return "", fmt.Errorf("autonomy %s: %w", rule.behaviour, err)
			}
			if ok, _ := out.(bool); !ok {
				continue
			}
		}
		eligible = append(eligible, rule)
		total += rule.weight
	}
	if len(eligible) == 0 {
		return "", nil
	}
	x := r.Float64() * total
	for _, rule := range eligible {
		if x < rule.weight {
			return rule.behaviour, nil
		}
		x -= rule.weight
	}
	return eligible[len(eligible)-1].behaviour, nil
}
