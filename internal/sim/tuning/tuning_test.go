package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	raw := `
falling:
  speed: 4
autonomy:
  - behaviour: rest
    weight: 2
    when: "HitPoints < MaxHitPoints"
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Falling.Speed != 4 {
		t.Fatalf("falling speed=%v want 4", tu.Falling.Speed)
	}
	if tu.Falling.DamagePerLevel != 10 {
		t.Fatalf("damage per level should keep default, got %v", tu.Falling.DamagePerLevel)
	}
	if len(tu.Autonomy) != 1 || tu.Autonomy[0].Behaviour != "rest" || tu.Autonomy[0].When == "" {
		t.Fatalf("autonomy not replaced: %#v", tu.Autonomy)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	raw := `
tick:
  micro_step: 0
autonomy:
  - behaviour: dance
    weight: 1
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"tick.micro_step", "unknown behaviour"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestLoadShippedConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Groups.Capacity != Defaults().Groups.Capacity {
		t.Fatalf("unexpected capacity %d", tu.Groups.Capacity)
	}
}
