package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/pool"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/rng"
)

const validYAML = `
default_pool: standard
pools:
  standard:
    - name: pebble
      weight: 100
      value: "1"
      tier: common
    - name: geode
      weight: 10
      value: "25"
      tier: rare
    - name: meteorite
      weight: 1
      value: "400"
      tier: legendary
  event:
    - name: confetti
      weight: 50
      value: "2.5"
      tier: common
`

func TestParse_Valid(t *testing.T) {
	c, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if c.DefaultName() != "standard" {
		t.Errorf("default name = %q, want standard", c.DefaultName())
	}
	def := c.Default()
	if def == nil {
		t.Fatal("Default() returned nil")
	}
	if got := def.TotalWeight(); got != 111 {
		t.Errorf("default pool total weight = %v, want 111", got)
	}
	if _, ok := c.Pool("event"); !ok {
		t.Error("pool event not found")
	}
	if _, ok := c.Pool("nope"); ok {
		t.Error("unknown pool should not resolve")
	}

	names := c.Names()
	if len(names) != 2 || names[0] != "event" || names[1] != "standard" {
		t.Errorf("Names() = %v, want [event standard]", names)
	}

	cards := c.Cards("standard")
	if len(cards) != 3 {
		t.Fatalf("standard pool has %d cards, want 3", len(cards))
	}
	if !cards[1].Value.Equal(decimal.NewFromInt(25)) {
		t.Errorf("geode value = %s, want 25", cards[1].Value)
	}
	if cards[1].Tier != model.TierRare {
		t.Errorf("geode tier = %s, want rare", cards[1].Tier)
	}
}

func TestParse_CollectsAllErrors(t *testing.T) {
	broken := `
pools:
  broken:
    - name: dup
      weight: 10
      value: "1"
      tier: common
    - name: dup
      weight: 0
      value: "abc"
      tier: shiny
    - name: ""
      weight: -1
      value: "-3"
      tier: common
  hollow: []
`
	_, err := Parse([]byte(broken))
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog, got %v", err)
	}

	msg := err.Error()
	for _, want := range []string{
		`duplicate name "dup"`,
		"weight must be positive",
		`bad value "abc"`,
		`unknown tier "shiny"`,
		"name is required",
		"value must be >= 0",
		`pool "hollow" has no cards`,
		`default pool "default" not defined`,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestParse_NoPools(t *testing.T) {
	_, err := Parse([]byte("pools: {}"))
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog, got %v", err)
	}
	if !strings.Contains(err.Error(), "no pools defined") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("{unclosed"))
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog, got %v", err)
	}
}

func TestParse_DefaultPoolFallback(t *testing.T) {
	c, err := Parse([]byte(`
pools:
  default:
    - name: coin
      weight: 1
      value: "1"
      tier: common
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.DefaultName() != DefaultPoolName {
		t.Errorf("default name = %q, want %q", c.DefaultName(), DefaultPoolName)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Default() == nil {
		t.Error("loaded catalog has no default pool")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist for missing file, got %v", err)
	}
}

func TestBuiltin(t *testing.T) {
	c := Builtin()

	def := c.Default()
	if def == nil {
		t.Fatal("builtin catalog has no default pool")
	}

	tiers := make(map[model.QualityTier]bool)
	for _, card := range c.Cards(DefaultPoolName) {
		tiers[card.Tier] = true
	}
	for _, tier := range []model.QualityTier{
		model.TierCommon, model.TierRare, model.TierEpic, model.TierLegendary,
	} {
		if !tiers[tier] {
			t.Errorf("builtin catalog missing tier %s", tier)
		}
	}

	card, err := pool.Pick(def, rng.NewSeeded(7))
	if err != nil {
		t.Fatalf("Pick from builtin pool: %v", err)
	}
	if card.Name == "" {
		t.Error("picked card has empty name")
	}
}

func TestHolder_Swap(t *testing.T) {
	a := Builtin()
	b, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}

	h := NewHolder(a)
	if h.Current() != a {
		t.Fatal("holder should serve the initial catalog")
	}
	h.Swap(b)
	if h.Current() != b {
		t.Fatal("holder should serve the swapped catalog")
	}
}

func TestWatcher_ReloadSwapsOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHolder(first)

	w, err := NewWatcher(path, h)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.fw.Close()

	updated := `
default_pool: event
pools:
  event:
    - name: confetti
      weight: 50
      value: "2.5"
      tier: common
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	w.reload()

	if got := h.Current().DefaultName(); got != "event" {
		t.Errorf("after reload default name = %q, want event", got)
	}
}

func TestWatcher_ReloadKeepsOldOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHolder(first)

	w, err := NewWatcher(path, h)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.fw.Close()

	if err := os.WriteFile(path, []byte("pools: {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.reload()

	if h.Current() != first {
		t.Error("failed reload must keep the previous catalog serving")
	}
}
