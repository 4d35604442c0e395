// Package catalog loads named card pools from YAML definitions and serves
// them as immutable weighted pools. A Catalog is never mutated after
// construction; reloads build a new one and swap it into the Holder.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/pool"
)

// DefaultPoolName is used when the file does not name a default pool.
const DefaultPoolName = "default"

// ErrInvalidCatalog is returned when a catalog file fails validation. The
// message carries every problem found, joined with "; ".
var ErrInvalidCatalog = errors.New("catalog: invalid catalog")

// cardDef is the YAML shape of a single card. Value stays a string during
// decode so malformed decimals surface as validation errors alongside
// everything else instead of aborting the parse.
type cardDef struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
	Value  string  `yaml:"value"`
	Tier   string  `yaml:"tier"`
}

type fileSchema struct {
	DefaultPool string               `yaml:"default_pool"`
	Pools       map[string][]cardDef `yaml:"pools"`
}

// Catalog is an immutable set of named card pools.
type Catalog struct {
	defaultName string
	pools       map[string]*pool.Pool
	cards       map[string][]model.Card
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse builds a catalog from YAML bytes. Validation collects every problem
// in the file before failing, so an author sees all of them at once.
func Parse(b []byte) (*Catalog, error) {
	var f fileSchema
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return build(f)
}

func build(f fileSchema) (*Catalog, error) {
	var errs []string

	if len(f.Pools) == 0 {
		errs = append(errs, "no pools defined")
	}
	defaultName := f.DefaultPool
	if defaultName == "" {
		defaultName = DefaultPoolName
	}
	if _, ok := f.Pools[defaultName]; !ok && len(f.Pools) > 0 {
		errs = append(errs, fmt.Sprintf("default pool %q not defined", defaultName))
	}

	// Validate pools in name order so repeated runs report identically.
	names := make([]string, 0, len(f.Pools))
	for name := range f.Pools {
		names = append(names, name)
	}
	sort.Strings(names)

	cards := make(map[string][]model.Card, len(f.Pools))
	for _, poolName := range names {
		defs := f.Pools[poolName]
		if len(defs) == 0 {
			errs = append(errs, fmt.Sprintf("pool %q has no cards", poolName))
			continue
		}
		seen := make(map[string]bool, len(defs))
		cs := make([]model.Card, 0, len(defs))
		for i, def := range defs {
			where := fmt.Sprintf("pool %q card %d", poolName, i)
			if def.Name == "" {
				errs = append(errs, where+": name is required")
			} else if seen[def.Name] {
				errs = append(errs, fmt.Sprintf("%s: duplicate name %q", where, def.Name))
			}
			seen[def.Name] = true

			if def.Weight <= 0 || math.IsNaN(def.Weight) || math.IsInf(def.Weight, 0) {
				errs = append(errs, fmt.Sprintf("%s: weight must be positive, got %v", where, def.Weight))
			}

			value, err := decimal.NewFromString(def.Value)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: bad value %q", where, def.Value))
			} else if value.IsNegative() {
				errs = append(errs, fmt.Sprintf("%s: value must be >= 0, got %s", where, def.Value))
			}

			tier, err := model.ParseTier(def.Tier)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: unknown tier %q", where, def.Tier))
			}

			cs = append(cs, model.Card{Name: def.Name, Weight: def.Weight, Value: value, Tier: tier})
		}
		cards[poolName] = cs
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(errs, "; "))
	}

	pools := make(map[string]*pool.Pool, len(cards))
	for name, cs := range cards {
		p, err := pool.New(cs)
		if err != nil {
			return nil, fmt.Errorf("catalog: build pool %q: %w", name, err)
		}
		pools[name] = p
	}

	return &Catalog{defaultName: defaultName, pools: pools, cards: cards}, nil
}

// Pool returns the named pool.
func (c *Catalog) Pool(name string) (*pool.Pool, bool) {
	p, ok := c.pools[name]
	return p, ok
}

// Default returns the default pool.
func (c *Catalog) Default() *pool.Pool {
	return c.pools[c.defaultName]
}

// DefaultName returns the name of the default pool.
func (c *Catalog) DefaultName() string {
	return c.defaultName
}

// Names returns all pool names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.pools))
	for name := range c.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cards returns a copy of the named pool's card definitions in file order.
func (c *Catalog) Cards(name string) []model.Card {
	cs, ok := c.cards[name]
	if !ok {
		return nil
	}
	out := make([]model.Card, len(cs))
	copy(out, cs)
	return out
}

// Holder provides lock-free access to the current catalog while the watcher
// swaps in reloaded versions behind it.
type Holder struct {
	cur atomic.Pointer[Catalog]
}

// NewHolder creates a holder serving the given catalog.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.cur.Store(c)
	return h
}

// Current returns the catalog in effect right now. Callers must not hold the
// returned pointer across requests if they want to observe reloads.
func (h *Holder) Current() *Catalog {
	return h.cur.Load()
}

// Swap replaces the served catalog.
func (h *Holder) Swap(c *Catalog) {
	h.cur.Store(c)
}

// Builtin returns the starter catalog compiled into the binary, served when
// no catalog file is configured.
func Builtin() *Catalog {
	c, err := build(fileSchema{
		DefaultPool: DefaultPoolName,
		Pools: map[string][]cardDef{
			DefaultPoolName: {
				{Name: "rusty-dagger", Weight: 120, Value: "1", Tier: "common"},
				{Name: "oak-shield", Weight: 100, Value: "1", Tier: "common"},
				{Name: "cloth-tunic", Weight: 90, Value: "2", Tier: "common"},
				{Name: "iron-helm", Weight: 80, Value: "2", Tier: "common"},
				{Name: "pine-torch", Weight: 70, Value: "3", Tier: "common"},
				{Name: "silver-blade", Weight: 18, Value: "12", Tier: "rare"},
				{Name: "runed-buckler", Weight: 14, Value: "16", Tier: "rare"},
				{Name: "hunter-longbow", Weight: 10, Value: "22", Tier: "rare"},
				{Name: "phoenix-plume", Weight: 3, Value: "75", Tier: "epic"},
				{Name: "stormcaller-staff", Weight: 2, Value: "110", Tier: "epic"},
				{Name: "dragon-crest", Weight: 0.5, Value: "600", Tier: "legendary"},
				{Name: "crown-of-dawn", Weight: 0.25, Value: "1000", Tier: "legendary"},
			},
		},
	})
	if err != nil {
		panic("catalog: builtin catalog invalid: " + err.Error())
	}
	return c
}
