// Package scenario loads and validates the training scenario catalog.
//
// Scenarios are data, not code: deployments can ship their own YAML catalog,
// and the built-in set covers the three standard exercises (a medium cold
// call, an easy warm follow-up, and a hard gatekeeper block).
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kronitek/coldcall/pkg/types"
)

// Catalog is an immutable, ordered set of scenarios keyed by ID.
type Catalog struct {
	scenarios []types.Scenario
	byID      map[string]types.Scenario
}

// catalogFile is the YAML document shape of a scenario catalog.
type catalogFile struct {
	Scenarios []types.Scenario `yaml:"scenarios"`
}

// Load reads the YAML scenario catalog at path and returns a validated
// [Catalog]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: open %q: %w", path, err)
	}
	defer f.Close()

	cat, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("scenario: parse %q: %w", path, err)
	}
	return cat, nil
}

// LoadFromReader decodes a YAML catalog from r and validates the result.
// Useful in tests where catalogs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("scenario: decode yaml: %w", err)
	}
	return newCatalog(file.Scenarios)
}

// BuiltIn returns the catalog of shipped scenarios.
func BuiltIn() *Catalog {
	cat, err := newCatalog(builtInScenarios)
	if err != nil {
		// The built-in set is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return cat
}

// newCatalog validates the scenarios and builds the lookup index.
func newCatalog(scenarios []types.Scenario) (*Catalog, error) {
	var errs []error
	byID := make(map[string]types.Scenario, len(scenarios))

	for i, sc := range scenarios {
		prefix := fmt.Sprintf("scenarios[%d]", i)
		if strings.TrimSpace(sc.ID) == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else if _, dup := byID[sc.ID]; dup {
			errs = append(errs, fmt.Errorf("%s.id %q is a duplicate", prefix, sc.ID))
		}
		if strings.TrimSpace(sc.Title) == "" {
			errs = append(errs, fmt.Errorf("%s.title is required", prefix))
		}
		if strings.TrimSpace(sc.GatekeeperPersona) == "" {
			errs = append(errs, fmt.Errorf("%s.gatekeeper_persona is required", prefix))
		}
		if strings.TrimSpace(sc.DecisionMaker) == "" {
			errs = append(errs, fmt.Errorf("%s.decision_maker is required", prefix))
		}
		if !sc.Difficulty.IsValid() {
			errs = append(errs, fmt.Errorf("%s.difficulty %q is invalid; valid values: easy, medium, hard", prefix, sc.Difficulty))
		}
		if sc.ID != "" {
			byID[sc.ID] = sc
		}
	}

	if len(scenarios) == 0 {
		errs = append(errs, errors.New("catalog contains no scenarios"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	out := make([]types.Scenario, len(scenarios))
	copy(out, scenarios)
	return &Catalog{scenarios: out, byID: byID}, nil
}

// All returns the scenarios in catalog order.
func (c *Catalog) All() []types.Scenario {
	out := make([]types.Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// ByID returns the scenario with the given ID.
func (c *Catalog) ByID(id string) (types.Scenario, bool) {
	sc, ok := c.byID[id]
	return sc, ok
}

// Len returns the number of scenarios in the catalog.
func (c *Catalog) Len() int { return len(c.scenarios) }

// builtInScenarios is the shipped training set.
var builtInScenarios = []types.Scenario{
	{
		ID:                "cold_call_factory",
		Title:             "Cold Call to a Factory",
		Description:       "Your task is to get through the gatekeeper and reach the Chief Engineer of a large industrial enterprise.",
		GatekeeperPersona: "An experienced and strict secretary who has seen hundreds of salespeople like you. Her name is Elena.",
		DecisionMaker:     "Chief Engineer, Ivan Petrovich",
		CompanyProfile:    "A large metallurgical plant. Interested in modernizing equipment, but the budget is limited.",
		Difficulty:        types.DifficultyMedium,
	},
	{
		ID:                "warm_follow_up",
		Title:             "Warm Follow-up After an Expo",
		Description:       "You met a company representative at an expo, and they gave you a business card. Now you need to develop the contact.",
		GatekeeperPersona: "A young and energetic executive assistant who is aware of everything. His name is Andrey.",
		DecisionMaker:     "Technical Director, Sergey Valerievich",
		CompanyProfile:    "An engineering company actively looking for new suppliers for a major project.",
		Difficulty:        types.DifficultyEasy,
	},
	{
		ID:                "gatekeeper_block",
		Title:             "The Tough Gatekeeper",
		Description:       "This gatekeeper is a true professional. She is polite but firm, and her main task is to protect her manager's time from unnecessary calls. Getting past her will not be easy.",
		GatekeeperPersona: `Olga is the "iron lady" of the reception. She strictly follows instructions, does not give in to persuasion, and demands maximum specificity. She is not rude, but her tone leaves no doubt about her seriousness. She values only facts and clear, well-founded reasons for the call.`,
		DecisionMaker:     "Head of Procurement, Mikhail Borisovich",
		CompanyProfile:    "A large manufacturer of food processing equipment that is very meticulous in selecting suppliers and values stability.",
		Difficulty:        types.DifficultyHard,
	},
}
