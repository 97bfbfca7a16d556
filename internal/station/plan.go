package station

import (
	"fmt"
	"math"

	"github.com/ConserveLee/farmbot/internal/items"
)

// maxPlanned bounds the search for Desired.
const maxPlanned = 10000

// Craft is one queued crafting order.
type Craft struct {
	Item  string
	Count int
}

// CraftingPlan is derived from owned counts and a target recipe. It is built
// fresh for each crafting session and discarded after pickup.
type CraftingPlan struct {
	Target string
	Owned  map[string]int

	// Craftable is how many targets the crafted materials on hand already
	// cover, without crafting any subcomponent.
	Craftable int
	// Desired is how many targets to aim for once subcomponents missing
	// for them are crafted from raw resources. Capped by Limit when set.
	Desired int
	// Residual lists the subcomponents still to craft for Desired, in
	// recipe component order.
	Residual []Craft
}

// NewCraftingPlan computes the plan for target. limit <= 0 means no cap.
func NewCraftingPlan(catalog *items.Catalog, target string, owned map[string]int, limit int) (CraftingPlan, error) {
	recipe, ok := catalog.Recipe(target)
	if !ok {
		return CraftingPlan{}, fmt.Errorf("no recipe for %q", target)
	}

	plan := CraftingPlan{Target: target, Owned: owned}
	plan.Craftable = craftable(recipe, owned)

	desired := plan.Craftable
	for desired < maxPlanned && (limit <= 0 || desired < limit) {
		if _, ok := residualFor(catalog, recipe, owned, desired+1); !ok {
			break
		}
		desired++
	}
	if limit > 0 && desired > limit {
		desired = limit
	}
	plan.Desired = desired
	plan.Residual, _ = residualFor(catalog, recipe, owned, desired)
	return plan, nil
}

func craftable(recipe items.Recipe, owned map[string]int) int {
	n := math.MaxInt
	for name, cost := range recipe.Cost {
		if cost <= 0 {
			continue
		}
		if c := owned[name] / cost; c < n {
			n = c
		}
	}
	if n == math.MaxInt {
		return 0
	}
	return n
}

// residualFor returns the subcomponent crafts needed to make n targets and
// whether owned raw resources cover them. Raw resources are shared between
// the target recipe and every subcomponent recipe.
func residualFor(catalog *items.Catalog, recipe items.Recipe, owned map[string]int, n int) ([]Craft, bool) {
	need := make(map[string]int)
	var queue []Craft

	for _, name := range recipe.Components() {
		want := recipe.Cost[name] * n
		deficit := want - owned[name]
		if deficit <= 0 {
			need[name] += want
			continue
		}

		sub, ok := catalog.Recipe(name)
		if !ok {
			return nil, false
		}
		need[name] += owned[name]
		queue = append(queue, Craft{Item: name, Count: deficit})
		for _, raw := range sub.Components() {
			need[raw] += sub.Cost[raw] * deficit
		}
	}

	for name, n := range need {
		if n > owned[name] {
			return nil, false
		}
	}
	return queue, true
}

// Components sums the raw resources the residual queue consumes.
func (p CraftingPlan) Components(catalog *items.Catalog) map[string]int {
	out := make(map[string]int)
	for _, c := range p.Residual {
		sub, ok := catalog.Recipe(c.Item)
		if !ok {
			continue
		}
		for raw, cost := range sub.Cost {
			out[raw] += cost * c.Count
		}
	}
	return out
}

// CraftSeconds estimates how long the residual queue takes.
func (p CraftingPlan) CraftSeconds(catalog *items.Catalog) int {
	total := 0
	for _, c := range p.Residual {
		if r, ok := catalog.Recipe(c.Item); ok {
			total += r.CraftSeconds * c.Count
		}
	}
	return total
}
