// Package items is the immutable item and recipe catalog.
package items

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ConserveLee/farmbot/internal/engine"
)

// Item is catalog reference data.
type Item struct {
	Name        string
	SearchAlias string // text typed into a container search field
	StackSize   int
	Icon        engine.TemplateID
}

// Recipe is the per-unit cost of crafting one item.
type Recipe struct {
	Output string
	Cost   map[string]int
	// CraftSeconds is the in-game time for one unit, used to estimate when a
	// queued batch is done.
	CraftSeconds int
}

var (
	Crystal      = Item{Name: "Gacha Crystal", SearchAlias: "gacha", StackSize: 1, Icon: "items/gacha_crystal"}
	Seed         = Item{Name: "Seed", SearchAlias: "seed", StackSize: 100, Icon: "items/seed"}
	Fertilizer   = Item{Name: "Fertilizer", SearchAlias: "fert", StackSize: 1, Icon: "items/fertilizer"}
	Crop         = Item{Name: "Crop", SearchAlias: "crop", StackSize: 100, Icon: "items/crop"}
	Paste        = Item{Name: "Cementing Paste", SearchAlias: "paste", StackSize: 100, Icon: "items/paste"}
	Ingot        = Item{Name: "Metal Ingot", SearchAlias: "ingot", StackSize: 300, Icon: "items/ingot"}
	Electronics  = Item{Name: "Electronics", SearchAlias: "electronics", StackSize: 100, Icon: "items/electronics"}
	Polymer      = Item{Name: "Polymer", SearchAlias: "polymer", StackSize: 100, Icon: "items/polymer"}
	Crystals     = Item{Name: "Crystal", SearchAlias: "crystal", StackSize: 100, Icon: "items/crystal"}
	Chitin       = Item{Name: "Chitin", SearchAlias: "chitin", StackSize: 100, Icon: "items/chitin"}
	Stone        = Item{Name: "Stone", SearchAlias: "stone", StackSize: 100, Icon: "items/stone"}
	SilicaPearls = Item{Name: "Silica Pearls", SearchAlias: "silica", StackSize: 100, Icon: "items/silica"}
	Saddle       = Item{Name: "Saddle", SearchAlias: "saddle", StackSize: 1, Icon: "items/saddle"}
	Meat         = Item{Name: "Cooked Meat", SearchAlias: "cooked", StackSize: 30, Icon: "items/cooked_meat"}
	HeavyTurret  = Item{Name: "Heavy Auto Turret", SearchAlias: "heavy", StackSize: 1, Icon: "items/heavy_turret"}
	Generator    = Item{Name: "Tek Generator", SearchAlias: "generator", StackSize: 1, Icon: "items/tek_generator"}
)

// Catalog holds items and recipes by name.
type Catalog struct {
	items   map[string]Item
	recipes map[string]Recipe
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{
		items:   make(map[string]Item),
		recipes: make(map[string]Recipe),
	}
	for _, it := range []Item{
		Crystal, Seed, Fertilizer, Crop, Paste, Ingot, Electronics, Polymer,
		Crystals, Chitin, Stone, SilicaPearls, Saddle, Meat, HeavyTurret, Generator,
	} {
		c.items[it.Name] = it
	}

	c.AddRecipe(Recipe{
		Output:       HeavyTurret.Name,
		Cost:         map[string]int{Paste.Name: 200, Ingot.Name: 540, Electronics.Name: 270},
		CraftSeconds: 20,
	})
	c.AddRecipe(Recipe{
		Output:       Generator.Name,
		Cost:         map[string]int{Paste.Name: 100, Ingot.Name: 1000, Electronics.Name: 500, Polymer.Name: 250, Crystals.Name: 200},
		CraftSeconds: 30,
	})
	c.AddRecipe(Recipe{
		Output:       Electronics.Name,
		Cost:         map[string]int{Ingot.Name: 1, SilicaPearls.Name: 3},
		CraftSeconds: 1,
	})
	c.AddRecipe(Recipe{
		Output:       Paste.Name,
		Cost:         map[string]int{Chitin.Name: 4, Stone.Name: 8},
		CraftSeconds: 1,
	})
	return c
}

func (c *Catalog) AddRecipe(r Recipe) {
	c.recipes[r.Output] = r
}

// Item looks an item up by display name.
func (c *Catalog) Item(name string) (Item, bool) {
	it, ok := c.items[name]
	return it, ok
}

// MustItem panics on unknown names; only use with catalog constants.
func (c *Catalog) MustItem(name string) Item {
	it, ok := c.items[name]
	if !ok {
		panic(fmt.Sprintf("unknown item %q", name))
	}
	return it
}

// Recipe looks a recipe up by output name.
func (c *Catalog) Recipe(output string) (Recipe, bool) {
	r, ok := c.recipes[output]
	return r, ok
}

// Lookup resolves a user-supplied name case-insensitively.
func (c *Catalog) Lookup(name string) (Item, bool) {
	for k, it := range c.items {
		if strings.EqualFold(k, name) || strings.EqualFold(it.SearchAlias, name) {
			return it, true
		}
	}
	return Item{}, false
}

// Names lists item names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.items))
	for k := range c.items {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Components returns the recipe's inputs in sorted order.
func (r Recipe) Components() []string {
	names := make([]string, 0, len(r.Cost))
	for k := range r.Cost {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
