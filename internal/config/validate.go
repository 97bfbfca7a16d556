package config

import (
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/navigation"
)

// Validate checks everything the schema cannot: item names against the
// catalog, recipes for the grinding target and the fields an enabled
// station needs.
func (c *Config) Validate() error {
	catalog := items.Default()
	return criterio.ValidateStruct(
		c.validateGame(),
		c.validateItems(catalog),
		c.validateStations(catalog),
	)
}

func (c *Config) validateGame() error {
	var errs criterio.FieldErrorsBuilder
	if len(c.Game.Launch) > 0 && strings.TrimSpace(c.Game.Launch[0]) == "" {
		errs = errs.Append("game.launch", fmt.Errorf("command is empty"))
	}
	if c.Game.Process == "" {
		errs = errs.Append("game.process", fmt.Errorf("is required"))
	}
	return errs.ToError()
}

func (c *Config) validateItems(catalog *items.Catalog) error {
	var errs criterio.FieldErrorsBuilder
	for i, name := range c.Items.Keep {
		if _, ok := catalog.Lookup(name); !ok {
			errs = errs.Append(fmt.Sprintf("items.keep[%d]", i), fmt.Errorf("unknown item %q", name))
		}
	}
	for i, name := range c.Items.Drop {
		if _, ok := catalog.Lookup(name); !ok {
			errs = errs.Append(fmt.Sprintf("items.drop[%d]", i), fmt.Errorf("unknown item %q", name))
		}
	}
	return errs.ToError()
}

func (c *Config) validateStations(catalog *items.Catalog) error {
	var errs criterio.FieldErrorsBuilder
	s := c.Stations

	facing := func(field, value string) {
		if _, err := navigation.ParseDirection(value); err != nil {
			errs = errs.Append(field, err)
		}
	}

	if s.Crystal.Enabled {
		if s.Crystal.Prefix == "" {
			errs = errs.Append("stations.crystal.prefix", fmt.Errorf("is required"))
		}
		if s.Crystal.Count < 1 {
			errs = errs.Append("stations.crystal.count", fmt.Errorf("must be at least 1"))
		}
		facing("stations.crystal.vault_facing", s.Crystal.VaultFacing)
	}

	if s.Crop.Enabled {
		if s.Crop.Prefix == "" {
			errs = errs.Append("stations.crop_plots.prefix", fmt.Errorf("is required"))
		}
		if s.Crop.Count < 1 {
			errs = errs.Append("stations.crop_plots.count", fmt.Errorf("must be at least 1"))
		}
		for i, d := range s.Crop.Towers {
			facing(fmt.Sprintf("stations.crop_plots.towers[%d]", i), d)
		}
	}

	if s.Grinding.Enabled {
		if s.Grinding.Bed == "" {
			errs = errs.Append("stations.grinding.bed", fmt.Errorf("is required"))
		}
		if target, ok := catalog.Lookup(s.Grinding.Target); !ok {
			errs = errs.Append("stations.grinding.target", fmt.Errorf("unknown item %q", s.Grinding.Target))
		} else if _, ok := catalog.Recipe(target.Name); !ok {
			errs = errs.Append("stations.grinding.target", fmt.Errorf("%s has no recipe", target.Name))
		}
		facing("stations.grinding.vault_facing", s.Grinding.VaultFacing)
		facing("stations.grinding.grinder_facing", s.Grinding.GrinderFacing)
		facing("stations.grinding.fabricator_facing", s.Grinding.FabricatorFacing)
	}

	if s.Healing.Enabled {
		if s.Healing.Bed == "" {
			errs = errs.Append("stations.healing.bed", fmt.Errorf("is required"))
		}
		facing("stations.healing.fridge_facing", s.Healing.FridgeFacing)
	}

	if s.Drop.Enabled {
		if s.Drop.Bed == "" {
			errs = errs.Append("stations.drop.bed", fmt.Errorf("is required"))
		}
		if len(c.Items.Drop) == 0 {
			errs = errs.Append("items.drop", fmt.Errorf("drop station enabled with nothing to drop"))
		}
	}

	return errs.ToError()
}

// EnabledStations lists the enabled station names in priority order:
// healing first so a hurt player never runs a long station, grinding as
// soon as the vault signals, then the rotating stations.
func (c *Config) EnabledStations() []string {
	var names []string
	s := c.Stations
	if s.Healing.Enabled {
		names = append(names, "healing")
	}
	if s.Grinding.Enabled {
		names = append(names, "grinding")
	}
	if s.Crystal.Enabled {
		names = append(names, "crystal")
	}
	if s.Crop.Enabled {
		names = append(names, "crop")
	}
	if s.Drop.Enabled {
		names = append(names, "drop")
	}
	return names
}

// ResolveItems maps catalog names to items. Names must have passed
// Validate.
func ResolveItems(catalog *items.Catalog, names []string) []items.Item {
	out := make([]items.Item, 0, len(names))
	for _, n := range names {
		if it, ok := catalog.Lookup(n); ok {
			out = append(out, it)
		}
	}
	return out
}

// Direction parses a validated facing, falling back to Front.
func Direction(s string) navigation.Direction {
	d, err := navigation.ParseDirection(s)
	if err != nil {
		return navigation.Front
	}
	return d
}
