package farm

import (
	"sort"

	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/game"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/recovery"
)

// Templates lists every template id the stations, travel and recovery
// look for, sorted and without duplicates.
func Templates() []engine.TemplateID {
	set := make(map[engine.TemplateID]struct{})
	add := func(ids ...engine.TemplateID) {
		for _, id := range ids {
			if id != "" {
				set[id] = struct{}{}
			}
		}
	}

	l := game.DefaultLayout()
	for _, c := range []game.ContainerSpec{l.Bag, l.Storage, l.Vault, l.CropPlot, l.Grinder, l.Fabricator, l.Fridge} {
		add(c.OpenIndicator, c.WheelLabel, c.ItemsAdded)
	}
	m := l.BedMap
	add(m.MapIndicator, m.Result, m.Cooldown, m.Transition, m.Spawned, m.DeathScreen)

	s := recovery.DefaultScreen()
	for _, m := range s.Modals {
		add(m.Template)
	}
	add(s.CrashDialog, s.MainMenu, s.SessionList)

	catalog := items.Default()
	for _, name := range catalog.Names() {
		add(catalog.MustItem(name).Icon)
	}

	ids := make([]engine.TemplateID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MissingTemplates returns the ids in want that have is lacking.
func MissingTemplates(have, want []engine.TemplateID) []engine.TemplateID {
	got := make(map[engine.TemplateID]bool, len(have))
	for _, id := range have {
		got[id] = true
	}
	var missing []engine.TemplateID
	for _, id := range want {
		if !got[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
