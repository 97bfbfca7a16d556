package game

import (
	"image"

	"github.com/ConserveLee/farmbot/internal/engine"
)

// Layout holds every surface the stations use. Points and regions are on
// the 2560x1440 virtual screen.
type Layout struct {
	Bag        ContainerSpec
	Storage    ContainerSpec
	Vault      ContainerSpec
	CropPlot   ContainerSpec
	Grinder    ContainerSpec
	Fabricator ContainerSpec
	Fridge     ContainerSpec
	BedMap     BedMapSpec

	// Remote-side buttons that are not container specific.
	GrindAll   engine.Point
	CraftField engine.Point // quantity field of the crafting tab
	CraftTab   engine.Point
	InvTab     engine.Point

	// BagPane is the player half of a two-pane inventory.
	BagPane engine.Region
}

var (
	remotePane = image.Rect(1660, 300, 2440, 1280)
	playerPane = image.Rect(120, 300, 900, 1280)
)

func remote(name string, wheel engine.TemplateID) ContainerSpec {
	return ContainerSpec{
		Name:             name,
		OpenIndicator:    "inventory/remote_open",
		OpenRegion:       image.Rect(1660, 180, 2440, 300),
		WheelLabel:       wheel,
		WheelRegion:      image.Rect(980, 560, 1580, 880),
		SearchField:      image.Pt(1860, 260),
		Defocus:          image.Pt(1280, 120),
		DepositAll:       image.Pt(760, 260),
		TakeAll:          image.Pt(2280, 260),
		DropAll:          image.Pt(2340, 260),
		ItemRegion:       remotePane,
		ItemsAdded:       "inventory/items_added",
		ItemsAddedRegion: image.Rect(40, 1200, 600, 1400),
		CapacityRegion:   image.Rect(2200, 1290, 2440, 1330),
		QuantityRegion:   image.Rect(1660, 1290, 1900, 1330),
		AccumulateTerms:  []string{"s"},
	}
}

// DefaultLayout returns coordinates for the stock UI at 16:9.
func DefaultLayout() Layout {
	bag := ContainerSpec{
		Name:             "bag",
		OpenIndicator:    "inventory/bag_open",
		OpenRegion:       image.Rect(120, 180, 900, 300),
		SearchField:      image.Pt(320, 260),
		Defocus:          image.Pt(1280, 120),
		DepositAll:       image.Pt(760, 260),
		DropAll:          image.Pt(840, 260),
		TakeAll:          image.Pt(760, 260),
		ItemRegion:       playerPane,
		ItemsAdded:       "inventory/items_added",
		ItemsAddedRegion: image.Rect(40, 1200, 600, 1400),
		CapacityRegion:   image.Rect(660, 1290, 900, 1330),
		QuantityRegion:   image.Rect(120, 1290, 360, 1330),
	}

	return Layout{
		Bag:        bag,
		Storage:    remote("storage", "wheel/storage"),
		Vault:      remote("vault", "wheel/vault"),
		CropPlot:   remote("crop plot", "wheel/crop_plot"),
		Grinder:    remote("grinder", "wheel/grinder"),
		Fabricator: remote("fabricator", "wheel/fabricator"),
		Fridge:     remote("fridge", "wheel/fridge"),
		BedMap: BedMapSpec{
			MapIndicator: "bed/map_open",
			SearchField:  image.Pt(300, 1320),
			Defocus:      image.Pt(1280, 120),
			ResultRegion: image.Rect(80, 200, 560, 1280),
			Result:       "bed/result_selected",
			FirstResult:  image.Pt(320, 240),
			SpawnButton:  image.Pt(2260, 1320),
			Cooldown:     "bed/cooldown",
			CooldownArea: image.Rect(2000, 1260, 2500, 1380),
			Transition:   "bed/white_flash",
			Spawned:      "hud/stamina",
			SpawnedArea:  image.Rect(2360, 1180, 2560, 1440),
			DeathScreen:  "bed/death_screen",
		},
		GrindAll:   image.Pt(2140, 1250),
		CraftField: image.Pt(1860, 1250),
		CraftTab:   image.Pt(2120, 200),
		InvTab:     image.Pt(1880, 200),
		BagPane:    playerPane,
	}
}
