package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/wait"
)

// ContainerSpec parameterises one container-like surface. Bag, storage
// boxes, crop plots, grinders and fabricators all differ only here.
type ContainerSpec struct {
	Name string

	// OpenKey opens the surface; Access for world structures, Inventory
	// for the player bag.
	OpenKey  string
	CloseKey string

	// OpenIndicator is visible exactly while the surface is open.
	OpenIndicator engine.TemplateID
	OpenRegion    engine.Region

	// WheelLabel, when set, is the container name shown on the radial
	// action wheel while the access key is held. It tells "out of range"
	// apart from "server lag".
	WheelLabel  engine.TemplateID
	WheelRegion engine.Region

	SearchField engine.Point
	Defocus     engine.Point
	DepositAll  engine.Point
	TakeAll     engine.Point
	DropAll     engine.Point

	ItemRegion engine.Region

	// ItemsAdded is the toast shown after items land in the bag.
	ItemsAdded       engine.TemplateID
	ItemsAddedRegion engine.Region

	// CapacityRegion holds the "used/max" slot counter read by OCR.
	CapacityRegion engine.Region

	// QuantityRegion shows the total of the filtered item, read by OCR.
	QuantityRegion engine.Region

	// AccumulateTerms are search terms appended to the current filter
	// instead of replacing it.
	AccumulateTerms []string
}

// Container is the open/close/search/transfer protocol for one surface.
// Open state is always observed, never assumed.
type Container struct {
	env  *Env
	spec ContainerSpec

	lastSearch string
	contents   map[string]int
}

// NewContainer binds spec to env.
func NewContainer(env *Env, spec ContainerSpec) *Container {
	if spec.CloseKey == "" {
		spec.CloseKey = env.Keys.Close
	}
	if spec.OpenKey == "" {
		spec.OpenKey = env.Keys.Access
	}
	return &Container{env: env, spec: spec, contents: make(map[string]int)}
}

// NewBag binds the player inventory, which opens with the inventory key.
func NewBag(env *Env, spec ContainerSpec) *Container {
	if spec.OpenKey == "" {
		spec.OpenKey = env.Keys.Inventory
	}
	return NewContainer(env, spec)
}

func (c *Container) Name() string { return c.spec.Name }

// IsOpen is a single observation.
func (c *Container) IsOpen() bool {
	return c.env.Visible(c.spec.OpenIndicator, c.spec.OpenRegion)
}

func (c *Container) awaitOpen(polls int) (bool, error) {
	return c.env.Soft(wait.Polls(polls, constants.DefaultPollInterval), c.IsOpen)
}

// Open presses the open key and waits for the open indicator. When the
// first bound passes it probes the action wheel: a visible label means the
// container is in reach and the server is slow, so it retries with a longer
// bound; no label means the container is out of reach.
func (c *Container) Open() error {
	if c.IsOpen() {
		return nil
	}
	if err := c.env.Do.Press(c.spec.OpenKey); err != nil {
		return err
	}

	ok, err := c.awaitOpen(constants.ContainerOpenPolls)
	if err != nil || ok {
		return err
	}

	inReach, err := c.probeWheel()
	if err != nil {
		return err
	}
	if !inReach {
		return c.notAccessible(constants.ContainerOpenPolls)
	}

	c.env.Log.Debug().Str("container", c.spec.Name).Msg("container in reach, retrying open")
	if err := c.env.Do.Press(c.spec.OpenKey); err != nil {
		return err
	}
	ok, err = c.awaitOpen(constants.ContainerOpenRetryPolls)
	if err != nil {
		return err
	}
	if !ok {
		return c.notAccessible(constants.ContainerOpenPolls + constants.ContainerWheelPolls + constants.ContainerOpenRetryPolls)
	}
	return nil
}

// probeWheel holds the access key and looks for the container label.
func (c *Container) probeWheel() (bool, error) {
	if c.spec.WheelLabel == "" {
		return false, nil
	}

	if err := c.env.Do.KeyDown(c.spec.OpenKey); err != nil {
		return false, err
	}
	shown, waitErr := c.env.Soft(wait.Polls(constants.ContainerWheelPolls, constants.DefaultPollInterval), func() bool {
		return c.env.Visible(c.spec.WheelLabel, c.spec.WheelRegion)
	})
	if err := c.env.Do.KeyUp(c.spec.OpenKey); err != nil {
		return false, err
	}
	return shown, waitErr
}

func (c *Container) notAccessible(polls int) error {
	return &ContainerNotAccessibleError{newTimeout("open", c.spec.Name,
		wait.Polls(polls, constants.DefaultPollInterval).Timeout())}
}

// Close presses the close key and waits until the indicator is gone,
// retrying the key press once.
func (c *Container) Close() error {
	if !c.IsOpen() {
		return nil
	}

	budget := wait.Polls(constants.ContainerClosePolls, constants.DefaultPollInterval)
	for attempt := 0; attempt < 2; attempt++ {
		if err := c.env.Do.Press(c.spec.CloseKey); err != nil {
			return err
		}
		closed, err := wait.Gone(c.env.Run, budget, c.IsOpen)
		if err != nil {
			return err
		}
		if closed {
			c.lastSearch = ""
			return nil
		}
	}
	return &ContainerNotClosableError{newTimeout("close", c.spec.Name, 2*budget.Timeout())}
}

func (c *Container) accumulates(term string) bool {
	for _, t := range c.spec.AccumulateTerms {
		if strings.EqualFold(t, term) {
			return true
		}
	}
	return false
}

// Search filters the container. The field is cleared first unless term is
// one of the accumulate terms. Focus is moved off the field afterwards so
// the next close key is not typed into it.
func (c *Container) Search(term string) error {
	if err := c.env.Do.Click(c.spec.SearchField, engine.ButtonLeft); err != nil {
		return err
	}
	if err := c.env.Sleep(constants.WaitAfterSearchClick); err != nil {
		return err
	}

	if !c.accumulates(term) {
		if err := c.env.ClearField(); err != nil {
			return err
		}
		c.lastSearch = ""
	}

	if err := c.env.Do.TypeText(term); err != nil {
		return err
	}
	c.lastSearch += term

	if err := c.env.Do.Click(c.spec.Defocus, engine.ButtonLeft); err != nil {
		return err
	}
	return c.env.Sleep(constants.WaitAfterDefocus)
}

// LastSearch is the filter currently applied.
func (c *Container) LastSearch() string { return c.lastSearch }

func (c *Container) clickButton(p engine.Point) error {
	if err := c.env.Do.Click(p, engine.ButtonLeft); err != nil {
		return err
	}
	return c.env.Sleep(constants.WaitAfterTransfer)
}

// TransferAll deposits everything from the bag, optionally filtered.
// Success is not verified here.
func (c *Container) TransferAll(filter string) error {
	if filter != "" {
		if err := c.Search(filter); err != nil {
			return err
		}
	}
	return c.clickButton(c.spec.DepositAll)
}

// TakeAll moves everything shown into the bag. Not verified.
func (c *Container) TakeAll(filter string) error {
	if filter != "" {
		if err := c.Search(filter); err != nil {
			return err
		}
	}
	return c.clickButton(c.spec.TakeAll)
}

// DropAll drops everything shown on the ground. Not verified.
func (c *Container) DropAll(filter string) error {
	if filter != "" {
		if err := c.Search(filter); err != nil {
			return err
		}
	}
	return c.clickButton(c.spec.DropAll)
}

// Count counts icon matches in the item region. Stacked or overlapping
// icons undercount; callers accept that.
func (c *Container) Count(it items.Item) int {
	return len(c.env.See.LocateAll(it.Icon, c.spec.ItemRegion, c.env.confidence(0)))
}

// Has reports whether at least one icon of it is shown.
func (c *Container) Has(it items.Item) bool {
	return c.env.Visible(it.Icon, c.spec.ItemRegion)
}

// AwaitItemsAdded hard-waits for the "items added" toast.
func (c *Container) AwaitItemsAdded() error {
	b := wait.Polls(constants.ItemsAddedPolls, constants.DefaultPollInterval)
	return c.env.AwaitVisible(c.spec.ItemsAdded, c.spec.ItemsAddedRegion, b, func() error {
		return &ItemsNotAddedError{newTimeout("take", c.spec.Name, b.Timeout())}
	})
}

// AwaitDeposited hard-waits until it is no longer shown in region, which
// is how a deposit is confirmed from the bag side.
func (c *Container) AwaitDeposited(it items.Item, region engine.Region) error {
	b := wait.Polls(constants.ItemsAddedPolls, constants.DefaultPollInterval)
	return c.env.Hard(b, func() bool { return !c.env.Visible(it.Icon, region) }, func() error {
		return &DepositTimedOutError{newTimeout("deposit", c.spec.Name+"/"+it.Name, b.Timeout())}
	})
}

// AwaitContentChanged soft-waits for the icon count of it to differ from before.
func (c *Container) AwaitContentChanged(it items.Item, before int) (bool, error) {
	return c.env.Soft(wait.Polls(constants.ContentChangedPolls, constants.DefaultPollInterval), func() bool {
		return c.Count(it) != before
	})
}

// Find returns the centre of the first icon of it.
func (c *Container) Find(it items.Item) (engine.Point, bool) {
	r, ok := c.env.See.Locate(it.Icon, c.spec.ItemRegion, c.env.confidence(0))
	if !ok {
		return engine.Point{}, false
	}
	return engine.Center(r), true
}

// Quantity filters by it and reads the total shown for it. The reading is
// recorded in the content summary.
func (c *Container) Quantity(it items.Item) (int, error) {
	if err := c.Search(it.SearchAlias); err != nil {
		return 0, err
	}
	if !c.Has(it) {
		c.Record(it.Name, 0)
		return 0, nil
	}
	text, err := c.env.See.ReadText(c.spec.QuantityRegion, engine.CharsetDigits, engine.TextLine)
	if err != nil {
		return 0, fmt.Errorf("read %s quantity in %s: %w", it.Name, c.spec.Name, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("read %s quantity in %s: unexpected %q", it.Name, c.spec.Name, text)
	}
	c.Record(it.Name, n)
	return n, nil
}

// Capacity reads the "used/max" slot counter.
func (c *Container) Capacity() (used, max int, err error) {
	text, err := c.env.See.ReadText(c.spec.CapacityRegion, engine.CharsetCounter, engine.TextLine)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s capacity: %w", c.spec.Name, err)
	}
	return ParseCounter(text)
}

// Record stores an opportunistic quantity observation.
func (c *Container) Record(name string, qty int) {
	c.contents[name] = qty
}

// Contents is the last known item summary; it is not guaranteed complete.
func (c *Container) Contents() map[string]int {
	out := make(map[string]int, len(c.contents))
	for k, v := range c.contents {
		out[k] = v
	}
	return out
}

// ParseCounter parses "12/450" style OCR output.
func ParseCounter(text string) (int, int, error) {
	parts := strings.SplitN(strings.ReplaceAll(text, " ", ""), "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected counter %q", text)
	}
	used, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected counter %q: %w", text, err)
	}
	max, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected counter %q: %w", text, err)
	}
	return used, max, nil
}
