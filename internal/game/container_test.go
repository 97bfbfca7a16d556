package game

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/runstate"
)

func storage(r *rig) *Container {
	return NewContainer(r.env, DefaultLayout().Storage)
}

func TestOpen_AlreadyOpenDoesNothing(t *testing.T) {
	r := newRig(t)
	r.see.Show("inventory/remote_open", true)

	require.NoError(t, storage(r).Open())
	assert.Zero(t, r.do.Len())
}

func TestOpen_SucceedsOnThirdPoll(t *testing.T) {
	r := newRig(t)
	// first answer is the already-open check
	r.see.Script("inventory/remote_open", false, false, false, true)

	require.NoError(t, storage(r).Open())
	assert.Equal(t, []string{"press e"}, r.do.Kinds())
	assert.Equal(t, 2*constants.DefaultPollInterval, r.run.Now())
}

func TestOpen_OutOfReach(t *testing.T) {
	r := newRig(t)

	err := storage(r).Open()

	var notAccessible *ContainerNotAccessibleError
	require.ErrorAs(t, err, &notAccessible)
	assert.Equal(t, "storage", notAccessible.Target())
	assert.True(t, IsObservationTimeout(err))

	// one press, one wheel probe, nothing after the verdict
	assert.Equal(t, []string{"press e", "down e", "up e"}, r.do.Kinds())
	want := time.Duration(constants.ContainerOpenPolls-1+constants.ContainerWheelPolls-1) * constants.DefaultPollInterval
	assert.Equal(t, want, r.run.Now())
}

func TestOpen_InReachRetriesAfterWheelProbe(t *testing.T) {
	r := newRig(t)
	answers := make([]bool, 1+constants.ContainerOpenPolls+3)
	answers[len(answers)-1] = true
	r.see.Script("inventory/remote_open", answers...)
	r.see.Script("wheel/storage", false, true)

	require.NoError(t, storage(r).Open())
	assert.Equal(t, []string{"press e", "down e", "up e", "press e"}, r.do.Kinds())
}

func TestOpen_InReachButNeverOpens(t *testing.T) {
	r := newRig(t)
	r.see.Show("wheel/storage", true)

	err := storage(r).Open()

	var notAccessible *ContainerNotAccessibleError
	require.ErrorAs(t, err, &notAccessible)
	assert.Equal(t, 2, r.do.Count("press", "e"))
}

func TestOpen_NoWheelLabelSkipsProbe(t *testing.T) {
	r := newRig(t)
	bag := NewBag(r.env, DefaultLayout().Bag)

	err := bag.Open()
	var notAccessible *ContainerNotAccessibleError
	require.ErrorAs(t, err, &notAccessible)
	assert.Equal(t, []string{"press i"}, r.do.Kinds())
}

func TestOpen_StopInterruptsWithinOnePoll(t *testing.T) {
	r := newRig(t)
	r.run.StopAt = 500 * time.Millisecond

	err := storage(r).Open()

	require.ErrorIs(t, err, runstate.ErrStopped)
	assert.False(t, IsObservationTimeout(err))
	assert.Equal(t, []string{"press e"}, r.do.Kinds())
	assert.Equal(t, 500*time.Millisecond, r.run.Now())
}

func TestClose(t *testing.T) {
	t.Run("closed already", func(t *testing.T) {
		r := newRig(t)
		require.NoError(t, storage(r).Close())
		assert.Zero(t, r.do.Len())
	})

	t.Run("closes after first press", func(t *testing.T) {
		r := newRig(t)
		r.see.Script("inventory/remote_open", true, true, false)
		require.NoError(t, storage(r).Close())
		assert.Equal(t, []string{"press esc"}, r.do.Kinds())
	})

	t.Run("stuck open", func(t *testing.T) {
		r := newRig(t)
		r.see.Show("inventory/remote_open", true)

		err := storage(r).Close()

		var notClosable *ContainerNotClosableError
		require.ErrorAs(t, err, &notClosable)
		assert.Equal(t, 2, r.do.Count("press", "esc"))
		assert.Equal(t, "close", notClosable.Op())
	})
}

func TestSearch_ClearsUnlessAccumulating(t *testing.T) {
	r := newRig(t)
	c := storage(r)

	require.NoError(t, c.Search("crystal"))
	assert.Equal(t, 1, r.do.Count("press", "backspace"))
	assert.Equal(t, "crystal", c.LastSearch())

	require.NoError(t, c.Search("s"))
	assert.Equal(t, 1, r.do.Count("press", "backspace"), "accumulate term must not clear")
	assert.Equal(t, "crystals", c.LastSearch())

	require.NoError(t, c.Search("seed"))
	assert.Equal(t, 2, r.do.Count("press", "backspace"))
	assert.Equal(t, "seed", c.LastSearch())

	kinds := r.do.Kinds()
	assert.Equal(t, "click 1280,120", kinds[len(kinds)-1], "focus leaves the field last")
}

func TestTransfer_FilterSearchesFirst(t *testing.T) {
	r := newRig(t)
	c := storage(r)

	require.NoError(t, c.TakeAll(""))
	assert.Equal(t, []string{"click 2280,260"}, r.do.Kinds())

	require.NoError(t, c.DropAll("meat"))
	assert.Equal(t, 1, r.do.Count("type", "meat"))
	kinds := r.do.Kinds()
	assert.Equal(t, "click 2340,260", kinds[len(kinds)-1])
}

func TestAwaitItemsAdded(t *testing.T) {
	r := newRig(t)
	c := storage(r)

	err := c.AwaitItemsAdded()
	var notAdded *ItemsNotAddedError
	require.ErrorAs(t, err, &notAdded)

	r.see.Show("inventory/items_added", true)
	assert.NoError(t, c.AwaitItemsAdded())
}

func TestAwaitDeposited(t *testing.T) {
	r := newRig(t)
	c := storage(r)
	r.see.Show(items.Crystal.Icon, true)

	err := c.AwaitDeposited(items.Crystal, DefaultLayout().BagPane)
	var timedOut *DepositTimedOutError
	require.ErrorAs(t, err, &timedOut)
	assert.Contains(t, timedOut.Target(), items.Crystal.Name)

	r.see.Script(items.Crystal.Icon, true, false)
	assert.NoError(t, c.AwaitDeposited(items.Crystal, DefaultLayout().BagPane))
}

func TestCountAndContentChanged(t *testing.T) {
	r := newRig(t)
	c := storage(r)
	r.see.Counts[items.Seed.Icon] = 3

	assert.Equal(t, 3, c.Count(items.Seed))

	changed, err := c.AwaitContentChanged(items.Seed, 3)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = c.AwaitContentChanged(items.Seed, 5)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestCapacity(t *testing.T) {
	r := newRig(t)
	c := storage(r)

	r.see.Texts = []string{"312/350"}
	used, max, err := c.Capacity()
	require.NoError(t, err)
	assert.Equal(t, 312, used)
	assert.Equal(t, 350, max)

	r.see.TextErr = errors.New("ocr down")
	_, _, err = c.Capacity()
	assert.ErrorContains(t, err, "storage capacity")
}

func TestParseCounter(t *testing.T) {
	tests := []struct {
		in        string
		used, max int
		wantErr   bool
	}{
		{in: "12/450", used: 12, max: 450},
		{in: " 7 / 80 ", used: 7, max: 80},
		{in: "450", wantErr: true},
		{in: "a/450", wantErr: true},
		{in: "12/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			used, max, err := ParseCounter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.used, used)
			assert.Equal(t, tt.max, max)
		})
	}
}

func TestContents_IsACopy(t *testing.T) {
	r := newRig(t)
	c := storage(r)
	c.Record("Seed", 40)

	got := c.Contents()
	got["Seed"] = 1
	assert.Equal(t, map[string]int{"Seed": 40}, c.Contents())
}
