package game

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/engine/enginetest"
)

type rig struct {
	see *enginetest.Perception
	do  *enginetest.Actuator
	run *enginetest.Run
	env *Env
}

func newRig(t *testing.T) *rig {
	t.Helper()
	run := &enginetest.Run{}
	r := &rig{
		see: enginetest.NewPerception(),
		do:  &enginetest.Actuator{Run: run},
		run: run,
	}
	r.env = &Env{
		See:  r.see,
		Do:   r.do,
		Run:  run,
		Keys: DefaultKeys(),
		Log:  zerolog.Nop(),
	}
	return r
}
