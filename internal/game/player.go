package game

import (
	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/navigation"
)

// Player moves and orients the controlled character.
type Player struct {
	env *Env

	// PixelsPerDegree converts a turn angle into relative mouse travel.
	PixelsPerDegree float64

	facing navigation.Direction
	ring   *navigation.Ring
}

func NewPlayer(env *Env, pixelsPerDegree float64) *Player {
	return &Player{env: env, PixelsPerDegree: pixelsPerDegree}
}

// Orient binds the player to a ring and resets the facing. Called right
// after spawning, when the facing is known.
func (p *Player) Orient(ring *navigation.Ring, facing navigation.Direction) {
	p.ring = ring
	p.facing = facing
}

// Facing is the current facing token.
func (p *Player) Facing() navigation.Direction { return p.facing }

// Face turns toward target along the shortest ring path.
func (p *Player) Face(target navigation.Direction) error {
	steps, err := p.ring.Path(p.facing, target)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if err := p.Turn(s.Angle); err != nil {
			return err
		}
		p.facing = s.To
	}
	return nil
}

// Turn rotates the camera by degrees; positive turns right.
func (p *Player) Turn(degrees float64) error {
	if err := p.env.Do.MoveBy(int(degrees*p.PixelsPerDegree), 0); err != nil {
		return err
	}
	return p.env.Sleep(constants.TurnStepDuration)
}

// Pitch tilts the camera; positive looks down.
func (p *Player) Pitch(degrees float64) error {
	if err := p.env.Do.MoveBy(0, int(degrees*p.PixelsPerDegree)); err != nil {
		return err
	}
	return p.env.Sleep(constants.LookSettle)
}

// LookDown looks straight at the floor; the camera clamps the overshoot.
func (p *Player) LookDown() error { return p.Pitch(180) }

// LookUp looks straight up.
func (p *Player) LookUp() error { return p.Pitch(-180) }

// Crouch toggles crouching.
func (p *Player) Crouch() error {
	if err := p.env.Do.Press(p.env.Keys.Crouch); err != nil {
		return err
	}
	return p.env.Sleep(constants.CrouchSettle)
}

// Use presses the use key once.
func (p *Player) Use() error {
	return p.env.Do.Press(p.env.Keys.Use)
}

// Attack presses the attack key n times.
func (p *Player) Attack(n int) error {
	for i := 0; i < n; i++ {
		if err := p.env.Do.Press(p.env.Keys.Attack); err != nil {
			return err
		}
		if err := p.env.Sleep(constants.AttackInterval); err != nil {
			return err
		}
	}
	return nil
}
