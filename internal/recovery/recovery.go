// Package recovery decides what went wrong with the game after a station
// failed and applies the one remedy that matches.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/game"
	"github.com/ConserveLee/farmbot/internal/runstate"
	"github.com/ConserveLee/farmbot/internal/wait"
)

// Remedy is one fix, listed in the order they are tried.
type Remedy int

const (
	RemedyNone Remedy = iota
	RemedyCloseMenu
	RemedyCrashRestart
	RemedyRelaunch
	RemedyRejoin
)

func (r Remedy) String() string {
	switch r {
	case RemedyNone:
		return "None"
	case RemedyCloseMenu:
		return "CloseMenu"
	case RemedyCrashRestart:
		return "CrashRestart"
	case RemedyRelaunch:
		return "Relaunch"
	case RemedyRejoin:
		return "Rejoin"
	default:
		return "Unknown"
	}
}

// Session reports one recovery pass.
type Session struct {
	Remedy      Remedy
	Fixed       bool
	Reconnected bool // the game was relaunched or the session rejoined
	Took        time.Duration
	Err         error // why the remedy failed, when it did
}

// Modal is a UI that takes the game's focus until the close key dismisses
// it: the pause menu, an open inventory, the bed map.
type Modal struct {
	Template engine.TemplateID
	Region   engine.Region
}

// Screen holds the templates and buttons the remedies use.
type Screen struct {
	Modals      []Modal
	CrashDialog engine.TemplateID
	MainMenu    engine.TemplateID

	JoinButton    engine.Point
	SessionList   engine.TemplateID // the server browser is shown
	SessionSearch engine.Point
	FirstSession  engine.Point
	ConfirmJoin   engine.Point
}

// DefaultScreen matches the stock UI on the virtual screen.
func DefaultScreen() Screen {
	l := game.DefaultLayout()
	return Screen{
		Modals: []Modal{
			{Template: "menu/resume", Region: image.Rect(980, 400, 1580, 1040)},
			{Template: l.Storage.OpenIndicator, Region: l.Storage.OpenRegion},
			{Template: l.Bag.OpenIndicator, Region: l.Bag.OpenRegion},
			{Template: l.BedMap.MapIndicator},
		},
		CrashDialog:   "menu/crash_dialog",
		MainMenu:      "menu/main",
		JoinButton:    image.Pt(1280, 760),
		SessionList:   "menu/session_list",
		SessionSearch: image.Pt(2200, 220),
		FirstSession:  image.Pt(1280, 400),
		ConfirmJoin:   image.Pt(2300, 1340),
	}
}

// Config names the game instance to restore.
type Config struct {
	Session    string        // server name typed into the session browser
	CrashDelay time.Duration // the game's own crash reporter needs this long
}

// Handler runs the remedy chain. It is used on the driver goroutine only.
type Handler struct {
	env      *game.Env
	travel   *game.Traveler
	screen   Screen
	proc     Process
	launcher Launcher
	cfg      Config
	log      zerolog.Logger
}

func NewHandler(env *game.Env, travel *game.Traveler, screen Screen, proc Process, launcher Launcher, cfg Config) *Handler {
	if cfg.CrashDelay <= 0 {
		cfg.CrashDelay = constants.DefaultCrashDelay
	}
	return &Handler{
		env:      env,
		travel:   travel,
		screen:   screen,
		proc:     proc,
		launcher: launcher,
		cfg:      cfg,
		log:      env.Log.With().Str("component", "recovery").Logger(),
	}
}

// Diagnose picks the first remedy whose condition holds. It only looks;
// it never acts on the game.
func (h *Handler) Diagnose(ctx context.Context) (Remedy, error) {
	if h.modalOpen() {
		return RemedyCloseMenu, nil
	}
	if h.env.Visible(h.screen.CrashDialog, engine.Region{}) {
		return RemedyCrashRestart, nil
	}
	running, err := h.proc.Running(ctx)
	if err != nil {
		return RemedyNone, err
	}
	if !running {
		return RemedyRelaunch, nil
	}
	if h.env.Visible(h.screen.MainMenu, engine.Region{}) {
		return RemedyRejoin, nil
	}
	return RemedyNone, nil
}

// Recover applies the first matching remedy for a failure of station.
// The returned error is only ever runstate.ErrStopped; every other failure
// is reported through Session.Fixed and Session.Err.
func (h *Handler) Recover(ctx context.Context, station string, cause error) (Session, error) {
	start := time.Now()
	log := h.log.With().Str("station", station).Logger()
	log.Warn().Err(cause).Msg("recovery started")

	remedy, err := h.Diagnose(ctx)
	s := Session{Remedy: remedy}
	if err != nil {
		s.Err = fmt.Errorf("diagnose: %w", err)
		return h.finish(log, s, start), nil
	}

	switch remedy {
	case RemedyCloseMenu:
		err = h.closeMenu()
	case RemedyCrashRestart:
		s.Reconnected = true
		err = h.crashRestart(ctx)
	case RemedyRelaunch:
		s.Reconnected = true
		err = h.relaunch(ctx)
	case RemedyRejoin:
		s.Reconnected = true
		err = h.join()
	case RemedyNone:
		// Nothing is wrong with the game itself; the player must be loaded in
		// for the station to be retried.
		if !h.travel.Spawned() {
			err = fmt.Errorf("no remedy matched and the player is not spawned")
		}
	}

	if errors.Is(err, runstate.ErrStopped) {
		return s, err
	}
	s.Fixed = err == nil
	s.Err = err
	return h.finish(log, s, start), nil
}

func (h *Handler) finish(log zerolog.Logger, s Session, start time.Time) Session {
	s.Took = time.Since(start)
	ev := log.Info()
	if !s.Fixed {
		ev = log.Error().AnErr("reason", s.Err)
	}
	ev.Str("remedy", s.Remedy.String()).Bool("fixed", s.Fixed).Bool("reconnected", s.Reconnected).Msg("recovery finished")
	return s
}

func (h *Handler) modalOpen() bool {
	for _, m := range h.screen.Modals {
		if h.env.Visible(m.Template, m.Region) {
			return true
		}
	}
	return false
}

// closeMenu presses the close key until no modal is left. Modals can be
// stacked (a container over the pause menu), so it tries once per kind.
func (h *Handler) closeMenu() error {
	b := wait.Polls(constants.MenuClosePolls, constants.DefaultPollInterval)
	for range max(len(h.screen.Modals), 1) {
		if err := h.env.Do.Press(h.env.Keys.Close); err != nil {
			return err
		}
		gone, err := wait.Gone(h.env.Run, b, h.modalOpen)
		if err != nil {
			return err
		}
		if gone {
			return nil
		}
	}
	return fmt.Errorf("menu did not close")
}

// crashRestart waits for the crash reporter, makes sure the process is
// gone and starts over.
func (h *Handler) crashRestart(ctx context.Context) error {
	if err := h.env.Sleep(h.cfg.CrashDelay); err != nil {
		return err
	}
	running, err := h.proc.Running(ctx)
	if err != nil {
		return err
	}
	if running {
		if err := h.proc.Kill(ctx); err != nil {
			return err
		}
		b := wait.Polls(constants.CrashDialogPolls, constants.SlowPollInterval)
		exited, err := h.env.Soft(b, func() bool {
			alive, err := h.proc.Running(ctx)
			return err == nil && !alive
		})
		if err != nil {
			return err
		}
		if !exited {
			return fmt.Errorf("game process did not exit after kill")
		}
	}
	return h.relaunch(ctx)
}

func (h *Handler) relaunch(ctx context.Context) error {
	if err := h.launcher.Launch(ctx); err != nil {
		return fmt.Errorf("launch: %w", err)
	}
	b := wait.Polls(constants.ProcessStartPolls, constants.SlowPollInterval)
	if err := h.env.AwaitVisible(h.screen.MainMenu, engine.Region{}, b, func() error {
		return fmt.Errorf("main menu not shown within %s of launch", b.Timeout())
	}); err != nil {
		return err
	}
	return h.join()
}

// join runs the session browser flow from the main menu and confirms the
// player loaded in.
func (h *Handler) join() error {
	if err := h.env.Do.Click(h.screen.JoinButton, engine.ButtonLeft); err != nil {
		return err
	}
	b := wait.Polls(constants.JoinPolls, constants.SlowPollInterval)
	if err := h.env.AwaitVisible(h.screen.SessionList, engine.Region{}, b, func() error {
		return fmt.Errorf("session list not shown within %s", b.Timeout())
	}); err != nil {
		return err
	}

	if err := h.env.Do.Click(h.screen.SessionSearch, engine.ButtonLeft); err != nil {
		return err
	}
	if err := h.env.ClearField(); err != nil {
		return err
	}
	if err := h.env.Do.TypeText(h.cfg.Session); err != nil {
		return err
	}
	if err := h.env.Sleep(constants.BedSearchSettle); err != nil {
		return err
	}
	if err := h.env.Do.Click(h.screen.FirstSession, engine.ButtonLeft); err != nil {
		return err
	}
	if err := h.env.Do.Click(h.screen.ConfirmJoin, engine.ButtonLeft); err != nil {
		return err
	}
	return h.travel.AwaitSpawned(h.cfg.Session, constants.JoinPolls)
}
