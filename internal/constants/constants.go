package constants

import "time"

// Observed-condition polling
const (
	DefaultPollInterval = 100 * time.Millisecond // Default tick for soft/hard waits
	SlowPollInterval    = 500 * time.Millisecond // Tick for long waits (loading screens, crafting)
)

// Containers
const (
	ContainerOpenPolls      = 20 // 2s at DefaultPollInterval before the action wheel probe
	ContainerWheelPolls     = 30 // 3s waiting for the action wheel to show the container name
	ContainerOpenRetryPolls = 50 // 5s after re-pressing the access key
	ContainerClosePolls     = 30 // 3s
	ItemsAddedPolls         = 30 // 3s waiting for "items added" feedback
	ContentChangedPolls     = 20 // 2s
	WaitAfterSearchClick    = 50 * time.Millisecond
	WaitAfterTransfer       = 200 * time.Millisecond
	WaitAfterDefocus        = 50 * time.Millisecond
)

// Travel
const (
	BedMapPolls       = 40 // 4s for the bed map to open
	TransitionPolls   = 60 // 6s for the white flash after clicking "Spawn"
	SpawnPolls        = 60 // 30s at SlowPollInterval for the stamina indicator
	BedSearchSettle   = 300 * time.Millisecond
	BedCooldownPolls  = 40 // 20s at SlowPollInterval for "bed on cooldown" to clear
	WaitAfterSpawnCue = 500 * time.Millisecond
	BedSelectRetries  = 3
)

// Player
const (
	TurnStepDuration = 120 * time.Millisecond // Mouse drag settle per 90 degree step
	CrouchSettle     = 300 * time.Millisecond
	LookSettle       = 150 * time.Millisecond
	AttackInterval   = 250 * time.Millisecond
)

// Stations
const (
	CrystalPickupWait   = 3 * time.Second
	CrystalOpenRetries  = 2
	CrystalUseInterval  = 150 * time.Millisecond
	MaxCrystalsPerVisit = 60
	CropTowerStacks     = 8
	CropStackPitch      = 22.5 // Degrees of camera pitch between stacked plots
	GrindPolls          = 120  // 60s at SlowPollInterval while the grinder works
	HealEatDuration     = 8 * time.Second
	HealMeatPerVisit    = 10
	DropStationSettle   = 1 * time.Second
	SeedRefillThreshold = 20
	StationRetryBackoff = 2 * time.Minute // A failed station is not retried before this
)

// Recovery
const (
	MenuClosePolls      = 20 // 2s
	CrashDialogPolls    = 10
	ProcessStartPolls   = 120 // 60s at SlowPollInterval for the main menu after launch
	JoinPolls           = 240 // 120s at SlowPollInterval for the session list and join
	DefaultCrashDelay   = 20 * time.Second
	IdleWatchdogTimeout = 15 * time.Minute
)

// Image Matching
const (
	DefaultTolerance  = 60   // Color tolerance for pixel comparison
	DefaultConfidence = 0.97 // Allow up to 3% of pixels to fail matching
	MinMatchDistance  = 10   // Pixels; matches closer than this are the same feature
	VirtualWidth      = 2560 // Coordinates are authored against this virtual screen
	VirtualHeight     = 1440
)

// Notifications
const (
	NotifyQueueSize = 64
	NotifyTimeout   = 10 * time.Second
)
