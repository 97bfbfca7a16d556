// Package config handles configuration loading and validation for farmbot.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/game"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://farmbot.local/config.schema.json"

// Config holds the application configuration.
type Config struct {
	Game     GameConfig     `yaml:"game"`
	Screen   ScreenConfig   `yaml:"screen"`
	OCR      OCRConfig      `yaml:"ocr"`
	Keys     game.Keys      `yaml:"keys"`
	Stations StationsConfig `yaml:"stations"`
	Items    ItemsConfig    `yaml:"items"`
	Notify   NotifyConfig   `yaml:"notify"`
	State    StateConfig    `yaml:"state"`
	Log      LogConfig      `yaml:"log"`

	// Dropped lists config keys that were ignored because nothing reads them.
	Dropped []string `yaml:"-"`
}

// GameConfig identifies the game process and the server to rejoin.
type GameConfig struct {
	Process         string        `yaml:"process"`
	Launch          []string      `yaml:"launch"` // command and arguments
	Dir             string        `yaml:"dir"`
	Session         string        `yaml:"session"`
	CrashDelay      time.Duration `yaml:"crash_delay"`
	PixelsPerDegree float64       `yaml:"pixels_per_degree"`
}

type ScreenConfig struct {
	Display     int     `yaml:"display"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Assets      string  `yaml:"assets"`
	Tolerance   float64 `yaml:"tolerance"`
	Confidence  float64 `yaml:"confidence"`
	MinDistance int     `yaml:"min_distance"`
}

// OCRConfig holds the OCR language and the misread corrections applied to
// every read, longest key first.
type OCRConfig struct {
	Language    string            `yaml:"language"`
	Corrections map[string]string `yaml:"corrections"`
}

type StationsConfig struct {
	Crystal  CrystalConfig  `yaml:"crystal"`
	Crop     CropConfig     `yaml:"crop_plots"`
	Grinding GrindingConfig `yaml:"grinding"`
	Healing  HealingConfig  `yaml:"healing"`
	Drop     DropConfig     `yaml:"drop"`
}

type CrystalConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Prefix      string        `yaml:"prefix"`
	Count       int           `yaml:"count"`
	Interval    time.Duration `yaml:"interval"`
	VaultFullAt float64       `yaml:"vault_full_at"`
	VaultFacing string        `yaml:"vault_facing"`
}

type CropConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Prefix      string        `yaml:"prefix"`
	Count       int           `yaml:"count"`
	Interval    time.Duration `yaml:"interval"`
	Stacks      int           `yaml:"stacks"`
	Towers      []string      `yaml:"towers"`
	RefillBelow int           `yaml:"refill_below"`
}

type GrindingConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Bed              string `yaml:"bed"`
	Target           string `yaml:"target"`
	Limit            int    `yaml:"limit"`
	VaultFacing      string `yaml:"vault_facing"`
	GrinderFacing    string `yaml:"grinder_facing"`
	FabricatorFacing string `yaml:"fabricator_facing"`
}

type HealingConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Bed          string        `yaml:"bed"`
	Interval     time.Duration `yaml:"interval"`
	FridgeFacing string        `yaml:"fridge_facing"`
}

type DropConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Bed      string        `yaml:"bed"`
	Interval time.Duration `yaml:"interval"`
}

// ItemsConfig names items by catalog name. Keep is what the crystal
// station deposits; Drop is what the drop station throws away.
type ItemsConfig struct {
	Keep []string `yaml:"keep"`
	Drop []string `yaml:"drop"`
}

type NotifyConfig struct {
	DiscordWebhook string        `yaml:"discord_webhook"`
	Timeout        time.Duration `yaml:"timeout"`
	Queue          int           `yaml:"queue"`
}

type StateConfig struct {
	DB string `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the configuration used for every key the file
// leaves out.
func DefaultConfig() Config {
	return Config{
		Game: GameConfig{
			Process:         "ShooterGame.exe",
			CrashDelay:      constants.DefaultCrashDelay,
			PixelsPerDegree: 2,
		},
		Screen: ScreenConfig{
			Width:       constants.VirtualWidth,
			Height:      constants.VirtualHeight,
			Assets:      "assets",
			Tolerance:   constants.DefaultTolerance,
			Confidence:  constants.DefaultConfidence,
			MinDistance: constants.MinMatchDistance,
		},
		OCR: OCRConfig{
			Language: "eng",
			Corrections: map[string]string{
				"O": "0",
				"o": "0",
				"l": "1",
				"I": "1",
				"S": "5",
				"B": "8",
			},
		},
		Keys: game.DefaultKeys(),
		Stations: StationsConfig{
			Crystal: CrystalConfig{
				Enabled:     true,
				Prefix:      "crystal",
				Count:       10,
				Interval:    2 * time.Hour,
				VaultFullAt: 0.9,
				VaultFacing: "Back",
			},
			Crop: CropConfig{
				Prefix:      "crop",
				Count:       4,
				Interval:    3 * time.Hour,
				Stacks:      constants.CropTowerStacks,
				Towers:      []string{"Front", "Right", "Back", "Left"},
				RefillBelow: constants.SeedRefillThreshold,
			},
			Grinding: GrindingConfig{
				Bed:              "grinding",
				Target:           "Heavy Auto Turret",
				VaultFacing:      "Left",
				GrinderFacing:    "Front",
				FabricatorFacing: "Right",
			},
			Healing: HealingConfig{
				Bed:          "healing",
				Interval:     30 * time.Minute,
				FridgeFacing: "Front",
			},
			Drop: DropConfig{
				Bed:      "drop",
				Interval: time.Hour,
			},
		},
		Items: ItemsConfig{
			Keep: []string{"Saddle", "Metal Ingot", "Electronics", "Cementing Paste"},
			Drop: []string{"Stone", "Chitin"},
		},
		Notify: NotifyConfig{
			Timeout: constants.NotifyTimeout,
			Queue:   constants.NotifyQueueSize,
		},
		State: StateConfig{DB: "data/farmbot.db"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file
// is not an error; the defaults are used. Unknown keys are dropped and
// listed in Config.Dropped.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := cfg.decode(data); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// decode prunes unknown keys, checks the rest against the schema and
// decodes it onto c.
func (c *Config) decode(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if doc == nil {
		return nil
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("parse config file: top level must be a mapping")
	}

	schemaDoc, err := schemaTree()
	if err != nil {
		return err
	}
	var dropped []string
	prune(root, schemaDoc, "", &dropped)
	sort.Strings(dropped)
	c.Dropped = dropped

	schema, err := compileSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(root); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}

	pruned, err := yaml.Marshal(root)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(pruned, c); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Schema returns the JSON schema config files are checked against.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("load config schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return schema, nil
}

func schemaTree() (map[string]any, error) {
	var tree map[string]any
	if err := json.Unmarshal(schemaJSON, &tree); err != nil {
		return nil, fmt.Errorf("parse config schema: %w", err)
	}
	return tree, nil
}

// prune deletes every key of data the schema node does not declare. Nodes
// without "properties" (free-form maps, scalars) are kept whole.
func prune(data map[string]any, node map[string]any, path string, dropped *[]string) {
	props, ok := node["properties"].(map[string]any)
	if !ok {
		return
	}
	for key, value := range data {
		full := key
		if path != "" {
			full = path + "." + key
		}
		sub, known := props[key].(map[string]any)
		if !known {
			delete(data, key)
			*dropped = append(*dropped, full)
			continue
		}
		if child, ok := value.(map[string]any); ok {
			prune(child, sub, full, dropped)
		}
	}
}

// applyDefaults sets default values for options the file zeroed.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Screen.Width == 0 || c.Screen.Height == 0 {
		c.Screen.Width, c.Screen.Height = defaults.Screen.Width, defaults.Screen.Height
	}
	if c.Screen.Tolerance == 0 {
		c.Screen.Tolerance = defaults.Screen.Tolerance
	}
	if c.Screen.Confidence == 0 {
		c.Screen.Confidence = defaults.Screen.Confidence
	}
	if c.Game.PixelsPerDegree == 0 {
		c.Game.PixelsPerDegree = defaults.Game.PixelsPerDegree
	}
	if c.Game.CrashDelay == 0 {
		c.Game.CrashDelay = defaults.Game.CrashDelay
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = defaults.Notify.Timeout
	}
	if c.Notify.Queue == 0 {
		c.Notify.Queue = defaults.Notify.Queue
	}
	if c.Stations.Crop.Stacks == 0 {
		c.Stations.Crop.Stacks = defaults.Stations.Crop.Stacks
	}
	if len(c.Stations.Crop.Towers) == 0 {
		c.Stations.Crop.Towers = defaults.Stations.Crop.Towers
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.OCR.Corrections == nil {
		c.OCR.Corrections = map[string]string{}
	}
}
