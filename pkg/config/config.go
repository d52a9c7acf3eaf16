package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/jdsd/practice-tool/pkg/command"
	"github.com/jdsd/practice-tool/pkg/pointers"
)

const (
	configDir  string = ".ptool"
	configFile string = "config.yml"
)

// Addresses overrides the absolute address of individual roots of the
// memory map. Zero fields keep the built in value.
type Addresses struct {
	Quitout        uint64 `yaml:"quitout,omitempty" toml:"quitout"`
	RenderWorld    uint64 `yaml:"render-world,omitempty" toml:"render_world"`
	DebugRender    uint64 `yaml:"debug-render,omitempty" toml:"debug_render"`
	Igt            uint64 `yaml:"igt,omitempty" toml:"igt"`
	PlayerPosition uint64 `yaml:"player-position,omitempty" toml:"player_position"`
	DebugFlags     uint64 `yaml:"debug-flags,omitempty" toml:"debug_flags"`
	ShowCursor     uint64 `yaml:"show-cursor,omitempty" toml:"show_cursor"`
}

// Bases converts a to the memory map representation.
func (a Addresses) Bases() pointers.BaseAddresses {
	return pointers.BaseAddresses{
		Quitout:        uintptr(a.Quitout),
		RenderWorld:    uintptr(a.RenderWorld),
		DebugRender:    uintptr(a.DebugRender),
		Igt:            uintptr(a.Igt),
		PlayerPosition: uintptr(a.PlayerPosition),
		DebugFlags:     uintptr(a.DebugFlags),
		ShowCursor:     uintptr(a.ShowCursor),
	}
}

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// LogLevel is the comma separated list of log layers enabled when
	// no --log-output is given.
	LogLevel string `yaml:"log-level,omitempty" toml:"log_level"`
	// Display is the key that shows and hides the panel.
	Display string `yaml:"display,omitempty" toml:"display"`
	// Indicators keeps position, timer and frame count on screen while
	// the panel is hidden.
	Indicators bool `yaml:"indicators" toml:"indicators"`

	// GameVersion selects the memory map, e.g. "1.06.0".
	GameVersion string `yaml:"game-version,omitempty" toml:"game_version"`
	// ModuleBase is the image base of the target, zero to detect it.
	ModuleBase uint64 `yaml:"module-base,omitempty" toml:"module_base"`
	// Addresses overrides individual roots of the memory map.
	Addresses Addresses `yaml:"addresses,omitempty" toml:"addresses"`

	// Flags lists the features shown on the panel, in order.
	Flags []string `yaml:"flags,omitempty" toml:"flags"`
	// Nudge is the distance moved by nudge_up and nudge_down.
	Nudge float32 `yaml:"nudge,omitempty" toml:"nudge"`
	// Hotkeys maps command names to triggers such as "f1" or "shift+f7".
	// An empty trigger leaves the command unbound.
	Hotkeys map[string]string `yaml:"hotkeys,omitempty" toml:"hotkeys"`

	// FrameRate is the number of frames per second presented by the
	// terminal overlay.
	FrameRate int `yaml:"frame-rate,omitempty" toml:"frame_rate"`
}

// DefaultHotkeys are the bindings used for commands the configuration
// does not mention.
var DefaultHotkeys = map[string]string{
	"show":       "0",
	"collision":  "f1",
	"stealth":    "f2",
	"ai":         "f3",
	"no_damage":  "f4",
	"consume":    "f5",
	"load_pos":   "f7",
	"save_pos":   "shift+f7",
	"quitout":    "f9",
	"nudge_up":   "pgup",
	"nudge_down": "pgdn",
}

// DefaultFlags are the features shown when the configuration lists none.
var DefaultFlags = []string{"collision", "stealth", "ai", "no_damage", "consume"}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.fillDefaults()
	return c
}

func (c *Config) fillDefaults() {
	if c.GameVersion == "" {
		c.GameVersion = pointers.Latest.String()
	}
	if len(c.Flags) == 0 {
		c.Flags = append([]string(nil), DefaultFlags...)
	}
	if c.Nudge == 0 {
		c.Nudge = 1
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 30
	}
	if c.Hotkeys == nil {
		c.Hotkeys = make(map[string]string, len(DefaultHotkeys))
	}
	for name, trigger := range DefaultHotkeys {
		if _, ok := c.Hotkeys[name]; !ok {
			c.Hotkeys[name] = trigger
		}
	}
	if c.Display == "" {
		c.Display = c.Hotkeys["show"]
	}
	c.Hotkeys["show"] = c.Display
}

// Version parses GameVersion.
func (c *Config) Version() (pointers.Version, error) {
	return pointers.ParseVersion(c.GameVersion)
}

// Validate checks every trigger, the version and the feature list.
func (c *Config) Validate() error {
	if _, err := c.Version(); err != nil {
		return err
	}
	for _, name := range c.Names() {
		s := c.Hotkeys[name]
		if s == "" {
			continue
		}
		if _, err := command.ParseTrigger(s); err != nil {
			return &HotkeyError{Name: name, Err: err}
		}
	}
	return nil
}

// HotkeyError is returned for bindings that cannot be parsed.
type HotkeyError struct {
	Name string
	Err  error
}

func (err *HotkeyError) Error() string {
	return fmt.Sprintf("hotkey %q: %v", err.Name, err.Err)
}

func (err *HotkeyError) Unwrap() error {
	return err.Err
}

// Names returns the name of every bound command, sorted.
func (c *Config) Names() []string {
	r := make([]string, 0, len(c.Hotkeys))
	for name := range c.Hotkeys {
		r = append(r, name)
	}
	sort.Strings(r)
	return r
}

// Lookup returns the trigger of the command called name. Commands
// without a valid binding are unbound.
func (c *Config) Lookup(name string) command.Trigger {
	s, ok := c.Hotkeys[name]
	if !ok || s == "" {
		return command.Unbound
	}
	t, err := command.ParseTrigger(s)
	if err != nil {
		return command.Unbound
	}
	return t
}

// Describe returns a human readable description of the trigger of name,
// or the empty string if it is unbound.
func (c *Config) Describe(name string) string {
	t := c.Lookup(name)
	if !t.Bound() {
		return ""
	}
	return t.String()
}

// SetHotkey changes the binding of name.
func (c *Config) SetHotkey(name string, t command.Trigger) {
	if c.Hotkeys == nil {
		c.Hotkeys = make(map[string]string)
	}
	c.Hotkeys[name] = ""
	if t.Bound() {
		c.Hotkeys[name] = t.String()
	}
	if name == "show" {
		c.Display = c.Hotkeys[name]
	}
}

// LoadConfig attempts to populate a Config object from the config.yml file.
// Problems are reported on stderr and the defaults are used instead.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create config directory: %v.\n", err)
		return Default()
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to get config file path: %v.\n", err)
		return Default()
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating default config file: %v\n", err)
			return Default()
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Closing config file failed: %v.\n", err)
		}
	}()

	c, err := decodeYAML(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to decode config file: %v.\n", err)
		return Default()
	}
	return c
}

// LoadFile reads the configuration at path. Files ending in .toml are
// read as TOML, anything else as YAML.
func LoadFile(path string) (*Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var c Config
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return nil, fmt.Errorf("unable to decode %s: %w", path, err)
		}
		c.fillDefaults()
		return &c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := decodeYAML(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", path, err)
	}
	return c, nil
}

func decodeYAML(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.fillDefaults()
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	return SaveFile(fullConfigFile, conf)
}

// SaveFile writes conf to path, as TOML if path ends in .toml and as
// YAML otherwise.
func SaveFile(path string, conf *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return err
		}
		if err := toml.NewEncoder(f).Encode(conf); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	out, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0600)
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	if err := writeDefaultConfig(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(w io.Writer) error {
	_, err := io.WriteString(w,
		`# Configuration file for ptool.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Key that shows and hides the panel.
# display: "0"

# Keep position, timer and frame count on screen while the panel is hidden.
indicators: true

# Version of the target executable. Supported: 1.02.0 1.03.0 1.04.0 1.05.0 1.06.0
# game-version: 1.06.0

# Image base of the target, detected from the process when unset.
# module-base: 0x140000000

# Absolute addresses replacing individual roots of the memory map.
# addresses:
#   quitout: 0x143d67408
#   debug-flags: 0x143d7a369

# Features shown on the panel. Any flag listed by the "flags" console
# command can be used, as well as "collision".
# flags: [collision, stealth, ai, no_damage, consume]

# Distance moved by nudge_up and nudge_down.
# nudge: 1.0

# Command bindings. Use "" to leave a command unbound.
hotkeys:
  # collision: f1
  # stealth: f2
  # ai: f3
  # no_damage: f4
  # consume: f5
  # load_pos: f7
  # save_pos: shift+f7
  # quitout: f9
  # nudge_up: pgup
  # nudge_down: pgdn
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
