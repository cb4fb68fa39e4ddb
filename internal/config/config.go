// Package config loads the device configuration from a TOML file,
// every key can be overridden with an environment variable.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"code.sztanpet.net/zvpsz/planes-around/internal/adsb"
	"github.com/BurntSushi/toml"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("main.config")

// DefaultPath is read when CONFIG_PATH is empty.
const DefaultPath = "/etc/planes-around/config.toml"

// Duration is a time.Duration read from strings like "30s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Position struct {
	Lat  float64 `toml:"lat"`
	Long float64 `toml:"long"`
}

type WiFi struct {
	SSID        string   `toml:"ssid"`
	Key         string   `toml:"key"`
	IP          string   `toml:"ip"`
	Mask        string   `toml:"mask"`
	Gateway     string   `toml:"gateway"`
	DNS         string   `toml:"dns"`
	Interface   string   `toml:"interface"`
	MaxAttempts int      `toml:"max_attempts"`
	RetryDelay  Duration `toml:"retry_delay"`
}

// Managed reports whether the device manages its wifi connection,
// an empty interface leaves networking to the host.
func (w WiFi) Managed() bool {
	return w.Interface != ""
}

// Static reports whether a static ip configuration was given.
func (w WiFi) Static() bool {
	return w.IP != ""
}

type API struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

type GPIO struct {
	ButtonA  string `toml:"button_a"`
	ButtonB  string `toml:"button_b"`
	LEDRed   string `toml:"led_r"`
	LEDGreen string `toml:"led_g"`
	LEDBlue  string `toml:"led_b"`
}

// Display is the ST7789 panel, pins are periph names like "GPIO9".
type Display struct {
	Bus       string `toml:"bus"`
	DC        string `toml:"dc"`
	Reset     string `toml:"reset"`
	Backlight string `toml:"backlight"`
	Rotated   bool   `toml:"rotated"`
}

type Telegram struct {
	Token     string `toml:"token"`
	ChannelID int64  `toml:"channel_id"`
}

// Enabled reports whether log messages should be forwarded to a channel.
func (t Telegram) Enabled() bool {
	return t.Token != "" && t.ChannelID != 0
}

type Config struct {
	StatePath   string   `toml:"state_path"`
	MachineID   string   `toml:"machine_id"`
	LogSpec     string   `toml:"log_spec"`
	DatabaseDSN string   `toml:"database_dsn"`
	Radius      float64  `toml:"radius"`
	Interval    Duration `toml:"interval"`
	Position    Position `toml:"position"`
	WiFi        WiFi     `toml:"wifi"`
	API         API      `toml:"api"`
	GPIO        GPIO     `toml:"gpio"`
	Display     Display  `toml:"display"`
	Telegram    Telegram `toml:"telegram"`
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		StatePath: "/var/lib/planes-around",
		LogSpec:   "<root>=INFO",
		Radius:    10,
		Interval:  Duration{30 * time.Second},
		WiFi: WiFi{
			Interface:   "wlan0",
			MaxAttempts: 10,
			RetryDelay:  Duration{5 * time.Second},
		},
		API: API{
			BaseURL: "https://api.adsb.lol/v2",
			Timeout: Duration{10 * time.Second},
		},
		GPIO: GPIO{
			ButtonA:  "GPIO12",
			ButtonB:  "GPIO13",
			LEDRed:   "GPIO6",
			LEDGreen: "GPIO7",
			LEDBlue:  "GPIO8",
		},
		Display: Display{
			Bus:       "SPI0.1",
			DC:        "GPIO9",
			Backlight: "GPIO19",
		},
	}
}

// Get loads the configuration from CONFIG_PATH and exits on any error.
func Get() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}

	cfg, err := Load(path)
	if err != nil {
		logger.Criticalf("Loading configuration failed: %v", err)
		os.Exit(1)
	}
	return cfg
}

// Load reads path on top of the defaults, applies the environment
// overrides and validates the result. A missing file is not an error,
// the environment alone can configure the device.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Infof("no config file at %v, using defaults and environment", path)
	case err != nil:
		return nil, fmt.Errorf("decoding %v failed: %w", path, err)
	default:
		for _, k := range md.Undecoded() {
			logger.Warningf("unknown configuration key: %v", k)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if cfg.MachineID == "" {
		cfg.MachineID = machineID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have no sensible default.
func (c *Config) Validate() error {
	switch {
	case c.StatePath == "":
		return errors.New("empty state_path")
	case c.WiFi.Managed() && c.WiFi.SSID == "":
		return errors.New("empty wifi.ssid")
	case c.WiFi.Managed() && c.WiFi.MaxAttempts < 1:
		return fmt.Errorf("wifi.max_attempts must be positive, got %d", c.WiFi.MaxAttempts)
	case c.Position.Lat < -90 || c.Position.Lat > 90:
		return fmt.Errorf("position.lat out of range: %v", c.Position.Lat)
	case c.Position.Long < -180 || c.Position.Long > 180:
		return fmt.Errorf("position.long out of range: %v", c.Position.Long)
	case c.Radius <= 0:
		return fmt.Errorf("radius must be positive, got %v", c.Radius)
	case c.Radius > adsb.MaxRadius:
		return fmt.Errorf("radius must be at most %v, got %v", adsb.MaxRadius, c.Radius)
	case c.Interval.Duration <= 0:
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	case c.API.BaseURL == "":
		return errors.New("empty api.base_url")
	case c.Display.DC == "":
		return errors.New("empty display.dc")
	}

	if c.WiFi.Static() && c.WiFi.Mask == "" {
		return errors.New("wifi.ip is set but wifi.mask is empty")
	}
	if c.Telegram.Token != "" && c.Telegram.ChannelID == 0 {
		return errors.New("telegram.token is set but telegram.channel_id is empty")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"STATE_PATH":        &c.StatePath,
		"MACHINE_ID":        &c.MachineID,
		"LOG_SPEC":          &c.LogSpec,
		"DATABASE_DSN":      &c.DatabaseDSN,
		"WIFI_SSID":         &c.WiFi.SSID,
		"WIFI_KEY":          &c.WiFi.Key,
		"WIFI_IP":           &c.WiFi.IP,
		"WIFI_MASK":         &c.WiFi.Mask,
		"WIFI_GATEWAY":      &c.WiFi.Gateway,
		"WIFI_DNS":          &c.WiFi.DNS,
		"WIFI_INTERFACE":    &c.WiFi.Interface,
		"API_BASE_URL":      &c.API.BaseURL,
		"GPIO_BUTTON_A":     &c.GPIO.ButtonA,
		"GPIO_BUTTON_B":     &c.GPIO.ButtonB,
		"GPIO_LED_R":        &c.GPIO.LEDRed,
		"GPIO_LED_G":        &c.GPIO.LEDGreen,
		"GPIO_LED_B":        &c.GPIO.LEDBlue,
		"DISPLAY_BUS":       &c.Display.Bus,
		"DISPLAY_DC":        &c.Display.DC,
		"DISPLAY_RESET":     &c.Display.Reset,
		"DISPLAY_BACKLIGHT": &c.Display.Backlight,
		"TELEGRAM_TOKEN":    &c.Telegram.Token,
	}
	for k, p := range strs {
		if v, ok := lookup(k); ok {
			*p = v
		}
	}

	floats := map[string]*float64{
		"POSITION_LAT":  &c.Position.Lat,
		"POSITION_LONG": &c.Position.Long,
		"RADIUS":        &c.Radius,
	}
	for k, p := range floats {
		v, ok := lookup(k)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("failed parsing %v env var: %w", k, err)
		}
		*p = f
	}

	durations := map[string]*Duration{
		"INTERVAL":         &c.Interval,
		"WIFI_RETRY_DELAY": &c.WiFi.RetryDelay,
		"API_TIMEOUT":      &c.API.Timeout,
	}
	for k, p := range durations {
		v, ok := lookup(k)
		if !ok {
			continue
		}
		if err := p.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("failed parsing %v env var: %w", k, err)
		}
	}

	if v, ok := lookup("WIFI_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("failed parsing WIFI_MAX_ATTEMPTS env var: %w", err)
		}
		c.WiFi.MaxAttempts = n
	}

	if v, ok := lookup("DISPLAY_ROTATED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("failed parsing DISPLAY_ROTATED env var: %w", err)
		}
		c.Display.Rotated = b
	}

	if v, ok := lookup("TELEGRAM_CHANNELID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("failed parsing TELEGRAM_CHANNELID env var: %w", err)
		}
		c.Telegram.ChannelID = id
	}

	return nil
}

var machineIDPath = "/etc/machine-id"

// machineID identifies the device in stored sightings and log messages,
// the hostname is used when the machine id is unreadable
func machineID() string {
	mid, err := os.ReadFile(machineIDPath)
	if err == nil {
		mid = bytes.TrimSpace(mid)
		if len(mid) == 32 {
			return string(mid)
		}
		logger.Warningf("invalid contents of %v: %q", machineIDPath, mid)
	} else {
		logger.Warningf("failed reading %v: %v", machineIDPath, err)
	}

	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
