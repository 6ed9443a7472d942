package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"qsotrainer/contest"
	"qsotrainer/engine"
	"qsotrainer/pileup"
)

// EnvConfigPath overrides the config directory.
const EnvConfigPath = "QSOT_CONFIG_PATH"

// DefaultDir is the config directory used when neither the flag nor the
// environment names one.
const DefaultDir = "config"

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete trainer configuration
type Config struct {
	User       UserConfig       `yaml:"user"`
	Contest    ContestConfig    `yaml:"contest"`
	Simulation SimulationConfig `yaml:"simulation"`
	Pileup     PileupConfig     `yaml:"pileup"`
	Correction CorrectionConfig `yaml:"call_correction"`
	Timing     TimingConfig     `yaml:"timing"`
	CTY        CTYConfig        `yaml:"cty"`
	QSOLog     QSOLogConfig     `yaml:"qso_log"`
	Worked     WorkedConfig     `yaml:"worked"`
	Export     ExportConfig     `yaml:"export"`
	UI         UIConfig         `yaml:"ui"`
	Telnet     TelnetConfig     `yaml:"telnet"`
	Logging    LoggingConfig    `yaml:"logging"`

	// LoadedFrom is the directory the config was read from; empty for
	// built-in defaults.
	LoadedFrom string `yaml:"-"`
}

// UserConfig is the operator's own station
type UserConfig struct {
	Callsign   string `yaml:"callsign"`
	Name       string `yaml:"name"`
	Zone       int    `yaml:"zone"`
	Section    string `yaml:"section"`
	WPM        int    `yaml:"wpm"`
	AGNMessage string `yaml:"agn_message"`
}

// ContestConfig selects the contest and its caller source
type ContestConfig struct {
	ID           string            `yaml:"id"`
	CallsignFile string            `yaml:"callsign_file"`
	CQMessage    string            `yaml:"cq_message"`
	Settings     map[string]string `yaml:"settings"`
}

// SimulationConfig shapes the simulated band
type SimulationConfig struct {
	MaxSimultaneous        int     `yaml:"max_simultaneous_stations"`
	StationProbability     float64 `yaml:"station_probability"`
	WPMMin                 int     `yaml:"wpm_min"`
	WPMMax                 int     `yaml:"wpm_max"`
	FrequencySpreadHz      float64 `yaml:"frequency_spread_hz"`
	AmplitudeMin           float64 `yaml:"amplitude_min"`
	AmplitudeMax           float64 `yaml:"amplitude_max"`
	AGNRequestProbability  float64 `yaml:"agn_request_probability"`
	SameCountryFilter      bool    `yaml:"same_country_filter_enabled"`
	SameCountryProbability float64 `yaml:"same_country_probability"`
	// Seed 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

// PileupConfig controls caller persistence
type PileupConfig struct {
	MinPatience     int `yaml:"min_patience"`
	MaxPatience     int `yaml:"max_patience"`
	RetryDelayMinMS int `yaml:"retry_delay_min_ms"`
	RetryDelayMaxMS int `yaml:"retry_delay_max_ms"`
}

// CorrectionConfig controls how callers fix a busted callsign
type CorrectionConfig struct {
	CorrectionProbability float64 `yaml:"correction_probability"`
	SingleProbability     float64 `yaml:"single_probability"`
	MaxCorrectionAttempts int     `yaml:"max_correction_attempts"`
}

// TimingConfig holds the controller's waits in milliseconds
type TimingConfig struct {
	PostCQDelayMS     int `yaml:"post_cq_delay_ms"`
	ResponseDelayMS   int `yaml:"response_delay_ms"`
	TailEnderDelayMS  int `yaml:"tail_ender_delay_ms"`
	CQPollIntervalMS  int `yaml:"cq_poll_interval_ms"`
	CQSilenceWindowMS int `yaml:"cq_silence_window_ms"`
}

// CTYConfig points at the country database used for zones and the
// same-country filter
type CTYConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// QSOLogConfig controls the SQLite contact log
type QSOLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WorkedConfig controls the worked-before store
type WorkedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	CacheMB int    `yaml:"cache_mb"`
}

// ExportConfig controls session exports
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// UIConfig selects the front-end
type UIConfig struct {
	Mode      string `yaml:"mode"`
	RefreshMS int    `yaml:"refresh_ms"`
	Color     bool   `yaml:"color"`
}

// TelnetConfig controls the remote command port
type TelnetConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Port             int    `yaml:"port"`
	MaxConnections   int    `yaml:"max_connections"`
	Transport        string `yaml:"transport"`
	EchoMode         string `yaml:"echo_mode"`
	KeepaliveSeconds int    `yaml:"keepalive_seconds"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	es := engine.DefaultSettings()
	ps := pileup.DefaultSettings()
	return &Config{
		User: UserConfig{
			Callsign:   es.UserCallsign,
			Name:       "OP",
			Zone:       5,
			Section:    "CT",
			WPM:        es.UserWPM,
			AGNMessage: es.AGNMessage,
		},
		Contest: ContestConfig{
			ID:        "cwt",
			CQMessage: "CQ TEST",
		},
		Simulation: SimulationConfig{
			MaxSimultaneous:        ps.MaxSimultaneous,
			StationProbability:     ps.StationProbability,
			WPMMin:                 ps.WPMMin,
			WPMMax:                 ps.WPMMax,
			FrequencySpreadHz:      ps.FrequencySpreadHz,
			AmplitudeMin:           ps.AmplitudeMin,
			AmplitudeMax:           ps.AmplitudeMax,
			AGNRequestProbability:  es.AGNRequestProbability,
			SameCountryProbability: ps.SameCountryProbability,
		},
		Pileup: PileupConfig{
			MinPatience:     ps.MinPatience,
			MaxPatience:     ps.MaxPatience,
			RetryDelayMinMS: int(ps.RetryDelayMin / time.Millisecond),
			RetryDelayMaxMS: int(ps.RetryDelayMax / time.Millisecond),
		},
		Correction: CorrectionConfig{
			CorrectionProbability: es.CorrectionProbability,
			SingleProbability:     es.SingleProbability,
			MaxCorrectionAttempts: es.MaxCorrectionAttempts,
		},
		Timing: TimingConfig{
			PostCQDelayMS:     int(es.Timing.PostCQDelay / time.Millisecond),
			ResponseDelayMS:   int(es.Timing.ResponseDelay / time.Millisecond),
			TailEnderDelayMS:  int(es.Timing.TailEnderDelay / time.Millisecond),
			CQPollIntervalMS:  int(es.Timing.CQPollInterval / time.Millisecond),
			CQSilenceWindowMS: int(es.Timing.CQSilenceWindow / time.Millisecond),
		},
		CTY:     CTYConfig{Enabled: false, File: "data/cty/cty.plist"},
		QSOLog:  QSOLogConfig{Enabled: true, Path: "data/qsolog/qsos.db"},
		Worked:  WorkedConfig{Enabled: true, Dir: "data/worked", CacheMB: 8},
		Export:  ExportConfig{Dir: "exports"},
		UI:      UIConfig{Mode: "tview", RefreshMS: 100, Color: true},
		Telnet:  TelnetConfig{Port: 7373, MaxConnections: 8, Transport: "native", EchoMode: "server"},
		Logging: LoggingConfig{Enabled: false, Dir: "data/logs", RetentionDays: 7},
	}
}

// ResolveDir picks the config directory: the environment override, then
// flagDir, then DefaultDir.
func ResolveDir(flagDir string) string {
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env
	}
	if strings.TrimSpace(flagDir) != "" {
		return flagDir
	}
	return DefaultDir
}

// Load reads every *.yaml file in dir, merges them in name order over the
// defaults and validates the result. Later files win on conflicting keys.
func Load(dir string) (*Config, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config: %s is not a directory", dir)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("config: list %s: %w", dir, err)
	}
	sort.Strings(files)

	merged := map[string]any{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", file, err)
		}
		mergeMaps(merged, doc)
	}

	cfg := Default()
	if len(merged) > 0 {
		raw, err := yaml.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("config: merge: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: decode: %w", err)
		}
	}
	cfg.LoadedFrom = dir
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing directory yields the defaults.
func LoadOrDefault(dir string) (*Config, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		log.Printf("Config: %s not found; using built-in defaults", dir)
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return Load(dir)
}

// mergeMaps copies src into dst, descending into nested mappings so that
// sibling keys from different files survive.
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		existing, ok := dst[k].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[k] = existing
		}
		mergeMaps(existing, sub)
	}
}

func (c *Config) normalize() {
	c.User.Callsign = strings.ToUpper(strings.TrimSpace(c.User.Callsign))
	c.User.Name = strings.ToUpper(strings.TrimSpace(c.User.Name))
	c.User.Section = strings.ToUpper(strings.TrimSpace(c.User.Section))
	c.Contest.ID = strings.ToLower(strings.TrimSpace(c.Contest.ID))
	c.UI.Mode = strings.ToLower(strings.TrimSpace(c.UI.Mode))
	c.Telnet.Transport = strings.ToLower(strings.TrimSpace(c.Telnet.Transport))
	c.Telnet.EchoMode = strings.ToLower(strings.TrimSpace(c.Telnet.EchoMode))
	if c.User.AGNMessage == "" {
		c.User.AGNMessage = "?"
	}
}

// Validate rejects settings the engine cannot run with. Every problem is
// reported; each wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if c.User.Callsign == "" {
		bad("user.callsign is required")
	}
	if c.User.WPM < engine.MinUserWPM || c.User.WPM > engine.MaxUserWPM {
		bad("user.wpm %d outside %d..%d", c.User.WPM, engine.MinUserWPM, engine.MaxUserWPM)
	}
	if !contest.Known(c.Contest.ID) {
		bad("contest.id %q is not one of %s", c.Contest.ID, strings.Join(contest.IDs(), ", "))
	}
	s := c.Simulation
	if s.MaxSimultaneous <= 0 {
		bad("simulation.max_simultaneous_stations must be positive")
	}
	if s.WPMMin <= 0 || s.WPMMin > s.WPMMax {
		bad("simulation.wpm_min %d / wpm_max %d", s.WPMMin, s.WPMMax)
	}
	if s.AmplitudeMin > s.AmplitudeMax {
		bad("simulation.amplitude_min > amplitude_max")
	}
	if s.FrequencySpreadHz < 0 {
		bad("simulation.frequency_spread_hz must not be negative")
	}
	probs := []struct {
		name string
		v    float64
	}{
		{"simulation.station_probability", s.StationProbability},
		{"simulation.agn_request_probability", s.AGNRequestProbability},
		{"simulation.same_country_probability", s.SameCountryProbability},
		{"call_correction.correction_probability", c.Correction.CorrectionProbability},
		{"call_correction.single_probability", c.Correction.SingleProbability},
	}
	for _, p := range probs {
		if p.v < 0 || p.v > 1 {
			bad("%s %.2f outside [0,1]", p.name, p.v)
		}
	}
	if c.Pileup.MinPatience <= 0 || c.Pileup.MinPatience > c.Pileup.MaxPatience {
		bad("pileup.min_patience %d / max_patience %d", c.Pileup.MinPatience, c.Pileup.MaxPatience)
	}
	if c.Pileup.RetryDelayMinMS < 0 || c.Pileup.RetryDelayMinMS > c.Pileup.RetryDelayMaxMS {
		bad("pileup.retry_delay_min_ms %d / retry_delay_max_ms %d", c.Pileup.RetryDelayMinMS, c.Pileup.RetryDelayMaxMS)
	}
	if c.Correction.MaxCorrectionAttempts < 0 {
		bad("call_correction.max_correction_attempts must not be negative")
	}
	t := c.Timing
	for _, ms := range []int{t.PostCQDelayMS, t.ResponseDelayMS, t.TailEnderDelayMS, t.CQPollIntervalMS, t.CQSilenceWindowMS} {
		if ms < 0 {
			bad("timing values must not be negative")
			break
		}
	}
	if t.CQPollIntervalMS == 0 {
		bad("timing.cq_poll_interval_ms must be positive")
	}
	switch c.UI.Mode {
	case "tview", "headless":
	default:
		bad("ui.mode %q (want tview or headless)", c.UI.Mode)
	}
	if c.Telnet.Enabled {
		if c.Telnet.Port < 0 || c.Telnet.Port > 65535 {
			bad("telnet.port %d outside 0..65535", c.Telnet.Port)
		}
		switch c.Telnet.Transport {
		case "", "native", "ziutek":
		default:
			bad("telnet.transport %q (want native or ziutek)", c.Telnet.Transport)
		}
		switch c.Telnet.EchoMode {
		case "", "server", "local", "off":
		default:
			bad("telnet.echo_mode %q (want server, local or off)", c.Telnet.EchoMode)
		}
	}
	if c.Logging.RetentionDays < 0 {
		bad("logging.retention_days must not be negative")
	}
	return errors.Join(errs...)
}

// EngineSettings converts to the controller's settings.
func (c *Config) EngineSettings() engine.Settings {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return engine.Settings{
		UserCallsign:          c.User.Callsign,
		UserWPM:               c.User.WPM,
		AGNMessage:            c.User.AGNMessage,
		MaxSimultaneous:       c.Simulation.MaxSimultaneous,
		AGNRequestProbability: c.Simulation.AGNRequestProbability,
		CorrectionProbability: c.Correction.CorrectionProbability,
		SingleProbability:     c.Correction.SingleProbability,
		MaxCorrectionAttempts: c.Correction.MaxCorrectionAttempts,
		Timing: engine.Timing{
			PostCQDelay:     ms(c.Timing.PostCQDelayMS),
			ResponseDelay:   ms(c.Timing.ResponseDelayMS),
			TailEnderDelay:  ms(c.Timing.TailEnderDelayMS),
			CQPollInterval:  ms(c.Timing.CQPollIntervalMS),
			CQSilenceWindow: ms(c.Timing.CQSilenceWindowMS),
		},
	}
}

// PileupSettings converts to the caller pool's settings.
func (c *Config) PileupSettings() pileup.Settings {
	s := c.Simulation
	return pileup.Settings{
		MaxSimultaneous:        s.MaxSimultaneous,
		StationProbability:     s.StationProbability,
		WPMMin:                 s.WPMMin,
		WPMMax:                 s.WPMMax,
		FrequencySpreadHz:      s.FrequencySpreadHz,
		AmplitudeMin:           s.AmplitudeMin,
		AmplitudeMax:           s.AmplitudeMax,
		MinPatience:            c.Pileup.MinPatience,
		MaxPatience:            c.Pileup.MaxPatience,
		RetryDelayMin:          time.Duration(c.Pileup.RetryDelayMinMS) * time.Millisecond,
		RetryDelayMax:          time.Duration(c.Pileup.RetryDelayMaxMS) * time.Millisecond,
		SameCountryFilter:      s.SameCountryFilter,
		SameCountryProbability: s.SameCountryProbability,
		UserCallsign:           c.User.Callsign,
	}
}

// ContestOptions builds the options for contest.New. zones may be nil.
func (c *Config) ContestOptions(rng contest.Rand, zones contest.ZoneLookup) contest.Options {
	return contest.Options{
		CQMessage:    c.Contest.CQMessage,
		CallsignFile: c.Contest.CallsignFile,
		Settings:     c.Contest.Settings,
		User: contest.UserInfo{
			Callsign: c.User.Callsign,
			Name:     c.User.Name,
			Zone:     c.User.Zone,
			Section:  c.User.Section,
		},
		Rand:  rng,
		Zones: zones,
	}
}

// Print displays the configuration
func (c *Config) Print() {
	source := c.LoadedFrom
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Printf("Config: %s\n", source)
	fmt.Printf("Operator: %s (%s) at %d WPM\n", c.User.Callsign, c.User.Name, c.User.WPM)
	fmt.Printf("Contest: %s (cq=%q)\n", c.Contest.ID, c.Contest.CQMessage)
	fmt.Printf("Pileup: up to %d stations, p=%.2f, %d-%d WPM\n",
		c.Simulation.MaxSimultaneous, c.Simulation.StationProbability, c.Simulation.WPMMin, c.Simulation.WPMMax)
	if c.CTY.Enabled {
		fmt.Printf("CTY: %s\n", c.CTY.File)
	}
	if c.QSOLog.Enabled {
		fmt.Printf("QSO log: %s\n", c.QSOLog.Path)
	}
	if c.Worked.Enabled {
		fmt.Printf("Worked store: %s\n", c.Worked.Dir)
	}
	if c.Telnet.Enabled {
		fmt.Printf("Telnet: port %d (%s transport)\n", c.Telnet.Port, c.Telnet.Transport)
	}
}
