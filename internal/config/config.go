package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/journal"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"codeberg.org/mutker/hostwatch/internal/sensors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "HOSTWATCH"
	EnvConfigPath     = "HOSTWATCH_CONFIG"
	DefaultConfigPath = "/etc/hostwatch.toml"

	DefaultTemperature   = 85.0
	DefaultCPU           = 80
	DefaultPowerIncrease = 30.0
	DefaultIntervalMS    = 30000
	DefaultReadTimeoutMS = 5000
	DefaultStateFile     = "/var/lib/hostwatch/state.json"
	DefaultCommandPrefix = "!"
	DefaultPowerSource   = sensors.PowerAuto
	DefaultThermalZone   = "/sys/class/thermal/thermal_zone0/temp"
	DefaultRAPLPath      = "/sys/class/powercap/intel-rapl/intel-rapl:0/energy_uj"
	DefaultJournalDB     = journal.DefaultDBPath
	DefaultLogLevel      = string(LogLevelInfo)
)

type Config struct {
	Temperature   float64 `mapstructure:"temperature"`
	CPU           int     `mapstructure:"cpu"`
	PowerIncrease float64 `mapstructure:"power_increase"`
	IntervalMS    int     `mapstructure:"interval_ms"`
	ReadTimeoutMS int     `mapstructure:"read_timeout_ms"`
	StateFile     string  `mapstructure:"state_file"`
	Recipient     string  `mapstructure:"recipient"`
	Token         string  `mapstructure:"token"`
	CommandPrefix string  `mapstructure:"command_prefix"`
	HostLabel     string  `mapstructure:"host_label"`
	PowerSource   string  `mapstructure:"power_source"`
	ThermalZone   string  `mapstructure:"thermal_zone"`
	RAPLPath      string  `mapstructure:"rapl_path"`
	Journal       bool    `mapstructure:"journal"`
	JournalDB     string  `mapstructure:"journal_db"`
	LogLevel      string  `mapstructure:"log_level"`
	DryRun        bool    `mapstructure:"dry_run"`

	// ConfigFile is the file actually read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

func DefaultConfig() Config {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	jc := journal.DefaultConfig()

	return Config{
		Temperature:   DefaultTemperature,
		CPU:           DefaultCPU,
		PowerIncrease: DefaultPowerIncrease,
		IntervalMS:    DefaultIntervalMS,
		ReadTimeoutMS: DefaultReadTimeoutMS,
		StateFile:     DefaultStateFile,
		CommandPrefix: DefaultCommandPrefix,
		HostLabel:     host,
		PowerSource:   DefaultPowerSource,
		ThermalZone:   DefaultThermalZone,
		RAPLPath:      DefaultRAPLPath,
		Journal:       jc.Enabled,
		JournalDB:     jc.DBPath,
		LogLevel:      DefaultLogLevel,
	}
}

// Load reads the config file, HOSTWATCH_* environment variables and the
// given command-line arguments, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()
	defaults := DefaultConfig()

	v := viper.New()
	setDefaults(v, defaults)

	fs := newFlagSet(defaults)
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	if bindErr != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, bindErr)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configPath, _ := fs.GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = os.Getenv(EnvConfigPath)
		explicit = configPath != ""
	}
	if !explicit {
		configPath = DefaultConfigPath
	}

	readPath, err := readConfigFile(v, configPath, explicit)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.WithData(errors.ErrInvalidConfig, struct {
			Error string
		}{
			Error: err.Error(),
		})
	}
	cfg.ConfigFile = readPath
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault(KeyTemperature, d.Temperature)
	v.SetDefault(KeyCPU, d.CPU)
	v.SetDefault(KeyPowerIncrease, d.PowerIncrease)
	v.SetDefault(KeyIntervalMS, d.IntervalMS)
	v.SetDefault(KeyReadTimeoutMS, d.ReadTimeoutMS)
	v.SetDefault(KeyStateFile, d.StateFile)
	v.SetDefault(KeyRecipient, d.Recipient)
	v.SetDefault(KeyToken, d.Token)
	v.SetDefault(KeyCommandPrefix, d.CommandPrefix)
	v.SetDefault(KeyHostLabel, d.HostLabel)
	v.SetDefault(KeyPowerSource, d.PowerSource)
	v.SetDefault(KeyThermalZone, d.ThermalZone)
	v.SetDefault(KeyRAPLPath, d.RAPLPath)
	v.SetDefault(KeyJournal, d.Journal)
	v.SetDefault(KeyJournalDB, d.JournalDB)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyDryRun, d.DryRun)
}

func newFlagSet(d Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("hostwatch", pflag.ContinueOnError)

	fs.String("config", "", "Path to config file (default "+DefaultConfigPath+")")
	fs.Float64("temperature", d.Temperature, "Temperature alert threshold in °C")
	fs.Int("cpu", d.CPU, "CPU usage alert threshold in percent")
	fs.Float64("power-increase", d.PowerIncrease, "Power alert threshold in percent over baseline")
	fs.Int("interval-ms", d.IntervalMS, "Sampling interval in milliseconds")
	fs.Int("read-timeout-ms", d.ReadTimeoutMS, "Bound on a single metric read in milliseconds")
	fs.String("state-file", d.StateFile, "Path of the persisted monitor state")
	fs.String("recipient", d.Recipient, "User ID allowed to receive alerts and query status")
	fs.String("token", d.Token, "Bot token")
	fs.String("command-prefix", d.CommandPrefix, "Prefix of the status command")
	fs.String("host-label", d.HostLabel, "Host name shown in alerts")
	fs.String("power-source", d.PowerSource, "Power source: auto, rapl, nvml, estimate or none")
	fs.String("thermal-zone", d.ThermalZone, "Thermal zone file")
	fs.String("rapl-path", d.RAPLPath, "RAPL energy counter file")
	fs.Bool("journal", d.Journal, "Record transitions in the SQLite journal")
	fs.String("journal-db", d.JournalDB, "Journal database path")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warning or error")
	fs.Bool("dry-run", d.DryRun, "Log notifications instead of sending them")

	return fs
}

// readConfigFile reads path into v. A missing default file is not an error.
func readConfigFile(v *viper.Viper, path string, explicit bool) (string, error) {
	errFactory := errors.New()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", errFactory.WithData(errors.ErrReadConfig, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return "", errFactory.WithData(errors.ErrReadConfig, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	return path, nil
}

// Validate checks everything except the transport credentials.
func (c *Config) Validate() error {
	errFactory := errors.New()

	invalid := func(code errors.ErrorCode, field string, value interface{}) error {
		return errFactory.WithData(code, struct {
			Field string
			Value interface{}
		}{
			Field: field,
			Value: value,
		})
	}

	switch {
	case c.IntervalMS <= 0:
		return invalid(errors.ErrInvalidInterval, KeyIntervalMS, c.IntervalMS)
	case c.ReadTimeoutMS <= 0:
		return invalid(errors.ErrInvalidInterval, KeyReadTimeoutMS, c.ReadTimeoutMS)
	case c.Temperature <= 0:
		return invalid(errors.ErrInvalidThreshold, KeyTemperature, c.Temperature)
	case c.CPU <= 0 || c.CPU > 100:
		return invalid(errors.ErrInvalidThreshold, KeyCPU, c.CPU)
	case c.PowerIncrease <= 0:
		return invalid(errors.ErrInvalidThreshold, KeyPowerIncrease, c.PowerIncrease)
	case !LogLevel(c.LogLevel).IsValid():
		return invalid(errors.ErrInvalidLogLevel, KeyLogLevel, c.LogLevel)
	case !sensors.ValidPowerSource(c.PowerSource):
		return invalid(errors.ErrInvalidConfig, KeyPowerSource, c.PowerSource)
	case c.StateFile == "":
		return invalid(errors.ErrInvalidConfig, KeyStateFile, c.StateFile)
	case c.Journal && c.JournalDB == "":
		return invalid(errors.ErrInvalidConfig, KeyJournalDB, c.JournalDB)
	}

	return nil
}

// ValidateTransport checks the credentials needed to reach the recipient.
func (c *Config) ValidateTransport() error {
	errFactory := errors.New()

	for _, field := range []struct {
		key   string
		value string
	}{
		{KeyToken, c.Token},
		{KeyRecipient, c.Recipient},
	} {
		if strings.TrimSpace(field.value) == "" {
			return errFactory.WithData(errors.ErrMissingConfig, struct {
				Field string
			}{
				Field: field.key,
			})
		}
	}

	return nil
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

func (c *Config) Thresholds() monitor.Thresholds {
	return monitor.Thresholds{
		TemperatureC:         c.Temperature,
		CPUPercent:           c.CPU,
		PowerIncreasePercent: c.PowerIncrease,
	}
}

func (c *Config) SensorOptions() sensors.Options {
	return sensors.Options{
		ThermalZone: c.ThermalZone,
		RAPLPath:    c.RAPLPath,
		PowerSource: c.PowerSource,
	}
}

func (c *Config) JournalConfig() journal.Config {
	return journal.Config{
		Enabled: c.Journal,
		DBPath:  c.JournalDB,
	}
}
