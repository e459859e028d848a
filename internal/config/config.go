package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "territory.cfg.json"

// WorldConfig holds world seed and generator settings
type WorldConfig struct {
	SeedPath          string  `json:"seedPath" mapstructure:"seedPath"`
	ZoneRadiusKm      float64 `json:"zoneRadiusKm" mapstructure:"zoneRadiusKm"`
	MinPointsPerZone  int     `json:"minPointsPerZone" mapstructure:"minPointsPerZone"`
	RouteMaxJumpKm    float64 `json:"routeMaxJumpKm" mapstructure:"routeMaxJumpKm"`
	MinPointsPerRoute int     `json:"minPointsPerRoute" mapstructure:"minPointsPerRoute"`
}

// PerkConfig holds perk catalog and expiry sweep settings
type PerkConfig struct {
	CatalogPath     string        `json:"catalogPath" mapstructure:"catalogPath"`
	SweepInterval   time.Duration `json:"sweepInterval" mapstructure:"sweepInterval"`
	ActivationRate  float64       `json:"activationRate" mapstructure:"activationRate"` // per team per second, 0 = unlimited
	ActivationBurst int           `json:"activationBurst" mapstructure:"activationBurst"`
}

// MemoryConfig holds in-memory storage backend settings
type MemoryConfig struct {
	SnapshotDir    string `json:"snapshotDir" mapstructure:"snapshotDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds in-memory SQLite backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds postgres connection settings
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// InfluxConfig holds InfluxDB event sink settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
	// FlushInterval is how often queued events are written out.
	FlushInterval time.Duration
	// QueueLimit caps pending events; the oldest are dropped beyond it.
	QueueLimit int
}

// MonitorConfig holds status report settings. An empty StatusFile disables it.
type MonitorConfig struct {
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("world.seedPath", "./world.yaml")
	viper.SetDefault("world.zoneRadiusKm", 1.0)
	viper.SetDefault("world.minPointsPerZone", 3)
	viper.SetDefault("world.routeMaxJumpKm", 2.0)
	viper.SetDefault("world.minPointsPerRoute", 3)

	viper.SetDefault("perks.catalogPath", "")
	viper.SetDefault("perks.sweepInterval", "1m")
	viper.SetDefault("perks.activationRate", 2.0)
	viper.SetDefault("perks.activationBurst", 5)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.snapshotDir", "./snapshots")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "territory")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "territory")
	viper.SetDefault("influx.bucket", "territory_events")
	viper.SetDefault("influx.flushInterval", "10s")
	viper.SetDefault("influx.queueLimit", 10000)

	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.interval", "5s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "territory-engine")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetWorldConfig returns the world seed and generator settings.
func GetWorldConfig() WorldConfig {
	return WorldConfig{
		SeedPath:          viper.GetString("world.seedPath"),
		ZoneRadiusKm:      viper.GetFloat64("world.zoneRadiusKm"),
		MinPointsPerZone:  viper.GetInt("world.minPointsPerZone"),
		RouteMaxJumpKm:    viper.GetFloat64("world.routeMaxJumpKm"),
		MinPointsPerRoute: viper.GetInt("world.minPointsPerRoute"),
	}
}

// GetPerkConfig returns the perk catalog settings.
func GetPerkConfig() PerkConfig {
	return PerkConfig{
		CatalogPath:     viper.GetString("perks.catalogPath"),
		SweepInterval:   viper.GetDuration("perks.sweepInterval"),
		ActivationRate:  viper.GetFloat64("perks.activationRate"),
		ActivationBurst: viper.GetInt("perks.activationBurst"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			SnapshotDir:    viper.GetString("storage.memory.snapshotDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

// GetDBConfig returns the postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),

		FlushInterval: viper.GetDuration("influx.flushInterval"),
		QueueLimit:    viper.GetInt("influx.queueLimit"),
	}
}

// GetMonitorConfig returns the status report settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		StatusFile: viper.GetString("monitor.statusFile"),
		Interval:   viper.GetDuration("monitor.interval"),
	}
}

// GetGraylogConfig returns the GELF log shipping settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
