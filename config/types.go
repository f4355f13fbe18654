package config

import "time"

type AppConfig struct {
	DBDriver   string          `yaml:"db_driver" env:"COLDWATCH_DB_DRIVER" env-default:"sqlite"`
	DBURL      string          `yaml:"db_url" env:"COLDWATCH_DB_URL"`
	DBPath     string          `yaml:"db_path" env:"COLDWATCH_DB_PATH" env-default:"data/coldwatch.db"`
	ListenAddr string          `yaml:"listen_addr" env:"COLDWATCH_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	SessionTTL time.Duration   `yaml:"session_ttl" env:"COLDWATCH_SESSION_TTL" env-default:"3h"`
	CSRFKey    string          `yaml:"csrf_key" env:"COLDWATCH_CSRF_KEY"`
	Pepper     string          `yaml:"pepper" env:"COLDWATCH_PEPPER"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Alerting   AlertingConfig  `yaml:"alerting"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	Retention  RetentionConfig `yaml:"retention"`
	Bootstrap  BootstrapConfig `yaml:"bootstrap"`
}

type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username" env:"COLDWATCH_ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string `yaml:"admin_password" env:"COLDWATCH_ADMIN_PASSWORD" env-default:"admin"`
}

type ThresholdConfig struct {
	DefaultMin float64 `yaml:"default_min" env:"COLDWATCH_THRESHOLD_MIN" env-default:"2.0"`
	DefaultMax float64 `yaml:"default_max" env:"COLDWATCH_THRESHOLD_MAX" env-default:"8.0"`
}

type AlertingConfig struct {
	Enabled        bool   `yaml:"enabled" env:"COLDWATCH_ALERTING_ENABLED" env-default:"true"`
	TelegramToken  string `yaml:"telegram_token" env:"COLDWATCH_TELEGRAM_TOKEN"`
	TelegramChatID string `yaml:"telegram_chat_id" env:"COLDWATCH_TELEGRAM_CHAT_ID"`
	CounterMax     int    `yaml:"counter_max" env:"COLDWATCH_ALERTING_COUNTER_MAX" env-default:"9"`
	TickSpacingSec int    `yaml:"tick_spacing_sec" env:"COLDWATCH_ALERTING_TICK_SPACING_SEC" env-default:"10"`
}

func (c AlertingConfig) TickSpacing() time.Duration {
	if c.TickSpacingSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TickSpacingSec) * time.Second
}

type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled" env:"COLDWATCH_MQTT_ENABLED" env-default:"false"`
	BrokerURL string `yaml:"broker_url" env:"COLDWATCH_MQTT_BROKER_URL" env-default:"tcp://localhost:1883"`
	Topic     string `yaml:"topic" env:"COLDWATCH_MQTT_TOPIC" env-default:"coldwatch/readings"`
	ClientID  string `yaml:"client_id" env:"COLDWATCH_MQTT_CLIENT_ID" env-default:"coldwatch-server"`
	Username  string `yaml:"username" env:"COLDWATCH_MQTT_USERNAME"`
	Password  string `yaml:"password" env:"COLDWATCH_MQTT_PASSWORD"`
}

type RetentionConfig struct {
	Enabled      bool   `yaml:"enabled" env:"COLDWATCH_RETENTION_ENABLED" env-default:"true"`
	CronSpec     string `yaml:"cron_spec" env:"COLDWATCH_RETENTION_CRON" env-default:"0 3 * * *"`
	ReadingsDays int    `yaml:"readings_days" env:"COLDWATCH_RETENTION_READINGS_DAYS" env-default:"365"`
	ArchiveDays  int    `yaml:"archive_days" env:"COLDWATCH_RETENTION_ARCHIVE_DAYS" env-default:"730"`
}

const maxUserSessionTTL = 3 * time.Hour

func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	ttl := maxUserSessionTTL
	if c != nil && c.SessionTTL > 0 {
		ttl = c.SessionTTL
	}
	if ttl > maxUserSessionTTL {
		ttl = maxUserSessionTTL
	}
	return ttl
}
