package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config структура конфигурации.
type Config struct {
	Logger  LogConf     `toml:"logger"`  // Logger - конфигурация регистратора.
	Node    NodeConf    `toml:"node"`    // Node - конфигурация узла Art-Net.
	MQTT    MQTTConf    `toml:"mqtt"`    // MQTT - конфигурация MQTT клиента.
	Metrics MetricsConf `toml:"metrics"` // Metrics - конфигурация prometheus.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level string `toml:"log-level"` // Level - уровень логирования.
}

// NodeConf структура конфигурации узла.
type NodeConf struct {
	Subnet          int      `toml:"subnet"`            // Subnet - 0..15.
	Net             int      `toml:"net"`               // Net - 0..127.
	Hibernate       bool     `toml:"hibernate"`         // Hibernate - старт в режиме ожидания.
	Unicast         bool     `toml:"unicast"`           // Unicast - отправка известным узлам, иначе broadcast.
	IgnoreLocalData bool     `toml:"ignore-local-data"` // IgnoreLocalData - игнорировать собственные ArtDMX.
	Channels        int      `toml:"channels"`          // Channels - кратно 512.
	Port            int      `toml:"port"`              // Port - UDP порт.
	Broadcast       string   `toml:"broadcast"`         // Broadcast - адрес широковещания, по умолчанию вычисляется.
	AddressRange    string   `toml:"address-range"`     // AddressRange - CIDR для выбора интерфейса.
	FallbackIP      string   `toml:"fallback-ip"`       // FallbackIP - адрес, если проверка IP не удалась.
	RetryInterval   Duration `toml:"retry-interval"`    // RetryInterval - пауза между попытками открыть сокет.
	ProbeTimeout    Duration `toml:"probe-timeout"`     // ProbeTimeout - ожидание собственного ip_check.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	Enabled      bool     `toml:"enabled"`       // Enabled - включить мост MQTT.
	ClientID     string   `toml:"clientID"`      // ClientID - имя клиента.
	Host         string   `toml:"server"`        // Host - адрес MQTT сервера.
	Port         string   `toml:"port"`          // Port - порт MQTT сервера.
	User         string   `toml:"user"`          // User - логин для подключения к MQTT серверу.
	Password     string   `toml:"password"`      // Password - пароль для подключения к MQTT серверу.
	Qos          byte     `toml:"qos"`           // Qos - качество обслуживания.
	TopicPrefix  string   `toml:"topic-prefix"`  // TopicPrefix - префикс топиков.
	PollInterval Duration `toml:"poll-interval"` // PollInterval - период опроса universe.
}

// MetricsConf структура конфигурации.
type MetricsConf struct {
	Listen string `toml:"listen"` // Listen - адрес HTTP для /metrics, пусто - выключено.
}

// Duration is a time.Duration read from a TOML string such as "1s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info"},
		Node: NodeConf{
			Unicast:         true,
			IgnoreLocalData: true,
			Channels:        512,
			Port:            6454,
			RetryInterval:   Duration{time.Second},
			ProbeTimeout:    Duration{2 * time.Second},
		},
		MQTT: MQTTConf{
			ClientID:     "artnetnode",
			Host:         "localhost",
			Port:         "1883",
			TopicPrefix:  "artnet",
			PollInterval: Duration{40 * time.Millisecond},
		},
	}
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}
