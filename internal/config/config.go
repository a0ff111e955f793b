// Package config loads scenesync settings from a YAML or JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/scenesync/pkg/txn"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Storage backends accepted by Server.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Client transports accepted by Client.Transport.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "ws"
)

// Config is the full set of settings shared by the CLI commands.
type Config struct {
	LogLevel  string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`

	Server Server `mapstructure:"server"`
	Client Client `mapstructure:"client"`
}

// Server configures the authority.
type Server struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Backend      string        `mapstructure:"backend" validate:"oneof=memory file redis badger"`
	DataDir      string        `mapstructure:"data_dir"`
	Seed         string        `mapstructure:"seed"`
	LockTTL      time.Duration `mapstructure:"lock_ttl" validate:"gte=0"`
	ReplayWindow int           `mapstructure:"replay_window" validate:"gte=0"`
	Metrics      bool          `mapstructure:"metrics"`
	Redis        Redis         `mapstructure:"redis"`
	Badger       Badger        `mapstructure:"badger"`
	Encryption   Encryption    `mapstructure:"encryption"`
	// AuthSecret, when set, requires HS256 bearer tokens signed with it.
	AuthSecret string `mapstructure:"auth_secret" validate:"omitempty,min=16"`
}

// Redis configures the redis backend.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
	// Lock coordinates authority replicas through a redis lock.
	Lock bool `mapstructure:"lock"`
}

// Badger configures the embedded badger backend.
type Badger struct {
	Path       string        `mapstructure:"path"`
	SyncWrites bool          `mapstructure:"sync_writes"`
	TTL        time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// Encryption seals stored snapshots when Key is set.
// Keys are base64-encoded 32-byte AES keys.
type Encryption struct {
	Key          string   `mapstructure:"key" validate:"omitempty,base64"`
	FallbackKeys []string `mapstructure:"fallback_keys" validate:"dive,base64"`
}

// Client configures the document manager used by apply.
type Client struct {
	Authority   string        `mapstructure:"authority" validate:"required,url"`
	Transport   string        `mapstructure:"transport" validate:"oneof=http ws"`
	IDs         string        `mapstructure:"ids" validate:"oneof=ulid uuid"`
	Capacity    int           `mapstructure:"capacity" validate:"gte=0"`
	Eviction    string        `mapstructure:"eviction" validate:"omitempty,oneof=abandon rollback"`
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"gte=0"`
	Token       string        `mapstructure:"token"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Server: Server{
			Addr:         ":8080",
			Backend:      BackendMemory,
			DataDir:      filepath.Join(".scenesync", "documents"),
			LockTTL:      10 * time.Second,
			ReplayWindow: 256,
			Metrics:      true,
			Redis: Redis{
				Addr:   "localhost:6379",
				Prefix: "scenesync:",
			},
			Badger: Badger{
				Path:       filepath.Join(".scenesync", "badger"),
				SyncWrites: true,
			},
		},
		Client: Client{
			Authority:   "http://localhost:8080",
			Transport:   TransportHTTP,
			IDs:         "ulid",
			Capacity:    txn.DefaultCapacity,
			Eviction:    "abandon",
			SendTimeout: 30 * time.Second,
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults. Durations accept Go syntax ("500ms", "10s"), and scalars are
// weakly typed so "8080"-style strings decode into numbers.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := Decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", filepath.Base(path), err)
	}
	return cfg, cfg.Validate()
}

// Decode applies raw settings onto cfg. Unknown keys are rejected.
func Decode(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

var validate = validator.New()

// Validate checks enumerated and bounded settings.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid %s: %q fails %q", verrs[0].Namespace(), fmt.Sprint(verrs[0].Value()), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// EvictionPolicy maps the eviction setting onto the store policy.
func (c Client) EvictionPolicy() (txn.EvictionPolicy, error) {
	switch c.Eviction {
	case "", "abandon":
		return txn.EvictAbandon, nil
	case "rollback":
		return txn.EvictRollback, nil
	}
	return 0, fmt.Errorf("unknown eviction policy %q (want abandon or rollback)", c.Eviction)
}
