package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/lifemesh/internal/schema"
)

// EnvServerToken is the environment variable supplying the default server token.
const EnvServerToken = "LIFE_SERVER_TOKEN"

// Project configuration defaults.
const (
	DefaultPort      = 3003
	DefaultHost      = "localhost"
	DefaultRateLimit = 20
	DefaultRedisAddr = "localhost:6379"
)

// ServerConfig is the typed view of a prepared project configuration.
type ServerConfig struct {
	Server struct {
		Port      int     `yaml:"port"`
		Host      string  `yaml:"host"`
		Token     string  `yaml:"token"`
		RateLimit float64 `yaml:"rateLimit"`
	} `yaml:"server"`
	Agents  map[string]any `yaml:"agents"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Session struct {
		Backend   string `yaml:"backend"`
		RedisAddr string `yaml:"redisAddr"`
	} `yaml:"session"`
	Bridge struct {
		Command []string `yaml:"command"`
	} `yaml:"bridge"`
}

// Addr returns host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func serverSection() map[string]*schema.Schema {
	return map[string]*schema.Schema{
		"port": schema.Integer().WithRange(1, 65535).WithDefault(DefaultPort),
		"host": schema.String().WithDefault(DefaultHost),
	}
}

// ServerSchema is the full schema of the project configuration.
func ServerSchema() *schema.Schema {
	server := serverSection()
	server["token"] = schema.String().WithDefaultFunc(func() any {
		if v := os.Getenv(EnvServerToken); v != "" {
			return v
		}
		return nil
	})
	server["rateLimit"] = schema.Number().WithRange(0, 10000).WithDefault(DefaultRateLimit)

	return schema.Object(map[string]*schema.Schema{
		"server": schema.Object(server),
		"agents": schema.Object(nil).AllowUnknown(),
		"logging": schema.Object(map[string]*schema.Schema{
			"level":  schema.String().WithEnum("debug", "info", "warn", "error").WithDefault("info"),
			"format": schema.String().WithEnum("json", "text").WithDefault("json"),
		}),
		"session": schema.Object(map[string]*schema.Schema{
			"backend":   schema.String().WithEnum("memory", "redis").WithDefault("memory"),
			"redisAddr": schema.String().WithDefault(DefaultRedisAddr),
		}),
		"bridge": schema.Object(map[string]*schema.Schema{
			"command": schema.Array(schema.String()),
		}),
	})
}

// ClientSchema exposes only the server address.
func ClientSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"server": schema.Object(serverSection()),
	})
}

// PrepareProject runs the pipeline with the project schemas.
func PrepareProject(local, global map[string]any) (*Prepared, error) {
	return Prepare(local, global, ServerSchema(), ClientSchema())
}

// Decode converts a prepared configuration map into a typed value using its
// yaml tags.
func Decode(m map[string]any, out any) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	return nil
}

// DecodeServer is Decode into a ServerConfig.
func DecodeServer(p *Prepared) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := Decode(p.Server, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
