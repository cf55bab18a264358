package config

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Xerpa/gorpo/agent"
	"github.com/Xerpa/gorpo/logger"
	"github.com/Xerpa/gorpo/transport"
)

// Config is the announcer application configuration.
type Config struct {
	// Endpoint is the agent base URL.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// Token is the optional ACL token sent with every agent request.
	Token string `yaml:"token" mapstructure:"token"`

	// Transport holds HTTP timeouts.
	Transport transport.Config `yaml:"transport" mapstructure:"transport"`

	// UniqueID appends a random suffix to each configured service ID, so
	// several instances of the same binary can announce side by side.
	UniqueID bool `yaml:"unique_id" mapstructure:"unique_id"`

	// Services are announced at startup. May be empty.
	Services []ServiceConfig `yaml:"services" mapstructure:"services"`

	// Log configures logging.
	Log logger.Config `yaml:"log" mapstructure:"log"`
}

// ServiceConfig describes one service to announce.
type ServiceConfig struct {
	ID      string       `yaml:"id" mapstructure:"id"`
	Name    string       `yaml:"name" mapstructure:"name"`
	Address string       `yaml:"address" mapstructure:"address"`
	Port    int          `yaml:"port" mapstructure:"port"`
	Tags    []string     `yaml:"tags" mapstructure:"tags"`
	Check   *CheckConfig `yaml:"check" mapstructure:"check"`
}

// CheckConfig describes the service's TTL check.
type CheckConfig struct {
	TTL                            string `yaml:"ttl" mapstructure:"ttl"`
	DeregisterCriticalServiceAfter string `yaml:"deregister_critical_service_after" mapstructure:"deregister_critical_service_after"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = agent.DefaultEndpoint
	}
	c.Transport.ApplyDefaults()
	c.Log.ApplyDefaults()
}

// Validate checks that required fields are present and consistent.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	for i, svc := range c.Services {
		if svc.ID == "" && svc.Name == "" {
			return fmt.Errorf("services[%d]: one of id/name is required", i)
		}
		if svc.Port < 0 || svc.Port > 65535 {
			return fmt.Errorf("services[%d]: port %d out of range", i, svc.Port)
		}
	}
	return c.Log.Validate()
}

// Service converts the entry to a domain Service. With unique set, the ID
// gets a random suffix.
func (s ServiceConfig) Service(unique bool) agent.Service {
	svc := agent.Service{
		ID:      s.ID,
		Name:    s.Name,
		Address: s.Address,
		Port:    s.Port,
		Tags:    s.Tags,
	}
	if unique && svc.ID != "" {
		svc.ID = svc.ID + "-" + uuid.NewString()
	}
	if s.Check != nil {
		chk := &agent.Check{
			TTL:                            s.Check.TTL,
			DeregisterCriticalServiceAfter: s.Check.DeregisterCriticalServiceAfter,
		}
		chk.ApplyDefaults()
		svc.Check = chk
	}
	return svc
}
