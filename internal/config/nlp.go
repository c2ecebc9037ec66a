package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/scrivenerhq/scrivener/internal/nlp"
)

const (
	EnvNLPEnabled             = "SCRIVENER_NLP_ENABLED"
	EnvNLPTimeout             = "SCRIVENER_NLP_TIMEOUT"
	EnvNLPConfidenceThreshold = "SCRIVENER_NLP_CONFIDENCE_THRESHOLD"

	EnvAgentProviderName = "SCRIVENER_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "SCRIVENER_AGENT_BASE_URL"
	EnvAgentToken        = "SCRIVENER_AGENT_TOKEN"
	EnvAgentDeployment   = "SCRIVENER_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "SCRIVENER_AGENT_API_VERSION"
	EnvAgentAuthType     = "SCRIVENER_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "SCRIVENER_AGENT_MODEL_NAME"
)

// NLPConfig holds entity recognition settings and the agent configuration
// used to reach the classification model. When Enabled is false the agent
// config is not validated, so the service runs cleanly without a model.
type NLPConfig struct {
	Enabled             bool                 `toml:"enabled"`
	Timeout             string               `toml:"timeout"`
	ConfidenceThreshold float64              `toml:"confidence_threshold"`
	Agent               gaconfig.AgentConfig `toml:"agent"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *NLPConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Options converts the config into recognizer runtime options.
func (c *NLPConfig) Options() nlp.Options {
	return nlp.Options{
		Enabled:             c.Enabled,
		Timeout:             c.TimeoutDuration(),
		ConfidenceThreshold: c.ConfidenceThreshold,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *NLPConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	if c.Enabled {
		if err := finalizeAgent(&c.Agent); err != nil {
			return fmt.Errorf("agent: %w", err)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *NLPConfig) Merge(overlay *NLPConfig) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.ConfidenceThreshold != 0 {
		c.ConfidenceThreshold = overlay.ConfidenceThreshold
	}
	c.Agent.Merge(&overlay.Agent)
}

func (c *NLPConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.5
	}
}

func (c *NLPConfig) loadEnv() {
	if v := os.Getenv(EnvNLPEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Enabled = enabled
		}
	}
	if v := os.Getenv(EnvNLPTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvNLPConfidenceThreshold); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceThreshold = threshold
		}
	}
}

func (c *NLPConfig) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("invalid confidence_threshold: %f", c.ConfidenceThreshold)
	}
	return nil
}

// finalizeAgent applies the three-phase finalize pattern to a go-agents
// AgentConfig: defaults from go-agents DefaultAgentConfig, environment
// variable overrides, and validation.
func finalizeAgent(c *gaconfig.AgentConfig) error {
	loadAgentDefaults(c)
	loadAgentEnv(c)
	return validateAgent(c)
}

func loadAgentDefaults(c *gaconfig.AgentConfig) {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults
}

func loadAgentEnv(c *gaconfig.AgentConfig) {
	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}
	if v := os.Getenv(EnvAgentProviderName); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvAgentBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvAgentModelName); v != "" {
		c.Model.Name = v
	}

	setOption := func(envVar, key string) {
		if v := os.Getenv(envVar); v != "" {
			c.Provider.Options[key] = v
		}
	}

	setOption(EnvAgentToken, "token")
	setOption(EnvAgentDeployment, "deployment")
	setOption(EnvAgentAPIVersion, "api_version")
	setOption(EnvAgentAuthType, "auth_type")
}

func validateAgent(c *gaconfig.AgentConfig) error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.Provider == nil {
		return fmt.Errorf("provider required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name required")
	}
	if c.Model == nil {
		return fmt.Errorf("model required")
	}
	return nil
}
