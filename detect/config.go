package detect

import (
	"os"
	"strconv"
)

// Config is the runtime tuning for complexity detection.
type Config struct {
	Policy             LLMPolicy
	EmbeddingDimension int
	AgentName          string
}

// ConfigFromEnv loads detection config from environment with safe defaults.
// Unrecognized or malformed values fall back to the default silently.
func ConfigFromEnv() Config {
	cfg := Config{
		Policy:             LLMPolicyConflict,
		EmbeddingDimension: 256,
		AgentName:          "complexity-detector",
	}

	switch LLMPolicy(os.Getenv("COGITO_LLM_POLICY")) {
	case LLMPolicyAlways:
		cfg.Policy = LLMPolicyAlways
	case LLMPolicyAmbiguous:
		cfg.Policy = LLMPolicyAmbiguous
	case LLMPolicyConflict:
		cfg.Policy = LLMPolicyConflict
	}

	if v := os.Getenv("COGITO_EMBEDDING_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EmbeddingDimension = n
		}
	}
	if v := os.Getenv("COGITO_DETECTOR_AGENT"); v != "" {
		cfg.AgentName = v
	}

	return cfg
}

// Options converts the config into orchestrator options.
func (c Config) Options() []OrchestratorOption {
	return []OrchestratorOption{
		WithLLMPolicy(c.Policy),
		WithAgentName(c.AgentName),
	}
}
