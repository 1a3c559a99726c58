package config

import "fmt"

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.MaxOutputTokens == nil {
		tokens := c.AI.MaxOutputTokens
		opCfg.MaxOutputTokens = &tokens
	}
	if opCfg.UseSystemPrompts == nil {
		useSystem := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &useSystem
	}
}

// GetSimulateConfig returns the AI configuration for interview simulation with fallback to global config
func (c *Config) GetSimulateConfig() OperationAIConfig {
	config := c.AI.Simulate
	c.applyOperationDefaults(&config)
	return config
}

// GetAnalyzeConfig returns the AI configuration for Gioia analysis with fallback to global config
func (c *Config) GetAnalyzeConfig() OperationAIConfig {
	config := c.AI.Analyze
	c.applyOperationDefaults(&config)
	return config
}

// GetExtractConfig returns the AI configuration for persona and question extraction
func (c *Config) GetExtractConfig() OperationAIConfig {
	config := c.AI.Extract
	c.applyOperationDefaults(&config)
	return config
}

// GetCompareConfig returns the AI configuration for comparison narratives
func (c *Config) GetCompareConfig() OperationAIConfig {
	config := c.AI.Compare
	c.applyOperationDefaults(&config)
	return config
}

// GetOperationConfig returns the resolved configuration for a named operation.
func (c *Config) GetOperationConfig(operation string) (OperationAIConfig, error) {
	switch operation {
	case OpSimulate:
		return c.GetSimulateConfig(), nil
	case OpAnalyze:
		return c.GetAnalyzeConfig(), nil
	case OpExtract:
		return c.GetExtractConfig(), nil
	case OpCompare:
		return c.GetCompareConfig(), nil
	default:
		return OperationAIConfig{}, fmt.Errorf("unknown AI operation: %s", operation)
	}
}

func (c *Config) operationPrompts(operation string) PromptConfig {
	switch operation {
	case OpSimulate:
		return c.AI.Simulate.CustomPrompts
	case OpAnalyze:
		return c.AI.Analyze.CustomPrompts
	case OpExtract:
		return c.AI.Extract.CustomPrompts
	case OpCompare:
		return c.AI.Compare.CustomPrompts
	}
	return PromptConfig{}
}
