package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults. Retries and the circuit breaker are
	// opt-in: service failures surface verbatim unless configured otherwise.
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 0)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.maxOutputTokens", 1024)
	v.SetDefault("ai.useSystemPrompts", false)

	// Simulation: moderate randomness, bounded answers
	v.SetDefault("ai.simulate.provider", "gemini")
	v.SetDefault("ai.simulate.model", "")
	v.SetDefault("ai.simulate.timeout", 60*time.Second)
	v.SetDefault("ai.simulate.apiKey", "")
	v.SetDefault("ai.simulate.temperature", 0.7)
	v.SetDefault("ai.simulate.maxOutputTokens", 500)

	// Gioia coding needs room for 3x3x(3-5) codes with quotes
	v.SetDefault("ai.analyze.provider", "gemini")
	v.SetDefault("ai.analyze.model", "")
	v.SetDefault("ai.analyze.timeout", 120*time.Second)
	v.SetDefault("ai.analyze.apiKey", "")
	v.SetDefault("ai.analyze.temperature", 0.4)
	v.SetDefault("ai.analyze.maxOutputTokens", 4096)

	// Extraction temperatures and token bounds are fixed per prompt; this block
	// selects provider, model and timeout.
	v.SetDefault("ai.extract.provider", "gemini")
	v.SetDefault("ai.extract.model", "")
	v.SetDefault("ai.extract.timeout", 45*time.Second)
	v.SetDefault("ai.extract.apiKey", "")

	v.SetDefault("ai.compare.provider", "gemini")
	v.SetDefault("ai.compare.model", "")
	v.SetDefault("ai.compare.timeout", 60*time.Second)
	v.SetDefault("ai.compare.apiKey", "")
	v.SetDefault("ai.compare.temperature", 0.3)
	v.SetDefault("ai.compare.maxOutputTokens", 1024)

	for _, op := range []string{OpSimulate, OpAnalyze, OpExtract, OpCompare} {
		prefix := "ai." + op + ".circuitBreaker."
		v.SetDefault(prefix+"enabled", false)
		v.SetDefault(prefix+"maxRequests", 3)
		v.SetDefault(prefix+"interval", 60*time.Second)
		v.SetDefault(prefix+"timeout", 60*time.Second)
		v.SetDefault(prefix+"minRequests", 3)
		v.SetDefault(prefix+"failureThreshold", 0.6)
	}

	// Storage
	v.SetDefault("storage.dataDir", "data")
	v.SetDefault("storage.lock.enabled", false)
	v.SetDefault("storage.lock.redisAddr", "")
	v.SetDefault("storage.lock.redisPassword", "")
	v.SetDefault("storage.lock.redisDB", 0)
	v.SetDefault("storage.lock.ttl", 5*time.Minute)
	v.SetDefault("storage.lock.waitTimeout", 10*time.Second)

	v.SetDefault("simulate.concurrency", 1)
	v.SetDefault("analyze.structured", true)

	// Speech-to-text
	v.SetDefault("speech.languageCode", "en-US")
	v.SetDefault("speech.sampleRateHertz", 16000)
	v.SetDefault("speech.encoding", "LINEAR16")

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Minute) // simulate runs one call per question
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 2*1024*1024)
	v.SetDefault("server.watchFiles", true)
	v.SetDefault("server.tls.mode", "disabled")
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024) // 10MB, uploads include PDFs

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.tlsCerts", "")
	v.SetDefault("vault.secrets.redisPassword", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "personasim")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackModelInfo", true)
	v.SetDefault("observability.customMetrics.pipelineMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.pipelineMetrics.trackSuccessRates", true)
	v.SetDefault("observability.customMetrics.pipelineMetrics.trackContentSizes", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)

	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})

	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}
