// Package telemetry provides OpenTelemetry integration for distributed tracing.
package telemetry

import (
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/sdk/trace"
)

// DefaultServiceName is reported when OTEL_SERVICE_NAME is unset.
const DefaultServiceName = "heapsnap"

// Config holds OpenTelemetry configuration loaded from environment variables.
type Config struct {
	// Enabled is read from OTEL_ENABLED.
	Enabled bool

	ServiceName    string // OTEL_SERVICE_NAME
	ServiceVersion string // OTEL_SERVICE_VERSION

	// Endpoint is the OTLP collector endpoint, from OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string

	// Protocol is grpc or http/protobuf, from OTEL_EXPORTER_OTLP_PROTOCOL.
	Protocol string

	// Headers for the exporter, from OTEL_EXPORTER_OTLP_HEADERS as
	// "key1=value1,key2=value2".
	Headers map[string]string

	Insecure bool // OTEL_EXPORTER_OTLP_INSECURE

	// Sampler is one of always_on, always_off, traceidratio,
	// parentbased_always_on, parentbased_always_off and
	// parentbased_traceidratio. Empty means always_on.
	Sampler    string // OTEL_TRACES_SAMPLER
	SamplerArg string // OTEL_TRACES_SAMPLER_ARG

	// ResourceAttrs from OTEL_RESOURCE_ATTRIBUTES.
	ResourceAttrs map[string]string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		Enabled:        envBool("OTEL_ENABLED"),
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", DefaultServiceName),
		ServiceVersion: getEnvOrDefault("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       getEnvOrDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parseKeyValuePairs(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE"),
		Sampler:        os.Getenv("OTEL_TRACES_SAMPLER"),
		SamplerArg:     os.Getenv("OTEL_TRACES_SAMPLER_ARG"),
		ResourceAttrs:  parseKeyValuePairs(os.Getenv("OTEL_RESOURCE_ATTRIBUTES")),
	}
}

func envBool(key string) bool {
	return strings.EqualFold(os.Getenv(key), "true")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseKeyValuePairs parses "key1=value1,key2=value2". Values may contain
// '='; entries without a key are dropped.
func parseKeyValuePairs(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}

// sampler builds the trace sampler. Unknown names sample everything.
func (c *Config) sampler() trace.Sampler {
	switch c.Sampler {
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(parseRatio(c.SamplerArg))
	case "parentbased_always_on":
		return trace.ParentBased(trace.AlwaysSample())
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(parseRatio(c.SamplerArg)))
	default:
		return trace.AlwaysSample()
	}
}

// parseRatio parses a sampling ratio clamped to [0, 1]. Unparsable input
// means 1.
func parseRatio(s string) float64 {
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}
	return min(max(ratio, 0), 1)
}
