package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("authorization=Bearer x, ,=skip,tenant = rewards,broken")
	require.Equal(t, map[string]string{
		"authorization": "Bearer x",
		"tenant":        "rewards",
	}, headers)
}

func TestFromEnvOverlaysExporterSettings(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-team=rewards")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg := FromEnv(Config{ServiceName: "rewardd", Traces: true})
	require.Equal(t, "collector:4318", cfg.Endpoint)
	require.True(t, cfg.Insecure)
	require.Equal(t, "rewards", cfg.Headers["x-team"])
	require.Equal(t, 0.25, cfg.SampleRatio)
	require.Equal(t, "rewardd", cfg.ServiceName)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersReturnsShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "rewardd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
