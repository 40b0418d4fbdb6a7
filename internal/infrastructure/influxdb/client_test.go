package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/netrules-core/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on uninitialised client error = %v, want nil", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteSkippedWhenDisconnected(t *testing.T) {
	// Writes on a disconnected client must be silent no-ops.
	client := &Client{}
	client.WriteCycleMetric(0, 0, 0, "base")
	client.WriteChangeMetric("wlan", "modified")
	client.WriteFetchFailure("network")
	client.Flush()
}
