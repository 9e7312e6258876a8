package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/homelabqr/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("HOMELABQR_OTEL_ENDPOINT", "")
	t.Setenv("HOMELABQR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "homelabqr-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("HOMELABQR_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("HOMELABQR_OTEL_ENABLED", "FALSE")

	shutdown, err := otel.Setup(context.Background(), "homelabqr-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export leaves the machine.
	t.Setenv("HOMELABQR_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("HOMELABQR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "homelabqr-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopShutdownIgnoresCancelledContext(t *testing.T) {
	t.Setenv("HOMELABQR_OTEL_ENDPOINT", "")
	t.Setenv("HOMELABQR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "noop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}
