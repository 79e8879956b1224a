package otel_test

import (
	"context"
	"testing"

	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
	"github.com/ogurasousui/employer-onboarding/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), config.TelemetryConfig{ServiceName: "test-service"}, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// 192.0.2.0/24 はルーティングされないため実際のエクスポートは発生しない
	shutdown, err := otel.Setup(context.Background(), config.TelemetryConfig{
		ServiceName: "test-service",
		Endpoint:    "http://192.0.2.1:4318",
		Insecure:    true,
		SampleRatio: 0.5,
	}, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
