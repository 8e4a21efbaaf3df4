package kafka

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestProducerConfigPassesValidation(t *testing.T) {
	cfg := producerConfig(nil)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config rejected: %v", err)
	}
	if cfg.Net.MaxOpenRequests != 1 {
		t.Errorf("MaxOpenRequests = %d, want 1", cfg.Net.MaxOpenRequests)
	}
	if !cfg.Version.IsAtLeast(sarama.V0_11_0_0) {
		t.Errorf("Version = %v, want at least 0.11", cfg.Version)
	}
}

func TestProducerConfigKeepsNewerVersion(t *testing.T) {
	in := sarama.NewConfig()
	in.Version = sarama.V2_8_0_0

	cfg := producerConfig(in)

	if cfg.Version != sarama.V2_8_0_0 {
		t.Errorf("Version = %v, want 2.8.0", cfg.Version)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config rejected: %v", err)
	}
}
