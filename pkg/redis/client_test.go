package redis

import (
	"testing"

	"github.com/emotrace/emotrace-backend/pkg/config"
)

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when url and address are empty")
	}
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@localhost:6380/2"})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "localhost:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
}

func TestKeyBuilding(t *testing.T) {
	c := &Client{}
	if got := c.AccessSessionKey("abc"); got != "emt:session:access:abc" {
		t.Fatalf("unexpected session key %q", got)
	}
	if got := c.AIProbeKey(); got != "emt:ai_probe:status" {
		t.Fatalf("unexpected probe key %q", got)
	}
}
