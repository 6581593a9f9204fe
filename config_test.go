package msglc

import "testing"

func TestConfigureAffectsSubsequentDefaults(t *testing.T) {
	orig := CurrentConfig()
	defer Configure(func(c *Config) { *c = orig })

	Configure(WithSmallObjThreshold(123))
	if CurrentConfig().SmallObjThreshold != 123 {
		t.Fatalf("got %d", CurrentConfig().SmallObjThreshold)
	}
}

func TestResolveConfigOverridesGlobalPerCall(t *testing.T) {
	orig := CurrentConfig()
	defer Configure(func(c *Config) { *c = orig })

	Configure(WithSmallObjThreshold(100))
	cfg := resolveConfig([]Option{WithSmallObjThreshold(200)})
	if cfg.SmallObjThreshold != 200 {
		t.Fatalf("got %d", cfg.SmallObjThreshold)
	}
	if CurrentConfig().SmallObjThreshold != 100 {
		t.Fatal("per-call option leaked into global config")
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SmallObjThreshold != 8*1024 {
		t.Errorf("SmallObjThreshold = %d", cfg.SmallObjThreshold)
	}
	if cfg.TrivialSize != 20 {
		t.Errorf("TrivialSize = %d", cfg.TrivialSize)
	}
	if cfg.FastLoadThreshold != 0.3 {
		t.Errorf("FastLoadThreshold = %v", cfg.FastLoadThreshold)
	}
	if !cfg.Cached {
		t.Error("Cached should default to true")
	}
}
