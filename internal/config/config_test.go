package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Clustering.MinClusterSize != 5 {
		t.Errorf("min_cluster_size = %d, want 5", cfg.Clustering.MinClusterSize)
	}
	if cfg.Clustering.MinSamples != 2 {
		t.Errorf("min_samples = %d, want 2", cfg.Clustering.MinSamples)
	}
	if cfg.Clustering.SparseWeight != 0.35 {
		t.Errorf("sparse_weight = %g, want 0.35", cfg.Clustering.SparseWeight)
	}
	if cfg.Clustering.TargetDimensions != 10 {
		t.Errorf("target_dimensions = %d, want 10", cfg.Clustering.TargetDimensions)
	}
	if cfg.Clustering.SelectionPolicy != "leaf" {
		t.Errorf("selection_policy = %q, want leaf", cfg.Clustering.SelectionPolicy)
	}
	if cfg.Quality.CohesionThreshold != 0.05 {
		t.Errorf("cohesion_threshold = %g, want 0.05", cfg.Quality.CohesionThreshold)
	}
	if cfg.Quality.NoiseThreshold != 0.35 {
		t.Errorf("noise_threshold = %g, want 0.35", cfg.Quality.NoiseThreshold)
	}
	if cfg.Highlights.ViralThreshold != 5000 {
		t.Errorf("viral_threshold = %d, want 5000", cfg.Highlights.ViralThreshold)
	}
	if cfg.Highlights.Metric != "likes" {
		t.Errorf("metric = %q, want likes", cfg.Highlights.Metric)
	}
	if cfg.Output.MaxMembersPerFile != 100 {
		t.Errorf("max_members_per_file = %d, want 100", cfg.Output.MaxMembersPerFile)
	}
	if cfg.Output.Host != "x.com" {
		t.Errorf("host = %q, want x.com", cfg.Output.Host)
	}
	if cfg.Gemini.Dimensions != 768 {
		t.Errorf("dimensions = %d, want 768", cfg.Gemini.Dimensions)
	}
}

func TestLoadCached(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	second, err := Load("")
	if err != nil {
		t.Fatalf("second Load() error: %v", err)
	}
	if first != second {
		t.Error("Load() should return the cached config on repeat calls")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Clustering: Clustering{
				MinClusterSize:   5,
				MinSamples:       2,
				SparseWeight:     0.35,
				TargetDimensions: 10,
				SelectionPolicy:  "leaf",
			},
			Highlights: Highlights{Metric: "likes", ViralThreshold: 5000},
			Output:     Output{MaxMembersPerFile: 100},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"eom policy", func(c *Config) { c.Clustering.SelectionPolicy = "eom" }, false},
		{"bad policy", func(c *Config) { c.Clustering.SelectionPolicy = "tree" }, true},
		{"tiny min cluster size", func(c *Config) { c.Clustering.MinClusterSize = 1 }, true},
		{"zero min samples", func(c *Config) { c.Clustering.MinSamples = 0 }, true},
		{"negative lambda", func(c *Config) { c.Clustering.SparseWeight = -0.1 }, true},
		{"bad metric", func(c *Config) { c.Highlights.Metric = "stars" }, true},
		{"zero cap", func(c *Config) { c.Output.MaxMembersPerFile = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
