package config

import (
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				App:     AppConfig{Name: "test-service"},
				Log:     LogConfig{Level: "info"},
				Metrics: MetricsConfig{Port: 9090},
			},
			wantErr: false,
		},
		{
			name: "missing app name",
			cfg: Config{
				Log:     LogConfig{Level: "info"},
				Metrics: MetricsConfig{Port: 9090},
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			cfg: Config{
				App:     AppConfig{Name: "test-service"},
				Log:     LogConfig{Level: "verbose"},
				Metrics: MetricsConfig{Port: 9090},
			},
			wantErr: true,
		},
		{
			name: "negative max retries",
			cfg: Config{
				App:     AppConfig{Name: "test-service"},
				Log:     LogConfig{Level: "info"},
				Metrics: MetricsConfig{Port: 9090},
				Retry:   RetryConfig{MaxRetries: -1},
			},
			wantErr: true,
		},
		{
			name: "bad metrics port",
			cfg: Config{
				App:     AppConfig{Name: "test-service"},
				Log:     LogConfig{Level: "info"},
				Metrics: MetricsConfig{Port: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_EnvironmentHelpers(t *testing.T) {
	dev := &Config{App: AppConfig{Environment: "development"}}
	if !dev.IsDevelopment() || dev.IsProduction() {
		t.Errorf("expected development config to report IsDevelopment")
	}

	prod := &Config{App: AppConfig{Environment: "production"}}
	if !prod.IsProduction() || prod.IsDevelopment() {
		t.Errorf("expected production config to report IsProduction")
	}
}

func TestCacheConfig_Address(t *testing.T) {
	c := CacheConfig{Host: "redis.internal", Port: 6380}
	if c.Address() != "redis.internal:6380" {
		t.Errorf("unexpected address: %s", c.Address())
	}
}
