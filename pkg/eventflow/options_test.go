package eventflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventflow/pkg/eventflow/config"
)

func TestWithMode_IgnoresInvalid(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want Mode
	}{
		{"sequential", Sequential{}, Sequential{}},
		{"concurrent", Concurrent{MaxConcurrency: 3}, Concurrent{MaxConcurrency: 3}},
		{"negative concurrency", Concurrent{MaxConcurrency: -1}, Sequential{}},
		{"rate limited", RateLimited{Limit: 2, Window: time.Second}, RateLimited{Limit: 2, Window: time.Second}},
		{"zero limit", RateLimited{Window: time.Second}, Sequential{}},
		{"zero window", RateLimited{Limit: 2}, Sequential{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultManagerConfig()
			WithMode(tt.mode)(&cfg)
			assert.Equal(t, tt.want, cfg.mode)
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "sequential", Sequential{}.String())
	assert.Equal(t, "concurrent(unlimited)", Concurrent{}.String())
	assert.Equal(t, "concurrent(8)", Concurrent{MaxConcurrency: 8}.String())
	assert.Equal(t, "rate_limited(5/1s)", RateLimited{Limit: 5, Window: time.Second}.String())
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OverflowPolicy
		wantErr bool
	}{
		{"", DropNewest, false},
		{"drop_newest", DropNewest, false},
		{"dropOldest", DropOldest, false},
		{"drop-oldest", DropOldest, false},
		{"ERROR", OverflowError, false},
		{"explode", DropNewest, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOverflowPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				round, err := ParseOverflowPolicy(got.String())
				require.NoError(t, err)
				assert.Equal(t, got, round)
			}
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeRateLimited
	cfg.RateLimit = 4
	cfg.RateWindow = 2 * time.Second
	cfg.MaxQueueSize = 10
	cfg.OverflowPolicy = "drop_oldest"
	cfg.MaxHistorySize = 25

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)

	m := newTestManager(t, opts...)
	assert.Equal(t, RateLimited{Limit: 4, Window: 2 * time.Second}, m.Mode())
	assert.Equal(t, 10, m.cfg.maxQueueSize)
	assert.Equal(t, DropOldest, m.cfg.overflowPolicy)
	require.NotNil(t, m.History())
	assert.Equal(t, 25, m.History().MaxSize())
}

func TestOptionsFromConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "parallel"

	_, err := OptionsFromConfig(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
