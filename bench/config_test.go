package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100*ElementsPerMB, cfg.Elements())
}

func TestConfigValidate(t *testing.T) {
	testCases := map[string]func(c *Config){
		"num_machines": func(c *Config) { c.WorldSize = 0 },
		"data_size_mb": func(c *Config) { c.DataSizeMB = 0 },
		"num_iters":    func(c *Config) { c.Iterations = -1 },
		"master_port":  func(c *Config) { c.MasterPort = 70000 },
		"master_addr":  func(c *Config) { c.MasterAddr = "" },
		"timeout":      func(c *Config) { c.OpTimeout = -time.Second },
		"backend":      func(c *Config) { c.Backend = "nccl" },
	}
	for field, mutate := range testCases {
		cfg := DefaultConfig()
		mutate(&cfg)
		err := cfg.Validate()
		require.Error(t, err, field)
		configErr, ok := err.(*ConfigError)
		require.True(t, ok, field)
		assert.Equal(t, field, configErr.Field)
	}
}

func TestGroupConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorldSize = 4
	cfg.RunID = "abc"
	g := cfg.GroupConfig(3)
	assert.Equal(t, 3, g.Rank)
	assert.Equal(t, 4, g.Size)
	assert.Equal(t, "abc", g.RunID)
	assert.Equal(t, "127.0.0.1:6006", g.MasterHostPort())
	assert.NoError(t, g.Validate())
}
