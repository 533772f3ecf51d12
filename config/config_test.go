package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opswatch/updateworker/config"
)

func TestLoadFromFileAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updateworker.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
dbdir = "/data/rrd"
carbon_server = "carbon.example.org"
limit_services = ["load", "cpu"]
`), 0644))

	c, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/rrd", c.DBDir)
	assert.Equal(t, "carbon.example.org", c.CarbonServer)
	assert.Equal(t, 2003, c.CarbonPort) // default
	assert.Equal(t, []string{"load", "cpu"}, c.LimitServices)
}

func TestLimitSetEmptyMeansNoAllowlist(t *testing.T) {
	c := &config.Config{}
	assert.Nil(t, c.LimitSet())
}

func TestLimitSetNonEmpty(t *testing.T) {
	c := &config.Config{LimitServices: []string{"load"}}
	set := c.LimitSet()
	_, ok := set["load"]
	assert.True(t, ok)
}

func TestHostPathJoinsGroupAndHost(t *testing.T) {
	h := config.HostDescriptor{GroupName: "servers", HostName: "db1"}
	assert.Equal(t, "servers.db1", h.HostPath())
}

func TestHostPathWithoutGroup(t *testing.T) {
	h := config.HostDescriptor{HostName: "db1"}
	assert.Equal(t, "db1", h.HostPath())
}

func TestResolveUpdateRatePrecedence(t *testing.T) {
	sec, _ := config.ResolveUpdateRate("10m", nil, nil)
	assert.Equal(t, int64(600), sec)

	sec, _ = config.ResolveUpdateRate("10m", map[string]string{"update_rate": "1m"}, nil)
	assert.Equal(t, int64(60), sec)

	sec, aligned := config.ResolveUpdateRate("10m", map[string]string{"update_rate": "1m"}, map[string]string{"update_rate": "30s aligned"})
	assert.Equal(t, int64(30), sec)
	assert.True(t, aligned)
}

func TestResolveUpdateRateFallsBackToDefault(t *testing.T) {
	sec, aligned := config.ResolveUpdateRate("", nil, nil)
	assert.Equal(t, int64(300), sec)
	assert.False(t, aligned)
}

func TestResolveGraphDataSizePrecedence(t *testing.T) {
	assert.Equal(t, "huge", config.ResolveGraphDataSize("huge", nil, nil))
	assert.Equal(t, "custom 1h for 30d", config.ResolveGraphDataSize("huge",
		map[string]string{"graph_data_size": "custom 1h for 30d"}, nil))
	assert.Equal(t, "normal", config.ResolveGraphDataSize("", nil, nil))
}
