package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New()

	assert.Equal(t, 5*time.Second, c.ScanDuration)
	assert.Equal(t, 10*time.Second, c.ConnectTimeout)
	assert.Equal(t, 2*time.Second, c.ResponseTimeout)
	assert.Equal(t, 40*time.Second, c.MoveTimeout)
	assert.NotNil(t, c.Profiles)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.ScanDuration)
	assert.Empty(t, c.Profiles)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blesk", "config.yaml")

	c := New()
	c.SetDefaultAddress("", "AA:BB:CC:DD:EE:FF")
	c.SetDefaultAddress("office", "11:22:33:44:55:66")
	c.ScanDuration = 7 * time.Second
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	addr, err := loaded.DefaultAddress("")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", addr)

	addr, err = loaded.DefaultAddress("office")
	require.NoError(t, err)
	assert.Equal(t, "11:22:33:44:55:66", addr)

	assert.Equal(t, 7*time.Second, loaded.ScanDuration)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaultAddressMissingProfile(t *testing.T) {
	c := New()

	_, err := c.DefaultAddress("home")
	var noAddr *NoAddressError
	require.ErrorAs(t, err, &noAddr)
	assert.Equal(t, "home", noAddr.Profile)
}

func TestPathHonorsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/blesk/config.yaml", Path())

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/example")
	assert.Equal(t, "/home/example/.config/blesk/config.yaml", Path())
}
