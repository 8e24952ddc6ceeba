package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// useTempConfig points the config hooks at a temp dir for the test.
func useTempConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "licitai")
	configPath := filepath.Join(configDir, "config.yaml")

	oldGetConfigDir := getConfigDirFunc
	oldGetConfigPath := getConfigPathFunc
	getConfigDirFunc = func() (string, error) {
		return configDir, nil
	}
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	t.Cleanup(func() {
		getConfigDirFunc = oldGetConfigDir
		getConfigPathFunc = oldGetConfigPath
	})

	return configPath
}

func TestGetConfigDir(t *testing.T) {
	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
	assert.True(t, strings.HasSuffix(dir, "licitai"))
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "config.yaml"))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	useTempConfig(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestLoadGlobalConfig_ValidFile(t *testing.T) {
	configPath := useTempConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	content := "api_url: http://licitai.internal:8080\nsession_id: abc-123\nuser_label: Rosa\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, "http://licitai.internal:8080", config.APIURL)
	assert.Equal(t, "abc-123", config.SessionID)
	assert.Equal(t, "Rosa", config.UserLabel)
}

func TestLoadGlobalConfig_InvalidYAML(t *testing.T) {
	configPath := useTempConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("api_url: [unclosed"), 0600))

	config, err := LoadGlobalConfig()
	assert.Nil(t, config)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestSaveGlobalConfig_CreatesDirectoryWithPermissions(t *testing.T) {
	configPath := useTempConfig(t)

	err := SaveGlobalConfig(&GlobalConfig{APIURL: "http://localhost:8080", AdminToken: "secret"})
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	var loaded GlobalConfig
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "http://localhost:8080", loaded.APIURL)
	assert.Equal(t, "secret", loaded.AdminToken)
}

func TestSaveGlobalConfig_NilConfig(t *testing.T) {
	assert.ErrorContains(t, SaveGlobalConfig(nil), "config cannot be nil")
}

func TestDeleteGlobalConfig(t *testing.T) {
	configPath := useTempConfig(t)

	require.NoError(t, DeleteGlobalConfig(), "missing file is not an error")

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{SessionID: "s-1"}))
	require.NoError(t, DeleteGlobalConfig())
	assert.NoFileExists(t, configPath)
}

func TestResolve_Cascade(t *testing.T) {
	useTempConfig(t)
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://config:8080"}))
	fromConfig := func(c *GlobalConfig) string { return c.APIURL }

	t.Setenv(envAPIURL, "http://env:8080")
	v, src, err := resolve("http://flag:8080", envAPIURL, fromConfig, defaultAPIURL)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8080", v)
	assert.Equal(t, SourceFlag, src)

	v, src, err = resolve("", envAPIURL, fromConfig, defaultAPIURL)
	require.NoError(t, err)
	assert.Equal(t, "http://env:8080", v)
	assert.Equal(t, SourceEnv, src)

	t.Setenv(envAPIURL, "")
	v, src, err = resolve("", envAPIURL, fromConfig, defaultAPIURL)
	require.NoError(t, err)
	assert.Equal(t, "http://config:8080", v)
	assert.Equal(t, SourceGlobalConfig, src)

	require.NoError(t, DeleteGlobalConfig())
	v, src, err = resolve("", envAPIURL, fromConfig, defaultAPIURL)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIURL, v)
	assert.Equal(t, SourceDefault, src)
}

func TestSetConfigValue(t *testing.T) {
	useTempConfig(t)

	require.NoError(t, setConfigValue("api_url", "http://remote:9000/"))
	require.NoError(t, setConfigValue("USER_LABEL", "Carlos"))

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://remote:9000", config.APIURL)
	assert.Equal(t, "Carlos", config.UserLabel)

	assert.ErrorContains(t, setConfigValue("color", "red"), "unknown setting")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", maskToken(""))
	assert.Equal(t, "****", maskToken("abc"))
	assert.Equal(t, "******7890", maskToken("1234567890"))
}
