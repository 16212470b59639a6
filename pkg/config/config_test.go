package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	s.valid = true
	return nil
}

func write(t *testing.T, body string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(file, []byte(body), 0o644))
	return file
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "bucket")
	s := &sample{Port: 80}
	require.NoError(t, Load(write(t, "name: ${SAMPLE_NAME}\n"), s))
	assert.Equal(t, "bucket", s.Name)
	assert.Equal(t, 80, s.Port, "unset keys keep defaults")
	assert.True(t, s.valid)
}

func TestLoad_ValidationError(t *testing.T) {
	err := Load(write(t, "port: 1\n"), &sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoad_BadYAML(t *testing.T) {
	err := Load(write(t, "name: [unclosed\n"), &sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadOptional_MissingFile(t *testing.T) {
	s := &sample{Name: "default"}
	require.NoError(t, LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), s))
	assert.True(t, s.valid)

	err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &sample{})
	assert.Error(t, err)
}
