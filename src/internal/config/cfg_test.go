package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCfg(t *testing.T) Cfg {
	cfg := Cfg{
		Name: "Test",
		Cnt:  cnt{MusicDirs: []string{t.TempDir()}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestDefaults(t *testing.T) {
	var cfg Cfg
	cfg.ApplyDefaults()

	assert.Equal(t, "daapsrv", cfg.Name)
	assert.Equal(t, 3689, cfg.Port)
	assert.Equal(t, AuthNone, cfg.AuthMethod)
	assert.EqualValues(t, 30, cfg.SessionTimeout)
	assert.NotEmpty(t, cfg.MachineID)
}

func TestValidate(t *testing.T) {
	cfg := validCfg(t)
	require.NoError(t, cfg.Validate())
}

func TestValidateAuth(t *testing.T) {
	cfg := validCfg(t)
	cfg.AuthMethod = "basic"
	assert.Error(t, cfg.Validate())

	cfg.AuthMethod = AuthPassword
	cfg.Credentials = nil
	assert.Error(t, cfg.Validate())

	cfg.Credentials = []Credential{{Password: "hunter2"}}
	assert.NoError(t, cfg.Validate())

	// user_and_password requires a user per credential
	cfg.AuthMethod = AuthUserPass
	assert.Error(t, cfg.Validate())
	cfg.Credentials = []Credential{{User: "alice", Password: "hunter2"}}
	assert.NoError(t, cfg.Validate())
}

func TestValidateMusicDirs(t *testing.T) {
	cfg := validCfg(t)
	cfg.Cnt.MusicDirs = nil
	assert.Error(t, cfg.Validate())

	cfg.Cnt.MusicDirs = []string{"/does/not/exist"}
	assert.Error(t, cfg.Validate())
}

func TestValidatePort(t *testing.T) {
	cfg := validCfg(t)
	cfg.Port = 70000
	assert.Error(t, cfg.Validate())
}
