// Package config implements the daapsrv configuration
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gitlab.com/go-utilities/file"
)

// ValueKey represents value keys for contexts
type ValueKey string

const (
	// KeyCfg is the key for the daapsrv configuration
	KeyCfg ValueKey = "cfg"
	// KeyVersion is the key for the daapsrv version
	KeyVersion ValueKey = "version"
)

const (
	// CfgDir is the directory where the daapsrv configuration is stored
	CfgDir = "/etc/daapsrv"
	// path of daapsrv configuration file
	cfgFilepath = CfgDir + "/config.json"
)

// AuthMethod determines how clients authenticate at /login
type AuthMethod string

// authentication methods
const (
	AuthNone     AuthMethod = "none"
	AuthPassword AuthMethod = "password"
	AuthUserPass AuthMethod = "user_and_password"
)

// IsValid checks if the authentication method has a valid value
func (me AuthMethod) IsValid() (err error) {
	if me != AuthNone && me != AuthPassword && me != AuthUserPass {
		err = fmt.Errorf("'%s' is no valid authentication method", me)
	}
	return
}

// Credential is one user/password pair. For auth method "password" the user
// is ignored and may be empty
type Credential struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// default idle timeout of sessions in minutes
const defaultSessionTimeout = 30

// Cfg stores the data from the daapsrv configuration file
type Cfg struct {
	Name           string        `json:"name"`
	Port           int           `json:"port"`
	AuthMethod     AuthMethod    `json:"auth_method"`
	Credentials    []Credential  `json:"credentials"`
	MaxUsers       int           `json:"max_users"`
	Publish        bool          `json:"publish"`
	MachineID      string        `json:"machine_id"`
	SessionTimeout time.Duration `json:"session_timeout"` // minutes
	Cnt            cnt           `json:"content"`
	LogDir         string        `json:"log_dir"`
	LogLevel       string        `json:"log_level"`
}
type cnt struct {
	MusicDirs      []string      `json:"music_dirs"`
	UpdateInterval time.Duration `json:"update_interval"` // seconds
}

// Load reads the configuration from the config file
func Load() (cfg Cfg, err error) {
	cfgFile, err := os.ReadFile(cfgFilepath)
	if err != nil {
		err = errors.Wrapf(err, "cannot read configuration file '%s'", cfgFilepath)
		return
	}
	if err = json.Unmarshal(cfgFile, &cfg); err != nil {
		err = errors.Wrapf(err, "cannot unmarshal configuration file '%s'", cfgFilepath)
		return
	}
	cfg.ApplyDefaults()
	return
}

// ApplyDefaults fills optional attributes that were left empty
func (me *Cfg) ApplyDefaults() {
	if me.Name == "" {
		me.Name = "daapsrv"
	}
	if me.Port == 0 {
		me.Port = 3689
	}
	if me.AuthMethod == "" {
		me.AuthMethod = AuthNone
	}
	if me.SessionTimeout == 0 {
		me.SessionTimeout = defaultSessionTimeout
	}
	if me.Cnt.UpdateInterval == 0 {
		me.Cnt.UpdateInterval = 60
	}
	if me.MachineID == "" {
		// the machine id only has to be stable for the lifetime of the
		// advertised record
		me.MachineID = fmt.Sprintf("%X", uuid.New().ID())
	}
	if me.LogLevel == "" {
		me.LogLevel = "error"
	}
}

// Validate checks the configuration for completeness and consistency
func (me *Cfg) Validate() (err error) {
	if err = me.AuthMethod.IsValid(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if me.AuthMethod != AuthNone && len(me.Credentials) == 0 {
		return fmt.Errorf("invalid configuration: auth method '%s' requires credentials", me.AuthMethod)
	}
	for _, cred := range me.Credentials {
		if cred.Password == "" {
			return fmt.Errorf("invalid configuration: credential for user '%s' has an empty password", cred.User)
		}
		if me.AuthMethod == AuthUserPass && cred.User == "" {
			return fmt.Errorf("invalid configuration: auth method '%s' requires a user for each credential", me.AuthMethod)
		}
	}
	if me.Port < 0 || me.Port > 65535 {
		return fmt.Errorf("invalid configuration: port %d is out of range", me.Port)
	}
	if me.MaxUsers < 0 {
		return fmt.Errorf("invalid configuration: max_users must not be negative")
	}
	if me.SessionTimeout < 0 {
		return fmt.Errorf("invalid configuration: session_timeout must not be negative")
	}
	if len(me.Cnt.MusicDirs) == 0 {
		return fmt.Errorf("invalid configuration: at least one music directory must be configured")
	}
	for _, dir := range me.Cnt.MusicDirs {
		var exists bool
		if exists, err = file.Exists(dir); err != nil {
			return errors.Wrapf(err, "cannot check existence of music directory '%s'", dir)
		}
		if !exists {
			return fmt.Errorf("invalid configuration: music directory '%s' does not exist", dir)
		}
	}
	return
}

// IdleTimeout returns the session idle timeout as duration
func (me *Cfg) IdleTimeout() time.Duration {
	return me.SessionTimeout * time.Minute
}

// Test verifies the configuration file. It's called when daapsrv is executed
// with the test command
func Test() (err error) {
	var cfg Cfg
	if cfg, err = Load(); err != nil {
		return
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	fmt.Println("configuration OK")
	return
}
