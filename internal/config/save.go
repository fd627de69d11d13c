package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/viper"
)

// SaveMasterPassword rewrites the loaded config file with a new master
// password value. The rewrite is serialized through a file lock so two
// concurrent rotations cannot interleave their read-modify-write.
func (c *Config) SaveMasterPassword(value string) error {
	if c.path == "" {
		return errors.New("no config file loaded; cannot persist master password")
	}
	if isEncryptedPath(c.path) {
		return errors.New("config file is encrypted; re-encrypt it after editing master.password manually")
	}

	lockPath := c.Global.LockFile
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), "dba-config.lock")
	}
	guard := flock.New(lockPath)
	ok, err := guard.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("config is being rewritten by another process (lock: %s)", lockPath)
	}
	defer guard.Unlock()

	vp := viper.New()
	vp.SetConfigFile(c.path)
	if err := vp.ReadInConfig(); err != nil {
		return fmt.Errorf("reread config: %w", err)
	}
	vp.Set("master.password", value)
	if err := vp.WriteConfig(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	c.Master.Password = value
	return nil
}
