package state

import (
	"os"
	"time"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	env := &LocalEnv{start: time.Now()}
	if wd, err := os.Getwd(); err == nil {
		env.Cwd = wd
	}
	return env
}
