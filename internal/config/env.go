package config

import (
	"fmt"
	"gitpuller/internal/flags"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zenv"
)

// Env holds defaults read from the environment. Explicit flags win over these.
type Env struct {
	Branch  string `zog:"GITPULLER_BRANCH"`
	Workers int    `zog:"GITPULLER_WORKERS"`
}

// envShape keys are Env fields; envFlags names the flag each one defaults.
var (
	envShape = z.Shape{
		"branch":  z.String().Optional(),
		"workers": z.Int().Optional(),
	}
	envFlags = map[string]string{
		"branch":  flags.FlagBranch,
		"workers": flags.FlagWorkers,
	}
)

// LoadEnv parses the environment variables whose flag was not set
// explicitly, so a malformed variable cannot fail a run that overrides it.
// changed may be nil, in which case every variable is parsed.
func LoadEnv(changed func(flag string) bool) (*Env, error) {
	shape := z.Shape{}
	for key, schema := range envShape {
		if changed != nil && changed(envFlags[key]) {
			continue
		}
		shape[key] = schema
	}

	env := &Env{}
	if errs := z.Struct(shape).Parse(zenv.NewDataProvider(), env); errs != nil {
		return nil, fmt.Errorf("invalid environment: %v", z.Issues.FlattenAndCollect(errs))
	}
	return env, nil
}

// ApplyEnv copies non-empty environment values into c for every setting whose
// flag was not given explicitly. changed reports whether a flag was set.
func (c *Config) ApplyEnv(env *Env, changed func(flag string) bool) {
	if env == nil {
		return
	}
	if env.Branch != "" && !changed(flags.FlagBranch) {
		c.Target.Branch = env.Branch
	}
	if env.Workers != 0 && !changed(flags.FlagWorkers) {
		c.Runtime.Workers = env.Workers
	}
}
