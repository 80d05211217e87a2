// Package cfg layers configuration from flag defaults, YAML files and
// command-line flags, in that order of precedence.
package cfg

import (
	"flag"
	"os"
	"strings"

	"github.com/drone/envsubst"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFileFlag = "config.file"
	expandEnvFlag  = "config.expand-env"
)

// Registerer is a configuration struct that binds its fields to flags.
type Registerer interface {
	RegisterFlags(*flag.FlagSet)
}

// Source is a generic configuration source. It is passed a pointer to the
// destination, which may already hold data from previous sources.
type Source func(interface{}) error

// Load applies sources to dst in order, so later sources override what
// earlier ones set.
func Load(dst interface{}, sources ...Source) error {
	if len(sources) == 0 {
		return errors.New("no config sources")
	}
	for i, source := range sources {
		if err := source(dst); err != nil {
			return errors.Wrapf(err, "config source %d", i)
		}
	}
	return nil
}

// Parse registers dst's flags on fs and fills dst from the flag defaults, the
// files named by -config.file and finally args.
func Parse(dst Registerer, fs *flag.FlagSet, args []string) error {
	files := ConfigFileArgs(args)
	expandEnv := ExpandEnvArg(args)

	var (
		ignoredFiles flagext.StringSlice
		ignoredEnv   bool
	)
	fs.Var(&ignoredFiles, configFileFlag, "Configuration file to load, may be given more than once.")
	fs.BoolVar(&ignoredEnv, expandEnvFlag, false, "Expands ${var} or $var in config according to the values of the environment variables.")
	return Load(dst,
		Defaults(fs),
		YAMLFiles(files, expandEnv),
		Flags(fs, args),
	)
}

// Defaults binds dst's flags to fs, which leaves every field at its default.
func Defaults(fs *flag.FlagSet) Source {
	return func(dst interface{}) error {
		r, ok := dst.(Registerer)
		if !ok {
			return errors.Errorf("%T does not register flags", dst)
		}
		r.RegisterFlags(fs)
		return nil
	}
}

// YAMLFiles decodes each file over dst. Unknown keys are an error. With
// expandEnv, environment references are substituted before decoding.
func YAMLFiles(files []string, expandEnv bool) Source {
	return func(dst interface{}) error {
		for _, f := range files {
			buf, err := os.ReadFile(f)
			if err != nil {
				return errors.Wrap(err, "Error reading config file")
			}
			if expandEnv {
				s, err := envsubst.EvalEnv(string(buf))
				if err != nil {
					return errors.Wrapf(err, "Error expanding environment in config file %s", f)
				}
				buf = []byte(s)
			}
			if err := yaml.UnmarshalStrict(buf, dst); err != nil {
				return errors.Wrapf(err, "Error parsing config file %s", f)
			}
		}
		return nil
	}
}

// Flags parses args into the flags bound by Defaults. Only flags present in
// args change dst.
func Flags(fs *flag.FlagSet, args []string) Source {
	return func(interface{}) error {
		return fs.Parse(args)
	}
}

// ConfigFileArgs returns the values of every -config.file argument in args.
func ConfigFileArgs(args []string) flagext.StringSlice {
	var files flagext.StringSlice
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if v, ok := strings.CutPrefix(name, configFileFlag+"="); ok {
			_ = files.Set(v)
		} else if name == configFileFlag && i+1 < len(args) {
			_ = files.Set(args[i+1])
			i++
		}
	}
	return files
}

// ExpandEnvArg reports whether args enable -config.expand-env.
func ExpandEnvArg(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			break
		}
		switch strings.TrimLeft(arg, "-") {
		case expandEnvFlag, expandEnvFlag + "=true", expandEnvFlag + "=1":
			return strings.HasPrefix(arg, "-")
		}
	}
	return false
}
