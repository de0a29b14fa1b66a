/*
 *
 * protobridge - protobuf definition graphs and write-handler caches
 * Copyright (C) 2026 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/protobridge/cmd/state"
	"github.com/liuxd6825/protobridge/decoder"
	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
)

// Config holds the settings that can come from the config file, the
// environment and the command line, in increasing order of precedence.
type Config struct {
	// ImportPath is a list of directories, separated like $PATH.
	ImportPath     null.String `json:"importPath" yaml:"importPath" envconfig:"PROTOBRIDGE_IMPORT_PATH"`
	LogLevel       null.String `json:"logLevel" yaml:"logLevel" envconfig:"PROTOBRIDGE_LOG_LEVEL"`
	RecursionLimit null.Int    `json:"recursionLimit" yaml:"recursionLimit" envconfig:"PROTOBRIDGE_RECURSION_LIMIT"`
}

// Apply returns c with every valid field of cfg applied on top of it.
func (c Config) Apply(cfg Config) Config {
	if cfg.ImportPath.Valid {
		c.ImportPath = cfg.ImportPath
	}
	if cfg.LogLevel.Valid && cfg.LogLevel.String != "" {
		c.LogLevel = cfg.LogLevel
	}
	if cfg.RecursionLimit.Valid {
		c.RecursionLimit = cfg.RecursionLimit
	}
	return c
}

// ImportPaths splits ImportPath into its directories.
func (c Config) ImportPaths() []string {
	if !c.ImportPath.Valid || c.ImportPath.String == "" {
		return nil
	}
	return filepath.SplitList(c.ImportPath.String)
}

func (c Config) validate() error {
	if c.RecursionLimit.Valid && c.RecursionLimit.Int64 <= 0 {
		return fmt.Errorf("the recursion limit must be positive, got %d", c.RecursionLimit.Int64)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		LogLevel:       null.NewString("info", false),
		RecursionLimit: null.NewInt(decoder.DefaultRecursionLimit, false),
	}
}

// configFlagSet returns the flags that override Config fields and that
// apply to every command.
func configFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringArrayP("import-path", "I", nil,
		"directory to search for imports, can be repeated")
	flags.String("log-level", "info", "minimum level of the log entries")
	return flags
}

func configFromFlags(flags *pflag.FlagSet) Config {
	conf := Config{LogLevel: getNullString(flags, "log-level")}
	if flags.Changed("import-path") {
		paths, err := flags.GetStringArray("import-path")
		must(err)
		conf.ImportPath = null.StringFrom(strings.Join(paths, string(filepath.ListSeparator)))
	}
	// only some commands decode
	if flags.Lookup("recursion-limit") != nil {
		conf.RecursionLimit = getNullInt64(flags, "recursion-limit")
	}
	return conf
}

func readDiskConfig(gs *state.GlobalState) (Config, error) {
	conf := Config{}
	if gs.Flags.ConfigFilePath == "" {
		return conf, nil
	}
	data, err := afero.ReadFile(gs.FS, gs.Flags.ConfigFilePath)
	if err != nil {
		return conf, fmt.Errorf("couldn't load the configuration from %q: %w", gs.Flags.ConfigFilePath, err)
	}
	if err = yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("couldn't parse the configuration from %q: %w", gs.Flags.ConfigFilePath, err)
	}
	return conf, nil
}

func readEnvConfig(env map[string]string) (Config, error) {
	conf := Config{}
	err := envconfig.Process("", &conf, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	return conf, err
}

// getConsolidatedConfig merges the defaults, the config file, the
// environment and the changed flags, in that order.
func getConsolidatedConfig(gs *state.GlobalState, flags *pflag.FlagSet) (Config, error) {
	fileConf, err := readDiskConfig(gs)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	envConf, err := readEnvConfig(gs.Env)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	conf := defaultConfig().Apply(fileConf).Apply(envConf).Apply(configFromFlags(flags))
	if err = conf.validate(); err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return conf, nil
}
