package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventflow/pkg/eventflow/config"
)

// ConfigOptions holds flags for the config command.
type ConfigOptions struct {
	ConfigPath string
}

// resolvedConfig prints as YAML in text mode and as an object in JSON mode.
type resolvedConfig struct {
	cfg  config.Config
	yaml string
}

func (r resolvedConfig) String() string { return r.yaml }

func (r resolvedConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.cfg.Map())
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigOptions{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and print the resolved configuration",
		Long: `Load a configuration file over the defaults, validate it, and print
the result. Without --config the defaults are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (.yaml, .yml, .json)")

	return cmd
}

func runConfig(cmd *cobra.Command, rootOpts *RootOptions, opts *ConfigOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	data, err := cfg.ToYAML()
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	out := output{format: rootOpts.Format, w: cmd.OutOrStdout()}
	return out.success(resolvedConfig{cfg: cfg, yaml: strings.TrimRight(string(data), "\n")})
}
