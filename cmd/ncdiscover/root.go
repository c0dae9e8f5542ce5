package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/batchatco/go-netcdf-discovery/accessor"
	"github.com/batchatco/go-netcdf-discovery/catalog"
	"github.com/batchatco/go-netcdf-discovery/config"
	"github.com/batchatco/go-netcdf-discovery/discovery"
	"github.com/batchatco/go-netcdf-discovery/internal"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "NCDISCOVER"

var (
	settings = viper.New()
	logger   = internal.NewLogger()
)

var rootCmd = &cobra.Command{
	Use:   "ncdiscover",
	Short: "Discover the datasets provided by netCDF files",
	Long: `ncdiscover opens netCDF files described by a reader definition and
reports which datasets they provide: datasets the definition already
knows are confirmed, and every other array shaped like the latitude
grid is reported as a new dataset.

Every flag can also be set in the environment, e.g. NCDISCOVER_CONFIG
or NCDISCOVER_LOG_LEVEL.

Examples:
  ncdiscover validate --config etc/mimicTPW2_comp.yaml
  ncdiscover scan --config etc/mimicTPW2_comp.yaml data/comp*.nc
  ncdiscover watch --config etc/mimicTPW2_comp.yaml data/`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "reader.yaml", "reader definition file")
	flags.Int("log-level", 2, "0 fatal, 1 errors, 2 warnings, 3 info")
	flags.String("log-format", "console", "console or json")
	if err := settings.BindPFlags(flags); err != nil {
		panic(err)
	}
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
}

func setup(cmd *cobra.Command, args []string) error {
	// subcommand flags are only known once the command is chosen
	if err := settings.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	switch format := settings.GetString("log-format"); format {
	case "console":
		internal.SetOutput(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	case "json":
		internal.SetOutput(cmd.ErrOrStderr())
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	level := settings.GetInt("log-level")
	if level < 0 || level > 3 {
		return fmt.Errorf("log level %d out of range 0..3", level)
	}
	internal.SetPackageLevel(logger, level)
	accessor.SetLogLevel(level)
	discovery.SetLogLevel(level)
	catalog.SetLogLevel(level)
	return nil
}

func loadConfig() (*config.Config, error) {
	path := settings.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Event(internal.LevelInfo).Str("path", path).Str("reader", cfg.Reader.Name).
		Msg("loaded reader definition")
	return cfg, nil
}
