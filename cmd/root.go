package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/fbkv/cmd/kv"
	"github.com/ValentinKolb/fbkv/cmd/perf"
	"github.com/ValentinKolb/fbkv/cmd/util"
	"github.com/ValentinKolb/fbkv/lib/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "fbkv",
		Short: "file-backed key-value collections",
		Long: fmt.Sprintf(`fbkv (v%s)

Inspect and benchmark file-backed collections: SQLite backed dicts and lists
with an in-memory LRU cache. Every flag can also be set via environment
variables in the format FBKV_<flag> (e.g. FBKV_CACHE_MAX_SIZE=500) or a .env file.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: initLogging,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fbkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fbkv v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// run the persistent hooks of all parents, logging is set up here
	cobra.EnableTraverseRunHooks = true

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "codec"
	RootCmd.PersistentFlags().String(key, common.DefaultCodec, util.WrapString("codec of the stored values (json, string, int, raw)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, common.DefaultLogLevel, util.WrapString("level at which logs are written to stderr (debug, info, warn, error), optionally per logger: warn,store=debug,db/sqlite=info"))
}

// initLogging installs the loggers before any command runs
func initLogging(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
