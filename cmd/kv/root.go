package kv

import (
	"fmt"

	"github.com/ValentinKolb/fbkv/cmd/util"
	"github.com/ValentinKolb/fbkv/lib/common"
	"github.com/ValentinKolb/fbkv/lib/db/engines/sqlite"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var (
	plog = logger.GetLogger(common.LoggerCLI)

	registry = sqlite.NewRegistry()
	conn     *sqlite.Conn

	// KeyValueCommands represents the command group inspecting a physical store
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Inspect the tables of a physical store",
		Long:               "Inspect the tables of a physical store. Queries run inside a transaction that is rolled back, the store is never modified.",
		PersistentPreRunE:  openStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(tablesCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(countCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(queryCmd)
}

// openStore acquires the physical store named by --path
func openStore(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	config, err := util.GetStoreConfig()
	if err != nil {
		return err
	}
	if config.Path == "" {
		return fmt.Errorf("--path is required to inspect a store")
	}

	conn, err = registry.Acquire(config.Path, config.DeleteOnClose)
	if err != nil {
		return err
	}
	plog.Debugf("inspecting %s", conn.Path())
	return nil
}

func closeStore(_ *cobra.Command, _ []string) error {
	if conn == nil {
		return nil
	}
	return registry.Release(conn)
}
