package kv

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/fbkv/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	tablesCmd = &cobra.Command{
		Use:   "tables",
		Short: "Lists the tables of the store with their row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := conn.Tables()
			if err != nil {
				return err
			}
			for _, name := range names {
				table, err := conn.OpenTable(name)
				if err != nil {
					// tables not created by fbkv are listed without details
					fmt.Printf("%-40s (foreign)\n", name)
					continue
				}
				n, err := table.Count()
				if err != nil {
					return err
				}
				cols := make([]string, 0, len(table.Columns()))
				for _, col := range table.Columns() {
					cols = append(cols, col.Name+" "+col.Affinity.String())
				}
				fmt.Printf("%-40s %10d rows  [%s]\n", name, n, strings.Join(cols, ", "))
			}
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [table]",
		Short: "Lists the keys of a table in insertion order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := conn.OpenTable(args[0])
			if err != nil {
				return err
			}
			limit := viper.GetInt("limit")
			printed := 0
			return table.RangeKeys(func(key string) bool {
				fmt.Println(key)
				printed++
				return limit <= 0 || printed < limit
			})
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [table] [key]",
		Short: "Reads and decodes the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := util.GetCodec()
			if err != nil {
				return err
			}
			table, err := conn.OpenTable(args[0])
			if err != nil {
				return err
			}
			stored, found, err := table.Get(args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found in %s", args[1], args[0])
			}
			value, err := c.Decode(stored)
			if err != nil {
				return fmt.Errorf("decode %s/%s: %w", args[0], args[1], err)
			}
			return printValue(value)
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [table]",
		Short: "Prints the number of rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := conn.OpenTable(args[0])
			if err != nil {
				return err
			}
			n, err := table.Count()
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info [table]",
		Short: "Prints metadata of a table as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := conn.OpenTable(args[0])
			if err != nil {
				return err
			}
			return printValue(table.GetInfo())
		},
	}
	queryCmd = &cobra.Command{
		Use:   "query [sql] [args...]",
		Short: "Runs a read-only SQL query and prints the rows tab separated",
		Long:  "Runs a read-only SQL query. Every table of the store can be referenced by name. Numeric arguments are bound as numbers, all others as text.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]any, len(args)-1)
			for i, arg := range args[1:] {
				params[i] = parseArg(arg)
			}
			return conn.QueryFunc(func(row []any) bool {
				cells := make([]string, len(row))
				for i, v := range row {
					cells[i] = formatCell(v)
				}
				fmt.Println(strings.Join(cells, "\t"))
				return true
			}, args[0], params...)
		},
	}
)

func init() {
	keysCmd.Flags().Int("limit", 0, util.WrapString("Maximum number of keys to print (0 = all)"))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseArg binds numeric arguments as numbers
func parseArg(arg string) any {
	if i, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f
	}
	return arg
}

func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", c)
	default:
		return fmt.Sprint(c)
	}
}

// printValue prints v as indented JSON, or as is if that fails
func printValue(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(formatCell(v))
		return nil
	}
	fmt.Println(string(b))
	return nil
}
