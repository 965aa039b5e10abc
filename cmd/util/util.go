package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/fbkv/lib/codec"
	"github.com/ValentinKolb/fbkv/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the flags describing a physical store and its cache
func SetupStoreFlags(cmd *cobra.Command) {
	key := "path"
	cmd.PersistentFlags().String(key, "", WrapString("Path of the physical store file (empty = temporary file, removed on exit)"))

	key = "table"
	cmd.PersistentFlags().String(key, "", WrapString("Name of the table (empty = generated)"))

	key = "cache-max-size"
	cmd.PersistentFlags().Int(key, common.DefaultCacheMaxSize, WrapString("Number of values kept in memory, 0 disables the cache"))

	key = "eviction-batch-size"
	cmd.PersistentFlags().Int(key, common.DefaultEvictionBatchSize, WrapString("Number of least recently used values evicted at once"))

	key = "write-back-on-read"
	cmd.PersistentFlags().Bool(key, false, WrapString("Persist values on every read, also if they did not change"))

	key = "delete-on-close"
	cmd.PersistentFlags().Bool(key, false, WrapString("Remove the store file when the command exits"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("fbkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() (*common.StoreConfig, error) {
	conf := &common.StoreConfig{
		Path:              viper.GetString("path"),
		Table:             viper.GetString("table"),
		CacheMaxSize:      viper.GetInt("cache-max-size"),
		EvictionBatchSize: viper.GetInt("eviction-batch-size"),
		WriteBackOnRead:   viper.GetBool("write-back-on-read"),
		DeleteOnClose:     viper.GetBool("delete-on-close"),
		Codec:             viper.GetString("codec"),
		LogLevel:          viper.GetString("log-level"),
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// GetCodec creates the codec used to display stored values
func GetCodec() (codec.Codec[any], error) {
	switch viper.GetString("codec") {
	case "json":
		return codec.NewJSONCodec[any](), nil
	case "string":
		s := codec.NewStringCodec()
		return codec.Funcs(
			func(v any) (any, error) { return s.Encode(fmt.Sprint(v)) },
			func(stored any) (any, error) { return s.Decode(stored) },
		), nil
	case "int":
		i := codec.NewInt64Codec()
		return codec.Funcs(
			func(v any) (any, error) {
				n, ok := v.(int64)
				if !ok {
					return nil, fmt.Errorf("expected int64, got %T", v)
				}
				return i.Encode(n)
			},
			func(stored any) (any, error) { return i.Decode(stored) },
		), nil
	case "raw":
		return codec.NewRawCodec(), nil
	default:
		return nil, fmt.Errorf("invalid codec %s (json, string, int, raw)", viper.GetString("codec"))
	}
}
