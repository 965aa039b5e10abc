package common

import (
	"fmt"
	"strings"
)

// Defaults shared by the library and the command line tool
const (
	DefaultCacheMaxSize      = 2000
	DefaultEvictionBatchSize = 200
	DefaultLogLevel          = "warn"
	DefaultCodec             = "json"
)

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

// StoreConfig holds the parameters used to open a file-backed collection.
type StoreConfig struct {
	// Path of the physical store (empty = temporary file)
	Path string
	// Table name (empty = auto generated)
	Table string

	// Cache parameters
	CacheMaxSize      int
	EvictionBatchSize int
	WriteBackOnRead   bool

	// Whether to remove the physical file when the last container is closed
	DeleteOnClose bool

	// Name of the value codec (json, gob, int, string, raw)
	Codec string

	// Logging configuration, a level spec like "warn,store=debug"
	LogLevel string
}

// DefaultStoreConfig returns a config with the library defaults
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		CacheMaxSize:      DefaultCacheMaxSize,
		EvictionBatchSize: DefaultEvictionBatchSize,
		Codec:             DefaultCodec,
		LogLevel:          DefaultLogLevel,
	}
}

// Validate checks the config for obviously invalid values
func (c *StoreConfig) Validate() error {
	if c.CacheMaxSize < 0 {
		return fmt.Errorf("cache max size must be >= 0, got %d", c.CacheMaxSize)
	}
	if c.EvictionBatchSize < 0 {
		return fmt.Errorf("eviction batch size must be >= 0, got %d", c.EvictionBatchSize)
	}
	if _, err := ParseLogLevels(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *StoreConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	path := c.Path
	if path == "" {
		path = "(temporary)"
	}
	table := c.Table
	if table == "" {
		table = "(auto)"
	}

	addSection("Storage")
	addField("Path", path)
	addField("Table", table)
	addField("Delete On Close", fmt.Sprintf("%t", c.DeleteOnClose))
	addField("Codec", c.Codec)

	addSection("Cache")
	if c.CacheMaxSize == 0 {
		addField("Max Size", "disabled")
	} else {
		addField("Max Size", fmt.Sprintf("%d entries", c.CacheMaxSize))
	}
	addField("Eviction Batch Size", fmt.Sprintf("%d entries", c.EvictionBatchSize))
	addField("Write Back On Read", fmt.Sprintf("%t", c.WriteBackOnRead))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
