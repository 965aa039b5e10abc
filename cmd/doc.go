// Package cmd implements the command-line interface of fbkv. It provides
// tooling around physical stores written by the store package.
//
// The package is organized into several subpackages:
//
//   - kv: Read-only inspection of a store (tables, keys, get, count, info, query)
//   - perf: Benchmarks of a Dict with configurable cache parameters
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See fbkv -help for a list of all commands.
package cmd
