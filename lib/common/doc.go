// Package common contains the logging setup and the configuration structs
// shared by the library packages and the fbkv command line tool.
//
// Logging uses the ILogger interface of github.com/lni/dragonboat/v4/logger.
// Every package obtains its logger once via logger.GetLogger(name); calling
// InitLoggers replaces the logger factory with a custom line format
// ("LEVEL | module | message") and applies a level spec: a default level
// with optional per module overrides, e.g. "warn,store=debug".
package common
