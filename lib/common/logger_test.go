package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLogLevels(t *testing.T) {
	tests := []struct {
		spec    string
		def     logger.LogLevel
		modules map[string]logger.LogLevel
	}{
		{"", logger.WARNING, nil},
		{"debug", logger.DEBUG, nil},
		{"INFO", logger.INFO, nil},
		{"error,store=debug", logger.ERROR, map[string]logger.LogLevel{LoggerStore: logger.DEBUG}},
		{" store=info , warn , db/sqlite=error", logger.WARNING,
			map[string]logger.LogLevel{LoggerStore: logger.INFO, LoggerSQLite: logger.ERROR}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			levels, err := ParseLogLevels(tt.spec)
			if err != nil {
				t.Fatalf("ParseLogLevels failed: %v", err)
			}
			if levels.Default != tt.def {
				t.Errorf("Expected default %v, got %v", tt.def, levels.Default)
			}
			for _, module := range modules {
				want, ok := tt.modules[module]
				if !ok {
					want = tt.def
				}
				if got := levels.Of(module); got != want {
					t.Errorf("Expected level %v for %s, got %v", want, module, got)
				}
			}
		})
	}

	for _, spec := range []string{"loud", "store=loud", "raft=debug", "store="} {
		if _, err := ParseLogLevels(spec); err == nil {
			t.Errorf("Expected an error for spec %q", spec)
		}
	}
}

func TestModuleLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newModuleLogger(LoggerStore, &buf, logger.INFO)

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Warningf("shown %d", 3)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "INFO  | store      | shown 2") {
		t.Errorf("Unexpected line format %q", lines[0])
	}

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Warningf("hidden")
	l.Errorf("failed")
	if !strings.Contains(buf.String(), "ERROR | store      | failed") || strings.Contains(buf.String(), "hidden") {
		t.Errorf("Unexpected output after SetLevel: %q", buf.String())
	}

	defer func() {
		if r := recover(); r != "boom 7" {
			t.Errorf("Expected Panicf to panic with its message, got %v", r)
		}
	}()
	l.Panicf("boom %d", 7)
}

func TestInitLoggersTwice(t *testing.T) {
	if err := InitLoggers("warn"); err != nil {
		t.Fatalf("InitLoggers failed: %v", err)
	}
	if err := InitLoggers("error,cli=debug"); err != nil {
		t.Fatalf("InitLoggers failed on the second call: %v", err)
	}
	if err := InitLoggers("store=nope"); err == nil {
		t.Error("Expected an error for an invalid spec")
	}
}
