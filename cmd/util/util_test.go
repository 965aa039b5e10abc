package util

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d characters: %q", Wrap, line)
		}
	}
	if got := WrapString("  short   text "); got != "short text" {
		t.Errorf("expected %q, got %q", "short text", got)
	}
}

func TestGetCodec(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("codec", "int")
	c, err := GetCodec()
	if err != nil {
		t.Fatalf("int codec: %v", err)
	}
	v, err := c.Decode(int64(42))
	if err != nil || v != int64(42) {
		t.Errorf("expected 42, got %v (%v)", v, err)
	}
	if _, err := c.Encode("not a number"); err == nil {
		t.Error("expected an error when encoding a string with the int codec")
	}

	viper.Set("codec", "json")
	c, err = GetCodec()
	if err != nil {
		t.Fatalf("json codec: %v", err)
	}
	v, err = c.Decode(`{"a":1}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m, ok := v.(map[string]any); !ok || m["a"] != float64(1) {
		t.Errorf("unexpected decoded value %#v", v)
	}

	viper.Set("codec", "yaml")
	if _, err := GetCodec(); err == nil {
		t.Error("expected an error for an unknown codec")
	}
}

func TestGetStoreConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("cache-max-size", 10)
	viper.Set("eviction-batch-size", 2)
	viper.Set("log-level", "info")
	conf, err := GetStoreConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if conf.CacheMaxSize != 10 || conf.EvictionBatchSize != 2 {
		t.Errorf("unexpected cache parameters %d/%d", conf.CacheMaxSize, conf.EvictionBatchSize)
	}

	viper.Set("cache-max-size", -1)
	if _, err := GetStoreConfig(); err == nil {
		t.Error("expected an error for a negative cache size")
	}
}
