package kv

import "testing"

func TestParseArg(t *testing.T) {
	cases := map[string]any{
		"42":    int64(42),
		"-7":    int64(-7),
		"2.5":   2.5,
		"hello": "hello",
		"":      "",
	}
	for in, want := range cases {
		if got := parseArg(in); got != want {
			t.Errorf("parseArg(%q) = %#v, want %#v", in, got, want)
		}
	}
}

func TestFormatCell(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{[]byte{0xca, 0xfe}, "x'cafe'"},
		{int64(3), "3"},
		{"text", "text"},
	}
	for _, c := range cases {
		if got := formatCell(c.in); got != c.want {
			t.Errorf("formatCell(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}
