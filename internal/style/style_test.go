package style

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietResolver(buf *bytes.Buffer) *Resolver {
	return NewResolver(clog.NewWithOptions(buf, clog.Options{}))
}

func TestTableShape(t *testing.T) {
	escape := regexp.MustCompile(`^\x1b\[[0-9;]+m$`)
	lower := regexp.MustCompile(`^[a-z_]+$`)

	names := Names()
	require.Len(t, names, 9+8+8+8+8)
	for _, n := range names {
		seq, ok := Lookup(n)
		require.True(t, ok, n)
		assert.Regexp(t, lower, n)
		assert.Regexp(t, escape, seq, "style %s", n)
	}
}

func TestTableFamilies(t *testing.T) {
	cases := map[string]string{
		"reset":             "\x1b[0m",
		"strikethrough":     "\x1b[9m",
		"red":               "\x1b[31m",
		"bright_white":      "\x1b[97m",
		"cyan_bg":           "\x1b[46m",
		"white_bright_bg":   "\x1b[107m",
		"black_bright_bg":   "\x1b[100m",
		"inverse":           "\x1b[7m",
		"bright_black":      "\x1b[90m",
		"magenta_bright_bg": "\x1b[105m",
	}
	for name, want := range cases {
		got, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := Lookup("BOLD")
	assert.False(t, ok)
}

func TestResolveKnownNames(t *testing.T) {
	var buf bytes.Buffer
	r := quietResolver(&buf)

	requests := [][]string{
		{"bold"},
		{"bold", "red"},
		{"red", "bold"},
		{"underline", "bright_blue", "yellow_bg"},
		{"bold", "bold"},
	}
	for _, req := range requests {
		want := "\x1b[0m"
		for _, n := range req {
			seq, _ := Lookup(n)
			want += seq
		}
		got := r.Resolve(req...)
		assert.Equal(t, want, got, "%v", req)
		assert.True(t, strings.HasPrefix(got, "\x1b[0m"))
	}
	assert.Empty(t, buf.String())
}

func TestResolveEmptyIsReset(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "\x1b[0m", quietResolver(&buf).Resolve())
}

func TestResolveSkipsUnknownNames(t *testing.T) {
	var buf bytes.Buffer
	r := quietResolver(&buf)

	got := r.Resolve("bold", "sparkly", "green", "")
	assert.Equal(t, "\x1b[0m\x1b[1m\x1b[32m", got)

	logged := buf.String()
	assert.Contains(t, logged, "unknown style")
	assert.Contains(t, logged, "sparkly")
}

func TestResolveOnlyUnknown(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "\x1b[0m", quietResolver(&buf).Resolve("nope"))
	assert.NotEmpty(t, buf.String())
}
