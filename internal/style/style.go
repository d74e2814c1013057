// Package style maps symbolic style names to ANSI SGR escape sequences.
package style

import (
	"sort"
	"strings"

	clog "github.com/charmbracelet/log"

	"github.com/gemterm/gemterm/internal/system"
)

// Reset is the name of the style that clears all attributes.
const Reset = "reset"

// table is built once and never written afterwards.
var table = map[string]string{
	"reset":         "\033[0m",
	"bold":          "\033[1m",
	"dim":           "\033[2m",
	"italic":        "\033[3m",
	"underline":     "\033[4m",
	"blink":         "\033[5m",
	"inverse":       "\033[7m",
	"hide":          "\033[8m",
	"strikethrough": "\033[9m",

	"black":   "\033[30m",
	"red":     "\033[31m",
	"green":   "\033[32m",
	"yellow":  "\033[33m",
	"blue":    "\033[34m",
	"magenta": "\033[35m",
	"cyan":    "\033[36m",
	"white":   "\033[37m",

	"bright_black":   "\033[90m",
	"bright_red":     "\033[91m",
	"bright_green":   "\033[92m",
	"bright_yellow":  "\033[93m",
	"bright_blue":    "\033[94m",
	"bright_magenta": "\033[95m",
	"bright_cyan":    "\033[96m",
	"bright_white":   "\033[97m",

	"black_bg":   "\033[40m",
	"red_bg":     "\033[41m",
	"green_bg":   "\033[42m",
	"yellow_bg":  "\033[43m",
	"blue_bg":    "\033[44m",
	"magenta_bg": "\033[45m",
	"cyan_bg":    "\033[46m",
	"white_bg":   "\033[47m",

	"black_bright_bg":   "\033[100m",
	"red_bright_bg":     "\033[101m",
	"green_bright_bg":   "\033[102m",
	"yellow_bright_bg":  "\033[103m",
	"blue_bright_bg":    "\033[104m",
	"magenta_bright_bg": "\033[105m",
	"cyan_bright_bg":    "\033[106m",
	"white_bright_bg":   "\033[107m",
}

// Lookup returns the escape sequence for name.
func Lookup(name string) (string, bool) {
	seq, ok := table[name]
	return seq, ok
}

// Names returns every known style name in sorted order.
func Names() []string {
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolver turns style requests into escape sequences, reporting unknown
// names to its logger.
type Resolver struct {
	log *clog.Logger
}

// NewResolver returns a Resolver that reports to l. A nil logger falls back
// to the shared application logger.
func NewResolver(l *clog.Logger) *Resolver {
	if l == nil {
		l = system.Logger
	}
	return &Resolver{log: l}
}

// Resolve returns the reset sequence followed by the sequence of every known
// name, in order. Unknown names are logged and skipped; the call never fails.
func (r *Resolver) Resolve(names ...string) string {
	var sb strings.Builder
	sb.WriteString(table[Reset])
	for _, n := range names {
		seq, ok := table[n]
		if !ok {
			r.log.Warn("unknown style", "name", n)
			continue
		}
		sb.WriteString(seq)
	}
	return sb.String()
}

var defaultResolver = NewResolver(nil)

// Resolve resolves names with the shared logger.
func Resolve(names ...string) string {
	return defaultResolver.Resolve(names...)
}
