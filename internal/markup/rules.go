package markup

import (
	"fmt"
	"regexp"
	"strings"
)

// RuleSet selects which fixed list of rewrite rules a Transformer loads.
type RuleSet int

const (
	// Plain has no blockquote rule and matches inline code anywhere.
	Plain RuleSet = iota
	// QuoteAware adds the blockquote rule and only opens inline code after
	// whitespace, an opening bracket or a line start.
	QuoteAware
)

func (s RuleSet) String() string {
	switch s {
	case Plain:
		return "plain"
	case QuoteAware:
		return "quote"
	}
	return fmt.Sprintf("RuleSet(%d)", int(s))
}

// ParseRuleSet maps a configuration value to a RuleSet.
func ParseRuleSet(s string) (RuleSet, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quote", "quote-aware", "quote_aware":
		return QuoteAware, nil
	case "plain":
		return Plain, nil
	}
	return 0, fmt.Errorf("unknown rule set %q (want plain or quote)", s)
}

// Patterns are compiled once; named groups:
//
//	content  the span that is kept and re-wrapped
//	lead     text before the construct that must survive the rewrite
//	trail    text after the construct that must survive the rewrite
var (
	reLink       = regexp.MustCompile("(?:https?://|www\\.)[^\\s`*\\x1b]+")
	reCodeBlock  = regexp.MustCompile("(?s)```(?:[\\w+.-]*\\n)?(?P<content>.*?)```")
	reBoldItalic = regexp.MustCompile(`\*\*\*(?P<content>[^*\n]+?)\*\*\*`)
	reBold       = regexp.MustCompile(`\*\*(?P<content>(?:[^*\n]|\*[^*\n])+?)\*\*`)
	reItalic     = regexp.MustCompile(`\*(?P<content>[^\s*](?:[^*\n]*?[^\s*])?)\*`)
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(?P<content>[^\n]+?)[ \t]*(?P<trail>\r?)$`)
	reQuote      = regexp.MustCompile(`(?m)^>[ \t]?(?P<content>[^\n]*)$`)
	reListItem   = regexp.MustCompile(`(?m)^(?P<lead>[ \t]*)\*(?P<trail>[ \t]+)`)
	reStrike     = regexp.MustCompile(`~~(?P<content>[^~\n]+?)~~`)
	reInlineCode = regexp.MustCompile("`(?P<content>[^`\\n]+)`")
	reBoundCode  = regexp.MustCompile("(?m)(?:^|(?P<lead>[\\s(\\[{\"']|\\x1b\\[[0-9;]*m))`(?P<content>[^`\\n]+)`")
)

// Bullet replaces the "* " list marker.
const Bullet = "•"

// Styles applied by the built-in rules.
var (
	LinkStyle       = []string{"underline", "bright_blue"}
	CodeBlockStyle  = []string{"bright_green"}
	BoldItalicStyle = []string{"bold", "italic"}
	BoldStyle       = []string{"bold"}
	ItalicStyle     = []string{"italic"}
	HeadingStyle    = []string{"bold", "underline", "bright_cyan"}
	QuoteStyle      = []string{"dim", "italic"}
	StrikeStyle     = []string{"strikethrough"}
	InlineCodeStyle = []string{"bright_yellow"}
)

type ruleSpec struct {
	name    string
	re      *regexp.Regexp
	styles  []string
	glyph   string
	protect bool
}

var linkSpec = ruleSpec{name: "link", re: reLink, styles: LinkStyle, protect: true}

// specs returns pass-two rules for set, highest priority first.
func specs(set RuleSet) []ruleSpec {
	out := []ruleSpec{
		{name: "code_block", re: reCodeBlock, styles: CodeBlockStyle, protect: true},
		{name: "bold_italic", re: reBoldItalic, styles: BoldItalicStyle},
		{name: "bold", re: reBold, styles: BoldStyle},
		{name: "italic", re: reItalic, styles: ItalicStyle},
		{name: "heading", re: reHeading, styles: HeadingStyle},
	}
	if set == QuoteAware {
		out = append(out, ruleSpec{name: "blockquote", re: reQuote, styles: QuoteStyle})
	}
	out = append(out,
		ruleSpec{name: "list_item", re: reListItem, glyph: Bullet},
		ruleSpec{name: "strikethrough", re: reStrike, styles: StrikeStyle},
	)
	if set == QuoteAware {
		out = append(out, ruleSpec{name: "inline_code", re: reBoundCode, styles: InlineCodeStyle})
	} else {
		out = append(out, ruleSpec{name: "inline_code", re: reInlineCode, styles: InlineCodeStyle})
	}
	return out
}

// Rule is one compiled rewrite rule with its resolved escape sequences.
type Rule struct {
	Name    string
	re      *regexp.Regexp
	prefix  string
	suffix  string
	glyph   string
	protect bool

	content, lead, trail int
}

func newRule(spec ruleSpec, prefix, suffix string) *Rule {
	return &Rule{
		Name:    spec.name,
		re:      spec.re,
		prefix:  prefix,
		suffix:  suffix,
		glyph:   spec.glyph,
		protect: spec.protect,
		content: spec.re.SubexpIndex("content"),
		lead:    spec.re.SubexpIndex("lead"),
		trail:   spec.re.SubexpIndex("trail"),
	}
}

type span struct{ start, end int }

func (s span) contains(o span) bool { return s.start <= o.start && o.end <= s.end }

func (s span) overlaps(o span) bool { return s.start < o.end && o.start < s.end }

type match struct {
	full    span
	content span
	lead    string
	trail   string
}

func group(loc []int, i int) (span, bool) {
	if i < 0 || loc[2*i] < 0 {
		return span{}, false
	}
	return span{loc[2*i], loc[2*i+1]}, true
}

// find returns every non-overlapping match of r in text, left to right.
func (r *Rule) find(text string) []match {
	locs := r.re.FindAllStringSubmatchIndex(text, -1)
	out := make([]match, 0, len(locs))
	for _, loc := range locs {
		m := match{full: span{loc[0], loc[1]}}
		if c, ok := group(loc, r.content); ok {
			m.content = c
		} else {
			m.content = m.full
		}
		if l, ok := group(loc, r.lead); ok {
			m.lead = text[l.start:l.end]
		}
		if t, ok := group(loc, r.trail); ok {
			m.trail = text[t.start:t.end]
		}
		out = append(out, m)
	}
	return out
}

// rewrite builds the replacement for m and reports where the content starts
// inside it, or -1 when the content is not carried over.
func (r *Rule) rewrite(text string, m match) (string, int) {
	if r.glyph != "" {
		return m.lead + r.glyph + m.trail, -1
	}
	body := text[m.content.start:m.content.end]
	return m.lead + r.prefix + body + r.suffix + m.trail, len(m.lead) + len(r.prefix)
}

// styled reports whether a protected match already sits right after this
// rule's prefix, as it does when rendered text is fed back in. Such a match
// is kept as is and stays protected.
func (r *Rule) styled(text string, m match) bool {
	return r.protect && r.prefix != "" && strings.HasSuffix(text[:m.full.start], r.prefix)
}

// blocked reports whether m would cut into a protected span. Protected spans
// entirely inside the content group are carried along instead.
func (r *Rule) blocked(m match, protected []span) bool {
	for _, p := range protected {
		if !m.full.overlaps(p) {
			continue
		}
		if r.glyph == "" && m.content.contains(p) {
			continue
		}
		return true
	}
	return false
}
