// Package markup rewrites the markdown-flavored text a model replies with
// into ANSI-styled terminal text using a fixed, ordered table of patterns.
//
// Rendering runs in two passes. The first wraps every link-like run. The
// second applies the block and inline rules in priority order: fenced code,
// bold-italic, bold, italic, heading, blockquote (quote-aware set only), list
// item, strikethrough, inline code. There is no syntax tree; every rule is a
// single regular expression over the whole text.
package markup

import (
	"fmt"
	"strings"

	"github.com/gemterm/gemterm/internal/style"
)

// Substitution selects how a matched construct is put back into the text.
type Substitution int

const (
	// Span replaces each match at its own offsets in one forward pass.
	// Links and fenced code become protected spans that later rules may
	// wrap but never cut into.
	Span Substitution = iota
	// Literal replaces every occurrence of the matched literal anywhere in
	// the text, so identical decorated phrases are rewritten together even
	// where the pattern did not match (inside code, for instance).
	Literal
)

func (s Substitution) String() string {
	switch s {
	case Span:
		return "span"
	case Literal:
		return "literal"
	}
	return fmt.Sprintf("Substitution(%d)", int(s))
}

// ParseSubstitution maps a configuration value to a Substitution.
func ParseSubstitution(s string) (Substitution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "span":
		return Span, nil
	case "literal":
		return Literal, nil
	}
	return 0, fmt.Errorf("unknown substitution %q (want span or literal)", s)
}

type options struct {
	set      RuleSet
	subst    Substitution
	body     []string
	resolver *style.Resolver
}

// Option configures a Transformer.
type Option func(*options)

// WithRuleSet selects the rule list. The default is QuoteAware.
func WithRuleSet(set RuleSet) Option {
	return func(o *options) { o.set = set }
}

// WithSubstitution selects the replacement strategy. The default is Span.
func WithSubstitution(s Substitution) Option {
	return func(o *options) { o.subst = s }
}

// WithBody sets the style restored after every styled span. Span prefixes
// are built on top of it.
func WithBody(names ...string) Option {
	return func(o *options) { o.body = append([]string(nil), names...) }
}

// WithResolver sets the resolver used to build escape sequences.
func WithResolver(r *style.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// Transformer applies the rewrite rules. It holds no mutable state after New
// returns and may be shared between goroutines.
type Transformer struct {
	link  *Rule
	rules []*Rule
	subst Substitution
}

// New resolves every rule's prefix and suffix once and returns a ready
// Transformer.
func New(opts ...Option) *Transformer {
	o := options{set: QuoteAware, subst: Span}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = style.NewResolver(nil)
	}

	suffix := o.resolver.Resolve(o.body...)
	build := func(spec ruleSpec) *Rule {
		if spec.glyph != "" {
			return newRule(spec, "", "")
		}
		req := append(append([]string(nil), o.body...), spec.styles...)
		return newRule(spec, o.resolver.Resolve(req...), suffix)
	}

	t := &Transformer{link: build(linkSpec), subst: o.subst}
	for _, spec := range specs(o.set) {
		t.rules = append(t.rules, build(spec))
	}
	return t
}

// Rules returns the pass-two rule names in application order.
func (t *Transformer) Rules() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.Name
	}
	return names
}

// Render returns text with every recognised construct replaced by its styled
// form.
func (t *Transformer) Render(text string) string {
	if t.subst == Literal {
		text = replaceLiteral(text, t.link)
		for _, r := range t.rules {
			text = replaceLiteral(text, r)
		}
		return text
	}

	var protected []span
	text, protected = replaceSpans(text, t.link, protected)
	for _, r := range t.rules {
		text, protected = replaceSpans(text, r, protected)
	}
	return text
}

type edit struct {
	old       span
	content   span
	start     int
	size      int
	contentAt int
}

// replaceSpans applies r once across text, left to right, and returns the
// protected spans translated into the new text's offsets.
func replaceSpans(text string, r *Rule, protected []span) (string, []span) {
	matches := r.find(text)
	if len(matches) == 0 {
		return text, protected
	}

	var (
		sb      strings.Builder
		edits   []edit
		created []span
		last    int
	)
	sb.Grow(len(text) + len(matches)*(len(r.prefix)+len(r.suffix)))
	for _, m := range matches {
		if r.blocked(m, protected) {
			continue
		}
		if r.styled(text, m) {
			protected = append(protected, m.full)
			continue
		}
		sb.WriteString(text[last:m.full.start])
		start := sb.Len()
		out, at := r.rewrite(text, m)
		sb.WriteString(out)
		edits = append(edits, edit{old: m.full, content: m.content, start: start, size: len(out), contentAt: at})
		if r.protect {
			created = append(created, span{start, start + len(out)})
		}
		last = m.full.end
	}
	if len(edits) == 0 {
		return text, protected
	}
	sb.WriteString(text[last:])

	moved := make([]span, 0, len(protected)+len(created))
	for _, p := range protected {
		moved = append(moved, shift(p, edits))
	}
	return sb.String(), append(moved, created...)
}

// shift maps p from the old text into the new one. p is either disjoint from
// every edit or inside one edit's content.
func shift(p span, edits []edit) span {
	delta := 0
	for _, e := range edits {
		if e.old.end <= p.start {
			delta += e.size - (e.old.end - e.old.start)
			continue
		}
		if e.contentAt >= 0 && e.content.contains(p) {
			base := e.start + e.contentAt - e.content.start
			return span{p.start + base, p.end + base}
		}
		break
	}
	return span{p.start + delta, p.end + delta}
}

// replaceLiteral finds every match of r and then substitutes each matched
// literal globally, in match order.
func replaceLiteral(text string, r *Rule) string {
	matches := r.find(text)
	type pair struct{ from, to string }
	pairs := make([]pair, 0, len(matches))
	for _, m := range matches {
		out, _ := r.rewrite(text, m)
		pairs = append(pairs, pair{text[m.full.start:m.full.end], out})
	}
	for _, p := range pairs {
		text = strings.ReplaceAll(text, p.from, p.to)
	}
	return text
}
