package pattern

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Rule is a source pattern compiled into an anchored regular expression.
// Rules are built once at startup and shared read-only afterwards.
type Rule struct {
	Source string
	re     *regexp.Regexp
}

// Captures holds the submatches of a successful Rule match. Index 0 is the
// full match; Named carries (?P<name>...) groups when the source used
// :param syntax.
type Captures struct {
	Groups []string
	Named  map[string]string
}

// Compile translates a serve-style source pattern into a Rule. The pattern
// language accepts glob wildcards (*, **, ?), extension alternation
// @(a|b|c), brace sets {a,b}, raw regex capture groups like /api/(.*), and
// named parameters such as /users/:id.
func Compile(source string) (*Rule, error) {
	expr, err := toRegexp(slasher(source))
	if err != nil {
		return nil, errors.Wrapf(err, "pattern %q", source)
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "pattern %q", source)
	}

	return &Rule{Source: source, re: re}, nil
}

// MustCompile is Compile for patterns known at build time.
func MustCompile(source string) *Rule {
	rule, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return rule
}

// Match tests path against the rule and returns its captures.
func (r *Rule) Match(path string) (Captures, bool) {
	groups := r.re.FindStringSubmatch(path)
	if groups == nil {
		return Captures{}, false
	}

	caps := Captures{Groups: groups}
	for idx, name := range r.re.SubexpNames() {
		if name == "" || idx >= len(groups) {
			continue
		}
		if caps.Named == nil {
			caps.Named = map[string]string{}
		}
		caps.Named[name] = groups[idx]
	}

	return caps, true
}

// MatchString reports whether path matches without collecting captures.
func (r *Rule) MatchString(path string) bool {
	return r.re.MatchString(path)
}

// Regexp exposes the compiled expression, mainly for tests.
func (r *Rule) Regexp() string {
	return r.re.String()
}

var (
	numberedRef = regexp.MustCompile(`\$\{(\d)\}|\$(\d)`)
	namedRef    = regexp.MustCompile(`:([A-Za-z0-9_]+)`)
)

// Expand interpolates a destination template with the captures of a match.
// $1..$9 and ${1}..${9} reference numbered groups ($0 is the full match);
// an unbound group substitutes empty. :name references substitute named
// captures and are left untouched when the name was not captured.
func Expand(destination string, caps Captures) string {
	out := namedRef.ReplaceAllStringFunc(destination, func(ref string) string {
		name := ref[1:]
		if value, ok := caps.Named[name]; ok {
			return value
		}
		return ref
	})

	return numberedRef.ReplaceAllStringFunc(out, func(ref string) string {
		digits := strings.TrimFunc(ref, func(r rune) bool {
			return r < '0' || r > '9'
		})
		n, _ := strconv.Atoi(digits)
		if n >= len(caps.Groups) {
			return ""
		}
		return caps.Groups[n]
	})
}

// slasher normalizes a source to start at the URL root; negated sources
// keep their leading bang.
func slasher(source string) string {
	if source == "" || source == "**" {
		return source
	}
	if strings.HasPrefix(source, "!") {
		return "!" + slasher(source[1:])
	}
	if !strings.HasPrefix(source, "/") {
		return "/" + source
	}
	return source
}

// toRegexp is the pattern translation table. Every branch yields an
// expression anchored with ^...$.
func toRegexp(pattern string) (string, error) {
	if strings.Contains(pattern, "{") && strings.Contains(pattern, ",") {
		pattern = expandBraces(pattern)
	}

	if strings.Contains(pattern, ":") {
		return namedParamsToRegexp(pattern)
	}

	if !strings.ContainsAny(pattern, "*?([@") {
		return "^" + regexp.QuoteMeta(pattern) + "$", nil
	}

	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && !strings.ContainsAny(prefix, "*?([@") {
		return "^" + regexp.QuoteMeta(prefix) + "/.*$", nil
	}

	if pattern == "**" || pattern == "/**" {
		return "^.*$", nil
	}

	// Raw regex sources such as /api/(.*) or /user/(\d+) are already valid
	// expressions; they only need anchoring.
	if strings.Contains(pattern, "(.*") ||
		(strings.Contains(pattern, "(") && strings.Contains(pattern, `\`)) {
		cleaned := strings.TrimSuffix(strings.TrimPrefix(pattern, "^"), "$")
		return "^" + cleaned + "$", nil
	}

	return globToRegexp(pattern), nil
}

func globToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteByte('^')

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch ch {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				i++
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
					if sb.String() == "^" {
						// ** at the start matches zero or more leading
						// segments: **/users matches /users and /api/users.
						sb.WriteString("(?:.*/)?")
					} else {
						sb.WriteString("(?:.+/)?")
					}
				} else {
					sb.WriteString(".*")
				}
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		case '@':
			if i+1 < len(runes) && runes[i+1] == '(' {
				i++
				sb.WriteString("(?:")
			} else {
				sb.WriteRune(ch)
			}
		case '(', ')', '|':
			// Alternation produced by brace expansion or @() groups.
			sb.WriteRune(ch)
		case '.', '+', '[', ']', '{', '}', '^', '$', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(ch)
		default:
			sb.WriteRune(ch)
		}
	}

	sb.WriteByte('$')
	return sb.String()
}

// expandBraces rewrites {jpg,png,gif} sets into (jpg|png|gif) alternation.
// Sets containing ':' are optional named-parameter groups and are kept.
func expandBraces(pattern string) string {
	var sb strings.Builder
	runes := []rune(pattern)

	for i := 0; i < len(runes); i++ {
		if runes[i] != '{' {
			sb.WriteRune(runes[i])
			continue
		}

		depth := 1
		var body strings.Builder
		j := i + 1
		for ; j < len(runes) && depth > 0; j++ {
			switch runes[j] {
			case '{':
				depth++
				body.WriteRune(runes[j])
			case '}':
				depth--
				if depth > 0 {
					body.WriteRune(runes[j])
				}
			default:
				body.WriteRune(runes[j])
			}
		}

		content := body.String()
		if strings.Contains(content, ",") && !strings.Contains(content, ":") {
			sb.WriteByte('(')
			sb.WriteString(strings.Join(strings.Split(content, ","), "|"))
			sb.WriteByte(')')
		} else {
			sb.WriteByte('{')
			sb.WriteString(content)
			sb.WriteByte('}')
		}
		i = j - 1
	}

	return sb.String()
}

// namedParamsToRegexp handles /users/:id style sources, including optional
// groups such as /users{/:id}/delete.
func namedParamsToRegexp(pattern string) (string, error) {
	var sb strings.Builder
	sb.WriteByte('^')

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch ch {
		case ':':
			var name strings.Builder
			for i+1 < len(runes) && isParamRune(runes[i+1]) {
				i++
				name.WriteRune(runes[i])
			}
			if name.Len() == 0 {
				return "", errors.New("missing parameter name after ':'")
			}
			sb.WriteString("(?P<" + name.String() + ">[^/]+)")
		case '{':
			sb.WriteString("(?:")
		case '}':
			sb.WriteString(")?")
		case '.', '+', '(', ')', '|', '[', ']', '^', '$', '\\', '*', '?':
			sb.WriteByte('\\')
			sb.WriteRune(ch)
		default:
			sb.WriteRune(ch)
		}
	}

	sb.WriteByte('$')
	return sb.String(), nil
}

func isParamRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
