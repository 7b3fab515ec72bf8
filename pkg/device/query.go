package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// A query is a whitespace separated list of terms such as
//
//	vid=0483 pid=374b serial~066F id^1a2b type=stlink-v2-1
//
// "=" requires the whole value to match, "~" tests for a substring and "^"
// for a prefix.
type query struct {
	Terms []*queryTerm `parser:"@@*"`
}

type queryTerm struct {
	Pos   lexer.Position
	Key   string `parser:"@Word"`
	Op    string `parser:"@Op"`
	Value string `parser:"@(Word | String)"`
}

var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\"|[^"])*"`},
	{Name: "Op", Pattern: `[=~^]`},
	{Name: "Word", Pattern: `[A-Za-z0-9_][A-Za-z0-9_\-.:/]*`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var queryParser = participle.MustBuild[query](
	participle.Lexer(queryLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)

// ParseQuery parses a filter expression into a Filter.
func ParseQuery(s string) (Filter, error) {
	var f Filter
	if strings.TrimSpace(s) == "" {
		return f, nil
	}

	q, err := queryParser.ParseString("", s)
	if err != nil {
		return f, fmt.Errorf("device: invalid match expression: %w", err)
	}

	for _, t := range q.Terms {
		if err := f.apply(t); err != nil {
			return Filter{}, fmt.Errorf("device: %s: %w", t.Pos, err)
		}
	}
	return f, nil
}

func (f *Filter) apply(t *queryTerm) error {
	switch strings.ToLower(t.Key) {
	case "vid", "vendor":
		if t.Op != "=" {
			return fmt.Errorf("%s only supports '='", t.Key)
		}
		v, err := parseHex16(t.Value)
		if err != nil {
			return err
		}
		f.VendorID = v
	case "pid", "product":
		if t.Op != "=" {
			return fmt.Errorf("%s only supports '='", t.Key)
		}
		v, err := parseHex16(t.Value)
		if err != nil {
			return err
		}
		f.ProductID = v
	case "serial", "sn":
		if t.Op == "^" {
			return fmt.Errorf("serial supports '=' or '~'")
		}
		if t.Op == "=" {
			f.SerialEquals = t.Value
		} else {
			f.Serial = t.Value
		}
	case "id":
		if t.Op == "~" {
			return fmt.Errorf("id supports '=' or '^'")
		}
		if t.Op == "=" {
			f.IDEquals = strings.ToLower(t.Value)
		} else {
			f.IDPrefix = strings.ToLower(t.Value)
		}
	case "type":
		if t.Op != "=" {
			return fmt.Errorf("type only supports '='")
		}
		f.Type = Type(t.Value)
	default:
		return fmt.Errorf("unknown key %q", t.Key)
	}
	return nil
}

func parseHex16(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid 16-bit hex value %q", s)
	}
	return uint16(v), nil
}

// ParseID parses a hexadecimal USB vendor or product identifier.
func ParseID(s string) (uint16, error) {
	return parseHex16(s)
}
