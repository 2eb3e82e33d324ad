package sqlquote

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/dvaldb/internal/dval"
)

// DateLayout is the date/time literal format of the store.
// Parsing accepts an optional fractional second.
const DateLayout = "2006-01-02 15:04:05"

const dateLayoutFrac = "2006-01-02 15:04:05.999999"

// QuoteIdent quotes a column or table identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteTableName quotes a physical table name.
func QuoteTableName(name string) string {
	return QuoteIdent(name)
}

// QuoteColumnList quotes and comma-joins column names.
func QuoteColumnList(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = QuoteIdent(n)
	}
	return strings.Join(parts, ", ")
}

// QuoteStringLiteral renders s as a single-quoted literal.
// NUL bytes cannot be stored in text columns and are rejected.
func QuoteStringLiteral(s string) (string, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", fmt.Errorf("string literal contains NUL byte")
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
}

// FormatDate renders t in the store's date/time literal format, in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayoutFrac)
}

// ParseDate parses a store date/time literal. The result is in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// QuoteLiteral renders a scalar Dval as a literal.
// Lists, objects and special values have no scalar literal and are rejected.
func QuoteLiteral(v dval.Dval) (string, error) {
	switch x := v.(type) {
	case dval.DNull:
		return "NULL", nil
	case dval.DInt:
		return strconv.FormatInt(int64(x), 10), nil
	case dval.DFloat:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			return "'NaN'", nil
		case math.IsInf(f, 1):
			return "'Infinity'", nil
		case math.IsInf(f, -1):
			return "'-Infinity'", nil
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case dval.DBool:
		if x {
			return "'t'", nil
		}
		return "'f'", nil
	case dval.DChar:
		return QuoteStringLiteral(string(rune(x)))
	case dval.DStr:
		return QuoteStringLiteral(string(x))
	case dval.DTitle:
		return QuoteStringLiteral(string(x))
	case dval.DURL:
		return QuoteStringLiteral(string(x))
	case dval.DID:
		return "'" + x.UUID().String() + "'", nil
	case dval.DDate:
		return "'" + FormatDate(x.Time()) + "'", nil
	}
	return "", fmt.Errorf("no scalar literal for %s", dval.TipeOf(v))
}

// QuoteValue renders a row cell: lists become array literals, everything
// else goes through QuoteLiteral.
func QuoteValue(v dval.Dval) (string, error) {
	if list, ok := v.(dval.DList); ok {
		return QuoteListLiteral(list)
	}
	return QuoteLiteral(v)
}

// QuoteListLiteral renders a list of scalars as a quoted array literal.
func QuoteListLiteral(list dval.DList) (string, error) {
	elems := make([]string, len(list))
	for i, el := range list {
		s, err := arrayElement(el)
		if err != nil {
			return "", fmt.Errorf("list[%d]: %w", i, err)
		}
		elems[i] = s
	}
	return QuoteStringLiteral(FormatArray(elems))
}

func arrayElement(v dval.Dval) (string, error) {
	switch x := v.(type) {
	case dval.DNull:
		return "NULL", nil
	case dval.DInt:
		return strconv.FormatInt(int64(x), 10), nil
	case dval.DFloat:
		return strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	case dval.DBool:
		if x {
			return "t", nil
		}
		return "f", nil
	case dval.DID:
		return x.UUID().String(), nil
	case dval.DDate:
		return quoteArrayElement(FormatDate(x.Time())), nil
	case dval.DChar:
		return quoteArrayElement(string(rune(x))), nil
	case dval.DStr:
		return quoteArrayElement(string(x)), nil
	case dval.DTitle:
		return quoteArrayElement(string(x)), nil
	case dval.DURL:
		return quoteArrayElement(string(x)), nil
	}
	return "", fmt.Errorf("no array element literal for %s", dval.TipeOf(v))
}

// FormatArray joins already-rendered elements into {a,b}.
func FormatArray(elems []string) string {
	return "{" + strings.Join(elems, ",") + "}"
}

// quoteArrayElement double-quotes an element when the array syntax needs it.
func quoteArrayElement(s string) string {
	if s != "" && !strings.EqualFold(s, "NULL") && !strings.ContainsAny(s, "{},\"\\ \t\n\r") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// ArrayElement is one element of a parsed array literal.
type ArrayElement struct {
	Text   string
	Quoted bool
}

// ParseArray splits an array literal {a,b,...} into its elements.
//
// Unquoted elements are trimmed, which keeps "{a, b}" equal to "{a,b}".
// Double-quoted elements are unescaped and kept verbatim.
func ParseArray(s string) ([]ArrayElement, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("malformed array literal %q", s)
	}
	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return []ArrayElement{}, nil
	}

	var (
		out     []ArrayElement
		cur     strings.Builder
		quoted  bool
		inQuote bool
		escaped bool
	)
	flush := func() {
		text := cur.String()
		if !quoted {
			text = strings.TrimSpace(text)
		}
		out = append(out, ArrayElement{Text: text, Quoted: quoted})
		cur.Reset()
		quoted = false
	}
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			if !inQuote {
				cur.Reset()
			}
			inQuote = !inQuote
			quoted = true
		case !inQuote && r == ',':
			flush()
		case inQuote || !quoted:
			cur.WriteRune(r)
		}
	}
	if inQuote || escaped {
		return nil, fmt.Errorf("unterminated quote in array literal %q", s)
	}
	flush()
	return out, nil
}
