package generic

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// QUERY - SQL text plus its bound values
// =============================================================================

// Params are named bind values, referenced in SQL as :name.
type Params map[string]any

// With returns a copy of p with name set to v. p itself is not modified.
func (p Params) With(name string, v any) Params {
	out := make(Params, len(p)+1)
	for k, val := range p {
		out[k] = val
	}
	out[name] = v
	return out
}

// Query is SQL text with either named parameters or positional arguments.
//
// Named:      SELECT COUNT(*) FROM enrollment WHERE enrollment_date <= :end
// Positional: SELECT COUNT(*) FROM enrollment WHERE enrollment_date <= ?
//
// Values are always sent as driver bind parameters, never spliced into the text.
type Query struct {
	SQL    string
	Params Params
	Args   []any
}

// NewQuery builds a named-parameter query.
func NewQuery(sql string, params Params) Query {
	return Query{SQL: sql, Params: params}
}

// PeriodQuery builds a query bound to :start and :end, with optional extras.
func PeriodQuery(sql string, p Period, extra ...Params) Query {
	params := p.Params()
	for _, e := range extra {
		for k, v := range e {
			params[k] = v
		}
	}
	return Query{SQL: sql, Params: params}
}

// Placeholder renders the n-th (1-based) bind marker for a driver.
type Placeholder func(n int) string

// QuestionPlaceholder renders ? (sqlite3).
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders $1, $2, ... (postgres).
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// Bind rewrites the query text for a driver and returns the ordered arguments.
//
// Every :name must be present in Params and every Params entry must be used.
// With Args, the count of ? markers must equal len(Args). Mixing the two
// styles is rejected. All failures wrap ErrParamMismatch.
//
// Quoted strings, quoted identifiers, comments and :: casts are left alone.
func (q Query) Bind(placeholder Placeholder) (string, []any, error) {
	if placeholder == nil {
		placeholder = QuestionPlaceholder
	}
	if len(q.Params) > 0 && len(q.Args) > 0 {
		return "", nil, fmt.Errorf("%w: both named and positional values given", ErrParamMismatch)
	}

	var (
		out        strings.Builder
		args       []any
		used       = make(map[string]bool, len(q.Params))
		positional int
		named      int
	)
	out.Grow(len(q.SQL))
	src := q.SQL

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(src, i, c)
			out.WriteString(src[i:end])
			i = end - 1

		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			out.WriteString(src[i : i+end])
			i += end - 1

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			stop := len(src)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			out.WriteString(src[i:stop])
			i = stop - 1

		case c == ':' && i+1 < len(src) && src[i+1] == ':':
			out.WriteString("::")
			i++

		case c == ':' && i+1 < len(src) && isIdentStart(src[i+1]):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			name := src[i+1 : j]
			v, ok := q.Params[name]
			if !ok {
				return "", nil, fmt.Errorf("%w: no value for :%s", ErrParamMismatch, name)
			}
			used[name] = true
			named++
			args = append(args, v)
			out.WriteString(placeholder(len(args)))
			i = j - 1

		case c == '?':
			if positional >= len(q.Args) {
				return "", nil, fmt.Errorf("%w: more ? markers than %d args", ErrParamMismatch, len(q.Args))
			}
			args = append(args, q.Args[positional])
			positional++
			out.WriteString(placeholder(len(args)))

		default:
			out.WriteByte(c)
		}
	}

	if named > 0 && positional > 0 {
		return "", nil, fmt.Errorf("%w: query mixes :name and ? markers", ErrParamMismatch)
	}
	if positional != len(q.Args) {
		return "", nil, fmt.Errorf("%w: %d ? markers for %d args", ErrParamMismatch, positional, len(q.Args))
	}
	if len(used) != len(q.Params) {
		var unused []string
		for k := range q.Params {
			if !used[k] {
				unused = append(unused, k)
			}
		}
		sort.Strings(unused)
		return "", nil, fmt.Errorf("%w: unused params %s", ErrParamMismatch, strings.Join(unused, ", "))
	}
	return out.String(), args, nil
}

// skipQuoted returns the index just past the closing quote. A doubled quote
// inside the literal is an escape.
func skipQuoted(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
