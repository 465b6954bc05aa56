// ABOUTME: Resolution of tool directives embedded in generated text
// ABOUTME: Directives are `use tool "<name>" with args <json>`; unresolvable ones stay verbatim
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var directivePattern = regexp.MustCompile(`(?i)use tool "([^"]+)" with args\s*`)

var errNullArgs = errors.New("arguments must be a JSON object")

// DirectiveError describes a directive whose arguments could not be decoded
type DirectiveError struct {
	Name   string
	Offset int
	Err    error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("tool directive %q at offset %d: %v", e.Name, e.Offset, e.Err)
}

func (e *DirectiveError) Unwrap() error { return e.Err }

// Directive is one parsed tool invocation inside generated text
type Directive struct {
	Name  string
	Args  map[string]any
	Start int // offset of "use tool"
	End   int // offset just past the JSON args
}

// ParseDirectives scans text left to right. Matches whose JSON arguments do
// not decode to an object are skipped, as are matches inside an earlier
// directive's arguments.
func ParseDirectives(text string) ([]Directive, []error) {
	var (
		out    []Directive
		errs   []error
		cursor int
	)
	for _, m := range directivePattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] < cursor {
			continue
		}
		args, n, err := decodeArgs(text[m[1]:])
		if err != nil {
			errs = append(errs, &DirectiveError{Name: text[m[2]:m[3]], Offset: m[0], Err: err})
			continue
		}
		d := Directive{Name: text[m[2]:m[3]], Args: args, Start: m[0], End: m[1] + n}
		out = append(out, d)
		cursor = d.End
	}
	return out, errs
}

// decodeArgs reads exactly one JSON object from the front of s
func decodeArgs(s string) (map[string]any, int, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, 0, err
	}
	if args == nil {
		return nil, 0, errNullArgs
	}
	return args, int(dec.InputOffset()), nil
}

// resolveDirectives splices tool output over each directive naming a
// registered tool. Everything else is left in place.
func (o *Orchestrator) resolveDirectives(ctx context.Context, text string) string {
	directives, errs := ParseDirectives(text)
	for _, err := range errs {
		o.logger.Warn().Err(err).Msg("malformed tool directive left in response")
	}
	if len(directives) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, d := range directives {
		if o.tools == nil || !o.tools.Has(d.Name) {
			o.logger.Debug().Str("tool", d.Name).Msg("directive names an unregistered tool")
			continue
		}
		out, err := o.tools.Call(ctx, d.Name, d.Args)
		if err != nil {
			o.logger.Warn().Err(err).Str("tool", d.Name).Msg("tool call failed, directive left in response")
			continue
		}
		b.WriteString(text[last:d.Start])
		b.WriteString(out)
		last = d.End
	}
	b.WriteString(text[last:])
	return b.String()
}
