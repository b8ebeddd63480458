package template

import (
	"fmt"
	"strings"
)

// Known placeholder names accepted in notification templates.
var knownPlaceholders = map[string]struct{}{
	"client_name":      {},
	"service_name":     {},
	"staff_name":       {},
	"appointment_time": {},
	"location":         {},
	"review_link":      {},
	"booking_link":     {},
}

// Render substitutes {name} placeholders with their values. Placeholders
// without a value are left intact, so a rendering gap is visible in the
// delivered message instead of silently producing an empty hole.
func Render(tpl string, vars map[string]string) string {
	var out strings.Builder
	out.Grow(len(tpl))

	for {
		open := strings.IndexByte(tpl, '{')
		if open < 0 {
			out.WriteString(tpl)
			return out.String()
		}
		close := strings.IndexByte(tpl[open:], '}')
		if close < 0 {
			out.WriteString(tpl)
			return out.String()
		}
		close += open

		out.WriteString(tpl[:open])
		name := tpl[open+1 : close]
		if val, ok := vars[name]; ok {
			out.WriteString(val)
		} else {
			out.WriteString(tpl[open : close+1])
		}
		tpl = tpl[close+1:]
	}
}

// Validate rejects templates with unbalanced braces or unknown placeholder
// names. Used by the admin template editor before saving.
func Validate(tpl string) error {
	rest := tpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return fmt.Errorf("unbalanced '}' in template")
			}
			return nil
		}
		if stray := strings.IndexByte(rest[:open], '}'); stray >= 0 {
			return fmt.Errorf("unbalanced '}' in template")
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			return fmt.Errorf("unclosed '{' in template")
		}
		close += open

		name := rest[open+1 : close]
		if strings.ContainsAny(name, "{ \t\n") {
			return fmt.Errorf("malformed placeholder %q", rest[open:close+1])
		}
		if _, ok := knownPlaceholders[name]; !ok {
			return fmt.Errorf("unknown placeholder {%s}", name)
		}
		rest = rest[close+1:]
	}
}
