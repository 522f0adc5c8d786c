package session

import "regexp"

// A name is any text between braces that holds no brace itself.
var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Substitute replaces every {name} in body with values[name]. Names without
// a value are left as written.
func Substitute(body string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		if v, ok := values[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Placeholders lists the distinct placeholder names in body in order.
func Placeholders(body string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
