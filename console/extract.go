package console

import "regexp"

// valueRegexp matches "name = value" replies. The capture class admits
// dots and signs so numeric readings like "12.3" or "-4.7" survive whole.
// Compiled once; immutable for the life of the process.
var valueRegexp = regexp.MustCompile(`\w+\s*=\s*([-+]?[\w.]+)`)

// ExtractValue extracts the value token from a "name = value [unit]" reply.
//
// It returns the first captured value if the reply matches, otherwise the
// reply unchanged. Pure function, no side effects.
//
//	ExtractValue("power = 12.3 mW")   // "12.3"
//	ExtractValue("no pattern here")   // "no pattern here"
//
// ExtractValue is installed as the default reply preprocessor of an adapter;
// see WithReplyPreprocessor to override it.
func ExtractValue(reply string) string {
	if m := valueRegexp.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	return reply
}
