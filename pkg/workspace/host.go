package workspace

import (
	"strings"
)

// NormalizeHost turns a workspace host as supplied by an operator into a base URL
// suitable for building request URLs: surrounding whitespace and trailing slashes
// are removed and https:// is added when no scheme is present. The scheme is
// matched case-insensitively and emitted in lower case.
func NormalizeHost(host string) (string, error) {
	scheme := "https://"
	rest := strings.TrimSpace(host)
	for _, s := range []string{"https://", "http://"} {
		if len(rest) >= len(s) && strings.EqualFold(rest[:len(s)], s) {
			scheme = s
			rest = rest[len(s):]
			break
		}
	}
	rest = strings.TrimRight(rest, "/")
	if rest == "" {
		return "", &MalformedInputError{Field: "host", Reason: "the workspace host is required"}
	}
	return scheme + rest, nil
}
