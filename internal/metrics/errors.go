package metrics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/torosent/swarmpace/internal/runner"
)

var friendlyAliases = map[string]string{
	"url.Error":                        "Request URL error",
	"net.OpError":                      "Network error",
	"net.DNSError":                     "DNS lookup error",
	"tls.CertificateVerificationError": "TLS certificate error",
	"errors.errorString":               "Error",
	"fmt.wrapError":                    "Error",
}

// ErrorLabel groups err for reporting. HTTP failures are keyed by status
// code, everything else by its humanized type name.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Context canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Context deadline exceeded"
	}
	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("HTTP %d", httpErr.StatusCode)
	}
	return FriendlyErrorName(fmt.Sprintf("%T", err))
}

var (
	lowerUpper   = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	acronymUpper = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
)

// FriendlyErrorName turns a %T string such as "*mypkg.TimeoutHTTPError"
// into "Timeout HTTP Error (mypkg)".
func FriendlyErrorName(typeName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if name == "" {
		return "Unknown error"
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if alias, ok := friendlyAliases[name]; ok {
		return alias
	}

	pkg, typ, found := strings.Cut(name, ".")
	if !found {
		pkg, typ = "", name
	}
	spaced := acronymUpper.ReplaceAllString(lowerUpper.ReplaceAllString(typ, "${1} ${2}"), "${1} ${2}")
	words := strings.Fields(spaced)
	for i, w := range words {
		if strings.ToUpper(w) != w {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	pretty := strings.Join(words, " ")
	if pretty == "" {
		pretty = typ
	}
	if pkg == "" || pkg == "main" {
		return pretty
	}
	return fmt.Sprintf("%s (%s)", pretty, pkg)
}
