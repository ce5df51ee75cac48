// Package chesscom resolves, fetches and normalizes games hosted on chess.com.
package chesscom

import (
	"net/url"
	"regexp"
	"strings"

	"chessaroo/internal/server/core"
)

// Domain is the only host family accepted for game URLs
const Domain = "chess.com"

var trailingDigits = regexp.MustCompile(`(\d+)/?$`)

// ExtractGameID pulls the numeric game ID out of a game URL or a bare ID.
// The URL path is searched first, then the fragment, then the raw input when no
// host was given.
func ExtractGameID(reference string) (string, error) {
	candidate := strings.TrimSpace(reference)
	if candidate == "" {
		return "", core.Validation(core.ErrInvalidRequest, "Chess.com game URL is required")
	}

	var host string
	var targets []string
	if parsed, err := url.Parse(candidate); err == nil {
		host = strings.ToLower(parsed.Hostname())
		targets = []string{parsed.Path, parsed.Fragment}
	} else {
		// Malformed escapes still carry an authority that must be checked
		host = rawHost(candidate)
	}
	if host != "" && !isChessComHost(host) {
		return "", core.Validation(core.ErrInvalidSource, "Provided URL is not a Chess.com link")
	}
	if host == "" || targets == nil {
		targets = append(targets, candidate)
	}
	for _, target := range targets {
		if m := trailingDigits.FindStringSubmatch(target); m != nil {
			return m[1], nil
		}
	}

	return "", core.Validation(core.ErrUnresolvableID, "Unable to determine Chess.com game ID from URL")
}

func isChessComHost(host string) bool {
	return host == Domain || strings.HasSuffix(host, "."+Domain)
}

// rawHost cuts the host out of an unparseable reference. An authority that
// yields no host is reported as an empty-named host so it fails the domain check.
func rawHost(reference string) string {
	rest := reference
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	} else if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
	} else {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}
	if i := strings.LastIndex(rest, ":"); i >= 0 && !strings.HasSuffix(rest, "]") {
		rest = rest[:i]
	}
	rest = strings.ToLower(strings.Trim(rest, "[]"))
	if rest == "" {
		return "."
	}
	return rest
}
