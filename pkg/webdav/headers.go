package webdav

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/copier"
	"github.com/marmos91/dittodav/pkg/engine"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/lock"
)

// WebDAV request headers.
const (
	HeaderDepth       = "Depth"
	HeaderDestination = "Destination"
	HeaderOverwrite   = "Overwrite"
	HeaderIf          = "If"
	HeaderLockToken   = "Lock-Token"
	HeaderTimeout     = "Timeout"
)

// parseDepth parses a Depth header. An absent header yields def.
func parseDepth(v string, def engine.Depth) (engine.Depth, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return def, nil
	case "0":
		return engine.DepthZero, nil
	case "1":
		return engine.DepthOne, nil
	case "infinity":
		return engine.DepthInfinity, nil
	default:
		return def, daverrors.NewBadRequestError("invalid Depth header: " + v)
	}
}

// parseOverwrite parses an Overwrite header. Nil means the header is absent.
func parseOverwrite(v string) (*bool, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "":
		return nil, nil
	case "T":
		b := true
		return &b, nil
	case "F":
		b := false
		return &b, nil
	default:
		return nil, daverrors.NewBadRequestError("invalid Overwrite header: " + v)
	}
}

// parseDestination parses the Destination header of a COPY or MOVE. An
// absolute URL naming this host, or an absolute path, is local. Any other
// host is a remote destination.
func parseDestination(r *http.Request) (engine.Destination, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderDestination))
	if raw == "" {
		return engine.Destination{}, daverrors.NewBadRequestError("missing Destination header")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return engine.Destination{}, daverrors.NewBadRequestError("invalid Destination header: " + raw)
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	if !u.IsAbs() {
		if u.Host != "" || !strings.HasPrefix(p, "/") {
			return engine.Destination{}, daverrors.NewBadRequestError("Destination must be an absolute URL or path")
		}
		return engine.Destination{Path: p}, nil
	}
	if u.Host == "" {
		return engine.Destination{}, daverrors.NewBadRequestError("Destination has no host")
	}
	if strings.EqualFold(u.Host, r.Host) {
		return engine.Destination{Path: p}, nil
	}
	return engine.Destination{Path: p, URL: u}, nil
}

// parseIfTokens returns the state tokens of an If header, in order and
// without duplicates. Entity tags, resource tags and negated conditions
// contribute no tokens.
func parseIfTokens(v string) []string {
	var tokens []string
	seen := make(map[string]bool)
	inList := false
	negate := false

	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '(':
			inList = true
			negate = false
		case c == ')':
			inList = false
		case c == '[':
			end := strings.IndexByte(v[i:], ']')
			if end < 0 {
				return tokens
			}
			i += end
			negate = false
		case c == '<':
			end := strings.IndexByte(v[i:], '>')
			if end < 0 {
				return tokens
			}
			token := v[i+1 : i+end]
			i += end
			if inList && !negate && token != "" && !seen[token] {
				seen[token] = true
				tokens = append(tokens, token)
			}
			negate = false
		case inList && len(v)-i >= 3 && strings.EqualFold(v[i:i+3], "not"):
			negate = true
			i += 2
		}
	}
	return tokens
}

// parseLockToken parses a Lock-Token header ("<token>").
func parseLockToken(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) < 3 || v[0] != '<' || v[len(v)-1] != '>' {
		return "", daverrors.NewBadRequestError("invalid Lock-Token header")
	}
	return v[1 : len(v)-1], nil
}

// parseTimeout returns the first usable value of a Timeout header. Zero
// means the header is absent or unusable and the lock manager's default
// applies.
func parseTimeout(v string) time.Duration {
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if strings.EqualFold(part, "Infinite") {
			return lock.Infinite
		}
		if len(part) > 7 && strings.EqualFold(part[:7], "Second-") {
			n, err := strconv.ParseInt(part[7:], 10, 64)
			if err == nil && n > 0 {
				return time.Duration(n) * time.Second
			}
		}
	}
	return 0
}

// formatTimeout renders a granted lease for DAV:timeout.
func formatTimeout(d time.Duration) string {
	if d <= 0 {
		return "Infinite"
	}
	return "Second-" + strconv.FormatInt(int64(d/time.Second), 10)
}

// parseETags splits an If-Match or If-None-Match header into entity tags.
func parseETags(v string) []string {
	var tags []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// contentLength returns the declared request body length.
func contentLength(r *http.Request) int64 {
	if r.ContentLength < 0 {
		return copier.UnknownLength
	}
	return r.ContentLength
}

// hasBody reports whether the request carries a body.
func hasBody(r *http.Request) bool {
	return r.ContentLength > 0 || (r.ContentLength < 0 && len(r.TransferEncoding) > 0)
}
