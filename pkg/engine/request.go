package engine

import (
	"io"
	"net/url"
	"time"

	"github.com/marmos91/dittodav/pkg/lock"
)

// Depth is the value of the Depth header.
type Depth int

const (
	DepthZero     Depth = 0
	DepthOne      Depth = 1
	DepthInfinity Depth = -1
)

func (d Depth) String() string {
	switch d {
	case DepthZero:
		return "0"
	case DepthOne:
		return "1"
	case DepthInfinity:
		return "infinity"
	default:
		return "unknown"
	}
}

// Destination is the target of a COPY or MOVE.
type Destination struct {
	// Path is the destination URL path on this server.
	Path string

	// URL is set when the destination names another server. Path is then
	// ignored except as the local fallback, which uses URL.Path.
	URL *url.URL
}

// IsRemote reports whether the destination is on another server.
func (d Destination) IsRemote() bool {
	return d.URL != nil
}

func (d Destination) String() string {
	if d.URL != nil {
		return d.URL.String()
	}
	return d.Path
}

// TransferRequest is a COPY or MOVE.
type TransferRequest struct {
	Source      string
	Destination Destination
	Depth       Depth

	// Overwrite is the parsed Overwrite header, nil when absent.
	Overwrite *bool

	// IfTokens are the lock tokens from the If header.
	IfTokens []string

	// Owner identifies the request for lock ownership. Empty gets a fresh id.
	Owner string
}

// PutRequest writes a document.
type PutRequest struct {
	Path string
	Body io.Reader

	// ContentLength is the declared body length, copier.UnknownLength when
	// absent.
	ContentLength int64

	IfMatch     []string
	IfNoneMatch []string
	IfTokens    []string
	Owner       string
}

// MkcolRequest creates a collection.
type MkcolRequest struct {
	Path     string
	IfTokens []string
	Owner    string
}

// DeleteRequest removes a node and its subtree.
type DeleteRequest struct {
	Path     string
	IfTokens []string
	Owner    string
}

// LockRequest creates an explicit lock.
type LockRequest struct {
	Path  string
	Deep  bool
	Scope lock.Scope

	// Owner is the DAV:owner content supplied by the client.
	Owner string

	// Timeout is the requested lease; zero selects the default and
	// lock.Infinite asks for no expiry.
	Timeout time.Duration
}
