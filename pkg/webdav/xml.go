package webdav

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/engine"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/lock"
)

const (
	davNamespace   = "DAV:"
	xmlContentType = "application/xml; charset=utf-8"
)

// ============================================================================
// Response bodies
// ============================================================================

type multistatus struct {
	XMLName   xml.Name   `xml:"D:multistatus"`
	Xmlns     string     `xml:"xmlns:D,attr"`
	Responses []response `xml:"D:response"`
}

type response struct {
	Href        string       `xml:"D:href"`
	Status      string       `xml:"D:status"`
	Error       *errorDetail `xml:"D:error,omitempty"`
	Description string       `xml:"D:responsedescription,omitempty"`
}

type errorDetail struct {
	LockTokenSubmitted *href `xml:"D:lock-token-submitted,omitempty"`
}

type errorBody struct {
	XMLName            xml.Name `xml:"D:error"`
	Xmlns              string   `xml:"xmlns:D,attr"`
	LockTokenSubmitted *href    `xml:"D:lock-token-submitted,omitempty"`
}

type href struct {
	Href string `xml:"D:href"`
}

type propBody struct {
	XMLName       xml.Name      `xml:"D:prop"`
	Xmlns         string        `xml:"xmlns:D,attr"`
	LockDiscovery lockDiscovery `xml:"D:lockdiscovery"`
}

type lockDiscovery struct {
	ActiveLocks []activeLock `xml:"D:activelock"`
}

type activeLock struct {
	LockType  lockTypeBody  `xml:"D:locktype"`
	LockScope lockScopeBody `xml:"D:lockscope"`
	Depth     string        `xml:"D:depth"`
	Owner     *ownerBody    `xml:"D:owner,omitempty"`
	Timeout   string        `xml:"D:timeout"`
	LockToken *href         `xml:"D:locktoken,omitempty"`
	LockRoot  href          `xml:"D:lockroot"`
}

type lockTypeBody struct {
	Write struct{} `xml:"D:write"`
}

type lockScopeBody struct {
	Exclusive *struct{} `xml:"D:exclusive,omitempty"`
	Shared    *struct{} `xml:"D:shared,omitempty"`
}

type ownerBody struct {
	InnerXML string `xml:",innerxml"`
}

// ============================================================================
// Request bodies
// ============================================================================

type lockInfo struct {
	XMLName   xml.Name       `xml:"DAV: lockinfo"`
	LockScope lockInfoScope  `xml:"DAV: lockscope"`
	LockType  lockInfoType   `xml:"DAV: locktype"`
	Owner     *lockInfoOwner `xml:"DAV: owner"`
}

type lockInfoScope struct {
	Exclusive *struct{} `xml:"DAV: exclusive"`
	Shared    *struct{} `xml:"DAV: shared"`
}

type lockInfoType struct {
	Write *struct{} `xml:"DAV: write"`
}

type lockInfoOwner struct {
	InnerXML string `xml:",innerxml"`
}

// parseLockInfo decodes a LOCK request body. Only write locks exist.
func parseLockInfo(r io.Reader) (*lockInfo, error) {
	var info lockInfo
	if err := xml.NewDecoder(r).Decode(&info); err != nil {
		return nil, daverrors.NewBadRequestError("invalid lockinfo body: " + err.Error())
	}
	if info.LockType.Write == nil {
		return nil, daverrors.NewBadRequestError("only write locks are supported")
	}
	if (info.LockScope.Exclusive == nil) == (info.LockScope.Shared == nil) {
		return nil, daverrors.NewBadRequestError("lockscope must be exclusive or shared")
	}
	return &info, nil
}

func (i *lockInfo) scope() lock.Scope {
	if i.LockScope.Shared != nil {
		return lock.ScopeShared
	}
	return lock.ScopeExclusive
}

func (i *lockInfo) owner() string {
	if i.Owner == nil {
		return ""
	}
	return strings.TrimSpace(i.Owner.InnerXML)
}

// ============================================================================
// Writers
// ============================================================================

func statusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

// escapeHref escapes a URL path for use in an href. Absolute URLs of
// remote destinations are kept as they are.
func escapeHref(p string) string {
	if !strings.HasPrefix(p, "/") {
		return p
	}
	return (&url.URL{Path: p}).EscapedPath()
}

func writeXML(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", xmlContentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to encode xml response", logger.Err(err))
	}
}

// writeMultiStatus reports every failed member of an operation whose root
// succeeded.
func writeMultiStatus(w http.ResponseWriter, failures []engine.Outcome) {
	ms := multistatus{Xmlns: davNamespace}
	for _, f := range failures {
		resp := response{
			Href:   escapeHref(f.Path),
			Status: statusLine(f.Status),
		}
		if f.Status == http.StatusLocked {
			resp.Error = &errorDetail{LockTokenSubmitted: &href{Href: escapeHref(f.Path)}}
		}
		if f.Err != nil {
			resp.Description = f.Err.Error()
		}
		ms.Responses = append(ms.Responses, resp)
	}
	writeXML(w, http.StatusMultiStatus, ms)
}

// writeLocked answers 423 with the DAV:lock-token-submitted precondition.
func writeLocked(w http.ResponseWriter, p string) {
	writeXML(w, http.StatusLocked, errorBody{
		Xmlns:              davNamespace,
		LockTokenSubmitted: &href{Href: escapeHref(p)},
	})
}

// writeLockDiscovery answers a LOCK with the granted or refreshed lock.
func writeLockDiscovery(w http.ResponseWriter, status int, l *lock.Lock) {
	al := activeLock{
		Depth:     "0",
		Timeout:   formatTimeout(l.Timeout),
		LockToken: &href{Href: l.Token},
		LockRoot:  href{Href: escapeHref(l.Root)},
	}
	if l.Deep {
		al.Depth = "infinity"
	}
	if l.Scope == lock.ScopeShared {
		al.LockScope.Shared = &struct{}{}
	} else {
		al.LockScope.Exclusive = &struct{}{}
	}
	if l.Owner != "" {
		al.Owner = &ownerBody{InnerXML: l.Owner}
	}
	writeXML(w, status, propBody{
		Xmlns:         davNamespace,
		LockDiscovery: lockDiscovery{ActiveLocks: []activeLock{al}},
	})
}
