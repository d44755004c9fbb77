// Package remote implements COPY and MOVE to destinations on other WebDAV
// servers.
//
// The Factory only accepts destinations under one of its configured
// endpoints and declines everything else, which lets the engine fall back
// to a local share.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/copier"
	"github.com/marmos91/dittodav/pkg/engine"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// DefaultTimeout bounds each request to a remote endpoint.
const DefaultTimeout = 30 * time.Second

// Endpoint is a remote WebDAV server COPY and MOVE may write to.
type Endpoint struct {
	// Name identifies the endpoint in logs.
	Name string `mapstructure:"name" yaml:"name" validate:"required"`

	// URL is the base URL. Destinations must be under it.
	URL string `mapstructure:"url" yaml:"url" validate:"required,url"`

	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// Config holds the remote endpoints.
type Config struct {
	Enabled   bool       `mapstructure:"enabled" yaml:"enabled"`
	Endpoints []Endpoint `mapstructure:"endpoints" yaml:"endpoints,omitempty" validate:"dive"`
}

// Client is the part of *gowebdav.Client the remote strategy uses.
type Client interface {
	Connect() error
	Stat(path string) (os.FileInfo, error)
	Mkdir(path string, mode os.FileMode) error
	WriteStream(path string, stream io.Reader, mode os.FileMode) error
	RemoveAll(path string) error
}

// Option configures a Factory.
type Option func(*Factory)

// WithClientFunc replaces the gowebdav client constructor.
func WithClientFunc(fn func(Endpoint) Client) Option {
	return func(f *Factory) { f.newClient = fn }
}

type endpoint struct {
	name     string
	base     *url.URL
	basePath string
	client   Client
}

// Factory creates remote TargetActions for destinations under its
// endpoints. It implements engine.RemoteActionsFactory.
type Factory struct {
	endpoints []*endpoint
	copier    *copier.Copier
	newClient func(Endpoint) Client
}

// NewFactory creates a factory for the endpoints of cfg. Documents are
// streamed through c.
func NewFactory(cfg Config, c *copier.Copier, opts ...Option) (*Factory, error) {
	f := &Factory{copier: c, newClient: newGowebdavClient}
	for _, opt := range opts {
		opt(f)
	}
	if f.copier == nil {
		f.copier = copier.New(copier.DefaultConfig(), nil)
	}

	for _, ep := range cfg.Endpoints {
		base, err := url.Parse(ep.URL)
		if err != nil {
			return nil, fmt.Errorf("remote endpoint %q: %w", ep.Name, err)
		}
		if base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf("remote endpoint %q: url must be absolute", ep.Name)
		}
		f.endpoints = append(f.endpoints, &endpoint{
			name:     ep.Name,
			base:     base,
			basePath: store.Clean(base.Path),
			client:   f.newClient(ep),
		})
		logger.Debug("remote endpoint registered", "name", ep.Name, logger.KeyRemote, base.Redacted())
	}
	return f, nil
}

func newGowebdavClient(ep Endpoint) Client {
	c := gowebdav.NewClient(ep.URL, ep.Username, ep.Password)
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.SetTimeout(timeout)
	return c
}

// NewActions returns the actions for dest, or nil, nil when no endpoint
// covers it. An endpoint that does not answer is an error.
func (f *Factory) NewActions(ctx context.Context, dest *url.URL, move bool) (engine.TargetActions, error) {
	ep := f.match(dest)
	if ep == nil {
		return nil, nil
	}
	if err := ep.client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", ep.name, err)
	}
	logger.DebugCtx(ctx, "remote destination accepted", "name", ep.name, logger.KeyDestination, dest.Redacted())
	return &actions{endpoint: ep, copier: f.copier, move: move}, nil
}

func (f *Factory) match(dest *url.URL) *endpoint {
	if dest == nil {
		return nil
	}
	for _, ep := range f.endpoints {
		if !strings.EqualFold(ep.base.Scheme, dest.Scheme) || !strings.EqualFold(ep.base.Host, dest.Host) {
			continue
		}
		if store.IsWithin(store.Clean(dest.Path), ep.basePath) {
			return ep
		}
	}
	return nil
}

// actions writes to one remote endpoint. Target paths are URL paths on the
// remote server.
type actions struct {
	endpoint *endpoint
	copier   *copier.Copier
	move     bool
}

func (a *actions) Name() string    { return engine.StrategyRemote }
func (a *actions) StoreID() string { return "" }

// clientPath maps a URL path to the path the client expects, relative to
// the endpoint base.
func (a *actions) clientPath(p string) string {
	rel := strings.TrimPrefix(store.Clean(p), a.endpoint.basePath)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}

func (a *actions) stat(p string) (os.FileInfo, error) {
	fi, err := a.endpoint.client.Stat(a.clientPath(p))
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, daverrors.NewNotFoundError(p)
		}
		return nil, daverrors.Wrap(daverrors.ErrBadGateway, p, err)
	}
	return fi, nil
}

func (a *actions) Resolve(ctx context.Context, p string) (engine.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = store.Clean(p)
	parent, err := a.parentOf(p)
	if err != nil {
		return nil, err
	}

	fi, err := a.stat(p)
	switch {
	case daverrors.IsNotFoundError(err):
		if parent == nil {
			return nil, daverrors.New(daverrors.ErrBadGateway, p, "remote base collection is missing")
		}
		pfi, err := a.stat(parent.Path)
		if daverrors.IsNotFoundError(err) || (err == nil && !pfi.IsDir()) {
			return nil, daverrors.NewConflictError(p, "parent collection does not exist")
		}
		if err != nil {
			return nil, err
		}
		return &engine.MissingTarget{Parent: parent, Name: store.Base(p)}, nil
	case err != nil:
		return nil, err
	case fi.IsDir():
		return &engine.CollectionTarget{Path: p, Parent: parent}, nil
	default:
		return &engine.DocumentTarget{Path: p, Parent: parent}, nil
	}
}

// parentOf builds the parent chain of p, nil at the endpoint base.
func (a *actions) parentOf(p string) (*engine.CollectionTarget, error) {
	if p == a.endpoint.basePath || p == "/" {
		return nil, nil
	}
	dir := store.Dir(p)
	grand, err := a.parentOf(dir)
	if err != nil {
		return nil, err
	}
	return &engine.CollectionTarget{Path: dir, Parent: grand}, nil
}

func (a *actions) Child(ctx context.Context, parent *engine.CollectionTarget, name string) (engine.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := store.Join(parent.Path, name)
	fi, err := a.stat(p)
	switch {
	case daverrors.IsNotFoundError(err):
		return &engine.MissingTarget{Parent: parent, Name: name}, nil
	case err != nil:
		return nil, err
	case fi.IsDir():
		return &engine.CollectionTarget{Path: p, Parent: parent}, nil
	default:
		return &engine.DocumentTarget{Path: p, Parent: parent}, nil
	}
}

func (a *actions) CreateCollection(ctx context.Context, parent *engine.CollectionTarget, name string) (*engine.CollectionTarget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := store.Join(parent.Path, name)
	if err := a.endpoint.client.Mkdir(a.clientPath(p), 0o755); err != nil {
		return nil, daverrors.Wrap(daverrors.ErrBadGateway, p, err)
	}
	return &engine.CollectionTarget{Path: p, Parent: parent}, nil
}

// CreateOrOverwriteDocument streams src to the remote server. The copier
// fills a pipe that the PUT request body drains.
func (a *actions) CreateOrOverwriteDocument(ctx context.Context, parent *engine.CollectionTarget, name string, src *store.Document, _ bool) (*engine.DocumentTarget, error) {
	p := store.Join(parent.Path, name)

	r, err := src.OpenRead(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	// A failed PUT closes the pipe under the copier, so its error is the
	// cause and wins over the copier's.
	var writeErr error
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.copier.Copy(gctx, pw, r, copier.UnknownLength)
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := a.endpoint.client.WriteStream(a.clientPath(p), pr, 0o644)
		// Unblocks the copier if the request ended early.
		pr.CloseWithError(io.ErrClosedPipe)
		if err != nil {
			writeErr = daverrors.Wrap(daverrors.ErrBadGateway, p, err)
		}
		return writeErr
	})
	err = g.Wait()
	if writeErr != nil {
		return nil, writeErr
	}
	if err != nil {
		return nil, err
	}
	return &engine.DocumentTarget{Path: p, Parent: parent}, nil
}

func (a *actions) DeleteTarget(ctx context.Context, t engine.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, missing := t.(*engine.MissingTarget); missing {
		return nil
	}
	p := t.TargetPath()
	if err := a.endpoint.client.RemoveAll(a.clientPath(p)); err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil
		}
		return daverrors.Wrap(daverrors.ErrBadGateway, p, err)
	}
	return nil
}

func (a *actions) DeleteIfMove(ctx context.Context, src store.Node) error {
	if !a.move {
		return nil
	}
	return store.Delete(ctx, src)
}
