// Package gateway adapts the Dell goscaleio SDK to the per-kind backends the
// reconcilers and the info module use.
//
// Typed SDK calls are used where the SDK wraps an operation. Instance actions it
// does not wrap, generic listings and the manager API (/Api/V1) go through the
// SDK's own REST client with the same session token. There is no caching:
// every call goes to the gateway.
package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dell/goscaleio"
	"github.com/dell/goscaleio/api"
	siotypes "github.com/dell/goscaleio/types/v1"
	"github.com/hashicorp/go-version"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

// Config holds connection settings.
type Config struct {
	Hostname      string
	Username      string
	Password      string
	Port          int
	ValidateCerts bool
	Timeout       time.Duration
	// RateLimitRPS caps requests per second. Zero disables limiting.
	RateLimitRPS float64
}

// Endpoint is the gateway API root the SDK expects.
func (c Config) Endpoint() string {
	port := c.Port
	if port == 0 {
		port = 443
	}
	return "https://" + net.JoinHostPort(c.Hostname, strconv.Itoa(port)) + "/api"
}

// Client talks to one gateway.
type Client struct {
	cfg     Config
	limiter *rate.Limiter

	mu         sync.RWMutex
	sio        *goscaleio.Client
	login      *goscaleio.ConfigConnect
	system     *goscaleio.System
	rest       api.Client
	apiVersion string
}

// NewClient creates a client. Call Connect before anything else.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	c := &Client{cfg: cfg}
	if cfg.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	return c
}

// Connect logs in, resolves the cluster and shares the session token with the
// REST client used for untyped calls.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	endpoint := c.cfg.Endpoint()
	insecure := !c.cfg.ValidateCerts

	sio, err := goscaleio.NewClientWithArgs(endpoint, "", int64(c.cfg.Timeout/time.Second), insecure, !insecure)
	if err != nil {
		return errs.Mark(errors.Wrapf(err, "create client for gateway %s", endpoint), errs.ErrConnection)
	}
	login := &goscaleio.ConfigConnect{
		Endpoint: endpoint,
		Username: c.cfg.Username,
		Password: c.cfg.Password,
		Insecure: insecure,
	}
	if _, err := sio.Authenticate(login); err != nil {
		return errs.Mark(errors.Wrapf(err, "login to gateway %s", endpoint), errs.ErrConnection)
	}

	apiVersion, err := sio.GetVersion()
	if err != nil {
		return errs.Mark(errors.Wrapf(err, "get version of gateway %s", endpoint), errs.ErrConnection)
	}

	systems, err := sio.GetSystems()
	if err != nil {
		return classify("list systems", err)
	}
	if len(systems) == 0 {
		return errs.Newf(errs.ErrNotFound, "gateway %s reports no system", endpoint)
	}
	system, err := sio.FindSystem(systems[0].ID, "", "")
	if err != nil {
		return classify("find system "+systems[0].ID, err)
	}

	rest, err := api.New(ctx, endpoint, api.ClientOptions{
		Insecure: insecure,
		UseCerts: !insecure,
		Timeout:  c.cfg.Timeout,
	}, false)
	if err != nil {
		return errs.Mark(errors.Wrapf(err, "create REST client for gateway %s", endpoint), errs.ErrConnection)
	}
	rest.SetToken(sio.GetToken())

	c.mu.Lock()
	c.sio, c.login, c.system, c.rest, c.apiVersion = sio, login, system, rest, apiVersion
	c.mu.Unlock()

	log.Debug().Str("gateway", endpoint).Str("system", systems[0].ID).Str("api", apiVersion).Msg("Logged in to gateway")
	return nil
}

// Close drops the session. The SDK keeps no other resources open.
func (c *Client) Close() {
	c.mu.Lock()
	c.sio, c.login, c.system, c.rest = nil, nil, nil, nil
	c.mu.Unlock()
}

// Version returns the gateway API version.
func (c *Client) Version(ctx context.Context) (*version.Version, error) {
	raw, err := call(ctx, c, "get version", func(s session) (string, error) {
		return s.sio.GetVersion()
	})
	if err != nil {
		return nil, err
	}
	v, err := version.NewVersion(strings.Trim(raw, `" `))
	if err != nil {
		return nil, errors.Wrapf(err, "parse gateway version %s", raw)
	}
	return v, nil
}

// session is the connected state one call works against.
type session struct {
	sio        *goscaleio.Client
	login      *goscaleio.ConfigConnect
	system     *goscaleio.System
	rest       api.Client
	apiVersion string
}

func (c *Client) session() (session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return session{sio: c.sio, login: c.login, system: c.system, rest: c.rest, apiVersion: c.apiVersion}, c.sio != nil
}

// call waits for the rate limiter, runs fn against the current session and
// classifies its error.
func call[T any](ctx context.Context, c *Client, op string, fn func(s session) (T, error)) (T, error) {
	var zero T
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, errors.Wrap(err, op)
		}
	}
	if err := ctx.Err(); err != nil {
		return zero, errors.Wrap(err, op)
	}
	s, ok := c.session()
	if !ok {
		return zero, errs.Newf(errs.ErrConnection, "%s: gateway client is not connected", op)
	}

	start := time.Now()
	out, err := fn(s)
	log.Debug().
		Str("op", op).
		Dur("elapsed", time.Since(start)).
		Bool("ok", err == nil).
		Msg("Gateway call")
	if err != nil {
		return zero, classify(op, err)
	}
	return out, nil
}

// do is call for operations without a result.
func (c *Client) do(ctx context.Context, op string, fn func(s session) error) error {
	_, err := call(ctx, c, op, func(s session) (struct{}, error) {
		return struct{}{}, fn(s)
	})
	return err
}

// classify marks SDK errors with the kinds callers branch on.
func classify(op string, err error) error {
	wrapped := errors.Wrap(err, op)

	var apiErr *siotypes.Error
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusNotFound || missing(apiErr.Message) {
			return errs.Mark(wrapped, errs.ErrNotFound)
		}
		return wrapped
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errs.Mark(wrapped, errs.ErrConnection)
	}
	// The SDK's own lookups fail with plain errors.
	if missing(err.Error()) {
		return errs.Mark(wrapped, errs.ErrNotFound)
	}
	return wrapped
}

func missing(msg string) bool {
	return strings.Contains(msg, "Could not find") || strings.Contains(msg, "Couldn't find")
}

func unauthorized(err error) bool {
	var apiErr *siotypes.Error
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusUnauthorized
}

// send issues one request through the SDK's REST client. An expired token is
// renewed once, the way the SDK's typed calls do it.
func (s session) send(ctx context.Context, method, uri string, in, out any) error {
	headers := map[string]string{}
	if in != nil {
		headers["Content-Type"] = "application/json"
	}
	err := s.rest.DoWithHeaders(ctx, method, uri, headers, in, out, s.apiVersion)
	if !unauthorized(err) {
		return err
	}
	if _, authErr := s.sio.Authenticate(s.login); authErr != nil {
		return err
	}
	s.rest.SetToken(s.sio.GetToken())
	return s.rest.DoWithHeaders(ctx, method, uri, headers, in, out, s.apiVersion)
}

// Action invokes a named action on one instance. A nil body sends "{}".
func (c *Client) Action(ctx context.Context, typ, id, action string, body any) error {
	if body == nil {
		body = struct{}{}
	}
	return c.do(ctx, action+" "+typ+" "+id, func(s session) error {
		return s.send(ctx, http.MethodPost, instancePath(typ, id)+"/action/"+action, body, nil)
	})
}

// create posts a new instance and returns its id.
func (c *Client) create(ctx context.Context, typ string, body any) (string, error) {
	return call(ctx, c, "create "+typ, func(s session) (string, error) {
		var created struct {
			ID string `json:"id"`
		}
		if err := s.send(ctx, http.MethodPost, "/api/types/"+typ+"/instances", body, &created); err != nil {
			return "", err
		}
		return created.ID, nil
	})
}

// related fetches the instances of rel related to one instance.
func (c *Client) related(ctx context.Context, typ, id, rel string, out any) error {
	return c.do(ctx, "get "+rel+" of "+typ+" "+id, func(s session) error {
		return s.send(ctx, http.MethodGet, instancePath(typ, id)+"/relationships/"+rel, nil, out)
	})
}

// ListRaw fetches every instance of a type as generic records.
func (c *Client) ListRaw(ctx context.Context, typ string) ([]map[string]any, error) {
	return call(ctx, c, "list "+typ, func(s session) ([]map[string]any, error) {
		var out []map[string]any
		err := s.send(ctx, http.MethodGet, "/api/types/"+typ+"/instances", nil, &out)
		return out, err
	})
}

// Manager fetches a manager API collection, e.g. "Deployment".
func (c *Client) Manager(ctx context.Context, collection string, query url.Values) ([]map[string]any, error) {
	uri := "/Api/V1/" + collection
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	return call(ctx, c, "list "+collection, func(s session) ([]map[string]any, error) {
		var out []map[string]any
		err := s.send(ctx, http.MethodGet, uri, nil, &out)
		return out, err
	})
}

func instancePath(typ, id string) string {
	return "/api/instances/" + typ + "::" + url.PathEscape(id)
}

// convert moves a record between SDK and gateway types. Both carry the
// gateway's JSON field names.
func convert(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return errors.Wrapf(err, "encode %T", src)
	}
	return errors.Wrapf(json.Unmarshal(data, dst), "decode %T into %T", src, dst)
}

// one converts the single record a by-id lookup returned.
func one[T any, S any](kind, id string, found []S) (*T, error) {
	if len(found) == 0 {
		return nil, errs.Newf(errs.ErrNotFound, "Could not find %s %s", kind, id)
	}
	var out T
	if err := convert(found[0], &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// named converts a listing and keeps the records called name.
func named[S any, T any](items []S, name string, nameOf func(T) string) ([]T, error) {
	var all []T
	if err := convert(items, &all); err != nil {
		return nil, err
	}
	return byName(all, name, nameOf), nil
}

func byName[T any](items []T, name string, nameOf func(T) string) []T {
	var out []T
	for _, item := range items {
		if nameOf(item) == name {
			out = append(out, item)
		}
	}
	return out
}

func boolFlag(v bool) string {
	return strings.ToUpper(strconv.FormatBool(v))
}
