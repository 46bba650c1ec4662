package gateway

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	siotypes "github.com/dell/goscaleio/types/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

func serverConfig(t *testing.T, srv *httptest.Server) Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Config{Hostname: host, Port: port, Username: "admin", Password: "secret", Timeout: 5 * time.Second}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "explicit port", cfg: Config{Hostname: "gw.example", Port: 8443}, want: "https://gw.example:8443/api"},
		{name: "default port", cfg: Config{Hostname: "gw.example"}, want: "https://gw.example:443/api"},
		{name: "ipv6", cfg: Config{Hostname: "fd00::1", Port: 443}, want: "https://[fd00::1]:443/api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Endpoint())
		})
	}
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthorized","httpStatusCode":401,"errorCode":0}`))
	}))
	defer srv.Close()

	c := NewClient(serverConfig(t, srv))
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConnection))
}

func TestConnectVerifiesCertificates(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := serverConfig(t, srv)
	cfg.ValidateCerts = true
	err := NewClient(cfg).Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConnection))
}

func TestCallsNeedConnect(t *testing.T) {
	c := NewClient(Config{Hostname: "127.0.0.1", Port: 1})
	_, err := c.Volume(context.Background(), "v1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConnection))

	c.Close()
	err = c.RemoveVolume(context.Background(), "v1", "ONLY_ME")
	assert.True(t, errors.Is(err, errs.ErrConnection))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		notFound   bool
		connection bool
	}{
		{name: "404", err: &siotypes.Error{Message: "Not found", HTTPStatusCode: http.StatusNotFound}, notFound: true},
		{name: "500 could not find", err: &siotypes.Error{Message: "Could not find the volume", HTTPStatusCode: 500, ErrorCode: 79}, notFound: true},
		{name: "sdk lookup", err: errors.New("Couldn't find protection domain"), notFound: true},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, connection: true},
		{name: "other api error", err: &siotypes.Error{Message: "Volume size must be a multiple of 8", HTTPStatusCode: 500, ErrorCode: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			assert.Equal(t, tt.notFound, errors.Is(err, errs.ErrNotFound))
			assert.Equal(t, tt.connection, errors.Is(err, errs.ErrConnection))
		})
	}
}

func TestClassifyKeepsAPIError(t *testing.T) {
	err := classify("resize volume v1", &siotypes.Error{Message: "Volume size must be a multiple of 8", HTTPStatusCode: 500, ErrorCode: 300})

	var apiErr *siotypes.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 300, apiErr.ErrorCode)
	assert.Contains(t, err.Error(), "resize volume v1")
	assert.False(t, unauthorized(err))
	assert.True(t, unauthorized(&siotypes.Error{HTTPStatusCode: http.StatusUnauthorized}))
}

func TestConvertRecords(t *testing.T) {
	var v Volume
	require.NoError(t, convert(&siotypes.Volume{ID: "v1", Name: "data", SizeInKb: 16777216, StoragePoolID: "sp1"}, &v))
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, "sp1", v.StoragePoolID)
	assert.Equal(t, int64(16), v.SizeInGB())
}

func TestConvertCreateBody(t *testing.T) {
	var param siotypes.VolumeParam
	require.NoError(t, convert(VolumeCreate{
		Name:           "data",
		VolumeSizeInKb: "8388608",
		StoragePoolID:  "sp1",
		VolumeType:     "ThinProvisioned",
	}, &param))
	assert.Equal(t, "data", param.Name)
	assert.Equal(t, "8388608", param.VolumeSizeInKb)
	assert.Equal(t, "sp1", param.StoragePoolID)
}

func TestNamed(t *testing.T) {
	pools := []*siotypes.StoragePool{
		{ID: "sp1", Name: "fast"},
		{ID: "sp2", Name: "bulk"},
		{ID: "sp3", Name: "fast"},
	}
	got, err := named(pools, "fast", func(sp StoragePool) string { return sp.Name })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sp3", got[1].ID)

	got, err = named(pools, "missing", func(sp StoragePool) string { return sp.Name })
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOneMissingIsNotFound(t *testing.T) {
	_, err := one[Volume]("volume", "v9", []*siotypes.Volume(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	v, err := one[Volume]("volume", "v1", []*siotypes.Volume{{ID: "v1", Name: "data"}})
	require.NoError(t, err)
	assert.Equal(t, "data", v.Name)
}

func TestRateLimitHonoursContext(t *testing.T) {
	limited := NewClient(Config{Hostname: "127.0.0.1", Port: 1, RateLimitRPS: 0.001})
	require.NotNil(t, limited.limiter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := limited.Version(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
