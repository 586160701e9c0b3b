package testutil

import (
	"net/http/httptest"
	"testing"

	"ht-go/internal/ht"
	"ht-go/internal/server"
)

// NewTestServer serves db over HTTP on a loopback port for the duration of the test.
func NewTestServer(t *testing.T, db ht.Database, opts ...server.Option) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(server.New(db, ht.NewNopLogger(), opts...))
	t.Cleanup(srv.Close)
	return srv
}
