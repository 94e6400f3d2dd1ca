package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/esignet-login/internal/config"
)

func TestStartHTTPServer_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	cfg := testAppConfig()
	cfg.HTTP = config.HTTPServer{
		Address:         "localhost:0",
		ShutdownTimeout: time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, cfg, nil, nil)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down within timeout")
	}
}

func TestStartHTTPServer_InvalidAddress(t *testing.T) {
	cfg := testAppConfig()
	cfg.HTTP = config.HTTPServer{Address: "invalid://address"}

	err := StartHTTPServer(t.Context(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestStartHTTPServer_AdminAddressInUse(t *testing.T) {
	taken, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testAppConfig()
	cfg.HTTP = config.HTTPServer{
		Address:         "localhost:0",
		AdminAddress:    taken.Addr().String(),
		ShutdownTimeout: time.Second,
	}

	err = StartHTTPServer(t.Context(), cfg, nil, nil)
	assert.ErrorContains(t, err, "Failed to create a listener")
}

func TestCreateHTTPServers(t *testing.T) {
	tests := []struct {
		name         string
		address      string
		adminAddress string
		wantAdmin    bool
	}{
		{name: "TCP address", address: "localhost:8080"},
		{name: "Unix socket", address: "unix:///tmp/test.sock"},
		{name: "With admin address", address: "localhost:8080", adminAddress: "localhost:8081", wantAdmin: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAppConfig()
			cfg.HTTP.Address = tt.address
			cfg.HTTP.AdminAddress = tt.adminAddress

			public, admin := createHTTPServers(t.Context(), cfg, nil, nil)

			require.NotNil(t, public)
			assert.Equal(t, tt.address, public.Addr)
			assert.NotNil(t, public.Handler)

			if !tt.wantAdmin {
				assert.Nil(t, admin)
				return
			}
			require.NotNil(t, admin)
			assert.Equal(t, tt.adminAddress, admin.Addr)
			assert.NotNil(t, admin.Handler)
		})
	}
}
