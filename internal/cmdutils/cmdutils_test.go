package cmdutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/esignet-login/internal/config"
)

func noopBusiness(context.Context, *config.Config) error { return nil }

func TestCobraCommand(t *testing.T) {
	tests := []struct {
		name    string
		use     string
		wrapper func(context.Context, func(context.Context, *config.Config) error, *config.Config) error
	}{
		{name: "api-server as a service", use: "api-server", wrapper: RunAsService},
		{name: "migrate as a job", use: "migrate", wrapper: RunAsJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := CobraCommand(tt.use, "short", "long", "{}", tt.wrapper, noopBusiness)

			assert.Equal(t, tt.use, cmd.Use)
			assert.Equal(t, "short", cmd.Short)
			assert.Equal(t, "long", cmd.Long)
			assert.NotNil(t, cmd.RunE)
		})
	}

	t.Run("Error - no config file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())

		called := false
		wrapper := func(ctx context.Context, fn func(context.Context, *config.Config) error, cfg *config.Config) error {
			called = true
			return fn(ctx, cfg)
		}

		cmd := CobraCommand("api-server", "short", "long", "{}", wrapper, noopBusiness)
		cmd.SetArgs([]string{})

		err := cmd.Execute()
		assert.ErrorContains(t, err, "loading config")
		assert.False(t, called, "business logic must not run without a config")
	})
}

func TestReadinessOptions(t *testing.T) {
	embedded := func(v string) commoncfg.SourceRef {
		return commoncfg.SourceRef{Source: "embedded", Value: v}
	}

	tests := []struct {
		name      string
		database  config.Database
		wantCount int
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name: "Database disabled skips the connection string",
			// Unloadable refs would fail MakeConnStr if it were called.
			database:  config.Database{Enabled: false},
			wantCount: 3,
			assertErr: assert.NoError,
		},
		{
			name: "Database enabled adds a database checker",
			database: config.Database{
				Enabled:  true,
				Name:     "esignet_login",
				Port:     "5432",
				Host:     embedded("localhost"),
				User:     embedded("postgres"),
				Password: embedded("secret"),
			},
			wantCount: 4,
			assertErr: assert.NoError,
		},
		{
			name:      "Error - database enabled with invalid refs",
			database:  config.Database{Enabled: true},
			assertErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := readinessOptions(&config.Config{Database: tt.database})
			if !tt.assertErr(t, err, fmt.Sprintf("readinessOptions() error = %v", err)) || err != nil {
				assert.ErrorContains(t, err, "making connection string from config")
				return
			}

			assert.Len(t, opts, tt.wantCount)
		})
	}
}

func TestStartStatusServer_InvalidDatabase(t *testing.T) {
	cfg := &config.Config{Database: config.Database{Enabled: true}}

	err := startStatusServer(t.Context(), cfg)
	assert.ErrorContains(t, err, "making connection string from config")
}

func TestStatusListener(t *testing.T) {
	var logs bytes.Buffer
	ctx := slogctx.NewCtx(t.Context(), slog.New(slog.NewTextHandler(&logs, nil)))

	statusListener(ctx, health.State{
		Status: "down",
		CheckState: map[string]health.CheckState{
			"database": {Status: "down", Result: errors.New("connection refused")},
		},
	})

	out := logs.String()
	require.Contains(t, out, "readiness status changed")
	assert.Contains(t, out, "status=down")
	assert.Contains(t, out, `database="connection refused"`)

	logs.Reset()
	statusListener(ctx, health.State{
		Status: "up",
		CheckState: map[string]health.CheckState{
			"database": {Status: "up"},
		},
	})

	assert.Contains(t, logs.String(), "status=up")
	assert.Contains(t, logs.String(), "database=up")
}
