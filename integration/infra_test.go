//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/goccy/go-yaml"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/esignet-login/internal/clientauth/clientauthtest"
	"github.com/openkcm/esignet-login/internal/config"
	"github.com/openkcm/esignet-login/internal/dbtest/postgrestest"
	"github.com/openkcm/esignet-login/internal/dbtest/valkeytest"
)

const statusURL = "http://localhost:8888/"

type closeFunc func(ctx context.Context)

type infraStat struct {
	PostgresPort   nat.Port
	ValKeyPort     nat.Port
	Provider       *provider
	ConfigFilePath string
	Procdir        string
	BaseURL        string
	Cfg            config.Config

	closeFuncs []closeFunc
}

func initInfra(t *testing.T, exeName string) (istat infraStat) {
	t.Helper()

	// The config is read from $PWD/config.yaml, every process gets its own directory.
	wd, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")
	istat.Procdir = filepath.Join(wd, exeName+"-test")
	istat.ConfigFilePath = filepath.Join(istat.Procdir, "config.yaml")

	err = os.MkdirAll(istat.Procdir, fs.ModePerm)
	require.NoError(t, err, "failed to create a dir for the process")

	err = os.WriteFile(istat.ConfigFilePath, []byte(validConfig), fs.ModePerm)
	require.NoError(t, err, "failed to write config file")

	err = commoncfg.LoadConfig(&istat.Cfg, nil, istat.Procdir)
	require.NoError(t, err, "failed to load config")

	istat.Cfg.HTTP.Address = "localhost:" + freePort(t)
	istat.BaseURL = "http://" + istat.Cfg.HTTP.Address

	return istat
}

func freePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err, "failed to find a free port")
	defer l.Close()

	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)

	return port
}

func (istat *infraStat) PreparePostgres(t *testing.T) {
	t.Helper()

	pgClient, pgPort, pgTerminate := postgrestest.Start(t.Context())
	pgClient.Close()

	istat.PostgresPort = pgPort
	istat.closeFuncs = append(istat.closeFuncs, pgTerminate)

	istat.Cfg.Database.Enabled = true
	istat.Cfg.Database.Name = postgrestest.DBName
	istat.Cfg.Database.User = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBUser}
	istat.Cfg.Database.Password = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBPassword}
	istat.Cfg.Database.Host = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBHost}
	istat.Cfg.Database.Port = pgPort.Port()
}

func (istat *infraStat) PrepareValKey(t *testing.T) {
	t.Helper()

	vkClient, vkPort, vkTerminate := valkeytest.Start(t.Context())
	vkClient.Close()

	istat.ValKeyPort = vkPort
	istat.closeFuncs = append(istat.closeFuncs, vkTerminate)

	istat.Cfg.SessionStore.Type = config.SessionStoreValkey
	istat.Cfg.ValKey.Host = commoncfg.SourceRef{Source: "embedded", Value: net.JoinHostPort("localhost", vkPort.Port())}
	istat.Cfg.ValKey.User = commoncfg.SourceRef{Source: "embedded", Value: ""}
	istat.Cfg.ValKey.Password = commoncfg.SourceRef{Source: "embedded", Value: ""}
}

// PrepareProvider starts a fake identity provider and points the login
// configuration at it.
func (istat *infraStat) PrepareProvider(t *testing.T) {
	t.Helper()

	istat.Provider = newProvider(t)
	istat.closeFuncs = append(istat.closeFuncs, func(context.Context) { istat.Provider.Close() })

	istat.Cfg.Login.ClientID = commoncfg.SourceRef{Source: "embedded", Value: "integration-client"}
	istat.Cfg.Login.PrivateKey = commoncfg.SourceRef{Source: "embedded", Value: clientauthtest.EncodedRSAKey(t)}
	istat.Cfg.Login.AuthorizeURL = istat.Provider.URL + "/authorize"
	istat.Cfg.Login.TokenURL = istat.Provider.URL + "/token"
	istat.Cfg.Login.UserInfoURL = istat.Provider.URL + "/userinfo"
}

// PrepareConfig writes a config file for running the test into the ConfigFilePath.
func (istat *infraStat) PrepareConfig(t *testing.T) {
	t.Helper()

	data, err := yaml.Marshal(istat.Cfg)
	require.NoError(t, err, "failed to encode config")

	err = os.WriteFile(istat.ConfigFilePath, data, fs.ModePerm)
	require.NoError(t, err, "failed to write config")
}

// StartProcess runs the binary with the given command in the process
// directory and waits until the status server answers.
func (istat *infraStat) StartProcess(t *testing.T, cmdName string) {
	t.Helper()

	currdir, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")

	t.Chdir(istat.Procdir)

	cmdOutPath := filepath.Join(currdir, cmdName+".log")
	cmdOut, err := os.Create(cmdOutPath)
	require.NoError(t, err, "failed to create a log file")

	cmd := exec.CommandContext(t.Context(), filepath.Join(currdir, binary), cmdName)
	cmd.Stdout = cmdOut
	cmd.Stderr = cmdOut

	t.Logf("starting an app process. Logs will be saved into %s", cmdOutPath)
	require.NoError(t, cmd.Start(), "could not start command")

	// Stop gracefully so that coverprofiles are written.
	istat.closeFuncs = append(istat.closeFuncs, func(context.Context) {
		_ = syscall.Kill(cmd.Process.Pid, syscall.SIGTERM)

		err := cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && errors.As(err, &exitErr) {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && !ws.Signaled() && ws.ExitStatus() != 0 {
				t.Errorf("process exited abnormally: %s", err)
			}
		}
		cmdOut.Close()
	})

	require.Eventually(t, func() bool {
		resp, err := http.Get(statusURL)
		if err != nil {
			return false
		}
		resp.Body.Close()

		return true
	}, 10*time.Second, 100*time.Millisecond, "status server did not start")

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", istat.Cfg.HTTP.Address)
		if err != nil {
			return false
		}
		conn.Close()

		return true
	}, 10*time.Second, 100*time.Millisecond, "api server did not start")
}

func (istat *infraStat) Close(ctx context.Context) {
	for i := len(istat.closeFuncs) - 1; i >= 0; i-- {
		istat.closeFuncs[i](ctx)
	}

	os.Remove(istat.ConfigFilePath)
	os.RemoveAll(istat.Procdir)
}

// provider fakes the token and user-info endpoints of the identity provider.
type provider struct {
	*httptest.Server

	tokenCalls atomic.Int32
}

func newProvider(t *testing.T) *provider {
	t.Helper()

	p := &provider{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "integration-client", r.PostForm.Get("client_id"))
		assert.NotEmpty(t, r.PostForm.Get("client_assertion"))
		assert.NotEmpty(t, r.PostForm.Get("code_verifier"))

		if r.PostForm.Get("code") != "valid-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "integration-access-token",
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer integration-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":   "user-1234",
			"name":  "Jane Doe",
			"email": "jane@example.com",
		})
	})

	p.Server = httptest.NewServer(mux)

	return p
}
