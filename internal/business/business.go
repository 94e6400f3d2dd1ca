package business

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/redis/go-redis/v9"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/esignet-login/internal/business/server"
	"github.com/openkcm/esignet-login/internal/config"
	"github.com/openkcm/esignet-login/internal/login"
	"github.com/openkcm/esignet-login/internal/origin"
	"github.com/openkcm/esignet-login/internal/origin/originsql"
	"github.com/openkcm/esignet-login/internal/session"
	"github.com/openkcm/esignet-login/internal/session/sessionmem"
	"github.com/openkcm/esignet-login/internal/session/sessionredis"
	"github.com/openkcm/esignet-login/internal/session/sessionvalkey"
)

// Main starts the login API server
func Main(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var hostRepo *originsql.Repository
	if cfg.Database.Enabled {
		db, err := dbPoolFromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		hostRepo = originsql.NewRepository(db)
	}

	store, closeStore, err := sessionStoreFromConfig(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hosts, err := hostsFromConfig(ctx, cfg, hostRepo)
	if err != nil {
		return err
	}

	manager, err := loginManagerFromConfig(cfg, hosts, store)
	if err != nil {
		return err
	}

	slogctx.Info(ctx, "Starting the login API",
		"session_store", cfg.SessionStore.Type,
		"hosts", len(hosts.Hosts()),
		"admin_address", cfg.HTTP.AdminAddress,
	)

	// hostRepo must stay an untyped nil when the database is disabled
	var repo server.HostRepository
	if hostRepo != nil {
		repo = hostRepo
	}

	return server.StartHTTPServer(ctx, cfg, manager, repo)
}

func dbPoolFromConfig(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("making dsn from config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing pgxpool config: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	return db, nil
}

func sessionStoreFromConfig(cfg *config.Config) (_ session.Store, closeFn func(), _ error) {
	switch cfg.SessionStore.Type {
	case config.SessionStoreValkey, "":
		client, err := valkeyClientFromConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		return sessionvalkey.NewStore(client, cfg.SessionStore.Prefix), client.Close, nil
	case config.SessionStoreRedis:
		client, err := redisClientFromConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		return sessionredis.NewStore(client, cfg.SessionStore.Prefix), func() { _ = client.Close() }, nil
	case config.SessionStoreMemory:
		return sessionmem.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store type %q", cfg.SessionStore.Type)
	}
}

func valkeyClientFromConfig(cfg *config.Config) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyOpts := valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	}

	if cfg.ValKey.SecretRef.Type == commoncfg.MTLSSecretType {
		tlsConfig, err := commoncfg.LoadMTLSConfig(&cfg.ValKey.SecretRef.MTLS)
		if err != nil {
			return nil, fmt.Errorf("loading valkey mTLS config from secret ref: %w", err)
		}

		valkeyOpts.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return client, nil
}

func redisClientFromConfig(cfg *config.Config) (*redis.Client, error) {
	address, user, password, err := config.RedisAddress(cfg.Redis)
	if err != nil {
		return nil, err
	}

	return redis.NewClient(&redis.Options{
		Addr:     address,
		Username: user,
		Password: password,
		DB:       cfg.Redis.DB,
	}), nil
}

// hostsFromConfig merges the static hosts, the host file and the persisted
// hosts. Later sources override earlier ones for the same origin.
func hostsFromConfig(ctx context.Context, cfg *config.Config, repo *originsql.Repository) (*origin.Registry, error) {
	hosts := append([]origin.HostConfig{}, cfg.Hosts.Static...)

	if cfg.Hosts.File != "" {
		fromFile, err := origin.LoadFile(cfg.Hosts.File)
		if err != nil {
			return nil, fmt.Errorf("loading host file: %w", err)
		}
		hosts = append(hosts, fromFile...)
	}

	if repo != nil {
		persisted, err := repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing persisted hosts: %w", err)
		}
		hosts = append(hosts, persisted...)
	}

	registry, err := origin.New(hosts...)
	if err != nil {
		return nil, fmt.Errorf("creating host registry: %w", err)
	}

	return registry, nil
}

func loginManagerFromConfig(cfg *config.Config, hosts *origin.Registry, store session.Store) (*login.Manager, error) {
	loginCfg, err := loginConfigFromConfig(cfg.Login)
	if err != nil {
		return nil, err
	}

	httpClient, err := loadHTTPClient(cfg.Login)
	if err != nil {
		return nil, fmt.Errorf("loading http client: %w", err)
	}

	manager, err := login.NewManager(loginCfg, hosts, store, login.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating login manager: %w", err)
	}

	return manager, nil
}

func loginConfigFromConfig(cfg config.Login) (login.Config, error) {
	var errs []error

	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.ClientID)
	if err != nil {
		errs = append(errs, fmt.Errorf("loading client id: %w", err))
	}

	privateKey, err := commoncfg.LoadValueFromSourceRef(cfg.PrivateKey)
	if err != nil {
		errs = append(errs, fmt.Errorf("loading private key: %w", err))
	}

	if len(errs) > 0 {
		return login.Config{}, errors.Join(errs...)
	}

	return login.Config{
		ClientID:            string(clientID),
		AuthorizeURL:        cfg.AuthorizeURL,
		TokenURL:            cfg.TokenURL,
		UserInfoURL:         cfg.UserInfoURL,
		PrivateKey:          string(privateKey),
		ClientAssertionType: cfg.ClientAssertionType,
		Scope:               cfg.Scope,
		SessionTTL:          cfg.SessionTTL,
		UserInfoJWKSURL:     cfg.UserInfoJWKSURL,
	}, nil
}

// loadHTTPClient returns the client for the provider endpoints, presenting a
// client certificate when mTLS is configured.
func loadHTTPClient(cfg config.Login) (*http.Client, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.MTLS == nil {
		return client, nil
	}

	tlsConfig, err := commoncfg.LoadMTLSConfig(cfg.MTLS)
	if err != nil {
		return nil, fmt.Errorf("loading mTLS config: %w", err)
	}

	client.Transport = &http.Transport{TLSClientConfig: tlsConfig}

	return client, nil
}
