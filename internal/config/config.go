// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/openkcm/esignet-login/internal/origin"
)

type SessionStoreType string

const (
	SessionStoreValkey SessionStoreType = "valkey"
	SessionStoreRedis  SessionStoreType = "redis"
	SessionStoreMemory SessionStoreType = "memory"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	SessionStore SessionStore `yaml:"sessionStore"`
	ValKey       ValKey       `yaml:"valkey"`
	Redis        Redis        `yaml:"redis"`
	Database     Database     `yaml:"database"`
	Migrate      Migrate      `yaml:"migrate"`

	Login Login `yaml:"login"`
	Hosts Hosts `yaml:"hosts"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
	// AdminAddress serves the unauthenticated /v1/hosts endpoints. Empty
	// disables them. Never expose it outside the deployment.
	AdminAddress string `yaml:"adminAddress"`
}

type SessionStore struct {
	Type   SessionStoreType `yaml:"type" default:"valkey"`
	Prefix string           `yaml:"prefix" default:"esignet-login"`
}

type ValKey struct {
	Host      commoncfg.SourceRef `yaml:"host"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
}

type Redis struct {
	Address  commoncfg.SourceRef `yaml:"address"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	DB       int                 `yaml:"db"`
}

type Database struct {
	Enabled  bool                `yaml:"enabled"`
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type Migrate struct {
	// Source is a file:// directory. Empty uses the migrations embedded in
	// the binary.
	Source string `yaml:"source"`
}

type Login struct {
	ClientID            commoncfg.SourceRef `yaml:"clientID"`
	AuthorizeURL        string              `yaml:"authorizeURL"`
	TokenURL            string              `yaml:"tokenURL"`
	UserInfoURL         string              `yaml:"userInfoURL"`
	PrivateKey          commoncfg.SourceRef `yaml:"privateKey"`
	ClientAssertionType string              `yaml:"clientAssertionType" default:"urn:ietf:params:oauth:client-assertion-type:jwt-bearer"`
	Scope               string              `yaml:"scope" default:"openid profile email"`
	SessionTTL          time.Duration       `yaml:"sessionTTL" default:"15m"`
	HTTPTimeout         time.Duration       `yaml:"httpTimeout" default:"10s"`
	UserInfoJWKSURL     string              `yaml:"userInfoJWKSURL"`
	// MTLS is the optional client certificate for the provider endpoints.
	MTLS *commoncfg.MTLS `yaml:"mtls"`
}

type Hosts struct {
	Static []origin.HostConfig `yaml:"static"`
	File   string              `yaml:"file"`
}
