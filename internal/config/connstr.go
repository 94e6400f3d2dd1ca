package config

import (
	"fmt"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

func MakeConnStr(conf Database) (string, error) {
	host, err := commoncfg.LoadValueFromSourceRef(conf.Host)
	if err != nil {
		return "", fmt.Errorf("loading db host: %w", err)
	}

	user, err := commoncfg.LoadValueFromSourceRef(conf.User)
	if err != nil {
		return "", fmt.Errorf("loading db user: %w", err)
	}

	password, err := commoncfg.LoadValueFromSourceRef(conf.Password)
	if err != nil {
		return "", fmt.Errorf("loading db password: %w", err)
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s",
		host, user, string(password), conf.Name, conf.Port), nil
}

// RedisAddress resolves the address and credentials of the Redis server.
func RedisAddress(conf Redis) (address, user, password string, _ error) {
	addr, err := commoncfg.LoadValueFromSourceRef(conf.Address)
	if err != nil {
		return "", "", "", fmt.Errorf("loading redis address: %w", err)
	}

	// Credentials are optional
	var u, p []byte
	if conf.User.Source != "" {
		if u, err = commoncfg.LoadValueFromSourceRef(conf.User); err != nil {
			return "", "", "", fmt.Errorf("loading redis user: %w", err)
		}
	}
	if conf.Password.Source != "" {
		if p, err = commoncfg.LoadValueFromSourceRef(conf.Password); err != nil {
			return "", "", "", fmt.Errorf("loading redis password: %w", err)
		}
	}

	return string(addr), string(u), string(p), nil
}
