package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd(t *testing.T) {
	cmd := rootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Equal(t, "esignet-login", cmd.Use)
	assert.ElementsMatch(t, []string{"version", "api-server", "migrate"}, names)

	flag := cmd.PersistentFlags().Lookup("graceful-shutdown")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "1s", flag.DefValue)
	}
}
