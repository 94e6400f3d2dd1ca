package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/esignet-login/internal/business"
	"github.com/openkcm/esignet-login/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"eSignet login API server",
		"eSignet login API server hosts the authorize and authenticate endpoints of the login flow",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
