package migrate

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/esignet-login/internal/business"
	"github.com/openkcm/esignet-login/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"eSignet login migrations",
		"Applies the database migrations for the host configuration table",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
