package organization

import (
	"github.com/crmarques/quayconf/internal/app/organization"
	"github.com/crmarques/quayconf/internal/cli/common"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var (
		request organization.Request
		input   common.InputFlags
	)

	command := &cobra.Command{
		Use:   "organization [name]",
		Short: "Manage an organization",
		Example: `  quayconf organization production --email ops@example.com --time-machine-expiration 7d
  quayconf organization production --new-name prod
  quayconf organization staging --state absent`,
		Args: cobra.MaximumNArgs(1),
	}

	options := common.NewOptionSet(command)
	options.OptionalString(&request.NewName, "new-name", "new organization name")
	options.OptionalString(&request.Email, "email", "organization email address")
	options.OptionalString(&request.TimeMachineExpiration, "time-machine-expiration", "time machine window, such as 7d or 4w")
	options.OptionalString(&request.AutoPruneMethod, "auto-prune-method", "deprecated: none|tags|date")
	options.OptionalString(&request.AutoPruneValue, "auto-prune-value", "deprecated: number of tags or age")
	options.String(&request.State, "state", "present|absent")
	common.BindInputFlags(command, &input)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			request.Name = args[0]
		}
		return common.RunModule(cmd, deps, globalFlags, &input, options, &request, organization.Execute)
	}
	return command
}
