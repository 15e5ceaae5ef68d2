package proxycache

import (
	"github.com/crmarques/quayconf/internal/app/proxycache"
	"github.com/crmarques/quayconf/internal/cli/common"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var (
		request proxycache.Request
		input   common.InputFlags
	)

	command := &cobra.Command{
		Use:     "proxy-cache [organization]",
		Short:   "Manage the proxy cache configuration of an organization",
		Example: `  quayconf proxy-cache dockerhub --registry docker.io --expiration 2d`,
		Args:    cobra.MaximumNArgs(1),
	}

	options := common.NewOptionSet(command)
	options.String(&request.Registry, "registry", "upstream registry (default quay.io)")
	options.OptionalString(&request.Username, "username", "upstream registry user")
	options.OptionalString(&request.Password, "password", "upstream registry password")
	options.OptionalBool(&request.Insecure, "insecure", "skip the upstream certificate validation")
	options.OptionalString(&request.Expiration, "expiration", "cache tag expiration, such as 1d")
	options.String(&request.State, "state", "present|absent")
	common.BindInputFlags(command, &input)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			request.Organization = args[0]
		}
		return common.RunModule(cmd, deps, globalFlags, &input, options, &request, proxycache.Execute)
	}
	return command
}
