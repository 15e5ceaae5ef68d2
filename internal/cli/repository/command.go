package repository

import (
	"strings"

	"github.com/crmarques/quayconf/internal/app/repository"
	"github.com/crmarques/quayconf/internal/cli/common"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var (
		request repository.Request
		input   common.InputFlags
	)

	command := &cobra.Command{
		Use:   "repository [namespace/]name",
		Short: "Manage an image repository",
		Example: `  quayconf repository production/api --visibility public --description "API images"
  quayconf repository production/api --perm team:developers:write --perm user:jdoe:read
  quayconf repository production/api --repo-state READ_ONLY --star`,
		Args: cobra.MaximumNArgs(1),
	}

	options := common.NewOptionSet(command)
	options.OptionalString(&request.Visibility, "visibility", "public|private")
	options.OptionalString(&request.Description, "description", "repository description")
	options.Custom("perm", "permission as type:name[:role], repeatable", func(values []string) error {
		perms, err := parsePermissions(values)
		if err != nil {
			return err
		}
		request.Perms = perms
		return nil
	})
	options.OptionalBool(&request.Append, "append", "add permissions without removing unlisted ones")
	options.OptionalBool(&request.Star, "star", "star the repository for the current user")
	options.OptionalString(&request.RepoState, "repo-state", "NORMAL|READ_ONLY|MIRROR")
	options.OptionalString(&request.AutoPruneMethod, "auto-prune-method", "deprecated: none|tags|date")
	options.OptionalString(&request.AutoPruneValue, "auto-prune-value", "deprecated: number of tags or age")
	options.String(&request.State, "state", "present|absent")
	common.BindInputFlags(command, &input)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			request.Name = args[0]
		}
		return common.RunModule(cmd, deps, globalFlags, &input, options, &request, repository.Execute)
	}
	return command
}

func parsePermissions(values []string) ([]repository.Permission, error) {
	perms := make([]repository.Permission, 0, len(values))
	for _, value := range values {
		parts := strings.Split(value, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, common.ValidationError("invalid --perm "+value+": use type:name[:role]", nil)
		}
		perm := repository.Permission{Type: parts[0], Name: parts[1]}
		if len(parts) == 3 {
			perm.Role = parts[2]
		}
		perms = append(perms, perm)
	}
	return perms, nil
}
