package robot

import (
	"strings"

	"github.com/crmarques/quayconf/internal/app/robot"
	"github.com/crmarques/quayconf/internal/cli/common"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var (
		request robot.Request
		input   common.InputFlags
	)

	command := &cobra.Command{
		Use:   "robot [namespace+]name",
		Short: "Manage a robot account",
		Example: `  quayconf robot production+deployer --description "CI deployments"
  quayconf robot production+deployer --federation issuer=https://token.actions.githubusercontent.com,subject=repo:acme/api:ref:refs/heads/main`,
		Args: cobra.MaximumNArgs(1),
	}

	options := common.NewOptionSet(command)
	options.OptionalString(&request.Description, "description", "robot account description")
	options.Custom("federation", "federated identity as issuer=<url>,subject=<subject>, repeatable", func(values []string) error {
		federations, err := parseFederations(values)
		if err != nil {
			return err
		}
		request.Federations = federations
		return nil
	})
	options.OptionalBool(&request.Append, "append", "add federations without removing unlisted ones")
	options.String(&request.State, "state", "present|absent")
	common.BindInputFlags(command, &input)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			request.Name = args[0]
		}
		return common.RunModule(cmd, deps, globalFlags, &input, options, &request, robot.Execute)
	}
	return command
}

func parseFederations(values []string) ([]robot.Federation, error) {
	federations := make([]robot.Federation, 0, len(values))
	for _, value := range values {
		var federation robot.Federation
		for _, part := range strings.Split(value, ",") {
			key, field, found := strings.Cut(part, "=")
			if !found {
				return nil, common.ValidationError("invalid --federation "+value+": use issuer=<url>,subject=<subject>", nil)
			}
			switch strings.TrimSpace(key) {
			case "issuer":
				federation.Issuer = strings.TrimSpace(field)
			case "subject":
				federation.Subject = strings.TrimSpace(field)
			default:
				return nil, common.ValidationError("invalid --federation key "+key+": use issuer or subject", nil)
			}
		}
		federations = append(federations, federation)
	}
	return federations, nil
}
