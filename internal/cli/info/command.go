package info

import (
	"context"

	"github.com/crmarques/quayconf/internal/app/info"
	"github.com/crmarques/quayconf/internal/cli/common"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "info",
		Short: "Read registry information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	command.AddCommand(
		newConfigCommand(deps, globalFlags),
		newPullStatisticsCommand(deps, globalFlags),
	)
	return command
}

func newConfigCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the registry configuration (superuser)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var request struct{}
			return common.RunModule(cmd, deps, globalFlags, nil, nil, &request, func(ctx context.Context, engine *reconciler.Engine, _ struct{}) (reconciler.Outcome, error) {
				return info.Config(ctx, engine)
			})
		},
	}
}

func newPullStatisticsCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var request info.PullStatisticsRequest

	command := &cobra.Command{
		Use:     "pull-statistics <namespace/name>",
		Short:   "Print the pull statistics of a tag or manifest",
		Example: `  quayconf info pull-statistics production/api --tag v1.2.0`,
		Args:    cobra.MaximumNArgs(1),
	}

	options := common.NewOptionSet(command)
	options.String(&request.Tag, "tag", "tag name (default latest)")
	options.String(&request.Digest, "digest", "manifest digest, such as sha256:...")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			request.Repository = args[0]
		}
		return common.RunModule(cmd, deps, globalFlags, nil, options, &request, info.PullStatistics)
	}
	return command
}
