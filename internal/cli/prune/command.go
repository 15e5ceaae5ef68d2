package prune

import (
	"github.com/crmarques/quayconf/internal/app/prune"
	"github.com/crmarques/quayconf/internal/cli/common"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "prune",
		Short: "Manage auto-prune policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	command.AddCommand(
		newOrganizationCommand(deps, globalFlags),
		newRepositoryCommand(deps, globalFlags),
	)
	return command
}

type policyOptions struct {
	append            **bool
	method            *string
	value             *string
	tagPattern        **string
	tagPatternMatches **bool
	state             *string
}

func bindPolicyOptions(options *common.OptionSet, targets policyOptions) {
	options.OptionalBool(targets.append, "append", "keep the other policies of the namespace")
	options.String(targets.method, "method", "tags|date")
	options.String(targets.value, "value", "number of tags to keep, or maximum age such as 4w")
	options.OptionalString(targets.tagPattern, "tag-pattern", "regular expression selecting the tags")
	options.OptionalBool(targets.tagPatternMatches, "tag-pattern-matches", "prune the tags matching the pattern")
	options.String(targets.state, "state", "present|absent")
}

func newOrganizationCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var (
		request prune.OrganizationRequest
		input   common.InputFlags
	)

	command := &cobra.Command{
		Use:     "organization [namespace]",
		Short:   "Manage the auto-prune policy of an organization or personal namespace",
		Example: `  quayconf prune organization production --method tags --value 20`,
		Args:    cobra.MaximumNArgs(1),
	}

	options := common.NewOptionSet(command)
	bindPolicyOptions(options, policyOptions{
		append:            &request.Append,
		method:            &request.Method,
		value:             &request.Value,
		tagPattern:        &request.TagPattern,
		tagPatternMatches: &request.TagPatternMatches,
		state:             &request.State,
	})
	common.BindInputFlags(command, &input)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			request.Namespace = args[0]
		}
		return common.RunModule(cmd, deps, globalFlags, &input, options, &request, prune.ExecuteOrganization)
	}
	return command
}

func newRepositoryCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var (
		request prune.RepositoryRequest
		input   common.InputFlags
	)

	command := &cobra.Command{
		Use:     "repository [namespace/]name",
		Short:   "Manage the auto-prune policy of a repository",
		Example: `  quayconf prune repository production/api --method date --value 4w --tag-pattern '^v'`,
		Args:    cobra.MaximumNArgs(1),
	}

	options := common.NewOptionSet(command)
	bindPolicyOptions(options, policyOptions{
		append:            &request.Append,
		method:            &request.Method,
		value:             &request.Value,
		tagPattern:        &request.TagPattern,
		tagPatternMatches: &request.TagPatternMatches,
		state:             &request.State,
	})
	common.BindInputFlags(command, &input)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			request.Repository = args[0]
		}
		return common.RunModule(cmd, deps, globalFlags, &input, options, &request, prune.ExecuteRepository)
	}
	return command
}
