package mirror

import (
	"github.com/crmarques/quayconf/internal/app/mirror"
	"github.com/crmarques/quayconf/internal/cli/common"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var (
		request mirror.Request
		input   common.InputFlags
	)

	command := &cobra.Command{
		Use:   "mirror [namespace/]repository",
		Short: "Manage the mirror configuration of a repository",
		Example: `  quayconf mirror production/alpine --external-reference docker.io/library/alpine \
    --robot-username production+mirror --image-tags 'latest,3.*' --sync-interval 1d`,
		Args: cobra.MaximumNArgs(1),
	}

	options := common.NewOptionSet(command)
	options.OptionalBool(&request.IsEnabled, "is-enabled", "enable the synchronization")
	options.Bool(&request.ForceSync, "force-sync", "start a synchronization now")
	options.OptionalString(&request.RobotUsername, "robot-username", "robot account that pushes the images")
	options.OptionalString(&request.ExternalReference, "external-reference", "source repository, without tag")
	options.OptionalString(&request.ExternalRegistryUsername, "external-registry-username", "source registry user")
	options.OptionalString(&request.ExternalRegistryPassword, "external-registry-password", "source registry password")
	options.OptionalBool(&request.VerifyTLS, "verify-tls", "validate the source registry certificate")
	options.StringSlice(&request.ImageTags, "image-tags", "tag patterns to synchronize")
	options.OptionalString(&request.SyncInterval, "sync-interval", "interval between synchronizations, such as 1d")
	options.OptionalString(&request.SyncStartDate, "sync-start-date", "first synchronization, RFC 3339")
	options.OptionalString(&request.HTTPProxy, "http-proxy", "HTTP proxy for the source registry")
	options.OptionalString(&request.HTTPSProxy, "https-proxy", "HTTPS proxy for the source registry")
	options.OptionalString(&request.NoProxy, "no-proxy", "hosts reached without proxy")
	options.OptionalBool(&request.UnsignedImages, "unsigned-images", "accept unsigned images")
	common.BindInputFlags(command, &input)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			request.Name = args[0]
		}
		return common.RunModule(cmd, deps, globalFlags, &input, options, &request, mirror.Execute)
	}
	return command
}
