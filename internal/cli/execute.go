package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/cli/common"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

type Dependencies struct {
	// Lookuper replaces the process environment; nil reads the environment.
	Lookuper   envconfig.Lookuper
	HTTPClient *http.Client
}

func (d Dependencies) commandDependencies() common.CommandDependencies {
	return common.CommandDependencies{
		Lookuper:   d.Lookuper,
		HTTPClient: d.HTTPClient,
	}
}

// Execute runs the command line and reports the module result on stderr:
// changed, unchanged, skipped or failed.
func Execute(deps Dependencies) error {
	root := NewRootCommand(deps)
	command, err := root.ExecuteC()
	stderr := root.ErrOrStderr()

	if !shouldEmitExecutionStatus(command) {
		if err != nil {
			_, _ = fmt.Fprintln(stderr, strings.TrimSpace(err.Error()))
		}
		return err
	}

	color := supportsANSIStatus(stderr, colorDisabled(command))
	if err != nil {
		writeExecutionErrorStatus(stderr, err, color)
		return err
	}
	var recorded *reconciler.Outcome
	if outcome, ok := common.RecordedOutcome(command); ok {
		recorded = &outcome
	}
	writeExecutionStatus(stderr, recorded, color)
	return nil
}

func ExitCodeForError(err error) int {
	if err == nil {
		return 0
	}

	var typedErr *faults.TypedError
	if !errors.As(err, &typedErr) {
		return 1
	}

	switch typedErr.Category {
	case faults.ValidationError:
		return 2
	case faults.NotFoundError:
		return 3
	case faults.UnauthenticatedError, faults.ForbiddenError:
		return 4
	case faults.TransportError, faults.TLSError:
		return 6
	case faults.ServerError:
		return 7
	default:
		return 1
	}
}

// writeExecutionStatus prints one line for a successful run. A nil outcome
// means the command produced no module result.
func writeExecutionStatus(w io.Writer, outcome *reconciler.Outcome, color bool) {
	label, description := "OK", "command executed successfully"
	switch {
	case outcome == nil:
	case outcome.Skipped:
		label, description = "SKIPPED", "command skipped"
		if message := trimSentence(outcome.Message); message != "" {
			description += ": " + message
		}
	case outcome.Changed:
		label, description = "CHANGED", "registry configuration changed"
	default:
		description = "registry configuration already up to date"
	}
	if outcome != nil && len(outcome.Warnings) > 0 {
		description += fmt.Sprintf(" (%d warnings)", len(outcome.Warnings))
	}
	_, _ = fmt.Fprintf(w, "%s %s.\n", formatStatusLabel(label, color), description)
}

func writeExecutionErrorStatus(w io.Writer, err error, color bool) {
	description := "command execution failed"
	if err != nil {
		description = fmt.Sprintf("%s: %s", description, trimSentence(err.Error()))
	}
	_, _ = fmt.Fprintf(w, "%s %s.\n", formatStatusLabel("ERROR", color), description)
}

func trimSentence(value string) string {
	return strings.TrimSuffix(strings.TrimSpace(value), ".")
}

var statusColors = map[string]string{
	"OK":      "\x1b[1;32m",
	"CHANGED": "\x1b[1;33m",
	"SKIPPED": "\x1b[1;36m",
	"ERROR":   "\x1b[1;31m",
}

func formatStatusLabel(status string, color bool) string {
	label := "[" + status + "]"
	code, known := statusColors[status]
	if !color || !known {
		return label
	}
	return code + label + "\x1b[0m"
}

// supportsANSIStatus reports whether w is a color terminal.
func supportsANSIStatus(w io.Writer, disabled bool) bool {
	if disabled {
		return false
	}

	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil || info == nil {
		return false
	}
	if (info.Mode() & os.ModeCharDevice) == 0 {
		return false
	}

	term := strings.TrimSpace(strings.ToLower(os.Getenv("TERM")))
	return term != "" && term != "dumb"
}

func colorDisabled(command *cobra.Command) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return true
	}
	noColor, _ := command.Flags().GetBool("no-color")
	return noColor
}

// shouldEmitExecutionStatus reads the flags cobra already parsed. Group
// commands only print help, and version prints its own line.
func shouldEmitExecutionStatus(command *cobra.Command) bool {
	if command == nil || !command.Runnable() || command.HasAvailableSubCommands() {
		return false
	}
	switch command.Name() {
	case "version", "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	if parent := command.Parent(); parent != nil && parent.Name() == "completion" {
		return false
	}
	if help, _ := command.Flags().GetBool("help"); help {
		return false
	}
	noStatus, _ := command.Flags().GetBool("no-status")
	return !noStatus
}
