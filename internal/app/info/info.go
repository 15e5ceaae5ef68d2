// Package info holds the read-only commands. They never report a change.
package info

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/app/lookup"
	"github.com/crmarques/quayconf/internal/app/validation"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/crmarques/quayconf/resource"
	"github.com/opencontainers/go-digest"
)

const defaultTag = "latest"

// Config returns the registry configuration. It requires a superuser token.
func Config(ctx context.Context, engine *reconciler.Engine) (reconciler.Outcome, error) {
	object, err := engine.Fetch(ctx, "superuser/config")
	if err != nil {
		return reconciler.Outcome{}, err
	}
	config := object.Map("config")
	if config == nil {
		config = map[string]any{}
	}
	return engine.Outcome(false, map[string]any{"config": config}), nil
}

type PullStatisticsRequest struct {
	Repository string `yaml:"repository" json:"repository" validate:"required"`
	Tag        string `yaml:"tag,omitempty" json:"tag,omitempty" validate:"excluded_with=Digest"`
	Digest     string `yaml:"digest,omitempty" json:"digest,omitempty"`
}

// PullStatistics returns the pull counters of a tag or of a manifest.
func PullStatistics(ctx context.Context, engine *reconciler.Engine, request PullStatisticsRequest) (reconciler.Outcome, error) {
	if err := validation.Struct(request); err != nil {
		return reconciler.Outcome{}, err
	}

	namespace, repository, found := lookup.Split(request.Repository, lookup.NamespaceSeparator)
	if !found || namespace == "" || repository == "" {
		return reconciler.Outcome{}, faults.Validation(
			fmt.Sprintf(
				"The `repository' parameter must include the organization: <organization>/%s.",
				strings.Trim(request.Repository, "/"),
			),
			nil,
		)
	}

	var statsPath string
	if request.Digest != "" {
		parsed, err := digest.Parse(strings.TrimSpace(request.Digest))
		if err != nil {
			return reconciler.Outcome{}, faults.Validation(
				fmt.Sprintf("Wrong format for the `digest' parameter: %s is not a valid digest.", request.Digest),
				err,
			)
		}
		statsPath = lookup.Path("repository", namespace, repository, "manifest", parsed.String(), "pull_statistics")
	} else {
		tag := request.Tag
		if tag == "" {
			tag = defaultTag
		}
		statsPath = lookup.Path("repository", namespace, repository, "tag", tag, "pull_statistics")
	}

	details, err := lookup.NewResolver(engine).Namespace(ctx, namespace)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	if details == nil {
		return engine.Outcome(false, map[string]any{"stats": []any{}}), nil
	}

	stats, err := engine.Fetch(ctx, statsPath)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	return engine.Outcome(false, statsData(stats)), nil
}

// statsData returns the counters at the top level of the result, with
// current_manifest_digest renamed to manifest_digest so that tag and
// manifest statistics share one shape.
func statsData(stats *resource.Object) map[string]any {
	data := map[string]any{}
	for key, value := range stats.Fields() {
		if key == "current_manifest_digest" {
			key = "manifest_digest"
		}
		data[key] = value
	}
	return data
}
