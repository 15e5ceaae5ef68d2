package proxycache

import (
	"context"
	"fmt"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/app/lookup"
	"github.com/crmarques/quayconf/internal/app/validation"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/crmarques/quayconf/resource"
)

const (
	kind = "proxy cache"

	DefaultRegistry   = "quay.io"
	defaultExpiration = int64(86400)
	stateAbsent       = "absent"
)

type Request struct {
	Organization string  `yaml:"organization" json:"organization" validate:"required"`
	Registry     string  `yaml:"registry,omitempty" json:"registry,omitempty"`
	Username     *string `yaml:"username,omitempty" json:"username,omitempty"`
	Password     *string `yaml:"password,omitempty" json:"password,omitempty"`
	Insecure     *bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	Expiration   *string `yaml:"expiration,omitempty" json:"expiration,omitempty"`
	State        string  `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=present absent"`
}

// Execute configures the proxy cache of an organization. The registry has
// no update call: a different configuration is deleted and created again.
// Credentials are never returned, so supplying them always replaces the
// configuration.
func Execute(ctx context.Context, engine *reconciler.Engine, request Request) (reconciler.Outcome, error) {
	if err := validation.Struct(request); err != nil {
		return reconciler.Outcome{}, err
	}
	expiration := defaultExpiration
	if request.Expiration != nil {
		seconds, err := reconciler.ParseDuration("expiration", *request.Expiration)
		if err != nil {
			return reconciler.Outcome{}, err
		}
		expiration = seconds
	}
	upstream := request.Registry
	if upstream == "" {
		upstream = DefaultRegistry
	}

	organization, err := lookup.NewResolver(engine).Organization(ctx, request.Organization)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	if organization == nil {
		if request.State == stateAbsent {
			return engine.Outcome(false, nil), nil
		}
		return reconciler.Outcome{}, faults.Validation(
			fmt.Sprintf("The %s organization does not exist.", request.Organization),
			nil,
		)
	}

	cachePath := lookup.Path("organization", request.Organization, "proxycache")
	self := reconciler.Target{Kind: kind, Name: request.Organization}
	current, err := engine.Fetch(ctx, cachePath)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	configured := current.String("upstream_registry") != ""

	if request.State == stateAbsent {
		changed, err := engine.Delete(ctx, configured, self, cachePath)
		return engine.Outcome(changed, nil), err
	}

	if configured && matches(current, request, upstream, expiration) {
		return engine.Outcome(false, nil), nil
	}

	if _, err := engine.Delete(ctx, configured, self, cachePath); err != nil {
		return reconciler.Outcome{}, err
	}
	payload := map[string]any{
		"org_name":                   request.Organization,
		"expiration_s":               expiration,
		"insecure":                   request.Insecure != nil && *request.Insecure,
		"upstream_registry":          upstream,
		"upstream_registry_username": nullable(request.Username),
		"upstream_registry_password": nullable(request.Password),
	}
	if _, _, err := engine.Create(ctx, self, cachePath, payload); err != nil {
		return reconciler.Outcome{}, err
	}
	return engine.Outcome(true, nil), nil
}

func matches(current *resource.Object, request Request, upstream string, expiration int64) bool {
	if request.Username != nil || request.Password != nil {
		return false
	}
	if current.String("upstream_registry") != upstream {
		return false
	}
	if request.Insecure != nil && !current.Equal("insecure", *request.Insecure) {
		return false
	}
	return request.Expiration == nil || current.Equal("expiration_s", expiration)
}

func nullable(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}
