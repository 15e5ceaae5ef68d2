package mirror

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/app/lookup"
	"github.com/crmarques/quayconf/internal/app/validation"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/crmarques/quayconf/resource"
	orasregistry "oras.land/oras-go/v2/registry"
)

const (
	kind = "repository"

	defaultSyncInterval = int64(86400)
	syncDateLayout      = "2006-01-02T15:04:05Z"

	StatusSyncing = "SYNCING"
	StatusSyncNow = "SYNC_NOW"
)

// now is replaced in tests.
var now = time.Now

type Request struct {
	Name                     string   `yaml:"name" json:"name" validate:"required"`
	IsEnabled                *bool    `yaml:"is_enabled,omitempty" json:"is_enabled,omitempty"`
	ForceSync                bool     `yaml:"force_sync,omitempty" json:"force_sync,omitempty"`
	RobotUsername            *string  `yaml:"robot_username,omitempty" json:"robot_username,omitempty" validate:"omitempty,contains=+"`
	ExternalReference        *string  `yaml:"external_reference,omitempty" json:"external_reference,omitempty"`
	ExternalRegistryUsername *string  `yaml:"external_registry_username,omitempty" json:"external_registry_username,omitempty"`
	ExternalRegistryPassword *string  `yaml:"external_registry_password,omitempty" json:"external_registry_password,omitempty"`
	VerifyTLS                *bool    `yaml:"verify_tls,omitempty" json:"verify_tls,omitempty"`
	ImageTags                []string `yaml:"image_tags,omitempty" json:"image_tags,omitempty" validate:"omitempty,dive,required"`
	SyncInterval             *string  `yaml:"sync_interval,omitempty" json:"sync_interval,omitempty"`
	SyncStartDate            *string  `yaml:"sync_start_date,omitempty" json:"sync_start_date,omitempty"`
	HTTPProxy                *string  `yaml:"http_proxy,omitempty" json:"http_proxy,omitempty"`
	HTTPSProxy               *string  `yaml:"https_proxy,omitempty" json:"https_proxy,omitempty"`
	NoProxy                  *string  `yaml:"no_proxy,omitempty" json:"no_proxy,omitempty"`
	UnsignedImages           *bool    `yaml:"unsigned_images,omitempty" json:"unsigned_images,omitempty"`
}

// Execute creates or updates the mirroring configuration of a repository
// and optionally triggers a synchronization.
func Execute(ctx context.Context, engine *reconciler.Engine, request Request) (reconciler.Outcome, error) {
	if err := validation.Struct(request); err != nil {
		return reconciler.Outcome{}, err
	}
	interval := defaultSyncInterval
	if request.SyncInterval != nil {
		seconds, err := reconciler.ParseDuration("sync_interval", *request.SyncInterval)
		if err != nil {
			return reconciler.Outcome{}, err
		}
		interval = seconds
	}
	if request.ExternalReference != nil {
		if err := checkExternalReference(*request.ExternalReference); err != nil {
			return reconciler.Outcome{}, err
		}
	}

	name, err := lookup.NewResolver(engine).RepositoryName(ctx, "name", request.Name)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	mirrorPath := lookup.Path("repository", name.Namespace, name.Short, "mirror")
	self := reconciler.Target{Kind: kind, Name: name.String()}

	// The registry answers 403 when the repository is not in the MIRROR state.
	current, err := engine.Fetch(ctx, mirrorPath, reconciler.AbsentOn(http.StatusForbidden))
	if err != nil {
		return reconciler.Outcome{}, err
	}

	if current == nil {
		if err := requireCreateOptions(request); err != nil {
			return reconciler.Outcome{}, err
		}
		if _, _, err := engine.Create(ctx, self, mirrorPath, createPayload(request, interval)); err != nil {
			return reconciler.Outcome{}, err
		}
		if request.ForceSync {
			if _, _, err := engine.Create(ctx, self, mirrorPath+"/sync-now", map[string]any{}); err != nil {
				return reconciler.Outcome{}, err
			}
		}
		return engine.Outcome(true, nil), nil
	}

	status := current.String("sync_status")
	changed := false
	if desired := updateFields(current, request, interval); len(desired) > 0 {
		if status == StatusSyncing {
			return engine.Skip("cannot update the configuration while a synchronization is in progress"), nil
		}
		updated, _, err := engine.Update(ctx, current, self, mirrorPath, desired)
		if err != nil {
			return reconciler.Outcome{}, err
		}
		changed = updated
	}

	if request.ForceSync && status != StatusSyncing && status != StatusSyncNow {
		if _, _, err := engine.Create(ctx, self, mirrorPath+"/sync-now", map[string]any{}); err != nil {
			return reconciler.Outcome{}, err
		}
		changed = true
	}
	return engine.Outcome(changed, nil), nil
}

// checkExternalReference accepts "<registry>/<repository>" without tag or
// digest.
func checkExternalReference(value string) error {
	reference, err := orasregistry.ParseReference(strings.TrimSpace(value))
	if err == nil && reference.Reference == "" {
		return nil
	}
	return faults.Validation(
		fmt.Sprintf("Wrong format for the `external_reference' parameter: %s is not <registry>/<repository>.", value),
		err,
	)
}

func requireCreateOptions(request Request) error {
	missing := make([]string, 0, 3)
	if request.ExternalReference == nil {
		missing = append(missing, "external_reference")
	}
	if request.RobotUsername == nil {
		missing = append(missing, "robot_username")
	}
	if request.ImageTags == nil {
		missing = append(missing, "image_tags")
	}
	if len(missing) > 0 {
		return faults.Validation(fmt.Sprintf("missing required arguments: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

func createPayload(request Request, interval int64) map[string]any {
	startDate := now().UTC().Format(syncDateLayout)
	if request.SyncStartDate != nil && *request.SyncStartDate != "" {
		startDate = *request.SyncStartDate
	}

	payload := map[string]any{
		"is_enabled":                 request.IsEnabled != nil && *request.IsEnabled,
		"robot_username":             *request.RobotUsername,
		"external_reference":         strings.TrimSpace(*request.ExternalReference),
		"root_rule":                  rootRule(request.ImageTags),
		"sync_interval":              interval,
		"sync_start_date":            startDate,
		"external_registry_username": nullable(request.ExternalRegistryUsername),
		"external_registry_config": map[string]any{
			"verify_tls": request.VerifyTLS == nil || *request.VerifyTLS,
			"proxy": map[string]any{
				"http_proxy":  nullable(request.HTTPProxy),
				"https_proxy": nullable(request.HTTPSProxy),
				"no_proxy":    nullable(request.NoProxy),
			},
			"unsigned_images": request.UnsignedImages != nil && *request.UnsignedImages,
		},
	}
	if request.ExternalRegistryPassword != nil && *request.ExternalRegistryPassword != "" {
		payload["external_registry_password"] = *request.ExternalRegistryPassword
	}
	return payload
}

// updateFields lists only the options the caller set. The registry
// configuration is merged into the current one so that unset proxy
// settings survive the update.
func updateFields(current *resource.Object, request Request, interval int64) map[string]any {
	fields := map[string]any{}
	if request.UnsignedImages != nil {
		fields["unsigned_images"] = *request.UnsignedImages
	}
	if request.ExternalRegistryPassword != nil {
		fields["external_registry_password"] = *request.ExternalRegistryPassword
	}
	if request.ExternalRegistryUsername != nil {
		fields["external_registry_username"] = *request.ExternalRegistryUsername
	}
	if request.SyncStartDate != nil {
		fields["sync_start_date"] = *request.SyncStartDate
	}
	if request.SyncInterval != nil {
		fields["sync_interval"] = interval
	}
	if request.RobotUsername != nil {
		fields["robot_username"] = *request.RobotUsername
	}
	if request.ExternalReference != nil {
		fields["external_reference"] = strings.TrimSpace(*request.ExternalReference)
	}
	if request.IsEnabled != nil {
		fields["is_enabled"] = *request.IsEnabled
	}
	if request.ImageTags != nil {
		fields["root_rule"] = rootRule(request.ImageTags)
	}

	if request.VerifyTLS == nil && request.HTTPProxy == nil && request.HTTPSProxy == nil && request.NoProxy == nil {
		return fields
	}
	config := copyMap(current.Map("external_registry_config"))
	if request.VerifyTLS != nil {
		config["verify_tls"] = *request.VerifyTLS
	}
	proxy, _ := config["proxy"].(map[string]any)
	if proxy == nil {
		proxy = map[string]any{}
	}
	for key, value := range map[string]*string{
		"http_proxy":  request.HTTPProxy,
		"https_proxy": request.HTTPSProxy,
		"no_proxy":    request.NoProxy,
	} {
		if value != nil {
			proxy[key] = nullable(value)
		}
	}
	config["proxy"] = proxy
	fields["external_registry_config"] = config
	return fields
}

func rootRule(tags []string) map[string]any {
	return map[string]any{"rule_kind": "tag_glob_csv", "rule_value": tags}
}

// nullable maps an unset or empty option to JSON null.
func nullable(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}

func copyMap(source map[string]any) map[string]any {
	copied := make(map[string]any, len(source))
	for key, value := range source {
		if nested, ok := value.(map[string]any); ok {
			copied[key] = copyMap(nested)
			continue
		}
		copied[key] = value
	}
	return copied
}
