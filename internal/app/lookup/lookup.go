package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/crmarques/quayconf/resource"
)

const (
	NamespaceSeparator = "/"
	RobotSeparator     = "+"
)

// Path joins escaped segments into an API path.
func Path(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return strings.Join(escaped, "/")
}

// Split cuts "namespace<sep>short". found is false when value has no
// namespace part.
func Split(value string, separator string) (namespace string, short string, found bool) {
	trimmed := strings.Trim(strings.TrimSpace(value), "/")
	namespace, short, found = strings.Cut(trimmed, separator)
	if !found {
		return "", trimmed, false
	}
	return namespace, short, true
}

// Name is a namespaced object name.
type Name struct {
	Namespace string
	Short     string
}

func (n Name) String() string {
	return n.Namespace + NamespaceSeparator + n.Short
}

// Path is the escaped "namespace/short" form used in repository paths.
func (n Name) Path() string {
	return Path(n.Namespace, n.Short)
}

// Resolver answers the existence questions that modules ask before they
// mutate anything.
type Resolver struct {
	engine *reconciler.Engine
}

func NewResolver(engine *reconciler.Engine) *Resolver {
	return &Resolver{engine: engine}
}

// RepositoryName splits "namespace/repository". Without a namespace the
// personal namespace of the authenticated user is used.
func (r *Resolver) RepositoryName(ctx context.Context, option string, value string) (Name, error) {
	namespace, short, found := Split(value, NamespaceSeparator)
	if found {
		if namespace == "" || short == "" || strings.Contains(short, NamespaceSeparator) {
			return Name{}, faults.Validation(
				fmt.Sprintf("Wrong format for the `%s' parameter: %s is not <namespace>/<name>.", option, value),
				nil,
			)
		}
		return Name{Namespace: namespace, Short: short}, nil
	}
	if short == "" {
		return Name{}, faults.Validation(fmt.Sprintf("missing required argument: %s", option), nil)
	}

	user, err := r.CurrentUser(ctx)
	if err != nil {
		return Name{}, err
	}
	if user == "" {
		return Name{}, faults.Validation(
			fmt.Sprintf(
				"The `%s' parameter must include the namespace: <namespace>/%s (no token was provided to look up your personal namespace).",
				option,
				short,
			),
			nil,
		)
	}
	return Name{Namespace: user, Short: short}, nil
}

// CurrentUser returns the account behind the token, or "" when the calls
// are anonymous.
func (r *Resolver) CurrentUser(ctx context.Context) (string, error) {
	if !r.engine.Authenticated() {
		return "", nil
	}
	user, err := r.engine.Fetch(ctx, "user/", reconciler.AbsentOn(http.StatusUnauthorized))
	if err != nil || user == nil {
		return "", err
	}
	return user.String("username"), nil
}

func (r *Resolver) Organization(ctx context.Context, name string) (*resource.Object, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	return r.engine.Fetch(ctx, Path("organization", name))
}

// Namespace returns the organization or the user account called name.
func (r *Resolver) Namespace(ctx context.Context, name string) (*resource.Object, error) {
	organization, err := r.Organization(ctx, name)
	if err != nil || organization != nil {
		return organization, err
	}
	return r.engine.Fetch(ctx, Path("users", name))
}

// TeamExists looks for team in the teams map of the organization.
func (r *Resolver) TeamExists(ctx context.Context, organization string, team string) (bool, error) {
	object, err := r.Organization(ctx, organization)
	if err != nil || object == nil {
		return false, err
	}
	_, found := object.Map("teams")[team]
	return found, nil
}

// AccountExists reports whether a user or a robot account exists. Robot
// names use the "namespace+short" form.
func (r *Resolver) AccountExists(ctx context.Context, name string) (bool, error) {
	namespace, short, isRobot := Split(name, RobotSeparator)
	if !isRobot {
		account, err := r.engine.Fetch(ctx, Path("users", name))
		return account != nil, err
	}

	organization, err := r.Organization(ctx, namespace)
	if err != nil {
		return false, err
	}
	robotPath := Path("user", "robots", short)
	if organization != nil {
		robotPath = Path("organization", namespace, "robots", short)
	}
	robot, err := r.engine.Fetch(ctx, robotPath, reconciler.AbsentOn(http.StatusBadRequest))
	return robot != nil, err
}
