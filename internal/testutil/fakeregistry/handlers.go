package fakeregistry

import (
	"net/http"
	"strings"
)

func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	if s.Token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Requires authentication"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": s.CurrentUser, "anonymous": false})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	name := r.PathValue("name")
	if !s.Users[name] {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": name, "kind": "user"})
}

func (s *Server) organizationView(organization *Organization) map[string]any {
	teams := make(map[string]any, len(organization.Teams))
	for name, role := range organization.Teams {
		teams[name] = map[string]any{"name": name, "role": role}
	}
	return map[string]any{
		"name":             organization.Name,
		"email":            organization.Email,
		"tag_expiration_s": organization.TagExpirationS,
		"teams":            teams,
		"is_admin":         true,
	}
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	organization := s.Organizations[r.PathValue("org")]
	if organization == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, s.organizationView(organization))
}

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request, body map[string]any) {
	name := stringValue(body, "name")
	if name == "" {
		badRequest(w, "name is required")
		return
	}
	if s.Organizations[name] != nil || s.Users[name] {
		badRequest(w, "A user or organization with this name already exists")
		return
	}
	s.Organizations[name] = &Organization{
		Name:           name,
		Email:          stringValue(body, "email"),
		TagExpirationS: 1209600,
		Teams:          map[string]string{"owners": "admin"},
		Robots:         map[string]*Robot{},
	}
	created(w)
}

func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request, body map[string]any) {
	organization := s.Organizations[r.PathValue("org")]
	if organization == nil {
		notFound(w)
		return
	}
	if email, ok := body["email"].(string); ok {
		organization.Email = email
	}
	if expiration, ok := intValue(body, "tag_expiration_s"); ok {
		organization.TagExpirationS = expiration
	}
	writeJSON(w, http.StatusOK, s.organizationView(organization))
}

func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	name := r.PathValue("org")
	if s.Organizations[name] == nil {
		notFound(w)
		return
	}
	delete(s.Organizations, name)
	for fullName := range s.Repositories {
		if strings.HasPrefix(fullName, name+"/") {
			delete(s.Repositories, fullName)
		}
	}
	noContent(w)
}

func (s *Server) renameOrganization(w http.ResponseWriter, r *http.Request, body map[string]any) {
	name := r.PathValue("org")
	organization := s.Organizations[name]
	if organization == nil {
		notFound(w)
		return
	}
	newName := stringValue(body, "name")
	if newName == "" || s.Organizations[newName] != nil {
		badRequest(w, "Invalid new organization name")
		return
	}
	delete(s.Organizations, name)
	organization.Name = newName
	s.Organizations[newName] = organization
	for fullName, repository := range s.Repositories {
		if short, found := strings.CutPrefix(fullName, name+"/"); found {
			delete(s.Repositories, fullName)
			s.Repositories[newName+"/"+short] = repository
		}
	}
	writeJSON(w, http.StatusOK, s.organizationView(organization))
}

// policies returns the policy list addressed by the request, or nil when
// the owning organization or repository does not exist.
func (s *Server) policies(r *http.Request) *[]map[string]any {
	if org := r.PathValue("org"); org != "" {
		if organization := s.Organizations[org]; organization != nil {
			return &organization.Policies
		}
		return nil
	}
	if repository := s.Repositories[fullName(r)]; repository != nil {
		return &repository.Policies
	}
	return nil
}

func (s *Server) listPolicies(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	policies := s.policies(r)
	if policies == nil {
		notFound(w)
		return
	}
	items := make([]any, 0, len(*policies))
	for _, policy := range *policies {
		items = append(items, policy)
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": items})
}

func (s *Server) createPolicy(w http.ResponseWriter, r *http.Request, body map[string]any) {
	policies := s.policies(r)
	if policies == nil {
		notFound(w)
		return
	}
	policy := newPolicy(body)
	*policies = append(*policies, policy)
	writeJSON(w, http.StatusCreated, map[string]any{"uuid": policy["uuid"]})
}

func (s *Server) updatePolicy(w http.ResponseWriter, r *http.Request, body map[string]any) {
	policies := s.policies(r)
	if policies == nil {
		notFound(w)
		return
	}
	id := r.PathValue("uuid")
	for idx, policy := range *policies {
		if policy["uuid"] == id {
			updated := newPolicy(body)
			updated["uuid"] = id
			(*policies)[idx] = updated
			writeJSON(w, http.StatusOK, updated)
			return
		}
	}
	notFound(w)
}

func (s *Server) deletePolicy(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	policies := s.policies(r)
	if policies == nil {
		notFound(w)
		return
	}
	id := r.PathValue("uuid")
	for idx, policy := range *policies {
		if policy["uuid"] == id {
			*policies = append((*policies)[:idx], (*policies)[idx+1:]...)
			noContent(w)
			return
		}
	}
	notFound(w)
}

// robots returns the robot namespace addressed by the request and the
// full robot name prefix.
func (s *Server) robots(r *http.Request) (map[string]*Robot, string) {
	if org := r.PathValue("org"); org != "" {
		organization := s.Organizations[org]
		if organization == nil {
			return nil, ""
		}
		return organization.Robots, org + "+"
	}
	return s.UserRobots, s.CurrentUser + "+"
}

func robotView(prefix string, short string, robot *Robot) map[string]any {
	return map[string]any{
		"name":        prefix + short,
		"description": robot.Description,
		"token":       robot.Token,
	}
}

// robotMissing mirrors the registry, which answers 400 for unknown robots.
func robotMissing(w http.ResponseWriter, short string) {
	badRequest(w, "Could not find robot with specified username "+short)
}

func (s *Server) getRobot(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	robots, prefix := s.robots(r)
	short := r.PathValue("short")
	robot := robots[short]
	if robot == nil {
		robotMissing(w, short)
		return
	}
	writeJSON(w, http.StatusOK, robotView(prefix, short, robot))
}

func (s *Server) createRobot(w http.ResponseWriter, r *http.Request, body map[string]any) {
	robots, prefix := s.robots(r)
	if robots == nil {
		notFound(w)
		return
	}
	short := r.PathValue("short")
	if robots[short] != nil {
		badRequest(w, "Existing robot with name: "+prefix+short)
		return
	}
	robot := &Robot{Description: stringValue(body, "description"), Token: "token-" + short}
	robots[short] = robot
	writeJSON(w, http.StatusCreated, robotView(prefix, short, robot))
}

func (s *Server) deleteRobot(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	robots, _ := s.robots(r)
	short := r.PathValue("short")
	if robots[short] == nil {
		robotMissing(w, short)
		return
	}
	delete(robots, short)
	noContent(w)
}

func (s *Server) getFederation(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	robots, _ := s.robots(r)
	short := r.PathValue("short")
	robot := robots[short]
	if robot == nil {
		robotMissing(w, short)
		return
	}
	items := make([]any, 0, len(robot.Federations))
	for _, federation := range robot.Federations {
		items = append(items, federation)
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) setFederation(w http.ResponseWriter, r *http.Request, body map[string]any) {
	robots, _ := s.robots(r)
	short := r.PathValue("short")
	robot := robots[short]
	if robot == nil {
		robotMissing(w, short)
		return
	}
	items, _ := body["items"].([]any)
	robot.Federations = robot.Federations[:0]
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		robot.Federations = append(robot.Federations, map[string]any{
			"issuer":  fields["issuer"],
			"subject": fields["subject"],
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) getProxyCache(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	organization := s.Organizations[r.PathValue("org")]
	if organization == nil {
		notFound(w)
		return
	}
	if organization.ProxyCache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"upstream_registry": "", "expiration_s": 86400, "insecure": false})
		return
	}
	writeJSON(w, http.StatusOK, organization.ProxyCache)
}

func (s *Server) createProxyCache(w http.ResponseWriter, r *http.Request, body map[string]any) {
	organization := s.Organizations[r.PathValue("org")]
	if organization == nil {
		notFound(w)
		return
	}
	if organization.ProxyCache != nil {
		badRequest(w, "Proxy cache already configured")
		return
	}
	expiration, _ := intValue(body, "expiration_s")
	insecure, _ := body["insecure"].(bool)
	organization.ProxyCache = map[string]any{
		"upstream_registry": stringValue(body, "upstream_registry"),
		"expiration_s":      expiration,
		"insecure":          insecure,
	}
	created(w)
}

func (s *Server) deleteProxyCache(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	organization := s.Organizations[r.PathValue("org")]
	if organization == nil || organization.ProxyCache == nil {
		notFound(w)
		return
	}
	organization.ProxyCache = nil
	noContent(w)
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
	writeJSON(w, http.StatusOK, map[string]any{"config": s.Config, "warning": false})
}
