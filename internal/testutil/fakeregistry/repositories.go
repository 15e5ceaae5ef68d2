package fakeregistry

import (
	"net/http"
)

func repositoryView(namespace string, name string, repository *Repository) map[string]any {
	return map[string]any{
		"namespace":   namespace,
		"name":        name,
		"kind":        "image",
		"description": repository.Description,
		"is_public":   repository.Public,
		"is_starred":  repository.Starred,
		"state":       repository.State,
	}
}

func (s *Server) namespaceExists(namespace string) bool {
	return s.Organizations[namespace] != nil || s.Users[namespace]
}

func (s *Server) createRepository(w http.ResponseWriter, _ *http.Request, body map[string]any) {
	namespace := stringValue(body, "namespace")
	name := stringValue(body, "repository")
	if !s.namespaceExists(namespace) {
		notFound(w)
		return
	}
	key := namespace + "/" + name
	if s.Repositories[key] != nil {
		badRequest(w, "Repository already exists")
		return
	}
	s.Repositories[key] = newRepository(stringValue(body, "description"), stringValue(body, "visibility") == "public")
	writeJSON(w, http.StatusCreated, map[string]any{"namespace": namespace, "name": name, "kind": "image"})
}

func (s *Server) getRepository(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, repositoryView(r.PathValue("ns"), r.PathValue("repo"), repository))
}

func (s *Server) updateRepository(w http.ResponseWriter, r *http.Request, body map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil {
		notFound(w)
		return
	}
	if description, ok := body["description"].(string); ok {
		repository.Description = description
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) deleteRepository(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	key := fullName(r)
	if s.Repositories[key] == nil {
		notFound(w)
		return
	}
	delete(s.Repositories, key)
	noContent(w)
}

func (s *Server) changeVisibility(w http.ResponseWriter, r *http.Request, body map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil {
		notFound(w)
		return
	}
	repository.Public = stringValue(body, "visibility") == "public"
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) changeState(w http.ResponseWriter, r *http.Request, body map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil {
		notFound(w)
		return
	}
	state := stringValue(body, "state")
	switch state {
	case "NORMAL", "READ_ONLY", "MIRROR":
	default:
		badRequest(w, "Invalid repository state")
		return
	}
	repository.State = state
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) star(w http.ResponseWriter, _ *http.Request, body map[string]any) {
	repository := s.Repositories[stringValue(body, "namespace")+"/"+stringValue(body, "repository")]
	if repository == nil {
		notFound(w)
		return
	}
	repository.Starred = true
	created(w)
}

func (s *Server) unstar(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil {
		notFound(w)
		return
	}
	repository.Starred = false
	noContent(w)
}

func (s *Server) permissions(r *http.Request) map[string]string {
	repository := s.Repositories[fullName(r)]
	if repository == nil {
		return nil
	}
	switch r.PathValue("kind") {
	case "team":
		return repository.TeamPerms
	case "user":
		return repository.UserPerms
	}
	return nil
}

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	permissions := s.permissions(r)
	if permissions == nil {
		notFound(w)
		return
	}
	items := make(map[string]any, len(permissions))
	for _, name := range sortedKeys(permissions) {
		items[name] = map[string]any{"name": name, "role": permissions[name]}
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": items})
}

func (s *Server) setPermission(w http.ResponseWriter, r *http.Request, body map[string]any) {
	permissions := s.permissions(r)
	if permissions == nil {
		notFound(w)
		return
	}
	name := r.PathValue("name")
	permissions[name] = stringValue(body, "role")
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "role": permissions[name]})
}

func (s *Server) deletePermission(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	permissions := s.permissions(r)
	name := r.PathValue("name")
	if _, found := permissions[name]; !found {
		notFound(w)
		return
	}
	delete(permissions, name)
	noContent(w)
}

func (s *Server) getMirror(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil || repository.Mirror == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, repository.Mirror)
}

func (s *Server) createMirror(w http.ResponseWriter, r *http.Request, body map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil {
		notFound(w)
		return
	}
	if repository.State != "MIRROR" {
		badRequest(w, "Repository is not in mirror mode")
		return
	}
	mirror := make(map[string]any, len(body)+1)
	for key, value := range body {
		if key == "external_registry_password" {
			continue
		}
		mirror[key] = value
	}
	mirror["sync_status"] = "NEVER_RUN"
	repository.Mirror = mirror
	created(w)
}

func (s *Server) updateMirror(w http.ResponseWriter, r *http.Request, body map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil || repository.Mirror == nil {
		notFound(w)
		return
	}
	for key, value := range body {
		if key == "external_registry_password" {
			continue
		}
		repository.Mirror[key] = value
	}
	created(w)
}

func (s *Server) syncMirror(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil || repository.Mirror == nil {
		notFound(w)
		return
	}
	repository.Mirror["sync_status"] = "SYNC_NOW"
	created(w)
}

func (s *Server) tagPullStatistics(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil || repository.TagPullStats[r.PathValue("tag")] == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, repository.TagPullStats[r.PathValue("tag")])
}

func (s *Server) manifestPullStatistics(w http.ResponseWriter, r *http.Request, _ map[string]any) {
	repository := s.Repositories[fullName(r)]
	if repository == nil || repository.ManifestPullStats[r.PathValue("digest")] == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, repository.ManifestPullStats[r.PathValue("digest")])
}
