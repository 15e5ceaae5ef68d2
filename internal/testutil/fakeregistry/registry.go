// Package fakeregistry serves an in-memory subset of the registry API for
// tests. It keeps just enough state for idempotence checks: a second
// convergence pass against the same server must issue no mutation.
package fakeregistry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type Organization struct {
	Name           string
	Email          string
	TagExpirationS int64
	Teams          map[string]string
	Policies       []map[string]any
	Robots         map[string]*Robot
	ProxyCache     map[string]any
}

type Robot struct {
	Description string
	Token       string
	Federations []map[string]any
}

type Repository struct {
	Description       string
	Public            bool
	State             string
	Starred           bool
	TeamPerms         map[string]string
	UserPerms         map[string]string
	Policies          []map[string]any
	Mirror            map[string]any
	TagPullStats      map[string]map[string]any
	ManifestPullStats map[string]map[string]any
}

type Request struct {
	Method string
	Path   string
	Body   any
}

// Server is the fake registry. Fields may be set before the first request;
// use the helper methods afterwards.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	Token         string
	CurrentUser   string
	Users         map[string]bool
	Organizations map[string]*Organization
	UserRobots    map[string]*Robot
	Repositories  map[string]*Repository
	Config        map[string]any
	requests      []Request
}

// New starts a fake registry that accepts token and closes it with the test.
func New(t *testing.T, token string) *Server {
	t.Helper()

	server := &Server{
		Token:         token,
		CurrentUser:   "admin",
		Users:         map[string]bool{"admin": true},
		Organizations: map[string]*Organization{},
		UserRobots:    map[string]*Robot{},
		Repositories:  map[string]*Repository{},
		Config:        map[string]any{"FEATURE_PROXY_CACHE": true, "SERVER_HOSTNAME": "quay.example.com"},
	}
	server.Server = httptest.NewServer(server.routes())
	t.Cleanup(server.Close)
	return server
}

// Mutations returns "METHOD path" for every non-GET request received.
func (s *Server) Mutations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mutations []string
	for _, request := range s.requests {
		if request.Method != http.MethodGet {
			mutations = append(mutations, request.Method+" "+request.Path)
		}
	}
	return mutations
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// AddOrganization registers an organization with the given teams.
func (s *Server) AddOrganization(name string, teams ...string) *Organization {
	s.mu.Lock()
	defer s.mu.Unlock()

	organization := &Organization{
		Name:   name,
		Email:  name + "@example.com",
		Teams:  map[string]string{"owners": "admin"},
		Robots: map[string]*Robot{},
	}
	for _, team := range teams {
		organization.Teams[team] = "member"
	}
	s.Organizations[name] = organization
	return organization
}

func (s *Server) AddUser(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users[name] = true
}

// AddRepository registers "namespace/name".
func (s *Server) AddRepository(fullName string) *Repository {
	s.mu.Lock()
	defer s.mu.Unlock()

	repository := newRepository("", false)
	s.Repositories[fullName] = repository
	return repository
}

func (s *Server) Organization(name string) *Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Organizations[name]
}

func (s *Server) Repository(fullName string) *Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Repositories[fullName]
}

func newRepository(description string, public bool) *Repository {
	return &Repository{
		Description:       description,
		Public:            public,
		State:             "NORMAL",
		TeamPerms:         map[string]string{},
		UserPerms:         map[string]string{},
		TagPullStats:      map[string]map[string]any{},
		ManifestPullStats: map[string]map[string]any{},
	}
}

type handler func(w http.ResponseWriter, r *http.Request, body map[string]any)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, fn handler) {
		mux.HandleFunc(pattern, s.wrap(fn))
	}

	handle("GET /api/v1/user/{$}", s.getCurrentUser)
	handle("GET /api/v1/users/{name}", s.getUser)

	handle("GET /api/v1/organization/{org}", s.getOrganization)
	handle("POST /api/v1/organization/{$}", s.createOrganization)
	handle("PUT /api/v1/organization/{org}", s.updateOrganization)
	handle("DELETE /api/v1/organization/{org}", s.deleteOrganization)
	handle("PUT /api/v1/superuser/organizations/{org}", s.renameOrganization)

	handle("GET /api/v1/organization/{org}/autoprunepolicy/{$}", s.listPolicies)
	handle("POST /api/v1/organization/{org}/autoprunepolicy/{$}", s.createPolicy)
	handle("PUT /api/v1/organization/{org}/autoprunepolicy/{uuid}", s.updatePolicy)
	handle("DELETE /api/v1/organization/{org}/autoprunepolicy/{uuid}", s.deletePolicy)

	handle("GET /api/v1/organization/{org}/robots/{short}", s.getRobot)
	handle("PUT /api/v1/organization/{org}/robots/{short}", s.createRobot)
	handle("DELETE /api/v1/organization/{org}/robots/{short}", s.deleteRobot)
	handle("GET /api/v1/organization/{org}/robots/{short}/federation", s.getFederation)
	handle("POST /api/v1/organization/{org}/robots/{short}/federation", s.setFederation)
	handle("GET /api/v1/user/robots/{short}", s.getRobot)
	handle("PUT /api/v1/user/robots/{short}", s.createRobot)
	handle("DELETE /api/v1/user/robots/{short}", s.deleteRobot)
	handle("GET /api/v1/user/robots/{short}/federation", s.getFederation)
	handle("POST /api/v1/user/robots/{short}/federation", s.setFederation)

	handle("GET /api/v1/organization/{org}/proxycache", s.getProxyCache)
	handle("POST /api/v1/organization/{org}/proxycache", s.createProxyCache)
	handle("DELETE /api/v1/organization/{org}/proxycache", s.deleteProxyCache)

	handle("POST /api/v1/repository", s.createRepository)
	handle("GET /api/v1/repository/{ns}/{repo}", s.getRepository)
	handle("PUT /api/v1/repository/{ns}/{repo}", s.updateRepository)
	handle("DELETE /api/v1/repository/{ns}/{repo}", s.deleteRepository)
	handle("POST /api/v1/repository/{ns}/{repo}/changevisibility", s.changeVisibility)
	handle("PUT /api/v1/repository/{ns}/{repo}/changestate", s.changeState)
	handle("POST /api/v1/user/starred", s.star)
	handle("DELETE /api/v1/user/starred/{ns}/{repo}", s.unstar)

	handle("GET /api/v1/repository/{ns}/{repo}/permissions/{kind}/{$}", s.listPermissions)
	handle("PUT /api/v1/repository/{ns}/{repo}/permissions/{kind}/{name}", s.setPermission)
	handle("DELETE /api/v1/repository/{ns}/{repo}/permissions/{kind}/{name}", s.deletePermission)

	handle("GET /api/v1/repository/{ns}/{repo}/autoprunepolicy/{$}", s.listPolicies)
	handle("POST /api/v1/repository/{ns}/{repo}/autoprunepolicy/{$}", s.createPolicy)
	handle("PUT /api/v1/repository/{ns}/{repo}/autoprunepolicy/{uuid}", s.updatePolicy)
	handle("DELETE /api/v1/repository/{ns}/{repo}/autoprunepolicy/{uuid}", s.deletePolicy)

	handle("GET /api/v1/repository/{ns}/{repo}/mirror", s.getMirror)
	handle("POST /api/v1/repository/{ns}/{repo}/mirror", s.createMirror)
	handle("PUT /api/v1/repository/{ns}/{repo}/mirror", s.updateMirror)
	handle("POST /api/v1/repository/{ns}/{repo}/mirror/sync-now", s.syncMirror)

	handle("GET /api/v1/repository/{ns}/{repo}/tag/{tag}/pull_statistics", s.tagPullStatistics)
	handle("GET /api/v1/repository/{ns}/{repo}/manifest/{digest}/pull_statistics", s.manifestPullStatistics)

	handle("GET /api/v1/superuser/config", s.getConfig)

	return mux
}

func (s *Server) wrap(fn handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		var recorded any
		if r.Body != nil {
			decoder := json.NewDecoder(r.Body)
			decoder.UseNumber()
			_ = decoder.Decode(&recorded)
			body, _ = recorded.(map[string]any)
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		s.requests = append(s.requests, Request{Method: r.Method, Path: strings.TrimPrefix(r.URL.Path, "/api/v1/"), Body: recorded})
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail":        "Requires authentication",
				"error_message": "Requires authentication",
				"error_type":    "invalid_token",
				"title":         "invalid_token",
			})
			return
		}
		if list, isList := recorded.([]any); isList {
			body = map[string]any{"items": list}
		}
		fn(w, r, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if value != nil {
		_ = json.NewEncoder(w).Encode(value)
	}
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not Found", "error_message": "Not Found", "title": "not_found"})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"message": message})
}

func created(w http.ResponseWriter) {
	writeJSON(w, http.StatusCreated, "Created")
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func stringValue(body map[string]any, key string) string {
	value, _ := body[key].(string)
	return value
}

func intValue(body map[string]any, key string) (int64, bool) {
	switch typed := body[key].(type) {
	case json.Number:
		value, err := typed.Int64()
		return value, err == nil
	case float64:
		return int64(typed), true
	}
	return 0, false
}

func newPolicy(body map[string]any) map[string]any {
	policy := map[string]any{
		"uuid":              uuid.NewString(),
		"method":            body["method"],
		"value":             body["value"],
		"tagPattern":        nil,
		"tagPatternMatches": true,
	}
	if pattern, ok := body["tagPattern"]; ok {
		policy["tagPattern"] = pattern
	}
	if matches, ok := body["tagPatternMatches"]; ok {
		policy["tagPatternMatches"] = matches
	}
	return policy
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func fullName(r *http.Request) string {
	return fmt.Sprintf("%s/%s", r.PathValue("ns"), r.PathValue("repo"))
}
