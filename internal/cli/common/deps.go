package common

import (
	"net/http"

	"github.com/sethvargo/go-envconfig"
)

type CommandDependencies struct {
	// Lookuper replaces the process environment when settings are loaded.
	Lookuper envconfig.Lookuper
	// HTTPClient replaces the gateway transport.
	HTTPClient *http.Client
}
