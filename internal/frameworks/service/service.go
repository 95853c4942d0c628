package service

import (
	"log/slog"
	"net/http"
)

// Service is an HTTP service mounted by the server under Prefix.
type Service interface {
	Handler() http.Handler

	// Prefix is the mount path without slashes; empty mounts at the root.
	Prefix() string

	Close() error

	// Unprotected lists route patterns reachable without a caller, for
	// startup logging. Authentication itself is applied per route.
	Unprotected() []string
}

// NewService builds a service from its [http.services.<name>] table.
type NewService func(conf map[string]any, log *slog.Logger) (Service, error)
