package server

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/askings-go/internal/components/api"
	"github.com/MahdiBaghbani/askings-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/askings-go/internal/platform/deps"
	httpmw "github.com/MahdiBaghbani/askings-go/internal/platform/http/middleware"
)

// mountOrder returns core services first, in their declared order, then any
// other constructed service sorted by name.
func mountOrder(services map[string]service.Service) []string {
	seen := make(map[string]bool, len(services))
	order := make([]string, 0, len(services))
	for _, name := range service.CoreServices {
		if _, ok := services[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range services {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// mountService mounts svc under its prefix and tracks it for Close.
func (s *Server) mountService(r chi.Router, name string, svc service.Service) {
	if svc == nil {
		return
	}

	mountPath := "/"
	if prefix := svc.Prefix(); prefix != "" {
		mountPath = "/" + prefix
	}
	r.Mount(mountPath, svc.Handler())
	s.mountedServices = append(s.mountedServices, svc)

	s.logger.Debug("service mounted",
		"service", name,
		"path", mountPath,
		"public_routes", svc.Unprotected(),
	)
}

// setupRoutes builds the root router. Authentication is attached per route
// inside each service.
func (s *Server) setupRoutes() chi.Router {
	d := deps.GetDeps()
	r := chi.NewRouter()

	// RequestID -> request-scoped logger -> access log -> recoverer
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLogger(s.logger, d.RealIP))
	r.Use(httpmw.AccessLog(s.logger, d.RealIP))
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteNotFound(w, api.ReasonNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusMethodNotAllowed, api.ReasonMethodNotAllowed, "method not allowed")
	})

	for _, name := range mountOrder(s.services) {
		s.mountService(r, name, s.services[name])
	}

	return r
}
