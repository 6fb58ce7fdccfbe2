package httpapi

import "net/http"

// ServeMedia implements GET /media/{path}: authenticated, scope-checked
// file access plus thumbnail generation, delegated to internal/media.
func (s *Server) ServeMedia(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	path := r.URL.Path[len("/media"):]
	s.Media.Serve(w, r, path, caller.Scope)
}
