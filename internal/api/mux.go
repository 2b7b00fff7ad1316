package api

import "net/http"

// Registrar mounts a service's routes on a mux.
type Registrar interface {
	Register(mux *http.ServeMux)
}

// NewMux registers every service on a fresh mux.
func NewMux(services ...Registrar) *http.ServeMux {
	mux := http.NewServeMux()
	for _, s := range services {
		s.Register(mux)
	}
	return mux
}
