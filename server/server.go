package server

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/DeepSignSecurity/trackpad-go/core"
	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/server/api"
	"github.com/DeepSignSecurity/trackpad-go/server/status"
)

type serverPrivate struct {
	*http.Server
}

type Server struct {
	serverPrivate

	writer io.Writer

	// current origin validator; swapped atomically on config reload
	origins atomic.Value // []*regexp.Regexp
}

func New(
	c *core.Core,
	stderrWriter io.Writer,
	shortWriter *memorywriter.MemoryWriter,
	longWriter *memorywriter.MemoryWriter,
	version string,
	addr string,
	origins []string,
) (*Server, error) {
	longWriter.Log("starting")

	https := &http.Server{
		Addr: addr,
	}

	allWriter := io.MultiWriter(stderrWriter, shortWriter, longWriter)
	s := &Server{
		serverPrivate: serverPrivate{
			Server: https,
		},
		writer: allWriter,
	}
	if err := s.SetOrigins(origins); err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	statusRouter := r.PathPrefix("/status").Subrouter()
	redirectRouter := r.Methods("GET").Path("/").Subrouter()
	wsRouter := r.Methods("GET").PathPrefix("/listen").Subrouter()
	postRouter := r.Methods("POST", "OPTIONS").Subrouter()

	status.ServeStatus(statusRouter, c, version, shortWriter, longWriter, addr)
	status.ServeStatusRedirect(redirectRouter, addr)
	api.ServeAPI(postRouter, wsRouter, c, version, longWriter, s.validateOrigin)

	var h http.Handler = r

	// Log after the request is done, in the Apache format.
	h = handlers.LoggingHandler(allWriter, h)
	// Log when the request is received.
	h = s.logRequest(h)

	https.Handler = h

	longWriter.Log("server created")
	return s, nil
}

// SetOrigins replaces the set of allowed origin patterns. Used both at
// startup and by the config watcher; in-flight requests finish with the
// validator they started with.
func (s *Server) SetOrigins(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("origin pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	s.origins.Store(compiled)
	return nil
}

// an empty origin means a non-browser client on the local machine
func (s *Server) validateOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	for _, re := range s.origins.Load().([]*regexp.Regexp) {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

func (s *Server) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		text := fmt.Sprintf("%s %s\n", r.Method, r.URL)
		_, err := s.writer.Write([]byte(text))
		if err != nil {
			// give up, just print on stdout
			fmt.Println(err)
		}
		handler.ServeHTTP(w, r)
	})
}

func (s *Server) Run() error {
	return s.ListenAndServe()
}
