package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recoverPanics, s.logRequests, s.limitBody)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/document", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/document", s.handlePutDocument).Methods(http.MethodPut)
	api.HandleFunc("/commands", s.handleCommands).Methods(http.MethodPost)
	api.HandleFunc("/scripts", s.handleScript).Methods(http.MethodPost)
	api.HandleFunc("/renumber", s.handleRenumber).Methods(http.MethodPost)
	api.HandleFunc("/reflow", s.handleReflow).Methods(http.MethodPost)
	api.HandleFunc("/media", s.handleMedia).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	api.HandleFunc("/journal", s.handleJournal).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusNotFound, errorResponse{Error: "no route for " + r.URL.Path})
	})
	return router
}
