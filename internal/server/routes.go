package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func SetupRoutes(service *CertificateService, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter().UseEncodedPath()
	logging := Logging(logger, service.Metrics)
	router.Use(RequestID)
	router.Use(logging)

	router.HandleFunc("/", service.Home).Methods(http.MethodGet)
	router.HandleFunc("/problems", service.Problems).Methods(http.MethodGet)
	router.HandleFunc("/certificates", service.CertificatesPage).Methods(http.MethodGet)
	router.HandleFunc("/certificates/{id}", service.Viewer).Methods(http.MethodGet)
	router.HandleFunc("/certificates-data.json", service.Dataset).Methods(http.MethodGet)

	api := router.PathPrefix("/api/certificates").Subrouter()
	api.HandleFunc("/search", service.SearchCertificates).Methods(http.MethodGet)
	api.HandleFunc("/suggest", service.SuggestCertificates).Methods(http.MethodGet)
	api.HandleFunc("/verify/", service.VerifyCertificate).Methods(http.MethodGet)
	api.HandleFunc("/verify/{id}", service.VerifyCertificate).Methods(http.MethodGet)
	api.HandleFunc("/status", service.Status).Methods(http.MethodGet)

	router.HandleFunc("/healthz", service.Health).Methods(http.MethodGet)
	if service.Metrics != nil {
		router.Handle("/metrics", service.Metrics.Handler()).Methods(http.MethodGet)
	}

	// mux skips router middleware for unmatched requests
	router.NotFoundHandler = RequestID(logging(http.HandlerFunc(service.NotFound)))
	return router
}
