package router

import (
	"net/http"

	"github.com/BerylCAtieno/forensic-docs-api/internal/handlers"
	"github.com/BerylCAtieno/forensic-docs-api/internal/middleware"
	"github.com/BerylCAtieno/forensic-docs-api/internal/services"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"

	"github.com/gorilla/mux"
)

type Services struct {
	Clients   services.ClientService
	Cases     services.CaseService
	Documents services.DocumentService
	Reports   services.ReportService
	Files     services.FileService
}

type Options struct {
	MaxFileSize      int64
	UploadRatePerMin int
}

func NewRouter(svc Services, opts Options, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	clientHandler := handlers.NewClientHandler(svc.Clients, logger)
	caseHandler := handlers.NewCaseHandler(svc.Cases, logger)
	docHandler := handlers.NewDocumentHandler(svc.Documents, opts.MaxFileSize, logger)
	reportHandler := handlers.NewReportHandler(svc.Reports, logger)
	fileHandler := handlers.NewFileHandler(svc.Files, logger)

	uploadLimiter := middleware.NewRateLimiter(opts.UploadRatePerMin, max(1, opts.UploadRatePerMin/10))

	// Routes
	api := r.PathPrefix("/api").Subrouter()

	// Health check
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Client endpoints
	api.HandleFunc("/clients", clientHandler.CreateClient).Methods(http.MethodPost)
	api.HandleFunc("/clients", clientHandler.ListClients).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}", clientHandler.GetClient).Methods(http.MethodGet)

	// Case endpoints
	api.HandleFunc("/cases", caseHandler.CreateCase).Methods(http.MethodPost)
	api.HandleFunc("/cases", caseHandler.ListCases).Methods(http.MethodGet)
	api.HandleFunc("/cases/{id}", caseHandler.GetCase).Methods(http.MethodGet)
	api.HandleFunc("/cases/{id}", caseHandler.UpdateCase).Methods(http.MethodPut)
	api.HandleFunc("/cases/{id}", caseHandler.DeleteCase).Methods(http.MethodDelete)
	api.HandleFunc("/cases/{id}/documents", docHandler.ListCaseDocuments).Methods(http.MethodGet)
	api.HandleFunc("/cases/{id}/reports", reportHandler.ListCaseReports).Methods(http.MethodGet)

	// Document endpoints
	api.Handle("/documents", uploadLimiter.Middleware(http.HandlerFunc(docHandler.UploadDocument))).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}", docHandler.GetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", docHandler.DeleteDocument).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/preview", docHandler.GetPreview).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/analyze", docHandler.AnalyzeDocument).Methods(http.MethodPost)

	// Stored files
	api.HandleFunc("/files/{path:.+}", fileHandler.GetFile).Methods(http.MethodGet)

	// Report endpoints
	api.HandleFunc("/reports", reportHandler.CreateReport).Methods(http.MethodPost)
	api.HandleFunc("/reports/{id}", reportHandler.GetReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id}", reportHandler.UpdateReport).Methods(http.MethodPut)
	api.HandleFunc("/reports/{id}/analyze", reportHandler.AnalyzeReport).Methods(http.MethodPost)

	// Preflight requests match no route method, so CORS sits outside the router.
	return middleware.CORS()(r)
}
