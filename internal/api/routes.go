package api

import (
	"net/http"

	"github.com/scrivenerhq/scrivener/internal/config"
	"github.com/scrivenerhq/scrivener/internal/editor"
	"github.com/scrivenerhq/scrivener/internal/highlight"
	"github.com/scrivenerhq/scrivener/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	maxUpload := cfg.API.MaxUploadSizeBytes()

	complianceHandler := domain.Compliance.Handler()

	editorHandler := editor.NewHandler(
		domain.Sessions,
		runtime.Logger,
		cfg.API.BasePath,
		maxUpload,
	)

	storageHandler := newStorageHandler(runtime.Storage, runtime.Logger)

	routes.Register(
		mux,
		domain.Sessions.Handler(maxUpload).Routes(),
		editorHandler.Routes(),
		complianceHandler.RuleRoutes(),
		complianceHandler.AnalysisRoutes(),
		highlight.NewHandler(domain.Highlight, runtime.Logger).Routes(),
		storageHandler.routes(),
	)
}
