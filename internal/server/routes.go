package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket routes
	mux.HandleFunc("GET /ws/scraping/{campaignID}", s.app.WSHub.HandleScrapingWS)
	mux.HandleFunc("GET /ws/account", s.app.WSHub.HandleAccountWS)

	// API routes - Campaigns
	mux.HandleFunc("POST /api/campaigns", s.app.CampaignHandler.CreateHandler)
	mux.HandleFunc("GET /api/campaigns", s.app.CampaignHandler.ListHandler)
	mux.HandleFunc("GET /api/campaigns/{id}", s.app.CampaignHandler.GetHandler)
	mux.HandleFunc("PUT /api/campaigns/{id}", s.app.CampaignHandler.UpdateHandler)
	mux.HandleFunc("POST /api/campaigns/{id}/start", s.app.CampaignHandler.StartHandler)
	mux.HandleFunc("POST /api/campaigns/{id}/stop", s.app.CampaignHandler.StopHandler)
	mux.HandleFunc("GET /api/campaigns/{id}/leads", s.app.CampaignHandler.LeadsHandler)
	mux.HandleFunc("GET /api/campaigns/{id}/jobs", s.app.CampaignHandler.JobsHandler)

	// API routes - Accounts and billing
	mux.HandleFunc("POST /api/accounts", s.app.AccountHandler.CreateAccountHandler)
	mux.HandleFunc("GET /api/accounts/{id}", s.app.AccountHandler.GetAccountHandler)
	mux.HandleFunc("GET /api/accounts/{id}/usage", s.app.AccountHandler.UsageHandler)
	mux.HandleFunc("GET /api/accounts/{id}/packages", s.app.AccountHandler.ListPackagesHandler)
	mux.HandleFunc("POST /api/accounts/{id}/packages", s.app.AccountHandler.PurchasePackageHandler)
	mux.HandleFunc("POST /api/packages/{id}/confirm", s.app.AccountHandler.ConfirmPaymentHandler)

	// API routes - System
	mux.HandleFunc("GET /api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("GET /health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("GET /api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
