package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/aimlclub/hackathon-portal/internal/certificates"
	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/aimlclub/hackathon-portal/internal/site"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CertificateStore is the read side of store.RecordStore used by the handlers.
type CertificateStore interface {
	Loading() bool
	Records() []models.Certificate
	JSON() []byte
	Version() string
	Fallback() bool
	Source() string
	Len() int
}

type CertificateService struct {
	Store    CertificateStore
	Renderer *site.Renderer
	Content  *site.Content
	Metrics  *Metrics
	log      *zap.Logger
}

func NewCertificateService(store CertificateStore, renderer *site.Renderer, content *site.Content, metrics *Metrics, logger *zap.Logger) *CertificateService {
	return &CertificateService{
		Store:    store,
		Renderer: renderer,
		Content:  content,
		Metrics:  metrics,
		log:      logger,
	}
}

type searchResponse struct {
	Searched bool                 `json:"searched"`
	Count    int                  `json:"count"`
	Results  []models.Certificate `json:"results"`
}

type suggestResponse struct {
	Suggestions []models.Certificate `json:"suggestions"`
}

type verifyResponse struct {
	Verified    bool                `json:"verified"`
	Certificate *models.Certificate `json:"certificate,omitempty"`
	Badge       string              `json:"badge,omitempty"`
}

type statusResponse struct {
	Loading  bool   `json:"loading"`
	Count    int    `json:"count"`
	Source   string `json:"source"`
	Version  string `json:"version"`
	Fallback bool   `json:"fallback"`
}

type loadingResponse struct {
	Loading bool `json:"loading"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func (h *CertificateService) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, site.PageHome, h.page(h.Content.Event.Title()))
}

func (h *CertificateService) Problems(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, site.PageProblems, h.page("Problem Statements"))
}

// CertificatesPage renders the portal with the results of ?q= and ?verify=.
func (h *CertificateService) CertificatesPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	verifyID := strings.TrimSpace(r.URL.Query().Get("verify"))

	page := site.CertificatesPage{
		Page:     h.page("Certificates"),
		Query:    query,
		VerifyID: verifyID,
	}

	if h.Store.Loading() {
		page.Loading = true
		h.render(w, r, http.StatusOK, site.PageCertificates, page)
		return
	}

	records := h.Store.Records()
	page.Search = certificates.Search(query, records)
	if page.Search.Performed {
		h.observeSearch(len(page.Search.Results) > 0)
	}

	if verifyID != "" {
		page.VerifyAttempted = true
		if cert, ok := certificates.Verify(verifyID, records); ok {
			page.Verified = &cert
		}
		h.observeVerification(page.Verified != nil)
	}

	h.render(w, r, http.StatusOK, site.PageCertificates, page)
}

// Viewer is the shareable page of one certificate. Links carry the id as
// issued, so the match is case-sensitive.
func (h *CertificateService) Viewer(w http.ResponseWriter, r *http.Request) {
	page := site.ViewerPage{Page: h.page("Certificate")}

	if h.Store.Loading() {
		page.Loading = true
		h.render(w, r, http.StatusServiceUnavailable, site.PageViewer, page)
		return
	}

	id := pathVar(r, "id")
	if cert, ok := certificates.Lookup(id, h.Store.Records()); ok {
		page.Title = cert.Name + " - Certificate"
		page.Certificate = &cert
		h.render(w, r, http.StatusOK, site.PageViewer, page)
		return
	}

	h.render(w, r, http.StatusNotFound, site.PageViewer, page)
}

// Dataset serves the loaded records in the certificates-data.json format.
func (h *CertificateService) Dataset(w http.ResponseWriter, r *http.Request) {
	if h.Store.Loading() {
		h.writeJSON(w, r, http.StatusServiceUnavailable, loadingResponse{Loading: true})
		return
	}

	etag := `"` + h.Store.Version() + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.Store.JSON()); err != nil {
		h.log.Warn("Failed to write dataset", zap.Error(err))
	}
}

func (h *CertificateService) SearchCertificates(w http.ResponseWriter, r *http.Request) {
	if h.Store.Loading() {
		h.writeJSON(w, r, http.StatusServiceUnavailable, loadingResponse{Loading: true})
		return
	}

	result := certificates.Search(r.URL.Query().Get("q"), h.Store.Records())
	if result.Performed {
		h.observeSearch(len(result.Results) > 0)
	}

	resp := searchResponse{Searched: result.Performed, Count: len(result.Results), Results: result.Results}
	if resp.Results == nil {
		resp.Results = []models.Certificate{}
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

func (h *CertificateService) SuggestCertificates(w http.ResponseWriter, r *http.Request) {
	if h.Store.Loading() {
		h.writeJSON(w, r, http.StatusServiceUnavailable, loadingResponse{Loading: true})
		return
	}

	suggestions := certificates.Suggest(r.URL.Query().Get("q"), h.Store.Records(), certificates.DefaultSuggestionLimit)
	if suggestions == nil {
		suggestions = []models.Certificate{}
	}
	h.writeJSON(w, r, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

func (h *CertificateService) VerifyCertificate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathVar(r, "id"))
	if id == "" {
		h.writeError(w, r, http.StatusBadRequest, "Certificate ID is required in the URL path /api/certificates/verify/{id}")
		return
	}

	if h.Store.Loading() {
		h.writeJSON(w, r, http.StatusServiceUnavailable, loadingResponse{Loading: true})
		return
	}

	cert, ok := certificates.Verify(id, h.Store.Records())
	h.observeVerification(ok)
	if !ok {
		h.writeJSON(w, r, http.StatusNotFound, verifyResponse{Verified: false})
		return
	}
	h.writeJSON(w, r, http.StatusOK, verifyResponse{Verified: true, Certificate: &cert, Badge: cert.CertificateType.Badge()})
}

func (h *CertificateService) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, statusResponse{
		Loading:  h.Store.Loading(),
		Count:    h.Store.Len(),
		Source:   h.Store.Source(),
		Version:  h.Store.Version(),
		Fallback: h.Store.Fallback(),
	})
}

func (h *CertificateService) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *CertificateService) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "Not found")
}

func (h *CertificateService) page(title string) site.Page {
	return site.Page{Title: title, Site: h.Content}
}

func (h *CertificateService) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf strings.Builder
	if err := h.Renderer.Render(&buf, name, data); err != nil {
		h.log.Error("Failed to render page",
			zap.String("page", name),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func (h *CertificateService) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		h.log.Error("Failed to encode response", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (h *CertificateService) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, r, status, errorResponse{Error: message, RequestID: GetRequestID(r.Context())})
}

func (h *CertificateService) observeSearch(found bool) {
	if h.Metrics != nil {
		h.Metrics.ObserveSearch(found)
	}
}

func (h *CertificateService) observeVerification(found bool) {
	if h.Metrics != nil {
		h.Metrics.ObserveVerification(found)
	}
}

// pathVar returns the unescaped route variable; the router matches on the
// encoded path so ids containing "/" survive.
func pathVar(r *http.Request, name string) string {
	raw := mux.Vars(r)[name]
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
