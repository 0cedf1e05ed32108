package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"

	"github.com/aimlclub/hackathon-portal/internal/certificates"
	"github.com/aimlclub/hackathon-portal/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	PageHome         = "home"
	PageProblems     = "problems"
	PageCertificates = "certificates"
	PageViewer       = "viewer"
)

var pageNames = []string{PageHome, PageProblems, PageCertificates, PageViewer}

// Page is the data every template receives.
type Page struct {
	Title string
	Site  *Content
}

type CertificatesPage struct {
	Page
	Loading         bool
	Query           string
	Search          certificates.SearchResult
	VerifyID        string
	VerifyAttempted bool
	Verified        *models.Certificate
}

type ViewerPage struct {
	Page
	Loading     bool
	Certificate *models.Certificate
}

// Renderer executes the page templates into the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"badge":       func(t models.CertificateType) string { return t.Badge() },
		"viewerURL":   ViewerURL,
		"hasDownload": HasDownload,
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render buffers the page so a template error never leaves half a response.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// ViewerURL is the shareable link of a certificate.
func ViewerURL(id string) string {
	return "/certificates/" + url.PathEscape(id)
}

// HasDownload is false for the "#" placeholder used before certificates are uploaded.
func HasDownload(downloadURL string) bool {
	return downloadURL != "" && downloadURL != "#"
}
