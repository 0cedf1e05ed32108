// Package site holds the event copy and the server-rendered pages of the portal.
package site

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

type Content struct {
	Event           Event            `yaml:"event"`
	Hero            Hero             `yaml:"hero"`
	Problems        Problems         `yaml:"problems"`
	Prizes          Prizes           `yaml:"prizes"`
	CertificateInfo CertificateInfo  `yaml:"certificate_info"`
	Certificates    CertificatesCopy `yaml:"certificates"`
	Footer          string           `yaml:"footer"`
}

type Event struct {
	Name      string `yaml:"name"`
	Edition   string `yaml:"edition"`
	Organizer string `yaml:"organizer"`
}

// Title is the event name with its edition, e.g. "Hack with Stack 2025".
func (e Event) Title() string {
	if e.Edition == "" {
		return e.Name
	}
	return e.Name + " " + e.Edition
}

type Hero struct {
	Title   string `yaml:"title"`
	Tagline string `yaml:"tagline"`
}

// Problems lists the problem statements. Until they are published the page
// shows the badge and headings only.
type Problems struct {
	Badge      string      `yaml:"badge"`
	Heading    string      `yaml:"heading"`
	Subheading string      `yaml:"subheading"`
	Statements []Statement `yaml:"statements"`
}

type Statement struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Track       string `yaml:"track"`
}

type Prizes struct {
	Heading string  `yaml:"heading"`
	Items   []Prize `yaml:"items"`
}

type Prize struct {
	Amount      string `yaml:"amount"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type CertificateInfo struct {
	Heading string   `yaml:"heading"`
	Lines   []string `yaml:"lines"`
}

type CertificatesCopy struct {
	Heading       string `yaml:"heading"`
	SearchHint    string `yaml:"search_hint"`
	VerifyHeading string `yaml:"verify_heading"`
	VerifyHint    string `yaml:"verify_hint"`
	IssuerNote    string `yaml:"issuer_note"`
	FormURL       string `yaml:"form_url"`
	Steps         []Step `yaml:"steps"`
}

type Step struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

// Load reads the site copy from path, or the built-in copy when path is empty.
func Load(path string) (*Content, error) {
	data := defaultContent
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read site content %s: %w", path, err)
		}
	}
	return Parse(data)
}

func Parse(data []byte) (*Content, error) {
	var content Content
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to parse site content: %w", err)
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	return &content, nil
}

func (c *Content) Validate() error {
	if c.Event.Name == "" {
		return errors.New("site content: event.name is required")
	}
	if c.Event.Organizer == "" {
		return errors.New("site content: event.organizer is required")
	}
	return nil
}
