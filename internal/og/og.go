// Package og renders link-preview documents for social crawlers.
package og

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// Page is the preview metadata of one public URL.
type Page struct {
	Title       string
	Description string
	Image       string
	Type        string
}

// Document is the rendered preview of a path.
type Document struct {
	Page
	SiteName  string
	Canonical string
}

var staticPages = map[string]Page{
	"/": {
		Title:       "Dubai Dhow Cruises | Dinner Cruises on Dubai Creek & Marina",
		Description: "Traditional dhow dinner cruises and private yacht charters in Dubai. Book online in minutes.",
	},
	"/tours": {
		Title:       "Our Cruises | Dubai Dhow Cruises",
		Description: "Compare Creek and Marina dinner cruises, sunset trips and private yacht charters.",
	},
	"/gallery": {
		Title:       "Gallery | Dubai Dhow Cruises",
		Description: "Photos from our dhows, buffets and evening views of the Dubai skyline.",
	},
	"/about": {
		Title:       "About Us | Dubai Dhow Cruises",
		Description: "A family-run cruise operator sailing Dubai's waterways for over fifteen years.",
	},
	"/contact": {
		Title:       "Contact | Dubai Dhow Cruises",
		Description: "Questions about a cruise or a private event? Get in touch with our team.",
	},
	"/reviews": {
		Title:       "Guest Reviews | Dubai Dhow Cruises",
		Description: "Read what our guests say about their evening on the water.",
	},
	"/privacy-policy": {
		Title:       "Privacy Policy | Dubai Dhow Cruises",
		Description: "How we handle your personal data.",
	},
	"/terms": {
		Title:       "Terms & Conditions | Dubai Dhow Cruises",
		Description: "Booking, cancellation and refund terms.",
	},
}

// staticTours covers the launch catalog when the tour table is unavailable.
var staticTours = map[string]Page{
	"creek-dinner-cruise": {
		Title:       "Dubai Creek Dhow Dinner Cruise",
		Description: "Two hours along the historic creek with an international buffet and live entertainment.",
		Image:       "/images/tours/creek-dinner-cruise.jpg",
	},
	"marina-dinner-cruise": {
		Title:       "Dubai Marina Dhow Dinner Cruise",
		Description: "Cruise past the Marina skyline and Ain Dubai with dinner on board.",
		Image:       "/images/tours/marina-dinner-cruise.jpg",
	},
	"private-yacht-charter": {
		Title:       "Private Yacht Charter",
		Description: "Your own yacht and crew for birthdays, proposals and corporate events.",
		Image:       "/images/tours/private-yacht-charter.jpg",
	},
	"sunset-cruise": {
		Title:       "Sunset Dhow Cruise",
		Description: "Golden hour on the water with refreshments and Arabic coffee.",
		Image:       "/images/tours/sunset-cruise.jpg",
	},
}

// TourFinder looks up catalog tours by slug.
type TourFinder interface {
	GetTourBySlug(ctx context.Context, slug string) (*model.Tour, error)
}

// Config describes the public site.
type Config struct {
	SiteName     string
	BaseURL      string
	DefaultImage string
}

// Previewer builds and renders preview documents.
type Previewer struct {
	cfg    Config
	tours  TourFinder
	logger *logger.Logger
}

// New creates a previewer. tours may be nil.
func New(cfg Config, tours TourFinder, log *logger.Logger) *Previewer {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Previewer{cfg: cfg, tours: tours, logger: log.Module("og")}
}

// Lookup resolves path to a preview document. Unknown paths get the home
// page metadata with the requested canonical URL.
func (p *Previewer) Lookup(ctx context.Context, path string) Document {
	path = normalize(path)

	page, ok := staticPages[path]
	if !ok {
		page, ok = p.tourPage(ctx, path)
	}
	if !ok {
		page = staticPages["/"]
	}

	if page.Image == "" {
		page.Image = p.cfg.DefaultImage
	}
	page.Image = p.absolute(page.Image)
	if page.Type == "" {
		page.Type = "website"
	}

	return Document{
		Page:      page,
		SiteName:  p.cfg.SiteName,
		Canonical: p.absolute(path),
	}
}

func (p *Previewer) tourPage(ctx context.Context, path string) (Page, bool) {
	slug, ok := strings.CutPrefix(path, "/tours/")
	if !ok || slug == "" || strings.Contains(slug, "/") {
		return Page{}, false
	}

	if p.tours != nil {
		t, err := p.tours.GetTourBySlug(ctx, slug)
		switch {
		case err == nil && t.Active:
			page := Page{Title: t.Name, Description: t.Summary, Type: "product"}
			if page.Description == "" {
				page.Description = truncate(t.Description, 200)
			}
			if len(t.Images) > 0 {
				page.Image = t.Images[0]
			}
			if p.cfg.SiteName != "" {
				page.Title += " | " + p.cfg.SiteName
			}
			return page, true
		case err != nil && !errors.Is(err, context.Canceled):
			p.logger.Debug("tour lookup failed", zap.String("slug", slug), zap.Error(err))
		}
	}

	page, ok := staticTours[slug]
	if ok {
		page.Type = "product"
	}
	return page, ok
}

func (p *Previewer) absolute(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return p.cfg.BaseURL + ref
}

// Render writes the preview document as HTML.
func (p *Previewer) Render(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	return buf.Bytes(), nil
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

var pageTemplate = template.Must(template.New("og").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="description" content="{{.Description}}">
<link rel="canonical" href="{{.Canonical}}">
<meta property="og:type" content="{{.Type}}">
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Description}}">
<meta property="og:image" content="{{.Image}}">
<meta property="og:url" content="{{.Canonical}}">
{{- if .SiteName}}
<meta property="og:site_name" content="{{.SiteName}}">
{{- end}}
<meta name="twitter:card" content="summary_large_image">
<meta name="twitter:title" content="{{.Title}}">
<meta name="twitter:description" content="{{.Description}}">
<meta name="twitter:image" content="{{.Image}}">
<meta http-equiv="refresh" content="0; url={{.Canonical}}">
<script>window.location.replace({{.Canonical}});</script>
</head>
<body>
<p><a href="{{.Canonical}}">{{.Title}}</a></p>
</body>
</html>
`))
