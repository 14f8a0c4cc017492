package og

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

type tourMap map[string]*model.Tour

func (m tourMap) GetTourBySlug(_ context.Context, slug string) (*model.Tour, error) {
	if t, ok := m[slug]; ok {
		return t, nil
	}
	return nil, errors.New("not found")
}

func newTestPreviewer() *Previewer {
	tours := tourMap{
		"creek-dinner-cruise": {Name: "Creek Royal Dinner", Summary: "Buffet & tanoura show", Images: []string{"https://cdn.example.com/creek.jpg"}, Active: true},
		"retired-trip":        {Name: "Old Trip", Active: false},
	}
	return New(Config{SiteName: "Dhow Co", BaseURL: "https://dhow.example.com/", DefaultImage: "/og.jpg"}, tours, logger.NewNop())
}

func TestLookup(t *testing.T) {
	p := newTestPreviewer()
	tests := []struct {
		path      string
		title     string
		image     string
		canonical string
	}{
		{"/", staticPages["/"].Title, "https://dhow.example.com/og.jpg", "https://dhow.example.com/"},
		{"/about/", staticPages["/about"].Title, "https://dhow.example.com/og.jpg", "https://dhow.example.com/about"},
		{"contact?ref=ig", staticPages["/contact"].Title, "https://dhow.example.com/og.jpg", "https://dhow.example.com/contact"},
		{"/tours/creek-dinner-cruise", "Creek Royal Dinner | Dhow Co", "https://cdn.example.com/creek.jpg", "https://dhow.example.com/tours/creek-dinner-cruise"},
		{"/tours/sunset-cruise", staticTours["sunset-cruise"].Title, "https://dhow.example.com/images/tours/sunset-cruise.jpg", "https://dhow.example.com/tours/sunset-cruise"},
		{"/tours/retired-trip", staticPages["/"].Title, "https://dhow.example.com/og.jpg", "https://dhow.example.com/tours/retired-trip"},
		{"/nowhere", staticPages["/"].Title, "https://dhow.example.com/og.jpg", "https://dhow.example.com/nowhere"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			doc := p.Lookup(context.Background(), tt.path)
			if doc.Title != tt.title {
				t.Errorf("Title = %q, want %q", doc.Title, tt.title)
			}
			if doc.Image != tt.image {
				t.Errorf("Image = %q, want %q", doc.Image, tt.image)
			}
			if doc.Canonical != tt.canonical {
				t.Errorf("Canonical = %q, want %q", doc.Canonical, tt.canonical)
			}
		})
	}
}

func TestRenderEscapes(t *testing.T) {
	p := newTestPreviewer()
	doc := p.Lookup(context.Background(), "/tours/creek-dinner-cruise")
	doc.Title = `"><script>alert(1)</script>`

	out, err := p.Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := string(out)
	if strings.Contains(html, "<script>alert(1)") {
		t.Fatalf("title not escaped:\n%s", html)
	}
	for _, want := range []string{
		`<meta property="og:image" content="https://cdn.example.com/creek.jpg">`,
		`<meta property="og:description" content="Buffet &amp; tanoura show">`,
		`<meta name="twitter:card" content="summary_large_image">`,
		`<link rel="canonical" href="https://dhow.example.com/tours/creek-dinner-cruise">`,
		`<meta property="og:type" content="product">`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %s\n%s", want, html)
		}
	}
}
