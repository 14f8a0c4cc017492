package model

import (
	"time"
)

// Tour is a cruise product listed on the site.
type Tour struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description"`
	Duration      string    `json:"duration"`
	DepartureTime string    `json:"departure_time,omitempty"`
	PriceAdult    float64   `json:"price_adult"`
	PriceChild    float64   `json:"price_child"`
	Capacity      int       `json:"capacity"`
	Images        []string  `json:"images"`
	Features      []string  `json:"features"`
	Active        bool      `json:"active"`
	SortOrder     int       `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TourInput creates or replaces a tour.
type TourInput struct {
	Slug          string   `json:"slug" validate:"required,max=128,slug"`
	Name          string   `json:"name" validate:"required,max=200"`
	Summary       string   `json:"summary" validate:"max=500"`
	Description   string   `json:"description" validate:"max=10000"`
	Duration      string   `json:"duration" validate:"max=64"`
	DepartureTime string   `json:"departure_time" validate:"omitempty,datetime=15:04"`
	PriceAdult    float64  `json:"price_adult" validate:"min=0"`
	PriceChild    float64  `json:"price_child" validate:"min=0"`
	Capacity      int      `json:"capacity" validate:"min=1,max=1000"`
	Images        []string `json:"images" validate:"max=50,dive,max=1024"`
	Features      []string `json:"features" validate:"max=50,dive,max=200"`
	Active        bool     `json:"active"`
	SortOrder     int      `json:"sort_order"`
}

// Review is a customer testimonial.
type Review struct {
	ID          string    `json:"id"`
	TourID      string    `json:"tour_id,omitempty"`
	AuthorName  string    `json:"author_name"`
	Country     string    `json:"country,omitempty"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReviewInput is submitted by visitors.
type ReviewInput struct {
	TourID     string `json:"tour_id" validate:"omitempty,max=64"`
	AuthorName string `json:"author_name" validate:"required,max=128"`
	Country    string `json:"country" validate:"max=64"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Comment    string `json:"comment" validate:"required,max=4000"`
}

// ReviewSummary is the published rating aggregate.
type ReviewSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// InquiryStatus tracks follow-up on an inquiry.
type InquiryStatus string

const (
	InquiryNew       InquiryStatus = "new"
	InquiryContacted InquiryStatus = "contacted"
	InquiryClosed    InquiryStatus = "closed"
)

// Inquiry sources.
const (
	InquirySourceContact = "contact"
	InquirySourceChat    = "chat"
)

// Inquiry is a contact-form submission or a chat lead.
type Inquiry struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone,omitempty"`
	Subject        string        `json:"subject,omitempty"`
	Message        string        `json:"message"`
	Source         string        `json:"source"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Status         InquiryStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// InquiryInput is submitted by the contact form.
type InquiryInput struct {
	Name    string `json:"name" validate:"required,max=128"`
	Email   string `json:"email" validate:"required,email,max=256"`
	Phone   string `json:"phone" validate:"max=32"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,max=4000"`
}

// UpdateInquiryStatusRequest changes an inquiry's status.
type UpdateInquiryStatusRequest struct {
	Status InquiryStatus `json:"status" validate:"required,oneof=new contacted closed"`
}

// Setting is a site content entry.
type Setting struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingInput replaces a setting's value. false, 0 and "" are valid
// values; only a missing or null value is rejected.
type SettingInput struct {
	Value any `json:"value"`
}
