package models

// Pet is one entry scraped from the listing page.
// Optional fields are empty when the listing omits the matching sub-element.
type Pet struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Votes  string `json:"votes"`
	Type   string `json:"type"`
	HTMLID string `json:"html_id"`

	ImageURL   string `json:"image_url,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
	Percentage string `json:"percentage,omitempty"`
}
