package models

import "time"

// Candidate is a cleaned feed entry considered for selection during one run
type Candidate struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published"`
	ImageURL  string    `json:"image_url"`
}
