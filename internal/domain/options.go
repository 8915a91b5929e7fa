package domain

// PackagingOption describes one boolean packaging switch shown in the UI.
type PackagingOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Flag        string `json:"flag"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}
