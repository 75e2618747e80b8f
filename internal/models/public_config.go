package models

// PublicConfig is the non-secret configuration exposed to clients.
type PublicConfig struct {
	AppName               string   `json:"app_name"`
	PollPeriodSeconds     int      `json:"poll_period_seconds"`
	ImageMaxDimension     int      `json:"image_max_dimension"`
	ImageMaxSizeMB        int      `json:"image_max_size_mb"`
	ImageBaseURL          string   `json:"image_base_url,omitempty"`
	AllowedEmailDomains   []string `json:"allowed_email_domains,omitempty"`
	RegistrationEmailHint string   `json:"registration_email_hint,omitempty"`
}
