package model

// MailMessage is a plain-text email.
type MailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}
