package entity

import (
	"encoding/base64"
	"time"
)

type PageContent struct {
	URL   string
	Title string
	HTML  string
}

// Screenshot is a percept: the visual state of the surface at one moment.
type Screenshot struct {
	Data       []byte
	Format     string
	Width      int
	Height     int
	URL        string
	CapturedAt time.Time
}

func (s *Screenshot) MIMEType() string {
	if s.Format == "" {
		return "image/png"
	}
	return "image/" + s.Format
}

func (s *Screenshot) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Data)
}

// DataURL renders the screenshot as an inline image URL for vision models.
func (s *Screenshot) DataURL() string {
	return "data:" + s.MIMEType() + ";base64," + s.Base64()
}
