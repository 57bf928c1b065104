package service

import (
	"net/http"
	"strings"

	"github.com/stemsi/examdrill/internal/model"
)

// Edge headers set by Cloudflare in front of the service.
const (
	headerCity    = "CF-IPCity"
	headerCountry = "CF-IPCountry"
	headerRay     = "CF-Ray"
)

// WelcomeInfo derives the visitor's location from edge headers.
// Missing values are replaced by unknown.
func WelcomeInfo(h http.Header, unknown string) model.WelcomeInfo {
	return model.WelcomeInfo{
		City:    orUnknown(h.Get(headerCity), unknown),
		Country: orUnknown(country(h.Get(headerCountry)), unknown),
		Colo:    orUnknown(colo(h.Get(headerRay)), unknown),
	}
}

// colo extracts the data-center code from a ray id such as "8a1b2c3d4e5f6a7b-SJC".
func colo(ray string) string {
	i := strings.LastIndexByte(ray, '-')
	if i < 0 || i == len(ray)-1 {
		return ""
	}
	return strings.ToUpper(ray[i+1:])
}

// country drops Cloudflare's placeholders for unknown and Tor traffic.
func country(code string) string {
	switch strings.ToUpper(code) {
	case "XX", "T1":
		return ""
	}
	return code
}

func orUnknown(v, unknown string) string {
	if v = strings.TrimSpace(v); v == "" {
		return unknown
	}
	return v
}
