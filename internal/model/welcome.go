package model

// WelcomeInfo describes the edge location that served the request.
type WelcomeInfo struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Colo    string `json:"colo"`
}
