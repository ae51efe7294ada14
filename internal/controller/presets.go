package controller

import "github.com/dgnsrekt/pagecapture/internal/settings"

type UserAgentPreset struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ViewportPreset struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var userAgentPresets = []UserAgentPreset{
	{Name: "Chrome (Windows)", Value: settings.DefaultUserAgent},
	{Name: "Chrome (Mac)", Value: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
	{Name: "Firefox (Windows)", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"},
	{Name: "Safari (Mac)", Value: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"},
	{Name: "Edge (Windows)", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"},
	{Name: "Mobile iPhone", Value: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"},
	{Name: "Mobile Android", Value: "Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"},
}

var viewportPresets = []ViewportPreset{
	{Name: "Desktop HD", Width: 1920, Height: 1080},
	{Name: "Desktop", Width: 1366, Height: 768},
	{Name: "Laptop", Width: 1440, Height: 900},
	{Name: "Tablet (Landscape)", Width: 1024, Height: 768},
	{Name: "Tablet (Portrait)", Width: 768, Height: 1024},
	{Name: "Mobile Large", Width: 414, Height: 896},
	{Name: "Mobile Medium", Width: 375, Height: 812},
	{Name: "Mobile Small", Width: 320, Height: 568},
}

// UserAgents returns a copy of the common user-agent strings.
func (s *Service) UserAgents() []UserAgentPreset {
	return append([]UserAgentPreset(nil), userAgentPresets...)
}

// ViewportPresets returns a copy of the common window sizes.
func (s *Service) ViewportPresets() []ViewportPreset {
	return append([]ViewportPreset(nil), viewportPresets...)
}
