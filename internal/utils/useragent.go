package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// DeviceInfo holds parsed information from a User-Agent string
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, unknown
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	IsBot      bool   `json:"is_bot"`
}

var tabletIndicators = []string{"ipad", "tablet", "kindle", "playbook", "nexus 7", "nexus 9", "nexus 10", "sm-t"}

// ParseUserAgent extracts device information from a User-Agent string
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown"}
	}

	parser := ua.New(userAgent)

	info := DeviceInfo{
		IsBot:      parser.Bot(),
		DeviceType: "desktop",
		OS:         "Unknown",
		Browser:    "Unknown",
	}

	if os := parser.OSInfo(); os.Name != "" {
		info.OS = strings.TrimSpace(os.Name + " " + os.Version)
	}
	if name, _ := parser.Browser(); name != "" {
		info.Browser = name
	}

	lower := strings.ToLower(userAgent)
	for _, indicator := range tabletIndicators {
		if strings.Contains(lower, indicator) {
			info.DeviceType = "tablet"
			return info
		}
	}
	if parser.Mobile() {
		info.DeviceType = "mobile"
	}
	return info
}

// BookingSource classifies the channel a booking request came from
func BookingSource(userAgent string) models.BookingSource {
	info := ParseUserAgent(userAgent)
	switch {
	case info.IsBot:
		return models.BookingSourceBot
	case info.DeviceType == "mobile":
		return models.BookingSourceMobile
	case info.DeviceType == "tablet":
		return models.BookingSourceTablet
	case info.DeviceType == "desktop":
		return models.BookingSourceWeb
	default:
		return models.BookingSourceUnknown
	}
}
