package fingerprint

import (
	"fmt"
	"strings"
)

// Unknown is reported when no classification rule matches.
const Unknown = "Unknown"

type uaRule struct {
	substrings []string
	name       string
}

// Ordered tables; the first matching rule wins. iOS is tested before macOS
// because iPad user agents also carry "Mac OS X", and Android before Linux
// for the same containment reason.
var osRules = []uaRule{
	{[]string{"Windows NT 10"}, "Windows 10/11"},
	{[]string{"Windows"}, "Windows"},
	{[]string{"iPhone", "iPad", "iPod"}, "iOS"},
	{[]string{"Android"}, "Android"},
	{[]string{"CrOS"}, "ChromeOS"},
	{[]string{"Mac OS X", "Macintosh"}, "macOS"},
	{[]string{"Linux", "X11"}, "Linux"},
}

var browserRules = []uaRule{
	{[]string{"Edg/", "Edge/"}, "Edge"},
	{[]string{"OPR/", "Opera"}, "Opera"},
	{[]string{"Chrome/", "CriOS/"}, "Chrome"},
	{[]string{"Firefox/", "FxiOS/"}, "Firefox"},
	{[]string{"Safari/"}, "Safari"},
}

func matchRules(ua string, rules []uaRule) string {
	for _, rule := range rules {
		for _, sub := range rule.substrings {
			if strings.Contains(ua, sub) {
				return rule.name
			}
		}
	}
	return Unknown
}

// ClassifyUserAgent derives the operating system and browser names from a
// raw user-agent string.
func ClassifyUserAgent(ua string) (operatingSystem, browser string) {
	return matchRules(ua, osRules), matchRules(ua, browserRules)
}

// DeviceName produces a human-readable device label. Apple and Android
// devices get model/version extraction; everything else falls back to
// "{OS} - {Browser}".
func DeviceName(ua string) string {
	switch {
	case strings.Contains(ua, "iPhone"):
		if v := appleOSVersion(ua); v != "" {
			return "iPhone (iOS " + v + ")"
		}
		return "iPhone"
	case strings.Contains(ua, "iPad"):
		if v := appleOSVersion(ua); v != "" {
			return "iPad (iPadOS " + v + ")"
		}
		return "iPad"
	case strings.Contains(ua, "Android"):
		if model := androidModel(ua); model != "" {
			return model
		}
	}

	osName, browser := ClassifyUserAgent(ua)
	return fmt.Sprintf("%s - %s", osName, browser)
}

// appleOSVersion extracts "16.5" from "... iPhone OS 16_5 like Mac OS X ...".
func appleOSVersion(ua string) string {
	for _, marker := range []string{"iPhone OS ", "CPU OS "} {
		idx := strings.Index(ua, marker)
		if idx < 0 {
			continue
		}
		rest := ua[idx+len(marker):]
		if end := strings.IndexByte(rest, ' '); end > 0 {
			rest = rest[:end]
		}
		return strings.ReplaceAll(rest, "_", ".")
	}
	return ""
}

// androidModel extracts the device model from the parenthesised UA segment,
// e.g. "(Linux; Android 13; Pixel 7)" yields "Pixel 7".
func androidModel(ua string) string {
	open := strings.IndexByte(ua, '(')
	end := strings.IndexByte(ua, ')')
	if open < 0 || end <= open {
		return ""
	}

	for _, part := range strings.Split(ua[open+1:end], ";") {
		part = strings.TrimSpace(part)
		if part == "" || part == "U" || part == "wv" ||
			strings.HasPrefix(part, "Linux") || strings.HasPrefix(part, "Android") {
			continue
		}
		// Build suffixes like "Pixel 7 Build/TQ3A" collapse to the model.
		if idx := strings.Index(part, " Build/"); idx > 0 {
			part = part[:idx]
		}
		return part
	}
	return ""
}
