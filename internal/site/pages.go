// Package site holds the fixed page table and the router that tracks the
// current page.
package site

import "github.com/hammamikhairi/voicepay/internal/domain"

// Pages is the cyclic reading order of the site.
var Pages = []domain.Page{
	{
		Path:    domain.RouteHome,
		Name:    "Home",
		Title:   "India's most inclusive payment platform",
		Content: "Welcome to VoicePay. India's most inclusive payment platform. We believe technology should serve everyone, regardless of their abilities or digital literacy. Our voice-powered payment system makes transactions accessible to all.",
	},
	{
		Path:    domain.RouteAbout,
		Name:    "About",
		Title:   "About VoicePay",
		Content: "About VoicePay. We are revolutionizing digital payments through voice technology. Our mission is to create an inclusive financial ecosystem where anyone can make payments using just their voice.",
	},
	{
		Path:    domain.RouteWorking,
		Name:    "Working Demo",
		Title:   "Voice Payment Demo",
		Content: "Voice Payment Demo. Experience the future of accessible payments with your voice. This interactive demonstration shows how easy it is to complete transactions using voice commands.",
	},
	{
		Path:    domain.RoutePricing,
		Name:    "Pricing",
		Title:   "Pricing Plans",
		Content: "Pricing Plans. Choose the perfect plan for your business needs. We offer flexible pricing options to accommodate businesses of all sizes.",
	},
}

// NotFoundPage is served for any path outside the route table.
var NotFoundPage = domain.Page{
	Path:    domain.RouteNotFound,
	Name:    "Not Found",
	Title:   "404",
	Content: "Oops! Page not found. Say \"home\" to return to the home page.",
}

// Lookup returns the page for path and whether it is a known route.
func Lookup(path domain.Route) (domain.Page, bool) {
	for _, p := range Pages {
		if p.Path == path {
			return p, true
		}
	}
	return NotFoundPage, false
}

// IndexOf returns the position of path in the reading order, or -1.
func IndexOf(path domain.Route) int {
	for i, p := range Pages {
		if p.Path == path {
			return i
		}
	}
	return -1
}
