package domain

// Route is a site path.
type Route string

const (
	RouteHome     Route = "/"
	RouteAbout    Route = "/about"
	RouteWorking  Route = "/working"
	RoutePricing  Route = "/pricing"
	RouteNotFound Route = "*"
)

// PageName is the spoken name of a route: "Home" for the root, otherwise
// the path without its leading slash.
func (r Route) PageName() string {
	if r == RouteHome {
		return "Home"
	}
	if len(r) > 1 && r[0] == '/' {
		return string(r[1:])
	}
	return string(r)
}

// Page is one navigable page of the site.
type Page struct {
	Path    Route
	Name    string
	Title   string
	Content string // narration read aloud by the auto-reader
}
