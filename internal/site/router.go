package site

import (
	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

var _ domain.Navigator = (*Router)(nil)

// Router tracks the current route and notifies subscribers on every
// navigation. It is not safe for concurrent use; drive it from the event
// loop.
type Router struct {
	log       *logger.Logger
	current   domain.Route
	listeners []func(domain.Route)
}

// NewRouter creates a router positioned at start.
func NewRouter(start domain.Route, log *logger.Logger) *Router {
	return &Router{current: start, log: log}
}

// Navigate moves to route. Paths outside the route table are kept as-is
// and render the not-found page. Listeners run even when route equals the
// current one.
func (r *Router) Navigate(route domain.Route) {
	if _, ok := Lookup(route); !ok {
		r.log.Debug("router: %s is not a known route", route)
	}
	r.current = route
	r.log.Debug("router: navigated to %s", route)
	for _, fn := range r.listeners {
		fn(route)
	}
}

// Current returns the current route.
func (r *Router) Current() domain.Route {
	return r.current
}

// Page returns the page for the current route.
func (r *Router) Page() domain.Page {
	p, _ := Lookup(r.current)
	return p
}

// Subscribe registers fn to run after each navigation.
func (r *Router) Subscribe(fn func(domain.Route)) {
	r.listeners = append(r.listeners, fn)
}
