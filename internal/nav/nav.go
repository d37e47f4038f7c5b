// Package nav lists the top-level screens and resolves which one is active.
package nav

import "strings"

// Route is one sidebar entry.
type Route struct {
	Title string
	Path  string
}

// Route paths.
const (
	PathDashboard = "/dashboard"
	PathSections  = "/dashboard/sections"
	PathAccount   = "/account"
)

// Routes returns the sidebar entries in display order.
func Routes() []Route {
	return []Route{
		{Title: "Dashboard", Path: PathDashboard},
		{Title: "Sections", Path: PathSections},
		{Title: "Account", Path: PathAccount},
	}
}

// IsActive reports whether current is route itself or nested below it.
func IsActive(current, route string) bool {
	current = normalize(current)
	route = normalize(route)
	if route == "" {
		return false
	}
	return current == route || strings.HasPrefix(current, route+"/")
}

// Active returns the most specific route matching current.
func Active(current string, routes []Route) (Route, bool) {
	var (
		best  Route
		found bool
	)
	for _, r := range routes {
		if !IsActive(current, r.Path) {
			continue
		}
		if !found || len(normalize(r.Path)) > len(normalize(best.Path)) {
			best, found = r, true
		}
	}
	return best, found
}

// Index returns the position of path in routes, or -1.
func Index(routes []Route, path string) int {
	path = normalize(path)
	for i, r := range routes {
		if normalize(r.Path) == path {
			return i
		}
	}
	return -1
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
