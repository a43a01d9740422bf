// Package routes names the navigation targets used by guard decisions and
// forced-logout redirects. They are opaque identifiers to this core; the
// front end maps them to actual screens.
package routes

// Route is an opaque navigation target.
type Route string

const (
	NativeLogin     Route = "/login"
	AdminLogin      Route = "/admin/login"
	NativeDashboard Route = "/portal"
	AdminDashboard  Route = "/admin"
)
