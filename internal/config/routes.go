package config

import (
	"fmt"
	"strings"
)

// Route declares one navigable page of the web console. Routes with roles
// are only reachable by users holding one of them; routes with an Href open
// an external page instead of an in-app view.
type Route struct {
	Path  string
	Roles []string
	Href  string
}

// RoutesConfig drives the navigation guard: the public (constant) and
// authenticated route catalogs plus the well-known destinations guard
// decisions land on.
type RoutesConfig struct {
	HomeRoute           string
	LoginRoute          string
	ForbiddenRoute      string
	NotFoundRoute       string
	VendorPathPrefix    string
	VendorRegisterRoute string
	// StaticSuperRole bypasses per-route role checks when the auth route
	// mode is static, mirroring the console's build-time configuration.
	AuthRouteMode   string
	StaticSuperRole string
	ConstantRoutes  []Route
	AuthRoutes      []Route
}

const AuthRouteModeStatic string = "static"
const AuthRouteModeDynamic string = "dynamic"

func (c *RoutesConfig) Validate() error {
	if c.LoginRoute == "" || c.HomeRoute == "" {
		return fmt.Errorf("both a login route and a home route must be configured")
	}
	if c.AuthRouteMode != AuthRouteModeStatic && c.AuthRouteMode != AuthRouteModeDynamic {
		return fmt.Errorf("auth route mode must be %q or %q, got %q", AuthRouteModeStatic, AuthRouteModeDynamic, c.AuthRouteMode)
	}
	for _, route := range append(append([]Route{}, c.ConstantRoutes...), c.AuthRoutes...) {
		if !strings.HasPrefix(route.Path, "/") {
			return fmt.Errorf("route path %q must start with a slash", route.Path)
		}
	}
	if c.VendorPathPrefix != "" && !strings.HasPrefix(c.VendorRegisterRoute, "/") {
		return fmt.Errorf("a vendor register route must be configured when the vendor path prefix is set")
	}
	return nil
}
