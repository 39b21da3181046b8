// Package routeguard decides whether a navigation of the web console
// proceeds, redirects or opens an external page. The two route catalogs
// (public and authenticated) are initialized lazily per session the first
// time a navigation needs them, mirroring how the console mounts its router.
package routeguard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/feastline/feast-gateway/internal/config"
	"github.com/feastline/feast-gateway/internal/models"
)

type Action string

const (
	ActionAllow    Action = "allow"
	ActionRedirect Action = "redirect"
	ActionExternal Action = "external"
)

// Decision is the outcome of one navigation evaluation. Redirects carry the
// destination plus whether the client should replace the history entry;
// external decisions cancel the in-app navigation and open Href instead.
type Decision struct {
	Action  Action     `json:"action"`
	To      string     `json:"to,omitempty"`
	Replace bool       `json:"replace,omitempty"`
	Query   url.Values `json:"query,omitempty"`
	Href    string     `json:"href,omitempty"`
}

// SessionInfo is the slice of the session coordinator the guard consumes.
type SessionInfo interface {
	TryGetValidToken(ctx context.Context, sessionID string) string
	Profile(ctx context.Context, sessionID string) (models.UserProfile, error)
	VendorStoreStatus(ctx context.Context, sessionID string, force bool) (models.VendorStoreStatus, error)
}

// catalogState tracks the lazy catalog initialization of one session. The
// catalog holds the routes currently registered for that session: constant
// routes after the first step, plus the user's authorized routes once the
// auth catalog initialized.
type catalogState struct {
	constantReady bool
	authReady     bool
	catalog       map[string]config.Route
}

type Guard struct {
	config   config.RoutesConfig
	sessions SessionInfo
	// every auth route path regardless of role, to tell 403 from not-found
	allAuthPaths map[string]bool

	mu     sync.Mutex
	states map[string]*catalogState
}

type GuardOption func(*Guard) error

func WithConfig(routesConfig config.RoutesConfig) GuardOption {
	return func(g *Guard) error {
		g.config = routesConfig
		g.allAuthPaths = map[string]bool{}
		for _, route := range routesConfig.AuthRoutes {
			g.allAuthPaths[route.Path] = true
		}
		return nil
	}
}

func WithSessionInfo(sessions SessionInfo) GuardOption {
	return func(g *Guard) error {
		g.sessions = sessions
		return nil
	}
}

func NewGuard(options ...GuardOption) (*Guard, error) {
	guard := Guard{states: map[string]*catalogState{}}
	for _, opt := range options {
		if err := opt(&guard); err != nil {
			return nil, err
		}
	}
	if guard.sessions == nil {
		return nil, fmt.Errorf("the guard needs access to session state")
	}
	if guard.config.LoginRoute == "" {
		return nil, fmt.Errorf("the guard needs a routes configuration")
	}
	return &guard, nil
}

// Reset drops the catalog state of a session, forcing re-initialization on
// the next navigation. Called when a session logs out or switches users.
func (g *Guard) Reset(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, sessionID)
}

// Evaluate runs the decision sequence for a navigation to target, carrying
// the target's query and the origin path the navigation came from.
func (g *Guard) Evaluate(
	ctx context.Context,
	sessionID string,
	target string,
	query url.Values,
	from string,
) (Decision, error) {
	state := g.state(sessionID)
	loggedIn := g.sessions.TryGetValidToken(ctx, sessionID) != ""

	// constant catalog init comes first, then the target is re-dispatched so
	// the fresh routes can resolve it
	g.mu.Lock()
	if !state.constantReady {
		for _, route := range g.config.ConstantRoutes {
			state.catalog[route.Path] = route
		}
		state.constantReady = true
		g.mu.Unlock()
		return Decision{Action: ActionRedirect, To: target, Replace: true, Query: query}, nil
	}
	// a logged-out session keeps no stale auth catalog: the next login may
	// be a different user with different routes
	if !loggedIn && state.authReady {
		state.authReady = false
		state.catalog = map[string]config.Route{}
		for _, route := range g.config.ConstantRoutes {
			state.catalog[route.Path] = route
		}
	}
	g.mu.Unlock()

	if !loggedIn {
		if _, public := g.lookup(state, target); public {
			return Decision{Action: ActionAllow}, nil
		}
		loginQuery := url.Values{}
		if target != g.config.HomeRoute {
			loginQuery.Set("redirect", target)
		}
		return Decision{Action: ActionRedirect, To: g.config.LoginRoute, Query: loginQuery}, nil
	}

	profile, err := g.sessions.Profile(ctx, sessionID)
	if err != nil {
		slog.Info("ROUTE GUARD", "message", "no cached profile for logged-in session", "sessionID", sessionID, "error", err)
	}

	g.mu.Lock()
	if !state.authReady {
		for _, route := range g.authorizedRoutes(profile) {
			state.catalog[route.Path] = route
		}
		state.authReady = true
		g.mu.Unlock()
		if _, found := g.lookup(state, target); found {
			// the target only missed because the auth routes were not
			// registered yet, send the client back to it
			return Decision{Action: ActionRedirect, To: target, Replace: true, Query: query}, nil
		}
		if from == "/" {
			return Decision{Action: ActionRedirect, To: g.config.HomeRoute}, nil
		}
	} else {
		g.mu.Unlock()
	}

	route, found := g.lookup(state, target)
	if !found {
		if g.allAuthPaths[target] {
			// the route exists but this user may not see it
			return Decision{Action: ActionRedirect, To: g.config.ForbiddenRoute}, nil
		}
		return Decision{Action: ActionAllow}, nil
	}

	if target == g.config.LoginRoute {
		to := query.Get("redirect")
		if to == "" {
			to = g.config.HomeRoute
		}
		return Decision{Action: ActionRedirect, To: to}, nil
	}

	if len(route.Roles) > 0 && !g.roleAllowed(profile, route.Roles) {
		return Decision{Action: ActionRedirect, To: g.config.ForbiddenRoute}, nil
	}

	if decision, gated := g.vendorGate(ctx, sessionID, profile, target); gated {
		return decision, nil
	}

	if route.Href != "" {
		return Decision{Action: ActionExternal, Href: route.Href}, nil
	}
	return Decision{Action: ActionAllow}, nil
}

func (g *Guard) state(sessionID string) *catalogState {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, found := g.states[sessionID]
	if !found {
		state = &catalogState{catalog: map[string]config.Route{}}
		g.states[sessionID] = state
	}
	return state
}

func (g *Guard) lookup(state *catalogState, target string) (config.Route, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	route, found := state.catalog[target]
	return route, found
}

// authorizedRoutes filters the auth catalog by the user's role. In static
// mode the whole catalog is registered and per-route role checks apply
// afterwards; in dynamic mode routes outside the user's role are never
// registered at all, which is what makes them land on not-found.
func (g *Guard) authorizedRoutes(profile models.UserProfile) []config.Route {
	if g.config.AuthRouteMode == config.AuthRouteModeStatic {
		return g.config.AuthRoutes
	}
	authorized := []config.Route{}
	for _, route := range g.config.AuthRoutes {
		if len(route.Roles) == 0 || g.roleAllowed(profile, route.Roles) {
			authorized = append(authorized, route)
		}
	}
	return authorized
}

func (g *Guard) roleAllowed(profile models.UserProfile, roles []string) bool {
	role := string(profile.UserType)
	if g.config.StaticSuperRole != "" && role == g.config.StaticSuperRole {
		return true
	}
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// vendorGate enforces the onboarding prerequisite: a vendor entering the
// vendor area must own a store, otherwise the navigation is diverted to the
// registration page carrying the target. The store status is re-fetched on
// every gated navigation.
func (g *Guard) vendorGate(
	ctx context.Context,
	sessionID string,
	profile models.UserProfile,
	target string,
) (Decision, bool) {
	if profile.UserType != models.UserTypeVendor || g.config.VendorPathPrefix == "" {
		return Decision{}, false
	}
	inVendorArea := strings.HasPrefix(target, g.config.VendorPathPrefix) || target == g.config.VendorRegisterRoute
	if !inVendorArea {
		return Decision{}, false
	}
	status, err := g.sessions.VendorStoreStatus(ctx, sessionID, true)
	if err != nil {
		slog.Warn("ROUTE GUARD", "message", "could not fetch vendor store status", "sessionID", sessionID, "error", err)
		return Decision{}, false
	}
	if !status.Exists && target != g.config.VendorRegisterRoute {
		registerQuery := url.Values{}
		registerQuery.Set("redirect", target)
		return Decision{Action: ActionRedirect, To: g.config.VendorRegisterRoute, Query: registerQuery}, true
	}
	return Decision{}, false
}
