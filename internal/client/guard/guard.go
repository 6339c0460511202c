// Package guard gates client-side navigation on session validity.
package guard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Action is the guard's verdict for one navigation.
type Action int

const (
	Allow Action = iota
	RedirectSignIn
	RedirectHome
)

func (a Action) String() string {
	switch a {
	case RedirectSignIn:
		return "redirect_signin"
	case RedirectHome:
		return "redirect_home"
	default:
		return "allow"
	}
}

// Route describes one client route and its access policy. AuthOnly marks the
// pages that only make sense while signed out (sign-in, sign-up, the auth
// callback).
type Route struct {
	Name         string `yaml:"name"`
	Path         string `yaml:"path"`
	RequiresAuth bool   `yaml:"requires_auth"`
	AuthOnly     bool   `yaml:"auth_only"`
}

// DefaultRoutes is the route table shipped with the application.
var DefaultRoutes = []Route{
	{Name: "Home", Path: "/", RequiresAuth: true},
	{Name: "List", Path: "/list", RequiresAuth: true},
	{Name: "Detail", Path: "/detail", RequiresAuth: true},
	{Name: "SignIn", Path: "/signin", AuthOnly: true},
	{Name: "SignUp", Path: "/signup", AuthOnly: true},
	{Name: "AuthCallback", Path: "/auth/validation", AuthOnly: true},
	{Name: "NotFound", Path: "/404"},
}

// Guard evaluates navigations against a route table.
type Guard struct {
	byName map[string]Route
	routes []Route
}

// New builds a guard from the given routes; nil falls back to DefaultRoutes.
func New(routes []Route) *Guard {
	if routes == nil {
		routes = DefaultRoutes
	}
	byName := make(map[string]Route, len(routes))
	for _, r := range routes {
		byName[r.Name] = r
	}
	return &Guard{byName: byName, routes: routes}
}

// Routes returns the route table in declaration order.
func (g *Guard) Routes() []Route {
	return g.routes
}

// Load reads a route table from a YAML file.
func Load(path string) (*Guard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}

	var routes []Route
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}
	return New(routes), nil
}

// Decide applies the access policy for one navigation. Unknown routes behave
// like public pages. Staleness is the refresher's problem: the guard only
// looks at the validity bit it is handed.
func (g *Guard) Decide(authenticated bool, routeName string) Action {
	route := g.byName[routeName]

	if !authenticated {
		if route.RequiresAuth {
			return RedirectSignIn
		}
		return Allow
	}

	if route.AuthOnly {
		return RedirectHome
	}
	return Allow
}
