package session

import "sync"

// LoginPath is where unauthenticated users are sent.
const LoginPath = "/login"

// Credentials holds the bearer token and display name for one browser session.
type Credentials struct {
	mu       sync.RWMutex
	token    string
	username string
}

// Token returns the held token, or "" when signed out.
func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// DisplayName returns the name shown in the dashboard header.
func (c *Credentials) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// Set stores a freshly issued credential.
func (c *Credentials) Set(token, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.username = username
}

// Clear discards the credential.
func (c *Credentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.username = ""
}

// Intent tells the composition root what to do next. A non-empty Redirect
// means stop and navigate; otherwise proceed and show DisplayName.
type Intent struct {
	Redirect    string
	DisplayName string
}

// Proceed reports whether the caller may continue.
func (i Intent) Proceed() bool { return i.Redirect == "" }

// Guard gates the dashboard on a held credential.
type Guard struct {
	creds     *Credentials
	loginPath string

	mu    sync.Mutex
	hooks []func()
}

// NewGuard returns a Guard over creds.
func NewGuard(creds *Credentials) *Guard {
	return &Guard{creds: creds, loginPath: LoginPath}
}

// OnLogout registers fn to run whenever the credential is discarded.
func (g *Guard) OnLogout(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, fn)
}

// CheckAuth decides whether initialization may continue.
func (g *Guard) CheckAuth() Intent {
	if g.creds.Token() == "" {
		return Intent{Redirect: g.loginPath}
	}
	return Intent{DisplayName: g.creds.DisplayName()}
}

// Logout clears the credential, runs the logout hooks and asks for a
// redirect to the login page.
func (g *Guard) Logout() Intent {
	g.creds.Clear()
	g.mu.Lock()
	hooks := append([]func(){}, g.hooks...)
	g.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return Intent{Redirect: g.loginPath}
}
