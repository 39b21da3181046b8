package sessions

// Note the clients may depend on some of these values, changing them will
// cause breaking changes
const (
	DefaultSessionCookieName = "_feast_session"
	SessionCtxKey            = "feast_session"
)
