package session

// AuthType selects the login ceremony used by Login.
type AuthType string

const (
	// AuthTypeCode is the password + PKCE authorization-code exchange.
	AuthTypeCode AuthType = "code"
	// AuthTypeTokens is the direct password exchange without a pre-auth
	// code, used by legacy consumers.
	AuthTypeTokens AuthType = "id_token token"
)

// AuthenticationType reports which ceremony established the current session.
type AuthenticationType string

const (
	AuthenticationTypeCode    AuthenticationType = "code"
	AuthenticationTypePasskey AuthenticationType = "passkey"
	AuthenticationTypeNone    AuthenticationType = ""
)

// Logout reasons surfaced to subscribers. The strings are user facing.
const (
	ReasonExpiredSession   = "Oops! It looks like your session has expired. For your security, please log in again to continue."
	ReasonLoginError       = "Login failed. Please verify your credentials and try again."
	ReasonAccessTokenError = "Oops! Your session could not be renewed. For your security, please log in again to continue."
	ReasonLoggedOut        = "You have been logged out."
)

type User struct {
	UserID   string
	Username string
}

// AuthState is the read-only snapshot handed to subscribers. IsAuthenticated
// is true exactly when a verified id token is persisted.
type AuthState struct {
	IsLoading          bool
	IsAuthenticated    bool
	AuthenticationType AuthenticationType
	User               *User
	LogoutReason       string
	Debug              bool
}

// The state only ever changes through one of the three transitions below.
// Each variant carries exactly the data its state change needs, so a half
// applied transition cannot be expressed.
type transition interface {
	apply(AuthState) AuthState
}

type loadingTransition struct {
	isLoading bool
}

func (t loadingTransition) apply(s AuthState) AuthState {
	s.IsLoading = t.isLoading

	return s
}

type loginTransition struct {
	user     User
	authType AuthenticationType
}

func (t loginTransition) apply(s AuthState) AuthState {
	s.IsLoading = false
	s.IsAuthenticated = true
	s.AuthenticationType = t.authType
	s.User = &User{UserID: t.user.UserID, Username: t.user.Username}
	s.LogoutReason = ""

	return s
}

type logoutTransition struct {
	reason string
}

func (t logoutTransition) apply(s AuthState) AuthState {
	s.IsLoading = false
	s.IsAuthenticated = false
	s.AuthenticationType = AuthenticationTypeNone
	s.User = nil
	s.LogoutReason = t.reason

	return s
}
