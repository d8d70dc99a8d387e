package domain

import "time"

// AuthEventType names an entry in the authentication audit trail.
type AuthEventType string

const (
	EventRegister       AuthEventType = "register"
	EventLogin          AuthEventType = "login"
	EventLoginFailed    AuthEventType = "login_failed"
	EventOAuthLogin     AuthEventType = "oauth_login"
	EventOAuthLinked    AuthEventType = "oauth_linked"
	EventOAuthCreated   AuthEventType = "oauth_created"
	EventPasswordChange AuthEventType = "password_change"
)

// AuthEvent records one authentication outcome. UserID is empty for failed
// logins against unknown accounts; Subject then carries the attempted email.
type AuthEvent struct {
	Type      AuthEventType
	UserID    string
	Subject   string
	Timestamp time.Time
}
