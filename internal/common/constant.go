package common

// AuthorizationHeaderName is the HTTP header carrying the bearer credential.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only authorization scheme accepted by the API.
const BearerScheme = "Bearer"

// MaxTaskTitleLength is the upper bound on a trimmed task title, in characters.
const MaxTaskTitleLength = 500

// Password length policy. bcrypt ignores input beyond 72 bytes, so longer
// passwords are rejected instead of being silently truncated.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)
