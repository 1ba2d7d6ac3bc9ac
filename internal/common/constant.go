package common

const (
	// AuthorizationHeaderName carries the caller's bearer access token.
	AuthorizationHeaderName = "Authorization"
	// BearerPrefix precedes the token in the Authorization header.
	BearerPrefix = "Bearer "

	// RoleAdmin grants read/delete access to every account and the maintenance endpoints.
	RoleAdmin = "admin"
	// RoleUser is the default role.
	RoleUser = "user"
)
