package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./librarian.db"

	// MinJWTSecretLength is the minimum accepted HS256 signing key size.
	MinJWTSecretLength = 32

	ServiceName = "librarian"
)
