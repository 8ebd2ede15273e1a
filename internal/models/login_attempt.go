package models

// LoginOutcome labels the result of a single login attempt for audit and metrics
type LoginOutcome string

const (
	LoginSuccess            LoginOutcome = "success"
	LoginInvalidCredentials LoginOutcome = "invalid_credentials"
	LoginRateLimited        LoginOutcome = "rate_limited"
	LoginInfrastructure     LoginOutcome = "infrastructure_error"
	LoginCancelled          LoginOutcome = "cancelled"
)
