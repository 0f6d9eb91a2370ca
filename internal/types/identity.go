package types

// Identity is the resolved caller identity from a validated Authorizer
// session. Optional claims are empty strings when the provider did not
// supply them.
type Identity struct {
	Subject           string
	Email             string
	PreferredUsername string
	Nickname          string
	GivenName         string
	FamilyName        string
	Picture           string
}
