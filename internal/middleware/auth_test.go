package middleware

import (
	"testing"

	authorizer "github.com/localnerve/authorizer-go"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestIdentityFromUser(t *testing.T) {
	ident := identityFromUser(&authorizer.User{
		ID:                "user-1",
		Email:             "jane@example.com",
		PreferredUsername: "janey",
		Nickname:          strPtr("JD"),
		GivenName:         strPtr("Jane"),
		FamilyName:        strPtr("Doe"),
		Picture:           strPtr("https://cdn.example.com/a.png"),
	})

	assert.Equal(t, "user-1", ident.Subject)
	assert.Equal(t, "jane@example.com", ident.Email)
	assert.Equal(t, "janey", ident.PreferredUsername)
	assert.Equal(t, "JD", ident.Nickname)
	assert.Equal(t, "Jane", ident.GivenName)
	assert.Equal(t, "Doe", ident.FamilyName)
	assert.Equal(t, "https://cdn.example.com/a.png", ident.Picture)
}

func TestIdentityFromUserAbsentClaims(t *testing.T) {
	// Optional claims are nil pointers on the wire; they flatten to empty
	ident := identityFromUser(&authorizer.User{
		ID:    "user-2",
		Email: "wanderer@example.com",
	})

	assert.Equal(t, "user-2", ident.Subject)
	assert.Empty(t, ident.PreferredUsername)
	assert.Empty(t, ident.Nickname)
	assert.Empty(t, ident.GivenName)
	assert.Empty(t, ident.FamilyName)
	assert.Empty(t, ident.Picture)
}
