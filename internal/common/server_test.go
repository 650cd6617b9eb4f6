package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthProvider(t *testing.T) {
	p, err := newAuthProvider(SetupServerOptions{})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = newAuthProvider(SetupServerOptions{AuthType: "apikey", APIKey: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, p)

	p, err = newAuthProvider(SetupServerOptions{AuthType: "jwt", JWTSecret: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = newAuthProvider(SetupServerOptions{AuthType: "apikey"})
	assert.Error(t, err)
	_, err = newAuthProvider(SetupServerOptions{AuthType: "oauth"})
	assert.Error(t, err)
}

func TestIssueCreationSkill(t *testing.T) {
	skill := IssueCreationSkill()
	assert.Equal(t, "create_issues", skill.ID)
	require.NotNil(t, skill.Description)
}
