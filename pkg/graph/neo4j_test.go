package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresURI(t *testing.T) {
	client, err := NewClient(Config{
		User:     "neo4j",
		Password: "secret",
		Database: "admissions",
	})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "uri required")
}

func TestNewClientRejectsMalformedURI(t *testing.T) {
	client, err := NewClient(Config{
		URI:      "://not-a-scheme",
		User:     "neo4j",
		Password: "secret",
	})
	require.Error(t, err)
	assert.Nil(t, client)
}
