package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDBName(t *testing.T) {
	got, err := WithDBName("postgres://bus@127.0.0.1:5432/postgres?sslmode=disable", "tracker")
	require.NoError(t, err)
	assert.Equal(t, "postgres://bus@127.0.0.1:5432/tracker?sslmode=disable", got)

	got, err = WithDBName("bus@db:5432/postgres", "/prefs")
	require.NoError(t, err)
	assert.Equal(t, "postgres://bus@db:5432/prefs", got)

	_, err = WithDBName("", "tracker")
	assert.Error(t, err)
}
