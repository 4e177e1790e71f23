package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarquote/solarquote/migrations"
)

func TestPendingOrdersAndSkipsApplied(t *testing.T) {
	files := fstest.MapFS{
		"0002_visits.sql": {Data: []byte("SELECT 2")},
		"0001_init.sql":   {Data: []byte("SELECT 1")},
		"0003_extra.sql":  {Data: []byte("SELECT 3")},
		"README.md":       {Data: []byte("notes")},
		"seed/0001_x.sql": {Data: []byte("SELECT 0")},
	}

	pending, err := Pending(files, map[string]bool{"0002_visits.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0003_extra.sql"}, pending)
}

func TestEmbeddedSchemaIsListed(t *testing.T) {
	pending, err := Pending(migrations.Files, nil)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	assert.Equal(t, "0001_init.sql", pending[0])
}
