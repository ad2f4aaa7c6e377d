package scopes_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-identity-core/scopes"
)

func TestParse(t *testing.T) {
	t.Run("single permission", func(t *testing.T) {
		set := scopes.Parse("edit")
		require.Len(t, set, 1)
		assert.True(t, set.Has(scopes.PermissionEdit))
	})

	t.Run("multiple permissions", func(t *testing.T) {
		set := scopes.Parse("edit,email,sessions")
		require.Len(t, set, 3)
		assert.True(t, set.Has(scopes.PermissionEdit))
		assert.True(t, set.Has(scopes.PermissionEmail))
		assert.True(t, set.Has(scopes.PermissionSessions))
	})

	t.Run("wildcard grants everything", func(t *testing.T) {
		set := scopes.Parse("*")
		assert.Equal(t, scopes.All(), set)
	})

	t.Run("wildcard anywhere in string grants everything", func(t *testing.T) {
		set := scopes.Parse("edit,*")
		assert.Equal(t, scopes.All(), set)
	})

	t.Run("unrecognized tokens are dropped", func(t *testing.T) {
		set := scopes.Parse("edit,bogus,also-bogus")
		require.Len(t, set, 1)
		assert.True(t, set.Has(scopes.PermissionEdit))
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		set := scopes.Parse("edit,edit,edit")
		assert.Len(t, set, 1)
	})

	t.Run("empty string parses to empty set", func(t *testing.T) {
		assert.Empty(t, scopes.Parse(""))
	})
}

func TestParserWhitespace(t *testing.T) {
	t.Run("default parser does not trim", func(t *testing.T) {
		set := scopes.Parse("edit, email")
		require.Len(t, set, 1)
		assert.True(t, set.Has(scopes.PermissionEdit))
		assert.False(t, set.Has(scopes.PermissionEmail))
	})

	t.Run("trimming parser accepts padded tokens", func(t *testing.T) {
		p := scopes.Parser{TrimSpace: true}
		set := p.Parse("edit, email ,\tsessions\n")
		require.Len(t, set, 3)
		assert.True(t, set.Has(scopes.PermissionEmail))
		assert.True(t, set.Has(scopes.PermissionSessions))
	})
}

func TestNormalize(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		s := scopes.Normalize("email,edit,bogus,edit")
		assert.Equal(t, s, scopes.Normalize(s))
	})

	t.Run("canonical order", func(t *testing.T) {
		assert.Equal(t, "edit,email", scopes.Normalize("email,edit"))
	})

	t.Run("drops duplicates and unknowns", func(t *testing.T) {
		assert.Equal(t, "edit", scopes.Normalize("edit,edit,nope"))
	})
}

func TestTTLFor(t *testing.T) {
	defaultTTL := time.Hour

	t.Run("noexpire forces zero", func(t *testing.T) {
		set := scopes.Parse("edit,noexpire")
		assert.Equal(t, time.Duration(0), scopes.TTLFor(set, defaultTTL))
	})

	t.Run("default otherwise", func(t *testing.T) {
		set := scopes.Parse("edit")
		assert.Equal(t, defaultTTL, scopes.TTLFor(set, defaultTTL))
	})
}

func TestSetMissing(t *testing.T) {
	set := scopes.Parse("edit,email")

	missing := set.Missing([]scopes.Permission{
		scopes.PermissionEdit,
		scopes.PermissionAdmin,
		scopes.PermissionSessions,
	})
	assert.Equal(t, []scopes.Permission{scopes.PermissionAdmin, scopes.PermissionSessions}, missing)

	assert.Nil(t, set.Missing([]scopes.Permission{scopes.PermissionEdit}))
}
