package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_DropsRecordsWithoutEmail(t *testing.T) {
	raw := []RawUser{
		{ID: "g1", Email: "", Username: "nomail"},
		{ID: "g2", Email: "  "},
	}

	users, errs := Normalize(raw)

	assert.Empty(t, users)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "g1")
	assert.Contains(t, errs[1], "g2")
}

func TestNormalize_DisplayNamePriority(t *testing.T) {
	testCases := []struct {
		name     string
		raw      RawUser
		expected string
	}{
		{
			name:     "first and last present",
			raw:      RawUser{Email: "a@x.com", FirstName: "Jane", LastName: "Doe"},
			expected: "Jane Doe",
		},
		{
			name:     "first only",
			raw:      RawUser{Email: "a@x.com", FirstName: "Jane"},
			expected: "Jane",
		},
		{
			name:     "last only",
			raw:      RawUser{Email: "a@x.com", LastName: "Doe"},
			expected: "Doe",
		},
		{
			name:     "username fallback",
			raw:      RawUser{Email: "a@x.com", Username: "jdoe"},
			expected: "jdoe",
		},
		{
			name:     "email fallback",
			raw:      RawUser{Email: "a@x.com"},
			expected: "a@x.com",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			users, errs := Normalize([]RawUser{tc.raw})
			require.Empty(t, errs)
			require.Len(t, users, 1)
			assert.Equal(t, tc.expected, users[0].Name)
		})
	}
}

func TestNormalize_PreservesProviderIDAndEmail(t *testing.T) {
	users, errs := Normalize([]RawUser{{ID: "g1", Email: "a@x.com", FirstName: "A"}})

	require.Empty(t, errs)
	require.Len(t, users, 1)
	assert.Equal(t, "g1", users[0].ProviderID)
	assert.Equal(t, "a@x.com", users[0].Email)
}
