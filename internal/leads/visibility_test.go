package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibilityMatrix(t *testing.T) {
	unassigned := Lead{ID: "1"}
	toAlice := Lead{ID: "2", AssignedEmployeeID: ptr(alice.ID)}
	toBob := Lead{ID: "3", AssignedEmployeeID: ptr(bob.ID)}

	cases := []struct {
		name              string
		lead              Lead
		p                 Principal
		list, read, write bool
	}{
		{"admin unassigned", unassigned, admin, true, true, true},
		{"admin other", toBob, admin, true, true, true},
		{"employee unassigned", unassigned, alice, true, true, false},
		{"employee own", toAlice, alice, true, true, true},
		{"employee other", toBob, alice, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.list, Listable(tc.p).Allows(tc.lead), "listable")
			assert.Equal(t, tc.read, Readable(tc.lead, tc.p), "readable")
			assert.Equal(t, tc.write, Writable(tc.lead, tc.p), "writable")
		})
	}
}

func TestListFilterNormalize(t *testing.T) {
	f, err := ListFilter{}.normalize()
	assert.NoError(t, err)
	assert.Equal(t, DefaultListLimit, f.Limit)

	f, err = ListFilter{Limit: 5000}.normalize()
	assert.NoError(t, err)
	assert.Equal(t, MaxListLimit, f.Limit)
}

func TestParseStatusIsStrict(t *testing.T) {
	for _, s := range AllStatuses() {
		got, err := ParseStatus(string(s))
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("approved")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Len(t, AllStatuses(), 9)
}
