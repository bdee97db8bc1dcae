package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type diffSubject struct {
	Name   string            `yaml:"name"`
	Status string            `yaml:"status"`
	Rating int               `yaml:"rating,omitempty"`
	Offer  *diffSubjectOffer `yaml:"offer,omitempty"`
	Notes  string            `yaml:"notes,omitempty"`
}

type diffSubjectOffer struct {
	Salary   int    `yaml:"salary"`
	Currency string `yaml:"currency"`
}

func TestSnapshot(t *testing.T) {
	m := Snapshot(&diffSubject{Name: "a", Status: "active", Rating: 3})
	require.NotNil(t, m)
	assert.Equal(t, "a", m["name"])
	assert.Equal(t, 3, m["rating"])

	assert.Nil(t, Snapshot(nil))
}

func TestDiff_TopLevel(t *testing.T) {
	before := Snapshot(&diffSubject{Name: "a", Status: "active"})
	after := Snapshot(&diffSubject{Name: "a", Status: "closed", Rating: 4})

	changes := Diff(before, after)
	require.Len(t, changes, 2)

	byField := map[string]FieldChange{}
	for _, c := range changes {
		byField[c.Field] = c
	}
	assert.Equal(t, "active", byField["status"].Before)
	assert.Equal(t, "closed", byField["status"].After)
	assert.Equal(t, "", byField["rating"].Before)
	assert.Equal(t, "4", byField["rating"].After)
}

func TestDiff_NestedOneLevel(t *testing.T) {
	before := Snapshot(&diffSubject{Name: "a", Status: "active", Offer: &diffSubjectOffer{Salary: 80000, Currency: "USD"}})
	after := Snapshot(&diffSubject{Name: "a", Status: "active", Offer: &diffSubjectOffer{Salary: 95000, Currency: "USD"}})

	changes := Diff(before, after)
	require.Len(t, changes, 1)
	assert.Equal(t, "offer.salary", changes[0].Field)
	assert.Equal(t, "80000", changes[0].Before)
	assert.Equal(t, "95000", changes[0].After)
}

func TestDiff_MultilineUsesUnifiedDiff(t *testing.T) {
	before := Snapshot(&diffSubject{Name: "a", Status: "active", Notes: "line one\nline two\nline three\n"})
	after := Snapshot(&diffSubject{Name: "a", Status: "active", Notes: "line one\nline 2\nline three\n"})

	changes := Diff(before, after)
	require.Len(t, changes, 1)
	assert.Equal(t, "notes", changes[0].Field)
	assert.Empty(t, changes[0].Before)
	assert.Contains(t, changes[0].After, "-line two")
	assert.Contains(t, changes[0].After, "+line 2")
}

func TestDiff_NoChanges(t *testing.T) {
	s := Snapshot(&diffSubject{Name: "a", Status: "active"})
	assert.Empty(t, Diff(s, s))
}
