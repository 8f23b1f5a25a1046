package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperatorOutputs(t *testing.T) {
	mapping := NewEntityMapping()

	assert.Equal(t, "Γιάννης", Keep{}.Operate("Γιάννης", "PERSON", mapping))
	assert.Equal(t, "{{PERSON}}", Replace{}.Operate("Γιάννης", "PERSON", mapping))
	assert.Equal(t, "<redacted>", Replace{NewValue: "<redacted>"}.Operate("Γιάννης", "PERSON", mapping))
	assert.Equal(t, "{{PERSON_0}}", Counter{}.Operate("Γιάννης", "PERSON", mapping))
	assert.Equal(t, "{{PERSON_0}}", Counter{}.Operate("Γιάννης", "PERSON", mapping))
}

func TestOperatorNames(t *testing.T) {
	assert.Equal(t, "keep", Keep{}.Name())
	assert.Equal(t, "replace", Replace{}.Name())
	assert.Equal(t, "counter", Counter{}.Name())
}

func TestOperatorTableFor(t *testing.T) {
	table := OperatorTable{
		PerType: map[string]Operator{"PERSON": Counter{}},
		Default: Replace{},
	}
	assert.Equal(t, "counter", table.For("PERSON").Name())
	assert.Equal(t, "replace", table.For("LOCATION").Name())

	var zero OperatorTable
	assert.Equal(t, "keep", zero.For("ANYTHING").Name())
}

func TestOperatorsHelper(t *testing.T) {
	table := Operators(Counter{}, "PERSON", "LOCATION")
	assert.Equal(t, "counter", table.For("PERSON").Name())
	assert.Equal(t, "counter", table.For("LOCATION").Name())
	assert.Equal(t, "keep", table.For("EMAIL_ADDRESS").Name())
}
