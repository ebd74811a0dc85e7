package mutable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/patch/mutable"
)

// mutableMock used to set up test cases for mutators
type mutableMock struct {
	mutable.Context
	value      int
	operations int
	expected   int
}

// mutators closure to mock value
func (m *mutableMock) addDelta(delta int) mutable.Mutation {
	return m.Mutate(func() error {
		m.value += delta
		return nil
	})
}

func TestPutMutations(t *testing.T) {
	var tests = []struct {
		mocks []*mutableMock
	}{
		{
			mocks: []*mutableMock{
				{
					Context:    mutable.New(),
					operations: 1,
					expected:   10,
				},
			},
		},
		{
			mocks: []*mutableMock{
				{
					Context:    mutable.New(),
					operations: 2,
					expected:   20,
				},
				{
					Context:    mutable.New(),
					operations: 3,
					expected:   30,
				},
			},
		},
	}

	for _, test := range tests {
		var ms mutable.Mutations
		for _, m := range test.mocks {
			for i := 0; i < m.operations; i++ {
				ms = ms.Put(m.addDelta(10))
			}
		}
		for _, m := range test.mocks {
			err := ms.ApplyTo(m.Context)
			assert.NoError(t, err)
			assert.Equal(t, m.expected, m.value)
		}
		// applied mutations are consumed
		for _, m := range test.mocks {
			err := ms.ApplyTo(m.Context)
			assert.NoError(t, err)
			assert.Equal(t, m.expected, m.value)
		}
	}
}

func TestImmutable(t *testing.T) {
	assert.False(t, mutable.Immutable().IsMutable())
	assert.True(t, mutable.New().IsMutable())

	// putting immutable mutation is a no-op
	var ms mutable.Mutations
	ms = ms.Put(mutable.Mutation{})
	assert.Nil(t, ms)

	assert.Panics(t, func() {
		mutable.Immutable().Mutate(func() error { return nil })
	})
}

func TestAppendDetach(t *testing.T) {
	m1 := &mutableMock{Context: mutable.New()}
	m2 := &mutableMock{Context: mutable.New()}

	var ms mutable.Mutations
	ms = ms.Put(m1.addDelta(1))
	var other mutable.Mutations
	other = other.Put(m2.addDelta(2))
	ms = ms.Append(other)

	detached := ms.Detach(m2.Context)
	assert.NoError(t, detached.ApplyTo(m2.Context))
	assert.Equal(t, 2, m2.value)

	// detached mutations are gone from the source set
	assert.NoError(t, ms.ApplyTo(m2.Context))
	assert.Equal(t, 2, m2.value)

	assert.NoError(t, ms.ApplyTo(m1.Context))
	assert.Equal(t, 1, m1.value)
}
