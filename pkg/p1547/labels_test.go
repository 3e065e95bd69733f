package p1547

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelSequenceFromA(t *testing.T) {

	assert := assert.New(t)

	s := NewLabelSequence('A')
	assert.Equal("Step A", s.Next())
	assert.Equal("Step B", s.Next())
}

func TestLabelSequenceWrapsToDoubleLetters(t *testing.T) {

	assert := assert.New(t)

	s := NewLabelSequence('G')
	seen := map[string]bool{}
	var labels []string
	for i := 0; i < 26; i++ {
		l := s.Next()
		assert.False(seen[l], "duplicate label %s", l)
		seen[l] = true
		labels = append(labels, l)
	}

	assert.Equal("Step G", labels[0])
	assert.Equal("Step Z", labels[19])
	assert.Equal("Step AA", labels[20])
	assert.Equal("Step BB", labels[21])
	assert.Equal("Step FF", labels[25])
}

func TestLabelSequenceRejectsBadStart(t *testing.T) {

	assert := assert.New(t)

	s := NewLabelSequence('!')
	assert.Equal("Step A", s.Next())
}
