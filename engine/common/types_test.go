package common

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestZoneHood(t *testing.T) {
	assert.Equal(t, ZoneID(2000), ZoneID(2205).Hood())
	assert.Equal(t, ZoneID(2000), ZoneID(2000).Hood())
	assert.Equal(t, ZoneID(11000), ZoneID(11999).Hood())
}

func TestAvatarIDSet(t *testing.T) {
	s := AvatarIDSet{}
	s.Add(100)
	s.Add(200)
	assert.T(t, s.Contains(100), "should contain")
	assert.T(t, s.Contains(200), "should contain")
	s.Del(200)
	assert.T(t, !s.Contains(200), "should not contain")
	assert.Equal(t, 1, len(s.ToList()))
}
