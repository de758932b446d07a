package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", 0))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("junk", 1))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42))
	}
	assert.False(t, m.Enabled("canary", 0))

	enabled := 0
	for uid := uint(1); uid <= 1000; uid++ {
		if m.Enabled("canary", uid) {
			enabled++
		}
	}
	assert.InDelta(t, 250, enabled, 80)
}

func TestDefaultsAndOverrides(t *testing.T) {
	m := NewManager("")
	assert.False(t, m.Enabled(PublicComments, 1))
	assert.True(t, m.Enabled(VideoUploads, 1))
	assert.True(t, m.Enabled(RealtimeNotifications, 1))

	m = NewManager(" bad , PUBLIC_COMMENTS = on ,video_uploads=off, =on")
	assert.True(t, m.Enabled(PublicComments, 0))
	assert.False(t, m.Enabled(VideoUploads, 1))

	raw := m.Raw()
	assert.Equal(t, "on", raw[PublicComments])
	assert.NotContains(t, raw, "bad")
	assert.NotContains(t, raw, "")

	snap := m.Snapshot(1)
	assert.Len(t, snap, 3)
	assert.True(t, snap[PublicComments])
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(PublicComments, 1))
}
