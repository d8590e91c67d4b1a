package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBottomRight_FullHD(t *testing.T) {
	got := BottomRight(Size{Width: 1920, Height: 1080})
	assert.Equal(t, Position{X: 1740, Y: 960}, got)
}

func TestBottomRight_ClampsToMinimumOffset(t *testing.T) {
	got := BottomRight(Size{Width: 100, Height: 50})
	assert.Equal(t, Position{X: 20, Y: 20}, got)
}

func TestCentered(t *testing.T) {
	assert.Equal(t, Position{X: 560, Y: 240}, Centered(Size{Width: 1920, Height: 1080}))
	assert.Equal(t, Position{X: 20, Y: 20}, Centered(Size{Width: 640, Height: 480}))
}

func TestDescriptors_Policy(t *testing.T) {
	d := Descriptors()
	require.Len(t, d, len(Kinds))

	assert.False(t, d[KindSettings].DesktopLevel, "settings must stay interactive")
	assert.False(t, d[KindControl].DesktopLevel, "control must stay interactive")
	assert.True(t, d[KindCalendar].DesktopLevel)
	assert.True(t, d[KindControl].ReceivesMode)
	assert.False(t, d[KindMain].Lazy)
	assert.False(t, d[KindControl].Lazy)

	for kind, desc := range d {
		assert.Equal(t, kind, desc.Kind)
		assert.NotNil(t, desc.Default, "kind %s has no default position", kind)
	}
}

func TestKindForIPCName(t *testing.T) {
	kind, ok := KindForIPCName("time")
	require.True(t, ok)
	assert.Equal(t, KindClock, kind)

	_, ok = KindForIPCName("notes")
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("weather")
	require.NoError(t, err)
	assert.Equal(t, KindWeather, kind)

	_, err = ParseKind("taskbar")
	assert.Error(t, err)
}
