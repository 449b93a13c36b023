package widgets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeter(t *testing.T) {
	assert.Equal(t, "▯▯▯▯▯", Meter(0, 5))
	assert.Equal(t, "▮▮▮▯▯", Meter(0.5, 5))
	assert.Equal(t, "▮▮▮▮▮", Meter(1, 5))
	assert.Equal(t, "▮▮▮▮▮", Meter(1.5, 5))
	assert.Equal(t, "▯▯▯▯▯", Meter(-0.2, 5))
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{
		{Title: "Transport", Keys: []KeyBinding{{Key: "p", Desc: "play/stop"}}},
	})
	assert.Contains(t, out, "Transport")
	assert.Contains(t, out, "p")
	assert.Contains(t, out, "play/stop")
}
