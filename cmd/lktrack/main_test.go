package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

func TestParsePoints(t *testing.T) {
	points, err := parsePoints("40,40 60.5,52,1.5,-0.5;\t10,12")
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, lk.Vec2{X: 40, Y: 40}, points[0].p)
	assert.Equal(t, lk.Vec2{}, points[0].prediction)
	assert.Equal(t, lk.Vec2{X: 60.5, Y: 52}, points[1].p)
	assert.Equal(t, lk.Vec2{X: 1.5, Y: -0.5}, points[1].prediction)
	assert.Equal(t, lk.Vec2{X: 10, Y: 12}, points[2].p)
}

func TestParsePoints_Errors(t *testing.T) {
	for _, s := range []string{"", "  ;; ", "1", "1,2,3", "a,b", "1,2,3,x"} {
		_, err := parsePoints(s)
		assert.Error(t, err, "input %q", s)
	}
}
