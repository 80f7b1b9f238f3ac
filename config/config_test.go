package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDepositionParameters(t *testing.T) {
	input := `
Title: "beam test"
Method: NormShape
ParticleCount: 250
ShapeRadius: 0.2
ActivationThreshold: 1.e-6
MeshNx: 8
MeshNy: 8
`
	params := Defaults()
	assert.NoError(t, params.Parse([]byte(input)))

	// parsed fields override the defaults
	assert.Equal(t, "beam test", params.Title)
	assert.Equal(t, "NormShape", params.Method)
	assert.Equal(t, 250, params.ParticleCount)
	assert.Equal(t, 0.2, params.ShapeRadius)
	assert.Equal(t, 1.e-6, params.ActivationThreshold)
	assert.Equal(t, 8, params.MeshNx)

	// untouched fields keep their defaults
	assert.Equal(t, Defaults().KillThreshold, params.KillThreshold)
	assert.Equal(t, Defaults().TotalCharge, params.TotalCharge)
	assert.Equal(t, Defaults().RandomSeed, params.RandomSeed)

	assert.Error(t, params.Parse([]byte("Method: [not, a, string]")))
}
