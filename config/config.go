package config

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// DepositionParameters obtained from the YAML input file
type DepositionParameters struct {
	Title               string  `yaml:"Title"`
	Method              string  `yaml:"Method"` // Shape, NormShape, Advective, Grid, GridFind
	ParticleCount       int     `yaml:"ParticleCount"`
	TotalCharge         float64 `yaml:"TotalCharge"`
	ShapeRadius         float64 `yaml:"ShapeRadius"`
	ShapeAlpha          float64 `yaml:"ShapeAlpha"`
	BeamSigma           float64 `yaml:"BeamSigma"`
	ActivationThreshold float64 `yaml:"ActivationThreshold"`
	KillThreshold       float64 `yaml:"KillThreshold"`
	UpwindAlpha         float64 `yaml:"UpwindAlpha"`
	Overresolve         float64 `yaml:"Overresolve"`
	ElementTolerance    float64 `yaml:"ElementTolerance"`
	MeshNx              int     `yaml:"MeshNx"`
	MeshNy              int     `yaml:"MeshNy"`
	XMin                float64 `yaml:"XMin"`
	XMax                float64 `yaml:"XMax"`
	YMin                float64 `yaml:"YMin"`
	YMax                float64 `yaml:"YMax"`
	RandomSeed          uint64  `yaml:"RandomSeed"`
}

func Defaults() DepositionParameters {
	return DepositionParameters{
		Title:               "gaussian beam deposition",
		Method:              "Shape",
		ParticleCount:       1000,
		TotalCharge:         1.e-9,
		ShapeRadius:         0.15,
		ShapeAlpha:          2,
		BeamSigma:           0.25,
		ActivationThreshold: 1.e-5,
		KillThreshold:       1.e-3,
		UpwindAlpha:         1,
		Overresolve:         1.5,
		ElementTolerance:    1.e-10,
		MeshNx:              16,
		MeshNy:              16,
		XMin:                -1,
		XMax:                1,
		YMin:                -1,
		YMax:                1,
		RandomSeed:          42,
	}
}

func (dp *DepositionParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, dp)
}

func (dp *DepositionParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", dp.Title)
	fmt.Printf("[%s]\t\t\t= Method\n", dp.Method)
	fmt.Printf("%d\t\t\t= ParticleCount\n", dp.ParticleCount)
	fmt.Printf("%8.5g\t\t= TotalCharge\n", dp.TotalCharge)
	fmt.Printf("%8.5f\t\t= ShapeRadius\n", dp.ShapeRadius)
	fmt.Printf("%8.5f\t\t= ShapeAlpha\n", dp.ShapeAlpha)
	fmt.Printf("%8.5f\t\t= BeamSigma\n", dp.BeamSigma)
	fmt.Printf("%8.5g\t\t= ActivationThreshold\n", dp.ActivationThreshold)
	fmt.Printf("%8.5g\t\t= KillThreshold\n", dp.KillThreshold)
	fmt.Printf("%8.5f\t\t= UpwindAlpha\n", dp.UpwindAlpha)
	fmt.Printf("[%dx%d]\t\t= Mesh\n", dp.MeshNx, dp.MeshNy)
}
