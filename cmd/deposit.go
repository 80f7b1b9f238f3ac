/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/profile"

	"github.com/notargets/gopic/config"
	"github.com/notargets/gopic/model_problems/GaussianBeam"

	"github.com/spf13/cobra"
)

type DepositRun struct {
	InputFile string
	Method    string
	Particles int
	MeshSize  int
	Profile   bool
}

// DepositCmd represents the deposit command
var DepositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Deposit a Gaussian particle beam onto a triangulated rectangle",
	Long: `Deposit a Gaussian particle beam onto a triangulated rectangle using the
selected deposition method and report charge conservation and statistics`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			dr  = &DepositRun{}
		)
		fmt.Println("deposit called")
		if dr.InputFile, err = cmd.Flags().GetString("inputFile"); err != nil {
			panic(err)
		}
		dr.Method, _ = cmd.Flags().GetString("method")
		dr.Particles, _ = cmd.Flags().GetInt("particles")
		dr.MeshSize, _ = cmd.Flags().GetInt("meshSize")
		dr.Profile, _ = cmd.Flags().GetBool("profile")
		params := processDepositInput(dr)
		RunDeposit(dr, params)
	},
}

func processDepositInput(dr *DepositRun) (params config.DepositionParameters) {
	var (
		err error
	)
	params = config.Defaults()
	if len(dr.InputFile) != 0 {
		var data []byte
		if data, err = ioutil.ReadFile(dr.InputFile); err != nil {
			panic(err)
		}
		if err = params.Parse(data); err != nil {
			panic(err)
		}
	}
	// command line flags override the input file
	if len(dr.Method) != 0 {
		params.Method = dr.Method
	}
	if dr.Particles > 0 {
		params.ParticleCount = dr.Particles
	}
	if dr.MeshSize > 0 {
		params.MeshNx = dr.MeshSize
		params.MeshNy = dr.MeshSize
	}
	return
}

func init() {
	rootCmd.AddCommand(DepositCmd)
	DepositCmd.Flags().StringP("inputFile", "I", "", "YAML file for input parameters like:\n\t- Method\n\t- ShapeRadius\n\t- ActivationThreshold")
	DepositCmd.Flags().StringP("method", "m", "", "deposition method: Shape, NormShape, Advective, Grid, GridFind or All")
	DepositCmd.Flags().IntP("particles", "n", 0, "number of particles in the beam")
	DepositCmd.Flags().IntP("meshSize", "k", 0, "number of quads per mesh edge, each split into two triangles")
	DepositCmd.Flags().Bool("profile", false, "write a CPU profile of the deposition run")
}

func RunDeposit(dr *DepositRun, params config.DepositionParameters) {
	if dr.Profile {
		defer profile.Start().Stop()
	}
	bp, err := GaussianBeam.NewBeamProblem(params)
	if err != nil {
		panic(err)
	}
	if err = bp.Run(); err != nil {
		panic(err)
	}
}
