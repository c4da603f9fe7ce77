// Command clawlite runs the single-operator agent gateway: one process,
// one operator's channels and workspace, no multi-tenant control plane.
package main

import (
	"github.com/nextlevelbuilder/clawlite/cmd"
)

func main() {
	cmd.Execute()
}
