// The main package for the calfire executable.
package main

import (
	"github.com/JakeFAU/calfire-history/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
