// The main package for the jobhound executable.
package main

import (
	"jobhound/cmd"
)

func main() {
	cmd.Execute()
}
