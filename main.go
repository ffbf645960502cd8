// File: main.go
package main

import "github.com/deploymenttheory/go-squashdelta/cmd"

func main() {
	cmd.Execute()
}
