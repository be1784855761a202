// Command atlas-check validates atlas content documents and publishes them to
// the configured blob or content store.
package main

import (
	"io"
	"os"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

// cli runs the command tree and maps its outcome to a process exit code.
func cli(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
