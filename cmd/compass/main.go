// Command compass runs guided planning sessions backed by Claude.
package main

import "github.com/berth-dev/compass/internal/cli"

func main() {
	cli.Execute()
}
