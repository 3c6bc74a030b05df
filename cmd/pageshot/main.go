// Command pageshot runs page verification plans against a site: open each
// page, wait until it is ready, check what must be visible and save a
// screenshot. It exits 0 when every step passed and 1 otherwise.
package main

import "os"

func main() {
	os.Exit(execute())
}
