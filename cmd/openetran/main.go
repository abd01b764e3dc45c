// Command openetran runs the EMT transient solver over a netlist file,
// either a single plotted run or an outer critical-current search.
package main

import "os"

func main() {
	os.Exit(Execute())
}
