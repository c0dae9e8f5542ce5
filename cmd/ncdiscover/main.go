// Command ncdiscover reports the datasets found in netCDF files.
package main

import "os"

func main() {
	os.Exit(Execute())
}
