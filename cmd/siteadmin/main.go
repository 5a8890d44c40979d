// Command siteadmin manages operator accounts, uploads and the schema of the
// site database.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
