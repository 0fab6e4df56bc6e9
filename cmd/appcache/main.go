package main

import (
	"fmt"
	"runtime"

	"github.com/FyshOS/appcache"
)

func main() {
	Execute()
}

func versionString() string {
	return fmt.Sprintf("appcache %s (%s)", appcache.Version, runtime.Version())
}
