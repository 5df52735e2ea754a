// Package main imports a catalog export into the database the party service
// resolves media and users from.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/soundleaf/soundleaf/internal/platform/config"
	"github.com/soundleaf/soundleaf/internal/tools/catalogimport"
)

func main() {
	cfg, err := catalogimport.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	if err := catalogimport.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
