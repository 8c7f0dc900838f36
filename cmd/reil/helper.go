package main

import (
	"github.com/mewkiz/pkg/jsonutil"
	"github.com/mewkiz/pkg/osutil"
)

// parseJSON parses the given JSON file and stores the result into v. Missing
// oracle files are not an error.
func parseJSON(jsonPath string, v interface{}) error {
	if !osutil.Exists(jsonPath) {
		dbg.Printf("unable to locate JSON file %q", jsonPath)
		return nil
	}
	dbg.Printf("parseJSON(jsonPath = %q, v = %T)", jsonPath, v)
	return jsonutil.ParseFile(jsonPath, v)
}
