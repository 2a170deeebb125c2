//go:build ignore

// Writes the exported JSON Schemas under schemas/. Run from the repo root:
//
//	go run scripts/gen-schema.go
package main

import (
	"fmt"
	"os"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

func main() {
	outputs := []struct {
		path string
		gen  func() ([]byte, error)
	}{
		{"schemas/protocol-v1.json", protocol.GenerateProtocolJSONSchema},
		{"schemas/result-v1.json", protocol.GenerateResultJSONSchema},
		{"schemas/catalog-v1.json", catalog.GenerateJSONSchema},
	}
	if err := os.MkdirAll("schemas", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}
	for _, o := range outputs {
		data, err := o.gen()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error generating %s: %v\n", o.path, err)
			os.Exit(1)
		}
		if err := os.WriteFile(o.path, append(data, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote", o.path)
	}
}
