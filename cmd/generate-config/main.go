// generate-config writes an example config.yaml holding every default.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/draftbox/internal/config"
)

const header = `# draftbox configuration example
# Copy this file to config.yaml and customize as needed.
# Storage backend: remote table when token and base_id are set, else S3 when
# bucket and keys are set, else SQLite when path is set, else memory.
# Environment variables (REMOTE_TABLE_TOKEN, S3_BUCKET, SQLITE_PATH, ...)
# override these values.

`

func render() ([]byte, error) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return append([]byte(header), body...), nil
}

func main() {
	output, err := render()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}

	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if outputFile == "-" {
		os.Stdout.Write(output)
		return
	}

	if err := os.WriteFile(outputFile, output, 0644); err != nil {
		fmt.Fprintf(os.Stderr, config.ErrWriteConfigContentFmt+"\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", outputFile)
}
