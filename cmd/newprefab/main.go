package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"prefabeditor/internal/world"

	"gopkg.in/yaml.v3"
)

const templatesDir = "prefabs"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run ./cmd/newprefab <TemplatePath> [mesh]\n")
		fmt.Fprintf(os.Stderr, "Example: go run ./cmd/newprefab Trees/Oak sphere\n")
		os.Exit(1)
	}

	key := world.TemplateKey(os.Args[1])
	if key == "" {
		fmt.Fprintf(os.Stderr, "Error: template path must not be empty\n")
		os.Exit(1)
	}
	mesh := "cube"
	if len(os.Args) > 2 {
		mesh = os.Args[2]
	}

	spec := world.TemplateSpec{
		Name: path.Base(key),
		Parts: []world.PartSpec{{
			Mesh: mesh,
			Size: []float32{1, 1, 1},
		}},
	}
	// Fails the same way a broken template would at load time.
	if _, err := spec.Build(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join(templatesDir, filepath.FromSlash(key)+".yaml")
	if _, err := os.Stat(outPath); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", outPath)
		os.Exit(1)
	}

	data, err := yaml.Marshal(&spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding template: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", outPath)
	fmt.Printf("Place it from the editor's template list, or add it to the manifest:\n\n")
	fmt.Printf("  {\n")
	fmt.Printf("    \"pathPrefab\": %q,\n", key)
	fmt.Printf("    \"transforms\": {\"position\": [0, 0, 0], \"rotation\": [0, 0, 0], \"scale\": [1, 1, 1]},\n")
	fmt.Printf("    \"renderDistance\": 100\n")
	fmt.Printf("  }\n")
}
