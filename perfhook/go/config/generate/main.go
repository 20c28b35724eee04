// Program to generate JSON Schema definitions for the InstanceConfig struct.
//
//go:generate go run .
package main

import (
	"go.perfhook.dev/infra/go/jsonschema"
	"go.perfhook.dev/infra/perfhook/go/config"
)

func main() {
	jsonschema.GenerateSchema("../schema.json", &config.InstanceConfig{})
}
