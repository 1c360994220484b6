// Package schemas embeds the JSON Schema files and registers them with the
// config package on import. CLI entry points should import this package with
// a blank identifier: import _ "github.com/kjourdan1/azaudit/schemas"
package schemas

import (
	"embed"

	"github.com/kjourdan1/azaudit/internal/config"
)

// SchemaFile is the schema for azaudit.yaml.
const SchemaFile = "azaudit-v1.schema.json"

//go:embed azaudit-v1.schema.json
var fs embed.FS

func init() {
	data, err := fs.ReadFile(SchemaFile)
	if err != nil {
		panic("schemas: failed to read embedded " + SchemaFile + ": " + err.Error())
	}
	config.SetSchema(data)
}
