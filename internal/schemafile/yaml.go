package schemafile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dvaldb/internal/dval"
)

// LoadYAML reads table definitions from a YAML file.
func LoadYAML(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseYAML(data)
}

// yamlTable keeps columns as a node so their order survives decoding.
type yamlTable struct {
	Host    string    `yaml:"host"`
	Columns yaml.Node `yaml:"columns"`
}

// ParseYAML parses YAML source into table definitions.
func ParseYAML(data []byte) ([]Definition, error) {
	var doc struct {
		Table yaml.Node `yaml:"table"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Table.Kind != yaml.MappingNode {
		return nil, &Error{Field: "table", Message: "no tables defined", Line: doc.Table.Line}
	}

	var defs []Definition
	for i := 0; i+1 < len(doc.Table.Content); i += 2 {
		name := doc.Table.Content[i].Value
		var t yamlTable
		if err := doc.Table.Content[i+1].Decode(&t); err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		def := Definition{Name: name, Host: t.Host}

		switch t.Columns.Kind {
		case 0:
		case yaml.MappingNode:
			for j := 0; j+1 < len(t.Columns.Content); j += 2 {
				key, val := t.Columns.Content[j], t.Columns.Content[j+1]
				if err := checkColumnName(name, key.Value); err != nil {
					return nil, &Error{Field: "columns", Message: err.Error(), Line: key.Line}
				}
				tipe, err := dval.ParseTipe(val.Value)
				if err != nil {
					return nil, &Error{Field: "type", Message: err.Error(), Line: val.Line}
				}
				def.Columns = append(def.Columns, Column{Name: key.Value, Type: tipe})
			}
		default:
			return nil, &Error{Field: "columns", Message: "columns must be a mapping of name to type", Line: t.Columns.Line}
		}
		defs = append(defs, def)
	}
	return defs, nil
}
