// cmd/tools/worker-generator/generate.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"personal-color-workers/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name         string
	PackageName  string
	TaskType     string
	Description  string
	Timeout      time.Duration
	InputFields  []Field
	OutputFields []Field
	InputSchema  string
	ErrorCodes   []string
}

// Field is one struct field derived from a JSON schema property.
type Field struct {
	Name     string
	GoType   string
	JSONName string
	Required bool
	Comment  string
}

var funcs = template.FuncMap{
	"bt": func() string { return "`" },
}

var templates = map[string]string{
	"handler.go":      handlerTemplate,
	"service.go":      serviceTemplate,
	"config.go":       configTemplate,
	"models.go":       modelsTemplate,
	"validation.go":   validationTemplate,
	"handler_test.go": testTemplate,
}

// WorkerDir is where the scaffold for a lands below outputDir.
func WorkerDir(outputDir string, a registry.Activity) string {
	return filepath.Join(outputDir, strings.ToLower(a.Category), a.ID)
}

// Render produces the gofmt'ed scaffold files for a, keyed by file name.
func Render(a registry.Activity) (map[string][]byte, error) {
	data, err := newWorkerData(a)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte, len(templates))
	for name, text := range templates {
		tmpl, err := template.New(name).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute template %s: %w", name, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		files[name] = src
	}
	return files, nil
}

func newWorkerData(a registry.Activity) (*WorkerData, error) {
	if a.ID == "" || a.TaskType == "" {
		return nil, fmt.Errorf("activity needs an id and a task type")
	}

	timeout := 10 * time.Second
	if a.Timeout != "" {
		d, err := time.ParseDuration(a.Timeout)
		if err != nil {
			return nil, fmt.Errorf("activity %s: invalid timeout %q: %w", a.ID, a.Timeout, err)
		}
		timeout = d
	}

	schema := a.InputSchema
	if len(schema) == 0 {
		schema = map[string]interface{}{"type": "object"}
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("activity %s: encode input schema: %w", a.ID, err)
	}

	return &WorkerData{
		Name:         a.DisplayName,
		PackageName:  strings.ReplaceAll(a.ID, "-", ""),
		TaskType:     a.TaskType,
		Description:  a.Description,
		Timeout:      timeout,
		InputFields:  fieldsFromSchema(a.InputSchema),
		OutputFields: fieldsFromSchema(a.OutputSchema),
		InputSchema:  string(schemaJSON),
		ErrorCodes:   a.ErrorCodes,
	}, nil
}

// fieldsFromSchema lists the schema's properties as struct fields, sorted
// by JSON name.
func fieldsFromSchema(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if list, ok := schema["required"].([]interface{}); ok {
		for _, r := range list {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	fields := make([]Field, 0, len(props))
	for name, raw := range props {
		details, _ := raw.(map[string]interface{})
		comment, _ := details["description"].(string)
		fields = append(fields, Field{
			Name:     exportedName(name),
			GoType:   goTypeFromJSONType(details["type"]),
			JSONName: name,
			Required: required[name],
			Comment:  comment,
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].JSONName < fields[j].JSONName })
	return fields
}

func goTypeFromJSONType(jsonType interface{}) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	}
	return "interface{}"
}

// exportedName turns camelCase, snake_case or kebab-case into an exported
// Go identifier. Id becomes ID.
func exportedName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	name := b.String()
	if strings.HasSuffix(name, "Id") {
		name = strings.TrimSuffix(name, "Id") + "ID"
	}
	return name
}
