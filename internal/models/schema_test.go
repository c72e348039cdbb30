package models

import (
	"os"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The repositories rely on SELECT * and named-parameter writes, so every
// entity column must exist in the DDL and every DDL column must map onto a
// struct field. Drift in either direction breaks reads or writes at runtime.
func TestSchemaMatchesModels(t *testing.T) {
	raw, err := os.ReadFile("../../scripts/schema.sql")
	require.NoError(t, err)
	ddl := string(raw)

	tables := map[string]reflect.Type{
		"users":          reflect.TypeOf(User{}),
		"refresh_tokens": reflect.TypeOf(RefreshToken{}),
		"instructors":    reflect.TypeOf(Instructor{}),
		"categories":     reflect.TypeOf(Category{}),
		"courses":        reflect.TypeOf(Course{}),
		"lessons":        reflect.TypeOf(Lesson{}),
		"enrollments":    reflect.TypeOf(Enrollment{}),
	}

	for table, typ := range tables {
		schemaCols := tableColumns(t, ddl, table)
		modelCols := structColumns(typ)

		for col := range modelCols {
			assert.Contains(t, schemaCols, col, "%s: model column missing from schema", table)
		}
		for col := range schemaCols {
			assert.Contains(t, modelCols, col, "%s: schema column has no model field", table)
		}
	}
}

func tableColumns(t *testing.T, ddl, table string) map[string]bool {
	t.Helper()
	re := regexp.MustCompile(`(?s)CREATE TABLE ` + table + ` \((.*?)\);`)
	match := re.FindStringSubmatch(ddl)
	require.NotNil(t, match, "table %s not found in schema.sql", table)

	cols := make(map[string]bool)
	for _, line := range strings.Split(match[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name := strings.Fields(line)[0]
		switch name {
		case "CHECK", "PRIMARY", "UNIQUE", "FOREIGN", "CONSTRAINT":
			continue
		}
		cols[name] = true
	}
	return cols
}

func structColumns(typ reflect.Type) map[string]bool {
	cols := make(map[string]bool)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Anonymous {
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols[tag] = true
	}
	return cols
}
