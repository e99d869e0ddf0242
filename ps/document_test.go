package ps

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/TableDB/core"
)

func companyTables() []core.TableSnapshot {
	return []core.TableSnapshot{
		{
			Name: "Departments",
			Columns: []core.Column{
				{Name: "id", Type: core.IntType, PrimaryKey: true},
				{Name: "name", Type: core.TextType},
			},
			Rows: []core.Row{{core.Int(1), core.Text("IT")}},
		},
		{
			Name: "Employees",
			Columns: []core.Column{
				{Name: "id", Type: core.IntType},
				{Name: "name", Type: core.TextType},
				{Name: "department_id", Type: core.IntType, ForeignKey: true},
				{Name: "salary", Type: core.FloatType},
			},
			Rows: []core.Row{{core.Int(1), core.Text("John"), core.Int(1), core.Float(50000.5)}},
			ForeignKeys: []core.ForeignKey{
				{Column: "department_id", RefTable: "Departments", RefColumn: "id"},
			},
		},
	}
}

func TestMarshalGolden(t *testing.T) {
	data, err := Marshal(companyTables())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "company", data)
}

func TestDocumentRoundTrip(t *testing.T) {
	first, err := Marshal(companyTables())
	require.NoError(t, err)

	tables, err := Unmarshal(first)
	require.NoError(t, err)

	second, err := Marshal(tables)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	require.Len(t, tables, 2)
	assert.Equal(t, core.Float(50000.5), tables[1].Rows[0][3])
	assert.True(t, tables[0].Columns[0].PrimaryKey)
}

func TestEncodeEmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Equal(t, "{\n  \"tables\": []\n}\n", buf.String())
}

func TestDecodeCoercesByColumnKind(t *testing.T) {
	doc := `{"tables":[{"name":"T","columns":[
		{"name":"f","type":1,"is_primary_key":0,"is_foreign_key":0},
		{"name":"i","type":0,"is_primary_key":0,"is_foreign_key":0},
		{"name":"s","type":2,"is_primary_key":0,"is_foreign_key":0}],
		"rows":[[50000,9007199254740993,"x"]],"foreign_keys":[]}]}`

	tables, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	row := tables[0].Rows[0]
	assert.Equal(t, core.Float(50000), row[0])
	assert.Equal(t, core.Int(9007199254740993), row[1])
	assert.Equal(t, core.Text("x"), row[2])
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	cases := map[string]string{
		"syntax":    `{"tables":[`,
		"type code": `{"tables":[{"name":"T","columns":[{"name":"a","type":7}],"rows":[],"foreign_keys":[]}]}`,
		"arity":     `{"tables":[{"name":"T","columns":[{"name":"a","type":0}],"rows":[[1,2]],"foreign_keys":[]}]}`,
		"coercion":  `{"tables":[{"name":"T","columns":[{"name":"a","type":0}],"rows":[["abc"]],"foreign_keys":[]}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(doc))
			assert.Error(t, err)
		})
	}
}
