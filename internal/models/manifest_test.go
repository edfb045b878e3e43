package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileManifestShapesCountTheSameModules(t *testing.T) {
	tests := []struct {
		name  string
		input string
		shape ManifestShape
	}{
		{"list", `[{"path":"a.go"},{"path":"b.go"},{"path":"c.go"}]`, ManifestList},
		{"object", `{"a.go":{},"b.go":{},"c.go":{}}`, ManifestObject},
		{"serialized list", `"[{\"path\":\"a.go\"},{\"path\":\"b.go\"},{\"path\":\"c.go\"}]"`, ManifestList},
		{"serialized object", `"{\"a.go\":1,\"b.go\":2,\"c.go\":3}"`, ManifestObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m FileManifest
			require.NoError(t, json.Unmarshal([]byte(tt.input), &m))
			assert.Equal(t, 3, m.Len())
			assert.Equal(t, tt.shape, m.Shape)
		})
	}
}

func TestFileManifestEmptyForms(t *testing.T) {
	for _, in := range []string{`null`, `[]`, `{}`, `"[]"`} {
		var m FileManifest
		require.NoError(t, json.Unmarshal([]byte(in), &m), in)
		assert.Zero(t, m.Len(), in)
	}

	var rec DocumentationRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"repo_name":"y"}`), &rec))
	assert.Zero(t, rec.Files.Len())
}

func TestFileManifestRejectsMalformedPayloads(t *testing.T) {
	for _, in := range []string{`42`, `true`, `"not json"`, `"\"nested\""`} {
		var m FileManifest
		err := json.Unmarshal([]byte(in), &m)
		assert.ErrorIs(t, err, ErrMalformedManifest, in)
	}
}

func TestFileManifestKeepsItsShapeWhenEncoded(t *testing.T) {
	var list FileManifest
	require.NoError(t, json.Unmarshal([]byte(`[{"path":"a.go"}]`), &list))
	out, err := json.Marshal(list)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"path":"a.go"}]`, string(out))

	var obj FileManifest
	require.NoError(t, json.Unmarshal([]byte(`{"a.go":"x"}`), &obj))
	out, err = json.Marshal(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a.go":"x"}`, string(out))

	out, err = json.Marshal(FileManifest{})
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(out))
}

func TestFileManifestKeepsWireOrder(t *testing.T) {
	var m FileManifest
	require.NoError(t, json.Unmarshal([]byte(`{"z.go":1,"a.go":2,"m.go":3,"a.go":4}`), &m))

	keys := make([]string, 0, m.Len())
	for _, e := range m.Entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"z.go", "a.go", "m.go"}, keys)
	assert.Equal(t, json.RawMessage(`4`), m.Entries[1].Value)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z.go":1,"a.go":4,"m.go":3}`, string(out))
}

func TestFileManifestReencodesSerializedForm(t *testing.T) {
	in := `"{\"b.go\": {\"lines\": 3}, \"a.go\": null}"`
	var m FileManifest
	require.NoError(t, json.Unmarshal([]byte(in), &m))
	assert.True(t, m.Serialized)
	assert.Equal(t, ManifestObject, m.Shape)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"{\"b.go\":{\"lines\":3},\"a.go\":null}"`, string(out))

	var list FileManifest
	require.NoError(t, json.Unmarshal([]byte(`"[\"a.go\",\"b.go\"]"`), &list))
	out, err = json.Marshal(list)
	require.NoError(t, err)
	assert.Equal(t, `"[\"a.go\",\"b.go\"]"`, string(out))

	var again FileManifest
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, list, again)
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var a, b ID
	require.NoError(t, json.Unmarshal([]byte(`42`), &a))
	require.NoError(t, json.Unmarshal([]byte(`"42"`), &b))
	assert.Equal(t, a, b)

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `42`, string(out))

	out, err = json.Marshal(ID("job-7"))
	require.NoError(t, err)
	assert.Equal(t, `"job-7"`, string(out))

	for in, want := range map[string]string{
		`"007"`: `"007"`,
		`"+5"`:  `"+5"`,
		`"-0"`:  `"-0"`,
		`-12`:   `-12`,
		`1.5`:   `"1.5"`,
	} {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(in), &id), in)
		out, err := json.Marshal(struct {
			JobID ID `json:"job_id"`
		}{id})
		require.NoError(t, err, in)
		assert.Equal(t, `{"job_id":`+want+`}`, string(out), in)
	}
}

func TestDocumentationRecordFallsBackToRepoID(t *testing.T) {
	var rec DocumentationRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"repo_id":"99","files":"[1,2]","created_at":"2025-01-02T15:04:05Z"}`), &rec))
	assert.Equal(t, ID("3"), rec.ID)
	assert.Equal(t, ID("99"), rec.RepositoryID)
	assert.Equal(t, 2, rec.Files.Len())
	assert.Equal(t, 2025, rec.CreatedAt.Year())
}
