package output

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ExportedDocuments(t *testing.T) {
	for name, log := range map[string]string{"traditional": sampleLog, "modern": modernLog, "empty": ""} {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, Validate(Export(parse(t, log))))
		})
	}
}

func TestValidate_Violations(t *testing.T) {
	m := Export(parse(t, sampleLog))
	delete(m, "sizing_entries")
	m["detected_format"] = "SYSLOG"
	m["unexpected"] = 1

	err := Validate(m)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Problems), 3)
	assert.Contains(t, err.Error(), "sizing_entries")
}

func TestValidate_BadCorrelationKey(t *testing.T) {
	m := Export(parse(t, sampleLog))
	entry := m["sizing_entries"].([]any)[1].(map[string]any)
	entry["correlation_key"] = int64(0)

	assert.Error(t, Validate(m))
}

func TestDecodeDocuments(t *testing.T) {
	report := NewReport([]Source{
		{Path: "a.log", Document: parse(t, sampleLog)},
		{Path: "b.log", Document: parse(t, modernLog)},
	}, "", testTime, 0)

	for _, f := range []Formatter{NewJSONFormatter(FormatOptions{}), NewYAMLFormatter(FormatOptions{})} {
		t.Run(f.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, f.Format(context.Background(), report, &buf))

			docs, err := DecodeDocuments(buf.Bytes())
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "a.log", docs[0]["source"])
			assert.Equal(t, "MODERN", docs[1]["detected_format"])
			for _, d := range docs {
				assert.NoError(t, Validate(d))
			}

			want := report.Exports()
			assert.Equal(t, want[0], docs[0])
			assert.Equal(t, want[1], docs[1])
		})
	}
}

func TestDecodeDocuments_Errors(t *testing.T) {
	_, err := DecodeDocuments(nil)
	assert.Error(t, err)

	_, err = DecodeDocuments([]byte(`"just a string"`))
	assert.Error(t, err)

	_, err = DecodeDocuments([]byte(`[1, 2]`))
	assert.ErrorContains(t, err, "not an object")
}

func TestDocumentSchema(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal(DocumentSchema(), &schema))
	assert.Equal(t, "object", schema["type"])
}
