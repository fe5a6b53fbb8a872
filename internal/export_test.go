package internal

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifestFixture() []*Memory {
	return []*Memory{
		NewMemory("first note", "project/alpha", Metadata{"tags": []any{"a"}}, []float32{1, 0}),
		NewMemory("second note", "project/beta", nil, []float32{0, 1}),
	}
}

func TestManifestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	mems := manifestFixture()

	require.NoError(t, WriteManifest(&buf, mems, false))

	man, err := ReadManifest(&buf)
	require.NoError(t, err)

	assert.Equal(t, ManifestVersion, man.FormatVersion)
	assert.False(t, man.ExportedAt.IsZero())
	require.Len(t, man.Memories, 2)
	assert.Equal(t, "first note", man.Memories[0].Content)
	assert.Equal(t, Scope("project/alpha"), man.Memories[0].Scope)
	assert.Equal(t, []float32{1, 0}, man.Memories[0].Embedding)
	assert.Equal(t, Metadata{"tags": []any{"a"}}, man.Memories[0].Metadata)
}

func TestManifestGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteManifest(&buf, manifestFixture(), true))

	// Really compressed, not plain JSON.
	raw := buf.Bytes()
	require.True(t, len(raw) > 2 && raw[0] == 0x1f && raw[1] == 0x8b, "missing gzip magic")

	man, err := ReadManifest(&buf)
	require.NoError(t, err)
	assert.Len(t, man.Memories, 2)
}

func TestReadManifestDetectsGzipWithoutHint(t *testing.T) {
	var plain, packed bytes.Buffer
	require.NoError(t, WriteManifest(&plain, manifestFixture(), false))

	gz := gzip.NewWriter(&packed)
	_, err := gz.Write(plain.Bytes())
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	man, err := ReadManifest(&packed)
	require.NoError(t, err)
	assert.Len(t, man.Memories, 2)
}

func TestReadManifestMalformed(t *testing.T) {
	_, err := ReadManifest(strings.NewReader("{not json"))
	assert.True(t, IsValidation(err), "got %v", err)

	_, err = ReadManifest(strings.NewReader(""))
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestReadManifestRejectsUnknownVersion(t *testing.T) {
	_, err := ReadManifest(strings.NewReader(`{"format_version": 99, "memories": []}`))
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestParseMergeStrategy(t *testing.T) {
	cases := map[string]MergeStrategy{
		"":                MergeSkipDuplicates,
		"skip":            MergeSkipDuplicates,
		"skip_duplicates": MergeSkipDuplicates,
		"overwrite":       MergeOverwrite,
		"version":         MergeVersion,
	}
	for in, want := range cases {
		got, err := ParseMergeStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMergeStrategy("upsert")
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestImportReportTotal(t *testing.T) {
	r := ImportReport{Imported: 2, Skipped: 1, Versioned: 1, Failed: []ImportFailure{{Index: 3}}}
	assert.Equal(t, 5, r.Total())
}
