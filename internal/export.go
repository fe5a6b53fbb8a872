package internal

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ManifestVersion is the current export format. Readers reject anything else.
const ManifestVersion = 1

// Manifest is the export envelope: full records including embeddings, so an
// import never has to re-embed what another engine already paid for.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	ExportedAt    time.Time `json:"exported_at"`
	Memories      []*Memory `json:"memories"`
}

type MergeStrategy string

const (
	MergeSkipDuplicates MergeStrategy = "skip_duplicates"
	MergeOverwrite      MergeStrategy = "overwrite"
	MergeVersion        MergeStrategy = "version"
)

func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch s {
	case "", "skip", string(MergeSkipDuplicates):
		return MergeSkipDuplicates, nil
	case string(MergeOverwrite):
		return MergeOverwrite, nil
	case string(MergeVersion):
		return MergeVersion, nil
	}
	return "", invalidf("merge strategy", "unknown %q", s)
}

// WriteManifest encodes records to w, optionally gzip-compressed.
func WriteManifest(w io.Writer, mems []*Memory, compress bool) error {
	man := Manifest{
		FormatVersion: ManifestVersion,
		ExportedAt:    time.Now().UTC(),
		Memories:      mems,
	}

	if compress {
		gz := gzip.NewWriter(w)
		if err := json.NewEncoder(gz).Encode(man); err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		return gz.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(man); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

// ReadManifest decodes a manifest, sniffing for gzip by magic bytes.
func ReadManifest(r io.Reader) (*Manifest, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var src io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	var man Manifest
	if err := json.NewDecoder(src).Decode(&man); err != nil {
		return nil, invalidf("manifest", "malformed: %v", err)
	}
	if man.FormatVersion != ManifestVersion {
		return nil, invalidf("manifest", "unsupported format_version %d", man.FormatVersion)
	}
	return &man, nil
}

// ImportReport tallies per-record outcomes. Failed records never abort the
// rest of the import.
type ImportReport struct {
	Imported    int             `json:"imported"`
	Skipped     int             `json:"skipped"`
	Overwritten int             `json:"overwritten"`
	Versioned   int             `json:"versioned"`
	Failed      []ImportFailure `json:"failed,omitempty"`
}

type ImportFailure struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (r *ImportReport) Total() int {
	return r.Imported + r.Skipped + r.Overwritten + r.Versioned + len(r.Failed)
}
