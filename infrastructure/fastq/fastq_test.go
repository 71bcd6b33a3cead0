package fastq_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/infrastructure/fastq"
)

const sample = "@M1:1:FC1:1:1101:100:200 1:N:0:1\nACGT\n+\nIIII\n" +
	"@M1:1:FC1:1:1101:300:400 1:Y:0:1\nNNAC\n+\n##II\n"

func drain(t *testing.T, src read.Source) ([]read.Record, []*read.MalformedRecordError) {
	t.Helper()
	var recs []read.Record
	var bad []*read.MalformedRecordError
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return recs, bad
		}
		var m *read.MalformedRecordError
		if errors.As(err, &m) {
			bad = append(bad, m)
			continue
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
}

func TestReader_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reads.fq")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	src, err := fastq.Open(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	recs, bad := drain(t, src)
	assert.Empty(t, bad)
	require.Len(t, recs, 2)
	assert.Equal(t, "M1:1:FC1:1:1101:100:200 1:N:0:1", recs[0].ID)
	assert.Equal(t, []byte("ACGT"), recs[0].Sequence)
	assert.Equal(t, []byte("##II"), recs[1].Quality)
	assert.Equal(t, int64(len(sample)), src.Size())
	assert.Equal(t, src.Size(), src.BytesRead())
}

func TestReader_GzipBySuffixAndMagic(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	dir := t.TempDir()
	for _, name := range []string{"reads.fq.gz", "reads.fastq"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

		src, err := fastq.Opener(path).Open()
		require.NoError(t, err)
		recs, bad := drain(t, src)
		assert.Empty(t, bad, name)
		assert.Len(t, recs, 2, name)
		assert.Equal(t, int64(buf.Len()), src.Size(), name)
		assert.Equal(t, src.Size(), src.BytesRead(), name)
		require.NoError(t, src.Close())
	}
}

func TestReader_MalformedRecordsAreSkippable(t *testing.T) {
	input := strings.Join([]string{
		"@ok1", "ACGT", "+", "IIII",
		"bad-header", "ACGT", "+", "IIII",
		"@short-qual", "ACGT", "+", "II",
		"@no-sep", "ACGT", "-", "IIII",
		"",
		"@ok2", "GG", "+", "II",
		"@truncated", "AC",
	}, "\n")

	recs, bad := drain(t, fastq.NewReader(strings.NewReader(input), int64(len(input))))

	require.Len(t, recs, 2)
	assert.Equal(t, "ok1", recs[0].ID)
	assert.Equal(t, "ok2", recs[1].ID)
	require.Len(t, bad, 4)
	assert.Equal(t, "bad-header", bad[0].ID)
	assert.Equal(t, int64(1), bad[0].Index)
	assert.Equal(t, "short-qual", bad[1].ID)
	assert.Equal(t, "no-sep", bad[2].ID)
	assert.Equal(t, "truncated", bad[3].ID)
	assert.Equal(t, int64(5), bad[3].Index)
}

func TestReader_ResyncsAfterMissingLine(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"missing quality", []string{"@b", "ACGT", "+"}},
		{"missing sequence", []string{"@b", "+", "IIII"}},
		{"missing separator", []string{"@b", "ACGT", "IIII"}},
		{"missing quality of header length", []string{"@b", "AC", "+"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []string{"@a", "ACGT", "+", "IIII"}
			lines = append(lines, tt.lines...)
			for _, id := range []string{"c", "d", "e", "f"} {
				lines = append(lines, "@"+id, "ACGT", "+", "@III")
			}
			input := strings.Join(lines, "\n") + "\n"

			recs, bad := drain(t, fastq.NewReader(strings.NewReader(input), int64(len(input))))

			ids := make([]string, 0, len(recs))
			for _, r := range recs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, []string{"a", "c", "d", "e", "f"}, ids)
			require.Len(t, bad, 1)
			assert.Equal(t, "b", bad[0].ID)
			assert.Equal(t, int64(1), bad[0].Index)
		})
	}
}

func TestReader_CRLF(t *testing.T) {
	input := "@r1\r\nAC\r\n+\r\nII\r\n"
	recs, bad := drain(t, fastq.NewReader(strings.NewReader(input), 0))

	assert.Empty(t, bad)
	require.Len(t, recs, 1)
	assert.Equal(t, []byte("AC"), recs[0].Sequence)
}

func TestWriter_RestoresStoredOrientation(t *testing.T) {
	var buf bytes.Buffer
	w := fastq.NewWriter(&buf)

	require.NoError(t, w.Write(read.Record{ID: "fwd", Sequence: []byte("AACG"), Quality: []byte("ABCD")}))
	require.NoError(t, w.Write(read.Record{ID: "rev", Sequence: []byte("AACG"), Quality: []byte("ABCD"), Reverse: true}))
	require.NoError(t, w.Close())

	assert.Equal(t, "@fwd\nAACG\n+\nABCD\n@rev\nCGTT\n+\nDCBA\n", buf.String())
}

func TestWriter_GzipRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.fq.gz")
	w, err := fastq.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(read.Record{ID: "x", Sequence: []byte("ACGN"), Quality: []byte("II#I")}))
	require.NoError(t, w.Close())

	src, err := fastq.Open(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	recs, bad := drain(t, src)
	assert.Empty(t, bad)
	require.Len(t, recs, 1)
	assert.Equal(t, []byte("ACGN"), recs[0].Sequence)
}
