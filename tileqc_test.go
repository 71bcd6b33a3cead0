package tileqc_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/tileqc"
	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/selection"
	"github.com/helixml/tileqc/infrastructure/fastq"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFASTQ writes two good reads spanning the tile and one bad read in its centre.
func writeFASTQ(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	for _, r := range []struct {
		name string
		x, y int
		qual string
	}{
		{"good1", 0, 0, "IIII"},
		{"good2", 999, 999, "IIII"},
		{"bad", 500, 500, "##II"},
	} {
		fmt.Fprintf(&b, "@M1:7:FC1:1:1101:%d:%d 1:N:0:%s\nACGT\n+\n%s\n", r.x, r.y, r.name, r.qual)
	}
	path := filepath.Join(dir, "run.fastq")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func readAll(t *testing.T, path string) []read.Record {
	t.Helper()
	src, err := fastq.Open(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	var out []read.Record
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func newClient(t *testing.T, opts ...tileqc.Option) *tileqc.Client {
	t.Helper()
	base := []tileqc.Option{tileqc.WithLogger(quietLogger()), tileqc.WithCacheDir(filepath.Join(t.TempDir(), "cache"))}
	client, err := tileqc.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_AnalyzeUsesCache(t *testing.T) {
	path := writeFASTQ(t, t.TempDir())
	client := newClient(t)
	ctx := context.Background()

	first, err := client.Analyze(ctx, path)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.True(t, first.Cached)
	assert.Equal(t, "hiseq-2000", first.Tree.Numeration().Name())

	second, err := client.Analyze(ctx, path)
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	entries, err := client.CacheEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Equal(t, abs, entries[0].Fingerprint.Path)

	report, err := client.PruneCache(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Blobs())
}

func TestClient_MaskingWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	path := writeFASTQ(t, dir)
	client := newClient(t)

	res, err := client.Analyze(context.Background(), path,
		tileqc.WithMasking(selection.ClearDelete, selection.MethodAuto),
		tileqc.WithModules(analysis.TagBaseQuality),
	)
	require.NoError(t, err)
	assert.Equal(t, selection.ChangeSummary{Reads: 3, ReadsChanged: 1, BasesChanged: 2}, res.Masking.Summary)

	primary, failed := tileqc.OutputPaths(path)
	kept := readAll(t, primary)
	dropped := readAll(t, failed)
	require.Len(t, kept, 2)
	require.Len(t, dropped, 1)
	assert.Equal(t, "ACGT", string(dropped[0].Sequence))

	var buf bytes.Buffer
	require.NoError(t, client.ExportSelection(res, &buf))
	doc, err := selection.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 10, doc.MatrixSize)
	assert.Len(t, doc.Entries, 2)
}

func TestClient_FileSelection(t *testing.T) {
	dir := t.TempDir()
	path := writeFASTQ(t, dir)
	client := newClient(t)
	ctx := context.Background()

	auto, err := client.Analyze(ctx, path, tileqc.WithMasking(selection.ClearChange, selection.MethodAuto))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, client.ExportSelection(auto, &buf))
	doc, err := selection.Decode(&buf)
	require.NoError(t, err)

	out := filepath.Join(dir, "from-file.fastq")
	res, err := client.Analyze(ctx, path,
		tileqc.WithMasking(selection.ClearChange, selection.MethodFile),
		tileqc.WithSelectionDocument(doc),
		tileqc.WithOutputs(out, ""),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Masking.Import.Applied)

	recs := readAll(t, out)
	require.Len(t, recs, 3)
	assert.Equal(t, "NNGT", string(recs[2].Sequence))
}

func TestClient_WithoutCache(t *testing.T) {
	client, err := tileqc.New(tileqc.WithLogger(quietLogger()), tileqc.WithoutCache())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	res, err := client.Analyze(context.Background(), writeFASTQ(t, t.TempDir()))
	require.NoError(t, err)
	assert.False(t, res.Cached)

	_, err = client.CacheEntries(context.Background())
	assert.ErrorIs(t, err, tileqc.ErrCacheDisabled)
}

func TestClient_InvalidConfig(t *testing.T) {
	_, err := tileqc.New(tileqc.WithMatrixSize(0), tileqc.WithoutCache())
	assert.ErrorContains(t, err, "matrix size")
}

func TestClient_Close(t *testing.T) {
	client, err := tileqc.New(tileqc.WithLogger(quietLogger()), tileqc.WithCacheDir(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Close(), tileqc.ErrClientClosed)

	_, err = client.Analyze(context.Background(), "missing.fastq")
	assert.ErrorIs(t, err, tileqc.ErrClientClosed)
}

func TestOutputPaths(t *testing.T) {
	tests := []struct {
		in, primary, failed string
	}{
		{"/d/run.fastq", "/d/run.masked.fastq", "/d/run.failed.fastq"},
		{"/d/run.fq.gz", "/d/run.masked.fq.gz", "/d/run.failed.fq.gz"},
		{"reads", "reads.masked.fastq", "reads.failed.fastq"},
	}
	for _, tt := range tests {
		primary, failed := tileqc.OutputPaths(tt.in)
		assert.Equal(t, tt.primary, primary, tt.in)
		assert.Equal(t, tt.failed, failed, tt.in)
	}
}
