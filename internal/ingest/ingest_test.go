package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  ESTADO   DE\tCARGA ", "ESTADO DE CARGA"},
		{"NaN", ""},
		{"null", ""},
		{" None ", ""},
		{"NaT", ""},
		{"", ""},
		{"\uff2f\uff26\uff0d\uff12\uff14", "OF-24"},
		{"línea\nnueva", "línea nueva"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), tt.in)
	}
}

func TestCleanKey(t *testing.T) {
	assert.Equal(t, "estado de oferta", CleanKey(" Estado  de OFERTA"))
	assert.Equal(t, "id_excel", CleanKey("ID"))
	assert.Equal(t, "idx", CleanKey("IDX"))
}

func TestBuildRecord(t *testing.T) {
	keys := []string{"id_excel", "codigo de oferta", "cliente", ""}
	rec := BuildRecord(keys, []string{"10", "OF-24-001", "nan", "ignored"})

	assert.Equal(t, "id_excel: 10. codigo de oferta: OF-24-001", rec.Content)
	assert.Equal(t, map[string]string{"id_excel": "10", "codigo de oferta": "OF-24-001", "cliente": ""}, rec.Metadata)
	assert.True(t, rec.Valid())

	short := BuildRecord([]string{"a"}, []string{"b"})
	assert.Equal(t, "a: b", short.Content)
	assert.False(t, short.Valid())
}

func TestReader(t *testing.T) {
	data := "\ufeffID,Código de Oferta,Estado de  Oferta\n1,OF-24-001,Pendiente\n2,SZ-17_3\n"
	r, err := NewReader(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"id_excel", "código de oferta", "estado de oferta"}, r.Columns())
	assert.Equal(t, "ID", r.RawColumns()[0])

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Pendiente", first.Metadata["estado de oferta"])

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "", second.Metadata["estado de oferta"])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_EmptyFile(t *testing.T) {
	_, err := NewReader(strings.NewReader(""))
	assert.Error(t, err)
}

// workbook builds an in-memory .xlsx whose first sheet holds rows.
func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestExcelReader(t *testing.T) {
	book := workbook(t,
		[]any{"ID", "Código de Oferta", "Estado de  Oferta"},
		[]any{1, "OF-24-001", "Pendiente"},
		[]any{2, "SZ-17_3"},
	)

	r, err := NewReaderFor("exports/file_4.xlsx", book)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"id_excel", "código de oferta", "estado de oferta"}, r.Columns())
	assert.Equal(t, "ID", r.RawColumns()[0])

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "id_excel: 1. código de oferta: OF-24-001. estado de oferta: Pendiente", first.Content)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "SZ-17_3", second.Metadata["código de oferta"])
	assert.Equal(t, "", second.Metadata["estado de oferta"])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, r.Close())
}

func TestNewReaderFor(t *testing.T) {
	t.Run("workbook without extension is sniffed", func(t *testing.T) {
		r, err := NewReaderFor("s3://licitai-ingest/exports/latest", workbook(t, []any{"Cliente"}, []any{"ACME SAC"}))
		require.NoError(t, err)
		defer r.Close()

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "ACME SAC", rec.Metadata["cliente"])
	})

	t.Run("anything else is CSV", func(t *testing.T) {
		r, err := NewReaderFor("exports/file_4.txt", strings.NewReader("Cliente;x\nACME,1\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"cliente;x"}, r.Columns())
	})

	t.Run("legacy xls is rejected", func(t *testing.T) {
		_, err := NewReaderFor("file_4.XLS", strings.NewReader("irrelevant"))
		assert.ErrorIs(t, err, domain.ErrInvalidIngestSource)
	})

	t.Run("corrupt workbook", func(t *testing.T) {
		_, err := NewReaderFor("file_4.xlsx", strings.NewReader("not a zip"))
		assert.ErrorIs(t, err, domain.ErrInvalidIngestSource)
	})

	t.Run("empty sheet", func(t *testing.T) {
		_, err := NewReaderFor("file_4.xlsx", workbook(t))
		assert.ErrorContains(t, err, "missing header row")
	})
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://licitai-ingest/exports/2026/file_4.csv")
	require.NoError(t, err)
	assert.Equal(t, "licitai-ingest", bucket)
	assert.Equal(t, "exports/2026/file_4.csv", key)

	for _, bad := range []string{"s3://bucket", "s3:///key", "/tmp/file.csv"} {
		_, _, err := ParseS3URI(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidIngestSource, bad)
	}
}

type fakeObjects struct {
	body string
	err  error
	got  string
}

func (f *fakeObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.got = bucket + "/" + key
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("local file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))

		rc, err := Open(ctx, path, nil)
		require.NoError(t, err)
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		assert.Equal(t, "a,b\n1,2\n", string(data))
	})

	t.Run("missing local file", func(t *testing.T) {
		_, err := Open(ctx, filepath.Join(t.TempDir(), "nope.csv"), nil)
		assert.ErrorIs(t, err, domain.ErrInvalidIngestSource)
	})

	t.Run("s3 object", func(t *testing.T) {
		objects := &fakeObjects{body: "x"}
		rc, err := Open(ctx, "s3://bucket/dir/file.csv", objects)
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, "bucket/dir/file.csv", objects.got)
	})

	t.Run("s3 without storage", func(t *testing.T) {
		_, err := Open(ctx, "s3://bucket/file.csv", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidIngestSource)
	})

	t.Run("s3 fetch error", func(t *testing.T) {
		_, err := Open(ctx, "s3://bucket/file.csv", &fakeObjects{err: errors.New("NoSuchKey")})
		assert.ErrorContains(t, err, "NoSuchKey")
	})
}
