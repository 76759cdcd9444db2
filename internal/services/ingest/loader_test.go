package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FinScan/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadTypesColumns(t *testing.T) {
	path := writeFile(t, "prices.csv",
		" Date , Close,Volume ,Ticker\n"+
			"2024-01-02,10.5,100,AAPL\n"+
			"not-a-date,,105,AAPL\n"+
			"2024-01-04,11,,AAPL\n")

	tbl, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "prices.csv", tbl.Source)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"Date", "Close", "Volume", "Ticker"}, tbl.ColumnNames())

	date, _ := tbl.Column(models.ColumnDate)
	assert.Equal(t, models.KindTime, date.Kind)
	ts, ok := date.At(0)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), ts)
	_, ok = date.At(1)
	assert.False(t, ok, "bad dates become missing")
	assert.Equal(t, "not-a-date", date.Raw[1])

	closeCol, _ := tbl.Column(models.ColumnClose)
	assert.Equal(t, models.KindNumeric, closeCol.Kind)
	v, ok := closeCol.Float(0)
	assert.True(t, ok)
	assert.Equal(t, 10.5, v)
	_, ok = closeCol.Float(1)
	assert.False(t, ok)

	ticker, _ := tbl.Column("Ticker")
	assert.Equal(t, models.KindString, ticker.Kind)
}

func TestLoadKeepsRawText(t *testing.T) {
	path := writeFile(t, "raw.csv", "Close\n10.50\n1e3\n")
	tbl, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	c, _ := tbl.Column("Close")
	assert.Equal(t, []string{"10.50", "1e3"}, c.Raw)
	assert.Equal(t, []float64{10.5, 1000}, c.Num)
}

func TestLoadNonFiniteCellsAreMissing(t *testing.T) {
	path := writeFile(t, "inf.csv", "Close,Volume\n10,inf\n-Infinity,100\nNaN,105\n11,110\n")
	tbl, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	c, _ := tbl.Column("Close")
	require.Equal(t, models.KindNumeric, c.Kind)
	assert.Equal(t, []bool{true, false, false, true}, c.Valid)

	v, _ := tbl.Column("Volume")
	require.Equal(t, models.KindNumeric, v.Kind)
	_, ok := v.Float(0)
	assert.False(t, ok)
	assert.Equal(t, "inf", v.Raw[0])
}

func TestLoadTSVByExtension(t *testing.T) {
	path := writeFile(t, "prices.tsv", "Close\tVolume\n1\t2\n")
	tbl, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Close", "Volume"}, tbl.ColumnNames())
}

func TestLoadCustomDelimiter(t *testing.T) {
	path := writeFile(t, "prices.csv", "Close;Volume\n1;2\n")
	tbl, err := NewLoader(WithDelimiter(';')).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Close", "Volume"}, tbl.ColumnNames())
}

func TestLoadHeaderOnly(t *testing.T) {
	path := writeFile(t, "empty_rows.csv", "Date,Close\n")
	tbl, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.True(t, tbl.Has("Close"))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		body *string
	}{
		{name: "missing.csv"},
		{name: "empty.csv", body: strPtr("")},
		{name: "ragged.csv", body: strPtr("a,b\n1,2\n3\n")},
		{name: "quote.csv", body: strPtr("a,b\n\"1,2\n")},
		{name: "dup.csv", body: strPtr("a, a\n1,2\n")},
		{name: "blank.csv", body: strPtr("a,\n1,2\n")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := filepath.Join(dir, tc.name)
			if tc.body != nil {
				require.NoError(t, os.WriteFile(p, []byte(*tc.body), 0o644))
			}
			_, err := NewLoader().Load(context.Background(), p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrLoad), "got %v", err)
		})
	}
}

func TestReadHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader().Read(ctx, strings.NewReader("a\n1\n"), "x.csv", ',')
	assert.ErrorIs(t, err, context.Canceled)
}

func strPtr(s string) *string { return &s }
