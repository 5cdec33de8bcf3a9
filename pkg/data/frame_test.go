package data

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `dataset,branchId,support,length
ds_b,1,0.9,0.01
ds_a,2,0.4,
ds_b,3,1,inf
`

func TestReadCSV(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 3, f.Len())
	assert.Equal(t, []string{"dataset", "branchId", "support", "length"}, f.Names())
	assert.False(t, f.IsNumeric("dataset"))
	assert.True(t, f.IsNumeric("branchId"))

	length, err := f.Float("length")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(length[1]))
	assert.True(t, math.IsInf(length[2], 1))

	_, err = f.Float("dataset")
	var ce *ColumnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dataset", ce.Name)
	assert.True(t, errors.Is(err, ErrColumn))
}

func TestReadCSV_MissingTokens(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("a,b,c\n1,NA,\nnull,x,NA\nN/A,,\n"))
	require.NoError(t, err)
	a, err := f.Float("a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, a[0])
	assert.True(t, math.IsNaN(a[1]))
	assert.True(t, math.IsNaN(a[2]))
	assert.False(t, f.IsNumeric("b"))

	// only missing cells: numeric, all NaN
	c, err := f.Float("c")
	require.NoError(t, err)
	require.Len(t, c, 3)
	for _, v := range c {
		assert.True(t, math.IsNaN(v))
	}
}

func TestReadCSV_DuplicateHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b,a\n1,2,3\n"))
	assert.ErrorIs(t, err, ErrColumn)
	assert.ErrorContains(t, err, "duplicate header")
}

func TestReadCSV_IndexColumn(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(",ebg\n0,1.5\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"column_0", "ebg"}, f.Names())
	assert.True(t, IsIndexColumn("column_0"))
	assert.True(t, IsIndexColumn(IndexColumn(12)))
	assert.False(t, IsIndexColumn("column_"))
	assert.False(t, IsIndexColumn("column_x"))
	assert.False(t, IsIndexColumn("ebg"))
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestFrame_FillNonFinite(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 2, f.FillNonFinite(-1))
	length, _ := f.Float("length")
	assert.Equal(t, []float64{0.01, -1, -1}, length)
}

func TestFrame_SelectRenameDrop(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	s, err := f.Select("support", "dataset")
	require.NoError(t, err)
	assert.Equal(t, []string{"support", "dataset"}, s.Names())

	_, err = f.Select("missing")
	assert.ErrorIs(t, err, ErrColumn)

	require.NoError(t, f.Rename(map[string]string{"length": "branch_length"}))
	assert.True(t, f.Has("branch_length"))
	assert.False(t, f.Has("length"))

	err = f.Rename(map[string]string{"support": "dataset"})
	assert.ErrorIs(t, err, ErrColumn)
}

func TestFrame_ReplaceInNames(t *testing.T) {
	f := NewFrame(1)
	require.NoError(t, f.SetFloat("a:b", []float64{1}))
	require.NoError(t, f.ReplaceInNames(":", "_"))
	assert.Equal(t, []string{"a_b"}, f.Names())
}

func TestFrame_RenameDuplicateLeavesFrame(t *testing.T) {
	f := NewFrame(1)
	require.NoError(t, f.SetFloat("x:y", []float64{1}))
	require.NoError(t, f.SetFloat("x_y", []float64{2}))

	assert.ErrorIs(t, f.ReplaceInNames(":", "_"), ErrColumn)
	assert.Equal(t, []string{"x:y", "x_y"}, f.Names())
	assert.True(t, f.Has("x:y"))

	assert.ErrorIs(t, f.Rename(map[string]string{"x_y": "x:y"}), ErrColumn)
	assert.Equal(t, []string{"x:y", "x_y"}, f.Names())
	v, err := f.Float("x_y")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, v)
}

func TestFrame_FillNonFiniteKeepsSource(t *testing.T) {
	src, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	sel, err := src.Select("length")
	require.NoError(t, err)

	assert.Equal(t, 2, sel.FillNonFinite(-1))
	filled, _ := sel.Float("length")
	assert.Equal(t, []float64{0.01, -1, -1}, filled)

	orig, _ := src.Float("length")
	assert.True(t, math.IsNaN(orig[1]))
	assert.True(t, math.IsInf(orig[2], 1))
}

func TestFrame_SetShapeMismatch(t *testing.T) {
	f := NewFrame(2)
	assert.ErrorIs(t, f.SetFloat("x", []float64{1}), ErrShape)
}

func TestFrame_Codes(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	codes, err := f.Codes("dataset")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, codes)
}

func TestFrame_TakeAndRows(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	sub := f.Take([]int{2, 0})
	ds, _ := sub.Text("dataset")
	assert.Equal(t, []string{"ds_b", "ds_b"}, ds)

	X, err := sub.Rows("branchId", "support")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 1}, {1, 0.9}}, X)
}

func TestFrame_WriteCSVRoundTrip(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))
	assert.Equal(t, "dataset,branchId,support,length\nds_b,1,0.9,0.01\nds_a,2,0.4,\nds_b,3,1,+Inf\n", buf.String())

	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, f.WriteCSVFile(path))
	back, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, f.Names(), back.Names())
	assert.Equal(t, f.Len(), back.Len())
}

func TestConcat(t *testing.T) {
	a := NewFrame(1)
	require.NoError(t, a.SetText("dataset", []string{"x"}))
	require.NoError(t, a.SetFloat("f1", []float64{1}))
	b := NewFrame(2)
	require.NoError(t, b.SetText("dataset", []string{"y", "y"}))
	require.NoError(t, b.SetFloat("f2", []float64{2, 3}))

	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"dataset", "f1", "f2"}, out.Names())

	f1, _ := out.Float("f1")
	assert.Equal(t, 1.0, f1[0])
	assert.True(t, math.IsNaN(f1[1]))
	f2, _ := out.Float("f2")
	assert.True(t, math.IsNaN(f2[0]))
	assert.Equal(t, 3.0, f2[2])
}

func TestJoinInner(t *testing.T) {
	left, err := ReadCSV(strings.NewReader("dataset,branchId,x\na,1,10\na,2,20\nb,1,30\n"))
	require.NoError(t, err)
	right, err := ReadCSV(strings.NewReader("dataset,branchId,support\nb,1,0.5\na,1,0.9\na,1,0.1\n"))
	require.NoError(t, err)

	out, err := JoinInner(left, right, "dataset", "branchId")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	x, _ := out.Float("x")
	support, _ := out.Float("support")
	assert.Equal(t, []float64{10, 30}, x)
	assert.Equal(t, []float64{0.9, 0.5}, support)
}
