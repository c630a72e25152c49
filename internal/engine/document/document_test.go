package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coled/internal/engine/edit"
)

func TestNewDocumentIsEmpty(t *testing.T) {
	d := New()
	assert.Equal(t, 0, d.NumLines())
	assert.Empty(t, d.Rows())
	assert.False(t, d.Dirty())
	assert.Nil(t, d.Line(0))
	assert.Equal(t, -1, d.LineLen(0))
}

func TestNewFromLines(t *testing.T) {
	d := NewFromLines([]string{"a", "bad\nrow", "c"})
	assert.Equal(t, []string{"a", "c"}, d.Rows())
	assert.False(t, d.Dirty())
}

func TestInsertAndDeleteLine(t *testing.T) {
	d := New()
	require.True(t, d.InsertLine(0, []byte("world")))
	require.True(t, d.InsertLine(0, []byte("hello")))
	require.True(t, d.InsertLine(2, []byte("!")))
	assert.Equal(t, []string{"hello", "world", "!"}, d.Rows())
	assert.True(t, d.Dirty())

	assert.False(t, d.InsertLine(4, []byte("x")), "past end")
	assert.False(t, d.InsertLine(-1, []byte("x")))
	assert.False(t, d.InsertLine(0, []byte("a\nb")), "newline in content")
	assert.False(t, d.InsertLine(0, []byte{'a', 0}), "nul in content")

	require.True(t, d.DeleteLine(1))
	assert.Equal(t, []string{"hello", "!"}, d.Rows())
	assert.False(t, d.DeleteLine(2))
	assert.False(t, d.DeleteLine(-1))
}

func TestInsertDeleteChar(t *testing.T) {
	d := NewFromLines([]string{"ac"})
	require.True(t, d.InsertCharAt(0, 1, 'b'))
	require.True(t, d.InsertCharAt(0, 3, 'd'))
	assert.Equal(t, "abcd", d.Line(0).String())

	assert.False(t, d.InsertCharAt(0, 5, 'x'))
	assert.False(t, d.InsertCharAt(1, 0, 'x'))
	assert.False(t, d.InsertCharAt(0, 0, '\n'))

	require.True(t, d.DeleteCharAt(0, 0))
	assert.Equal(t, "bcd", d.Line(0).String())
	assert.False(t, d.DeleteCharAt(0, 3))
	assert.False(t, d.DeleteCharAt(0, -1))
}

func TestRenderExpandsTabs(t *testing.T) {
	d := NewFromLines([]string{"\tx", "ab\tc"})
	assert.Equal(t, "        x", d.Line(0).Render())
	assert.Equal(t, "ab      c", d.Line(1).Render())

	require.True(t, d.InsertCharAt(1, 0, '\t'))
	assert.Equal(t, "        ab      c", d.Line(1).Render(), "render regenerated on change")

	d4 := NewFromLines([]string{"\tx"}, WithTabStop(4))
	assert.Equal(t, "    x", d4.Line(0).Render())
	assert.Equal(t, 4, d4.TabStop())
}

func TestRowCxToRx(t *testing.T) {
	d := NewFromLines([]string{"a\tb"})
	assert.Equal(t, 0, d.RowCxToRx(0, 0))
	assert.Equal(t, 1, d.RowCxToRx(0, 1))
	assert.Equal(t, 8, d.RowCxToRx(0, 2))
	assert.Equal(t, 0, d.RowCxToRx(5, 2))
}

func TestLineHelpers(t *testing.T) {
	d := NewFromLines([]string{"hello world"})

	require.True(t, d.SplitLine(0, 5))
	assert.Equal(t, []string{"hello", " world"}, d.Rows())

	require.True(t, d.SplitLine(0, 0))
	assert.Equal(t, []string{"", "hello", " world"}, d.Rows())

	require.True(t, d.MergeIntoPrevious(2))
	assert.Equal(t, []string{"", "hello world"}, d.Rows())

	require.True(t, d.AppendString(0, []byte("x")))
	assert.Equal(t, []string{"x", "hello world"}, d.Rows())

	assert.False(t, d.SplitLine(1, 99))
	assert.False(t, d.MergeIntoPrevious(0))
	assert.False(t, d.MergeIntoPrevious(2))
	assert.False(t, d.AppendString(3, []byte("x")))
}

func TestMarkClean(t *testing.T) {
	d := New()
	d.InsertLine(0, []byte("x"))
	require.True(t, d.Dirty())
	d.MarkClean()
	assert.False(t, d.Dirty())
}

func TestReplace(t *testing.T) {
	tests := []struct {
		name     string
		initial  []string
		snapshot []string
	}{
		{"empty into empty", nil, nil},
		{"grow", []string{"a"}, []string{"x", "y", "z"}},
		{"shrink", []string{"a", "b", "c", "d"}, []string{"x"}},
		{"same size", []string{"a", "b"}, []string{"c", "d"}},
		{"clear", []string{"a", "b"}, []string{}},
		{"empty rows", []string{"a"}, []string{"", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewFromLines(tt.initial)
			d.Replace(tt.snapshot)
			want := tt.snapshot
			if want == nil {
				want = []string{}
			}
			assert.Equal(t, want, d.Rows())
		})
	}
}

func TestReplaceIsIdempotent(t *testing.T) {
	d := NewFromLines([]string{"local", "edits", "here", "and more"})
	snap := []string{"hello", "\tworld", "!"}

	d.Replace(snap)
	first := d.Bytes()
	firstRender := d.Line(1).Render()

	d.Replace(snap)
	assert.Equal(t, first, d.Bytes())
	assert.Equal(t, firstRender, d.Line(1).Render())
}

func TestReplaceSanitizesRows(t *testing.T) {
	d := New()
	d.Replace([]string{"a\x00b"})
	assert.Equal(t, []string{"ab"}, d.Rows())
}

func TestLoad(t *testing.T) {
	d := NewFromLines([]string{"old"})
	require.NoError(t, d.Load(strings.NewReader("one\r\ntwo\n\nthree")))
	assert.Equal(t, []string{"one", "two", "", "three"}, d.Rows())
	assert.False(t, d.Dirty())
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	d := NewFromLines([]string{"alpha", "", "beta"})
	d.InsertCharAt(2, 4, 's')

	n, err := d.SaveFile(path)
	require.NoError(t, err)
	assert.Equal(t, len("alpha\n\nbetas\n"), n)
	assert.False(t, d.Dirty())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alpha\n\nbetas\n", string(data))

	loaded := New()
	require.NoError(t, loaded.LoadFile(path))
	assert.Equal(t, d.Rows(), loaded.Rows())

	assert.Error(t, New().LoadFile(filepath.Join(t.TempDir(), "missing")))
}

func TestSaveTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("a much longer previous body\n"), 0o644))
	_, err := NewFromLines([]string{"x"}).SaveFile(path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
}

func TestApplyKeepsLineInvariant(t *testing.T) {
	d := NewFromLines([]string{"ab"})
	d.Apply(edit.Op{Kind: edit.KindInsertChar, Char: '\n', Col: 0, Row: 0})
	for _, row := range d.Rows() {
		assert.NotContains(t, row, "\n")
	}
}
