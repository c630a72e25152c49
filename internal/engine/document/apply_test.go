package document

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/coled/internal/engine/edit"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		initial []string
		op      edit.Op
		want    []string
		changed bool
	}{
		{"insert char mid line", []string{"ac"}, edit.InsertChar('b', 1, 0), []string{"abc"}, true},
		{"insert char line end", []string{"ab"}, edit.InsertChar('c', 2, 0), []string{"abc"}, true},
		{"insert char past end row creates row", []string{"a"}, edit.InsertChar('b', 0, 1), []string{"a", "b"}, true},
		{"insert char into empty doc", nil, edit.InsertChar('x', 0, 0), []string{"x"}, true},
		{"insert char past end row nonzero col", []string{"a"}, edit.InsertChar('b', 3, 1), []string{"a"}, false},
		{"insert char col out of range", []string{"a"}, edit.InsertChar('b', 5, 0), []string{"a"}, false},
		{"insert char row far out", []string{"a"}, edit.InsertChar('b', 0, 9), []string{"a"}, false},

		{"newline at col 0", []string{"ab"}, edit.InsertNewline(0, 0), []string{"", "ab"}, true},
		{"newline splits", []string{"abcd"}, edit.InsertNewline(2, 0), []string{"ab", "cd"}, true},
		{"newline at line end", []string{"ab"}, edit.InsertNewline(2, 0), []string{"ab", ""}, true},
		{"newline past end row col 0", []string{"a"}, edit.InsertNewline(0, 1), []string{"a", ""}, true},
		{"newline past end row nonzero col", []string{"a"}, edit.InsertNewline(1, 1), []string{"a"}, false},
		{"newline col out of range", []string{"a"}, edit.InsertNewline(2, 0), []string{"a"}, false},

		{"delete char", []string{"abc"}, edit.DeleteChar(2, 0), []string{"ac"}, true},
		{"delete at col 0 merges", []string{"ab", "cd"}, edit.DeleteChar(0, 1), []string{"abcd"}, true},
		{"delete at origin", []string{"ab"}, edit.DeleteChar(0, 0), []string{"ab"}, false},
		{"delete col out of range", []string{"ab"}, edit.DeleteChar(3, 0), []string{"ab"}, false},
		{"delete row out of range", []string{"a", "b", "c"}, edit.DeleteChar(0, 999), []string{"a", "b", "c"}, false},
		{"delete past end row", []string{"a"}, edit.DeleteChar(0, 1), []string{"a"}, false},

		{"invalid op", []string{"a"}, edit.Op{}, []string{"a"}, false},
		{"negative coords", []string{"a"}, edit.InsertChar('x', -1, 0), []string{"a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewFromLines(tt.initial)
			before := d.Bytes()
			got := d.Apply(tt.op)
			assert.Equal(t, tt.changed, got)
			want := tt.want
			if want == nil {
				want = []string{}
			}
			assert.Equal(t, want, d.Rows())
			if !tt.changed {
				assert.Equal(t, before, d.Bytes())
				assert.False(t, d.Dirty(), "no-op must not mark the document dirty")
			}
		})
	}
}

func TestApplyOutOfRangeDeleteOnThreeRows(t *testing.T) {
	d := NewFromLines([]string{"hello", "world", "!"})
	assert.False(t, d.Apply(edit.DeleteChar(0, 999)))
	assert.Equal(t, []string{"hello", "world", "!"}, d.Rows())
}

func TestApplyTypingSequence(t *testing.T) {
	d := New()
	cx, cy := 0, 0
	for _, c := range []byte("hi") {
		assert.True(t, d.Apply(edit.InsertChar(c, cx, cy)))
		cx++
	}
	assert.True(t, d.Apply(edit.InsertNewline(cx, cy)))
	cx, cy = 0, 1
	assert.True(t, d.Apply(edit.InsertChar('x', cx, cy)))
	assert.True(t, d.Apply(edit.DeleteChar(1, 1)))
	assert.True(t, d.Apply(edit.DeleteChar(0, 1)))
	assert.Equal(t, []string{"hi"}, d.Rows())
}
