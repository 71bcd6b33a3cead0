package read

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReverseComplement(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"ACGT", "ACGT"},
		{"AACG", "CGTT"},
		{"acgN", "Ncgt"},
		{"AXG", "CNT"},
		{"RYKM", "KMRY"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ReverseComplement([]byte(tt.in))))
		})
	}
}

func TestRecord_Stored(t *testing.T) {
	r := Record{Sequence: []byte("AAC"), Quality: []byte("123")}
	seq, qual := r.Stored()
	assert.Equal(t, "AAC", string(seq))
	assert.Equal(t, "123", string(qual))

	r.Reverse = true
	seq, qual = r.Stored()
	assert.Equal(t, "GTT", string(seq))
	assert.Equal(t, "321", string(qual))
}

func TestRecord_Clone(t *testing.T) {
	r := Record{Sequence: []byte("AAC"), Quality: []byte("123")}
	c := r.Clone()
	c.Sequence[0] = 'N'
	assert.Equal(t, "AAC", string(r.Sequence))
}

func TestMalformedRecordError(t *testing.T) {
	cause := errors.New("quality length mismatch")
	err := error(&MalformedRecordError{Index: 7, ID: "@r7", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "@r7")

	var mre *MalformedRecordError
	assert.ErrorAs(t, err, &mre)
	assert.Equal(t, int64(7), mre.Index)
}
