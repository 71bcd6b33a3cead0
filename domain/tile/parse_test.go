package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		want     SequenceCoordinate
		filtered bool
	}{
		{
			name: "casava 1.8",
			id:   "@M00123:42:000000000-A1B2C:1:1101:15589:1333 1:N:0:1",
			want: NewSequenceCoordinate(NewCoordinate("000000000-A1B2C", 1, 1101), 15589, 1333),
		},
		{
			name:     "casava 1.8 filtered",
			id:       "@HWI-ST100:8:FC1:3:2216:100:200 2:Y:0:ACGT",
			want:     NewSequenceCoordinate(NewCoordinate("FC1", 3, 2216), 100, 200),
			filtered: true,
		},
		{
			name: "casava 1.8 without comment",
			id:   "@HWI-ST100:8:FC1:3:2216:100:200",
			want: NewSequenceCoordinate(NewCoordinate("FC1", 3, 2216), 100, 200),
		},
		{
			name: "legacy with index and read",
			id:   "@HWUSI-EAS100R:6:73:941:1973#0/1",
			want: NewSequenceCoordinate(NewCoordinate("HWUSI-EAS100R", 6, 73), 941, 1973),
		},
		{
			name: "legacy plain",
			id:   "@GA2:1:5:10:20",
			want: NewSequenceCoordinate(NewCoordinate("GA2", 1, 5), 10, 20),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentifier(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Position)
			assert.Equal(t, tt.filtered, got.Filtered)
		})
	}
}

func TestParseIdentifier_Malformed(t *testing.T) {
	for _, id := range []string{
		"",
		"@read1",
		"@a:b:c",
		"@inst:run:FC:x:1101:1:1",
		"@inst:run::1:1101:1:1",
		"@inst:1:5:-3:20",
	} {
		t.Run(id, func(t *testing.T) {
			_, err := ParseIdentifier(id)
			assert.ErrorIs(t, err, ErrMalformedIdentifier)
		})
	}
}
