package pcsc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickReader(t *testing.T) {
	readers := []string{
		"ACS ACR122U PICC Interface 00 00",
		"Identiv uTrust 3700 F CL Reader 01 00",
		"Identiv uTrust 3700 F Contact Reader 01 01",
	}

	tests := []struct {
		name    string
		want    string
		expect  string
		wantErr bool
	}{
		{name: "Empty Takes First", want: "", expect: readers[0]},
		{name: "Exact", want: readers[1], expect: readers[1]},
		{name: "Unique Substring", want: "acr122", expect: readers[0]},
		{name: "Ambiguous Substring", want: "identiv", wantErr: true},
		{name: "No Match", want: "omnikey", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PickReader(tt.want, readers)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestPickReaderNoReaders(t *testing.T) {
	_, err := PickReader("", nil)
	assert.EqualError(t, err, "no smart card reader found")
}
