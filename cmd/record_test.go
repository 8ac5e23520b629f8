package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWidthHeight(t *testing.T) {
	tests := []struct {
		spec    string
		width   int
		height  int
		wantErr bool
	}{
		{spec: "1280x720", width: 1280, height: 720},
		{spec: "720x1280", width: 720, height: 1280},
		{spec: "1280", wantErr: true},
		{spec: "x720", wantErr: true},
		{spec: "1280x", wantErr: true},
		{spec: "0x0", wantErr: true},
		{spec: "-1x720", wantErr: true},
		{spec: "axb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			w, h, err := parseWidthHeight(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestRecordCommandRequiresOutputFile(t *testing.T) {
	cmd := NewRecordCommand()
	err := cmd.Args(cmd, nil)
	require.Error(t, err)

	var usageErr *UsageError
	assert.ErrorAs(t, err, &usageErr)

	err = cmd.Args(cmd, []string{"out.mp4"})
	assert.NoError(t, err)
}
