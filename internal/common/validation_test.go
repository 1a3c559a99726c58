package common

import (
	"testing"

	"personasim/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown"}

	tests := []struct {
		name      string
		format    string
		supported []string
		want      string
		wantErr   string
	}{
		{name: "json", format: "json", supported: supported, want: "json"},
		{name: "upper case", format: "JSON", supported: supported, want: "json"},
		{name: "md alias", format: "md", supported: supported, want: "markdown"},
		{name: "txt alias", format: " txt ", supported: supported, want: "text"},
		{name: "xml", format: "xml", supported: supported,
			wantErr: "unsupported output format 'xml'. Supported formats: [json text markdown]"},
		{name: "empty", format: "", supported: supported,
			wantErr: "unsupported output format ''. Supported formats: [json text markdown]"},
		{name: "no restrictions", format: "xml", want: "xml"},
		{name: "single format rejects others", format: "text", supported: []string{"json"},
			wantErr: "unsupported output format 'text'. Supported formats: [json]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeOutputFormat(tt.format, tt.supported)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, errors.ErrorTypeInput, errors.TypeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func BenchmarkNormalizeOutputFormat(b *testing.B) {
	supported := []string{"json", "text", "markdown"}
	for b.Loop() {
		_, _ = NormalizeOutputFormat("md", supported)
	}
}
