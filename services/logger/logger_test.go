package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestLogger_prepare(t *testing.T) {
	l := NewNop()
	boom := errors.New("boom")

	tests := []struct {
		name       string
		args       []interface{}
		wantErr    error
		wantExtras map[string]interface{}
	}{
		{name: "empty", args: nil, wantExtras: map[string]interface{}{}},
		{
			name:       "key values",
			args:       []interface{}{"submission", "s1", "score", 4},
			wantExtras: map[string]interface{}{"submission": "s1", "score": 4},
		},
		{
			name:       "lone error",
			args:       []interface{}{boom, "submission", "s1"},
			wantErr:    boom,
			wantExtras: map[string]interface{}{"submission": "s1"},
		},
		{
			name:       "keyed error",
			args:       []interface{}{"error", boom},
			wantErr:    boom,
			wantExtras: map[string]interface{}{},
		},
		{
			name:       "dangling value",
			args:       []interface{}{"s1"},
			wantExtras: map[string]interface{}{"extra": "s1"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err, extras := l.prepare(tc.args)
			assert.Equal(t, tc.wantErr, err)
			assert.Equal(t, tc.wantExtras, extras)
		})
	}
}
