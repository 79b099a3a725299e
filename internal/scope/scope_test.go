package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_AllowsEverything(t *testing.T) {
	s := Local()
	assert.Equal(t, "local", s.Name())
	assert.True(t, s.UserInScope("S-1-5-21-1"))
	assert.True(t, s.PathInScope(`HKLM\SOFTWARE\Microsoft`))
	assert.True(t, s.PathInScope(`C:\Users\bob\file.txt`))
}

func TestNew_UserFilter(t *testing.T) {
	s, err := New(WithName("bob-only"), WithUsers("s-1-5-21-1000"))
	require.NoError(t, err)

	assert.Equal(t, "bob-only", s.String())
	assert.True(t, s.UserInScope("S-1-5-21-1000"))
	assert.False(t, s.UserInScope("S-1-5-21-1001"))
}

func TestNew_PathGlobs(t *testing.T) {
	s, err := New(
		WithInclude(`C:\Users\*\AppData\**`, `HKU\**`),
		WithExclude(`**\desktop.ini`),
	)
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{`C:\Users\Bob\AppData\Roaming\Startup\evil.bat`, true},
		{`c:\users\bob\appdata\roaming\startup\desktop.ini`, false},
		{`C:\Users\Bob\Documents\notes.txt`, false},
		{`HKU\S-1-5-21-1000\Environment`, true},
		{`HKLM\SOFTWARE\Run`, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, s.PathInScope(tt.path))
		})
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(WithInclude(`C:\[unterminated`))
	assert.Error(t, err)
}
