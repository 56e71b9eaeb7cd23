package storage_service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComponents(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{path: "", want: []string{}},
		{path: "/", want: []string{}},
		{path: "//", want: []string{}},
		{path: "/a", want: []string{"a"}},
		{path: "a/b", want: []string{"a", "b"}},
		{path: "/a//b/", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, Components(tt.path))
		})
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path       string
		wantParent string
		wantName   string
		wantErr    bool
	}{
		{path: "/file", wantParent: "/", wantName: "file"},
		{path: "/a/b/c", wantParent: "/a/b", wantName: "c"},
		{path: "a/b/", wantParent: "/a", wantName: "b"},
		{path: "/", wantErr: true},
		{path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			parent, name, err := SplitPath(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantParent, parent)
			require.Equal(t, tt.wantName, name)
		})
	}
}

func TestIsWithin(t *testing.T) {
	require.True(t, IsWithin("/a/b", "/a"))
	require.True(t, IsWithin("/a", "/a/"))
	require.True(t, IsWithin("/x", "/"))
	require.False(t, IsWithin("/ab", "/a"))
	require.False(t, IsWithin("/a", "/a/b"))
	require.Equal(t, "/a/b", Clean("a//b/"))
	require.Equal(t, "/", Clean(""))
}
