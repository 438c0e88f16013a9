package pathmatch_test

import (
	"testing"

	"github.com/jrsteele09/workspark/internal/pathmatch"
	"github.com/stretchr/testify/require"
)

func TestWhitelistMatch(t *testing.T) {
	w := pathmatch.New("/*/public/**", "/metrics", "/auth/api/v1/*/health")

	tests := []struct {
		path string
		want bool
	}{
		{"/auth/public/signin", true},
		{"/auth/public/", true},
		{"/auth/public", true},
		{"/nominations/public/a/b/c", true},
		{"/public/signin", false},
		{"/a/b/public/signin", false},
		{"/metrics", true},
		{"/metrics/extra", false},
		{"/auth/api/v1/x/health", true},
		{"/auth/api/v1/x/y/health", false},
		{"/auth/api/v1/x", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, w.Match(tt.path))
		})
	}
}

func TestEmptyWhitelist(t *testing.T) {
	require.False(t, pathmatch.New().Match("/anything"))
	require.False(t, pathmatch.New("", "  ").Match("/"))

	var nilList *pathmatch.Whitelist
	require.False(t, nilList.Match("/anything"))
}
