package version

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestShort(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version = "1.2.0"
	Commit = "unknown"
	assert.Equal(t, "1.2.0", Short())

	Commit = "0123456789abcdef"
	assert.Equal(t, "1.2.0 (01234567)", Short())
	assert.Contains(t, String(), "commit: 01234567")
}

func TestJSON(t *testing.T) {
	var info Info
	require.NoError(t, json.Unmarshal([]byte(JSON()), &info))
	assert.Equal(t, Version, info.Version)
}

func TestUserAgent(t *testing.T) {
	assert.True(t, strings.HasPrefix(UserAgent(), ApplicationName+"/"))
}

func TestIsSnapshot(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	for v, want := range map[string]bool{
		"dev":                    true,
		"1.0.1-SNAPSHOT.abc1234": true,
		"1.0.0":                  false,
	} {
		Version = v
		assert.Equal(t, want, IsSnapshot(), v)
	}
}
