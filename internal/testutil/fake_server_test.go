package testutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/models"
)

func TestFakeServer_RequiresToken(t *testing.T) {
	f := NewFakeServer(t, models.BackendJellyfin)
	f.SetAPIKey("key")

	resp, err := http.Get(f.URL + "/Users")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(f.URL + "/Users?api_key=key")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, f.Calls("/Users"))
}

func TestFakeServer_EmbyPrefix(t *testing.T) {
	f := NewFakeServer(t, models.BackendEmby)
	f.AddUser("u1", "alice", "pw", false)

	resp, err := http.Post(f.URL+"/emby/Users/AuthenticateByName", "application/json",
		strings.NewReader(`{"Username":"alice","Pw":"pw"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.Calls("/Users/AuthenticateByName"))
}

func TestSampleDataGenerator_Deterministic(t *testing.T) {
	a := NewSampleDataGeneratorWithSeed(7).Movie("lib", "eng", "spa")
	b := NewSampleDataGeneratorWithSeed(7).Movie("lib", "eng", "spa")
	assert.Equal(t, a, b)
	require.Len(t, a.MediaSources, 1)
	assert.Len(t, a.MediaSources[0].MediaStreams, 3)
}
