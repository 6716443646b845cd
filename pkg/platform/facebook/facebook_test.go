package facebook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"profilegrab/pkg/browser"
	"profilegrab/pkg/models"
	"profilegrab/pkg/platform"
)

const graphqlURL = "https://www.facebook.com/api/graphql/"

const photosBody = `{"data":{"node":{"pageItems":{"edges":[
 {"node":{"id":"UzoxMDAwMTIzNDU6Njc4","url":"https://www.facebook.com/photo.php?fbid=111&set=a.1&type=3","node":{"viewer_image":{"uri":"https://scontent.example.com/p111.jpg?_nc=1"}}}},
 {"node":{"id":"x","url":"https://www.facebook.com/photo.php?fbid=222","node":{"viewer_image":{"uri":"https://scontent.example.com/p222.jpg"}}}},
 {"node":{"id":"y","url":"https://www.facebook.com/photo.php?fbid=333","node":{}}}
]}}}}`

func noWait(context.Context, time.Duration) error { return nil }

func newAdapter(attempts int) *Adapter {
	return New(platform.Options{Sleep: noWait, ProfileAttempts: attempts}, nil)
}

func photosExchange() browser.Exchange {
	return browser.JSONExchange(graphqlURL, "ProfileCometAppCollectionPhotosRendererPaginationQuery", photosBody)
}

func TestCollectRecords(t *testing.T) {
	a := newAdapter(1)
	records := a.ExtractMediaRefs(a.CollectRecords([]browser.Exchange{
		photosExchange(),
		browser.JSONExchange(graphqlURL, "ProfileCometAppCollectionPhotosRendererPaginationQuery", `{"errors":[]`),
	}))

	assert.Equal(t, []models.MediaRecord{
		{MediaURL: "https://scontent.example.com/p111.jpg?_nc=1", PostURL: "https://www.facebook.com/photo.php?fbid=111"},
		{MediaURL: "https://scontent.example.com/p222.jpg", PostURL: "https://www.facebook.com/photo.php?fbid=222"},
	}, records)
	for _, r := range records {
		assert.False(t, r.HasTimestamp())
	}
}

func TestNameFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"(3) Jane Doe | Facebook", "Jane Doe"},
		{"Jane Doe | Facebook", "Jane Doe"},
		{"Jane Doe (JD) | Facebook", "Jane Doe"},
		{"Jane Doe", "Jane Doe"},
	}
	for _, tt := range tests {
		if got := NameFromTitle(tt.title); got != tt.want {
			t.Errorf("NameFromTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestDecodeUserID(t *testing.T) {
	id, err := DecodeUserID("UzoxMDAwMTIzNDU6Njc4")
	require.NoError(t, err)
	assert.Equal(t, "100012345", id)

	_, err = DecodeUserID("!!!")
	assert.Error(t, err)
	_, err = DecodeUserID("bm9jb2xvbg==") // "nocolon"
	assert.Error(t, err)
}

func TestLoadProfileFromHeading(t *testing.T) {
	a := newAdapter(1)
	s := browser.NewMockSession()
	s.OnNavigate["https://www.facebook.com/jane/photos_by"] = []browser.Exchange{photosExchange()}
	s.Pages["https://www.facebook.com/jane/photos_by"] = `<html><body><h1> Jane Doe (Janie) </h1></body></html>`
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, a.ProfileURL("jane")))

	p, err := a.LoadProfile(ctx, s, "jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, "100012345", p.ID)
	assert.Equal(t, "https://www.facebook.com/jane/photos_by", p.URL)
	assert.Equal(t, 1, s.Scrolls())
}

func TestLoadProfileRetriesUntilTrafficArrives(t *testing.T) {
	a := newAdapter(3)
	s := browser.NewMockSession()
	s.Batches = [][]browser.Exchange{nil, {photosExchange()}}
	s.Titles["https://www.facebook.com/jane/photos_by"] = "(1) Jane Doe | Facebook"
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, a.ProfileURL("jane")))

	p, err := a.LoadProfile(ctx, s, "jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, 2, s.Scrolls())
}

func TestLoadProfileGivesUp(t *testing.T) {
	a := newAdapter(2)
	s := browser.NewMockSession()

	_, err := a.LoadProfile(context.Background(), s, "nobody")
	assert.ErrorIs(t, err, platform.ErrProfileNotFound)
	assert.Equal(t, 2, s.Scrolls())
}

func TestHarvestDOM(t *testing.T) {
	a := newAdapter(1)
	s := browser.NewMockSession()
	s.Pages["https://www.facebook.com/jane/photos_by"] = `<html><body>
<a href="https://www.facebook.com/photo.php?fbid=111&set=a.1">one</a>
<a href="/photo.php?fbid=111&set=a.2">one again</a>
<a href="/photo.php?fbid=222">two</a>
<a href="https://www.facebook.com/jane/about">about</a>
<a href="https://www.facebook.com/photo.php?fbid=abc">bad</a>
</body></html>`
	s.Pages["https://www.facebook.com/photo.php?fbid=111"] = `<img data-visualcompletion="media-vc-image" src="https://scontent.example.com/full111.jpg">`
	s.Pages["https://www.facebook.com/photo.php?fbid=222"] = `<img src="https://scontent.example.com/thumb.jpg">`

	records, err := a.HarvestDOM(context.Background(), s, "jane")
	require.NoError(t, err)
	assert.Equal(t, []models.MediaRecord{
		{MediaURL: "https://scontent.example.com/full111.jpg", PostURL: "https://www.facebook.com/photo.php?fbid=111"},
	}, records)
	assert.Equal(t, []string{
		"https://www.facebook.com/jane/photos_by",
		"https://www.facebook.com/photo.php?fbid=111",
		"https://www.facebook.com/photo.php?fbid=222",
	}, s.Navigations())
}
