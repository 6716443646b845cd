package instagram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"profilegrab/pkg/browser"
	"profilegrab/pkg/models"
	"profilegrab/pkg/platform"
	"profilegrab/pkg/session"
)

const graphqlURL = "https://www.instagram.com/graphql/query"

const timelineBody = `{"data":{"xdt_api__v1__feed__user_timeline_graphql_connection":{"edges":[
 {"node":{"code":"SINGLE","taken_at":1700000000,"image_versions2":{"candidates":[{"url":"https://cdn.example.com/a.jpg?x=1"},{"url":"https://cdn.example.com/a_small.jpg"}]}}},
 {"node":{"code":"CAROUSEL","taken_at":1700000100,"carousel_media":[
   {"taken_at":1700000101,"image_versions2":{"candidates":[{"url":"https://cdn.example.com/b1.jpg"}]}},
   {"image_versions2":{"candidates":[{"url":"https://cdn.example.com/b2.jpg"}]}}
 ]}},
 {"node":{"code":"NOMEDIA","image_versions2":{"candidates":[]}}}
]}}}`

const profileBody = `{"data":{"user":{"full_name":"  Alice A  ","id":"1234","profile_pic_url":"https://cdn.example.com/pic.jpg"}}}`

func newAdapter() *Adapter {
	return New(platform.Options{}, nil)
}

func TestCollectRecords(t *testing.T) {
	a := newAdapter()
	exchanges := []browser.Exchange{
		browser.JSONExchange(graphqlURL, "PolarisProfilePostsQuery", timelineBody),
		browser.JSONExchange(graphqlURL, "PolarisProfilePostsTabContentQuery_connection", `{"data": {`),
		browser.JSONExchange(graphqlURL, "SomethingElse", timelineBody),
	}

	posts := a.CollectRecords(exchanges)
	require.Len(t, posts, 2)
	assert.Equal(t, "https://www.instagram.com/p/SINGLE/", posts[0].URL)

	records := a.ExtractMediaRefs(posts)
	assert.Equal(t, []models.MediaRecord{
		{MediaURL: "https://cdn.example.com/a.jpg?x=1", PostURL: "https://www.instagram.com/p/SINGLE/", TakenAt: 1700000000},
		{MediaURL: "https://cdn.example.com/b1.jpg", PostURL: "https://www.instagram.com/p/CAROUSEL/", TakenAt: 1700000101},
		{MediaURL: "https://cdn.example.com/b2.jpg", PostURL: "https://www.instagram.com/p/CAROUSEL/", TakenAt: 1700000100},
	}, records)
}

func TestCollectRecordsIgnoresIncompleteExchanges(t *testing.T) {
	ex := browser.JSONExchange(graphqlURL, "PolarisProfilePostsQuery", timelineBody)
	ex.Response = nil

	assert.Empty(t, newAdapter().CollectRecords([]browser.Exchange{ex}))
}

func TestLoadProfile(t *testing.T) {
	s := browser.NewMockSession()
	s.OnNavigate["https://www.instagram.com/alice/"] = []browser.Exchange{
		browser.JSONExchange(graphqlURL, "PolarisProfilePageContentQuery", `{"data":{"viewer":{}}}`),
		browser.JSONExchange(graphqlURL, "PolarisProfilePageContentQuery", profileBody),
	}
	a := newAdapter()
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, a.ProfileURL("alice")))

	p, err := a.LoadProfile(ctx, s, "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/alice/", p.URL)
	assert.Equal(t, "Alice A", p.Name)
	assert.Equal(t, "1234", p.ID)
	assert.Equal(t, "https://cdn.example.com/pic.jpg", p.ProfilePicURL)
	assert.NotEmpty(t, p.Timestamp)
}

func TestLoadProfileNotFound(t *testing.T) {
	s := browser.NewMockSession()
	_, err := newAdapter().LoadProfile(context.Background(), s, "ghost")
	assert.ErrorIs(t, err, platform.ErrProfileNotFound)
}

func TestAuthenticate(t *testing.T) {
	a := newAdapter()
	s := browser.NewMockSession()
	ctx := context.Background()

	err := a.Authenticate(ctx, s, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Empty(t, s.Navigations())

	creds := &session.Credentials{
		Platform: models.Instagram,
		Cookies:  []session.Cookie{{Name: "sessionid", Value: "secret", Domain: ".instagram.com", Path: "/"}},
	}
	require.NoError(t, a.Authenticate(ctx, s, creds))
	assert.Equal(t, []string{"https://www.instagram.com/"}, s.Navigations())
	assert.Len(t, s.InjectedCookies(), 1)
	assert.Equal(t, []string{Scope}, a.Scopes())
}
