package publish

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bilgisen/newsroom/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graphCall struct {
	path    string
	form    map[string]string
	fileLen int
}

func graphServer(t *testing.T, status int, body string, calls *[]graphCall) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := graphCall{path: r.URL.Path, form: map[string]string{}}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			if f, _, err := r.FormFile("source"); err == nil {
				b, _ := io.ReadAll(f)
				call.fileLen = len(b)
			}
		} else {
			require.NoError(t, r.ParseForm())
		}
		for k := range r.Form {
			call.form[k] = r.Form.Get(k)
		}
		*calls = append(*calls, call)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPublisher(srv *httptest.Server) *FacebookPublisher {
	return NewFacebookPublisher(FacebookConfig{
		PageID:      "page1",
		AccessToken: "tok",
		APIVersion:  "v19.0",
		BaseURL:     srv.URL,
	})
}

func TestFacebookPhotoByURL(t *testing.T) {
	var calls []graphCall
	srv := graphServer(t, http.StatusOK, `{"id": "photo1", "post_id": "page1_42"}`, &calls)

	ref, err := newTestPublisher(srv).Publish(context.Background(), Post{
		Title:    "Headline",
		Message:  "Body",
		ImageRef: "https://cdn.example.com/a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "page1_42", ref)

	require.Len(t, calls, 1)
	assert.Equal(t, "/v19.0/page1/photos", calls[0].path)
	assert.Equal(t, "https://cdn.example.com/a.jpg", calls[0].form["url"])
	assert.Equal(t, "Headline\n\nBody", calls[0].form["caption"])
	assert.Equal(t, "tok", calls[0].form["access_token"])
}

func TestFacebookPhotoFromFile(t *testing.T) {
	var calls []graphCall
	srv := graphServer(t, http.StatusOK, `{"id": "photo2"}`, &calls)

	path := filepath.Join(t.TempDir(), "news.jpg")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	ref, err := newTestPublisher(srv).Publish(context.Background(), Post{Title: "T", ImageRef: path})
	require.NoError(t, err)
	assert.Equal(t, "photo2", ref)

	require.Len(t, calls, 1)
	assert.Equal(t, "/v19.0/page1/photos", calls[0].path)
	assert.Equal(t, 10, calls[0].fileLen)
	assert.Equal(t, "T", calls[0].form["caption"])
}

func TestFacebookTextPost(t *testing.T) {
	var calls []graphCall
	srv := graphServer(t, http.StatusOK, `{"id": "page1_7"}`, &calls)

	ref, err := newTestPublisher(srv).Publish(context.Background(), Post{Message: "just text"})
	require.NoError(t, err)
	assert.Equal(t, "page1_7", ref)
	assert.Equal(t, "/v19.0/page1/feed", calls[0].path)
	assert.Equal(t, "just text", calls[0].form["message"])
}

func TestFacebookFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"graph error", http.StatusBadRequest, `{"error": {"message": "Invalid token", "type": "OAuthException", "code": 190}}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"no id", http.StatusOK, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []graphCall
			srv := graphServer(t, tt.status, tt.body, &calls)

			_, err := newTestPublisher(srv).Publish(context.Background(), Post{Message: "m"})
			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "facebook", perr.Provider)
			assert.Equal(t, tt.status, perr.Status)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		var calls []graphCall
		srv := graphServer(t, http.StatusOK, `{"id": "x"}`, &calls)

		_, err := newTestPublisher(srv).Publish(context.Background(), Post{ImageRef: filepath.Join(t.TempDir(), "gone.jpg")})
		var perr *Error
		require.True(t, errors.As(err, &perr))
		assert.Empty(t, calls)
	})
}

func TestOfflinePublisher(t *testing.T) {
	p := NewOfflinePublisher()

	ref, err := p.Publish(context.Background(), Post{Title: "t"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "offline-"))
	again, err := p.Publish(context.Background(), Post{Title: "t"})
	require.NoError(t, err)
	assert.NotEqual(t, ref, again)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Publish(ctx, Post{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSelectsProvider(t *testing.T) {
	p, err := New(&config.Config{PublishProvider: "offline"})
	require.NoError(t, err)
	assert.IsType(t, &OfflinePublisher{}, p)

	p, err = New(&config.Config{PublishProvider: "facebook", FacebookPageID: "1", FacebookAccessToken: "t"})
	require.NoError(t, err)
	assert.IsType(t, &FacebookPublisher{}, p)

	_, err = New(&config.Config{PublishProvider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "a\n\nb", Post{Title: "a", Message: "b"}.Caption())
	assert.Equal(t, "a", Post{Title: "a"}.Caption())
	assert.Equal(t, "b", Post{Message: "b"}.Caption())
}
