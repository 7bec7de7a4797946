package telegram

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igrelay/pkg/config"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/models"
	"igrelay/pkg/retry"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.TelegramConfig{
		Token:             "123456789:TESTTOKEN",
		APIBaseURL:        baseURL,
		RequestTimeout:    5 * time.Second,
		MessagesPerMinute: 1000,
		MaxRetries:        3,
	}, nil)
}

func TestSendPhoto(t *testing.T) {
	var gotPath string
	var gotChatID, gotCaption string
	var gotFileName string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotChatID = r.FormValue("chat_id")
		gotCaption = r.FormValue("caption")

		file, header, err := r.FormFile("photo")
		require.NoError(t, err)
		defer file.Close()
		gotFileName = header.Filename

		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SendPhoto("chat1", InputFile{Name: "abc123.0.jpg", Data: []byte("payload")}, "hello")
	require.NoError(t, err)

	assert.Equal(t, "/bot123456789:TESTTOKEN/sendPhoto", gotPath)
	assert.Equal(t, "chat1", gotChatID)
	assert.Equal(t, "hello", gotCaption)
	assert.Equal(t, "abc123.0.jpg", gotFileName)
}

func TestSendVideo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123456789:TESTTOKEN/sendVideo", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("video")
		require.NoError(t, err)
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SendVideo("chat1", InputFile{Name: "abc123.0.mp4", Data: []byte("payload")}, "")
	require.NoError(t, err)
}

func TestSendMediaGroup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var descriptors []struct {
			Type    string `json:"type"`
			Media   string `json:"media"`
			Caption string `json:"caption"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("media")), &descriptors))
		require.Len(t, descriptors, 2)

		assert.Equal(t, "photo", descriptors[0].Type)
		assert.Equal(t, "attach://file0", descriptors[0].Media)
		assert.Equal(t, "album caption", descriptors[0].Caption)

		assert.Equal(t, "video", descriptors[1].Type)
		assert.Equal(t, "attach://file1", descriptors[1].Media)
		assert.Empty(t, descriptors[1].Caption)

		for _, field := range []string{"file0", "file1"} {
			_, _, err := r.FormFile(field)
			require.NoError(t, err, "missing uploaded file %s", field)
		}

		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SendMediaGroup("chat1", []InputMedia{
		{Kind: models.MediaKindImage, File: InputFile{Name: "abc123.0.jpg", Data: []byte("a")}, Caption: "album caption"},
		{Kind: models.MediaKindVideo, File: InputFile{Name: "abc123.1.mp4", Data: []byte("b")}, Caption: ""},
	})
	require.NoError(t, err)
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		errorCode    int
		expectedType errs.ErrorType
	}{
		{"bad request", 400, errs.ErrorTypeDelivery},
		{"unauthorized", 401, errs.ErrorTypeAuth},
		{"forbidden", 403, errs.ErrorTypeAuth},
		{"not found", 404, errs.ErrorTypeNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			requests := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				w.WriteHeader(test.errorCode)
				fmt.Fprintf(w, `{"ok":false,"error_code":%d,"description":"boom"}`, test.errorCode)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			err := client.SendPhoto("chat1", InputFile{Name: "a.jpg", Data: []byte("x")}, "")
			require.Error(t, err)

			var apiErr *errs.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, test.expectedType, apiErr.Type)
			assert.Equal(t, test.errorCode, apiErr.Code)

			// None of these are transient; exactly one attempt
			assert.Equal(t, 1, requests)
		})
	}
}

func TestRetryRebuildsRequestBody(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		// Every attempt must carry the full multipart body
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("photo")
		require.NoError(t, err)
		file.Close()

		if requests == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"ok":false,"error_code":500,"description":"try again"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.maxRetries = 2
	client.backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	err := client.SendPhoto("chat1", InputFile{Name: "a.jpg", Data: []byte("payload")}, "hi")
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway error</html>`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SendPhoto("chat1", InputFile{Name: "a.jpg", Data: []byte("x")}, "")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
}
