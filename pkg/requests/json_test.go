package requests

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type echo struct {
	Method   string `json:"method"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
	Extra    string `json:"extra"`
}

func TestRequestJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			http.Error(w, "nope", http.StatusTeapot)
			return
		}
		in := map[string]string{}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&in)
		}
		json.NewEncoder(w).Encode(echo{Method: r.Method, Name: in["name"]})
	}))
	defer srv.Close()

	resp, err := RequestJSON[echo](context.Background(), "POST", srv.URL, map[string]string{"name": "cat"})
	require.NoError(t, err)
	require.Equal(t, "POST", resp.Method)
	require.Equal(t, "cat", resp.Name)

	resp, err = RequestJSON[echo](context.Background(), "GET", srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, "GET", resp.Method)

	_, err = RequestJSON[echo](context.Background(), "GET", srv.URL+"/fail", nil)
	require.ErrorContains(t, err, "nope")
}

func TestPostMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(f)
		json.NewEncoder(w).Encode(echo{Method: r.Method, Filename: hdr.Filename, Size: len(b), Extra: r.FormValue("threshold")})
	}))
	defer srv.Close()

	resp, err := PostMultipart[echo](context.Background(), srv.URL, "image", "a.jpg", []byte("12345"), map[string]string{"threshold": "0.5"})
	require.NoError(t, err)
	require.Equal(t, "a.jpg", resp.Filename)
	require.Equal(t, 5, resp.Size)
	require.Equal(t, "0.5", resp.Extra)

	_, err = PostMultipart[echo](context.Background(), srv.URL, "wrong", "a.jpg", []byte("1"), nil)
	require.Error(t, err)
}
