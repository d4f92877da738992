package www

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

func serve(router *httprouter.Router, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlePanics(t *testing.T) {
	log := logs.NewTestingLog(t)
	router := httprouter.New()
	Handle(log, router, "GET", "/bad", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		PanicBadRequestf("Bad %v", "thing")
	})
	Handle(log, router, "GET", "/missing", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		RequiredQueryInt(r, "index")
	})
	Handle(log, router, "GET", "/runtime", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var a []int
		_ = a[3]
	})
	Handle(log, router, "GET", "/conflict", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		PanicConflictf("Nothing to undo")
	})
	Handle(log, router, "GET", "/client", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		CheckClient(errors.New("bad label"))
	})
	Handle(log, router, "POST", "/json", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		v := struct{ X int }{}
		ReadJSON(w, r, &v, 1024)
		SendJSON(w, v)
	})

	rec := serve(router, "GET", "/bad", "")
	require.Equal(t, 400, rec.Code)
	require.Equal(t, "Bad thing", rec.Body.String())

	rec = serve(router, "GET", "/missing", "")
	require.Equal(t, 400, rec.Code)

	rec = serve(router, "GET", "/conflict", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Nothing to undo", rec.Body.String())

	rec = serve(router, "GET", "/client", "")
	require.Equal(t, 400, rec.Code)
	require.Equal(t, "bad label", rec.Body.String())

	rec = serve(router, "GET", "/runtime", "")
	require.Equal(t, 500, rec.Code)

	rec = serve(router, "POST", "/json", `{"X": 5}`)
	require.Equal(t, 200, rec.Code)
	require.Equal(t, `{"X":5}`, rec.Body.String())
	rec = serve(router, "POST", "/json", `{"X": `)
	require.Equal(t, 400, rec.Code)
}

func TestHandleLimited(t *testing.T) {
	router := httprouter.New()
	HandleLimited(logs.NewTestingLog(t), router, "GET", "/detect", 2, time.Minute, func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		SendOK(w)
	})
	require.Equal(t, 200, serve(router, "GET", "/detect", "").Code)
	require.Equal(t, 200, serve(router, "GET", "/detect", "").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(router, "GET", "/detect", "").Code)
}
