package www

import (
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"
)

// RunProtected runs handler, and turns a panic into an HTTP error response.
// HTTPError panics become their own status code. Anything else is a 500.
func RunProtected(log logs.Log, w http.ResponseWriter, r *http.Request, handler func()) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		switch e := rec.(type) {
		case HTTPError:
			log.Infof("Failed request %v: %v %v", r.URL.Path, e.Code, e.Message)
			SendError(w, e.Message, e.Code)
		case *HTTPError:
			log.Infof("Failed request %v: %v %v", r.URL.Path, e.Code, e.Message)
			SendError(w, e.Message, e.Code)
		case runtime.Error:
			log.Errorf("Runtime panic %v: %v\n%v", r.URL.Path, e, string(debug.Stack()))
			SendError(w, e.Error(), http.StatusInternalServerError)
		case error:
			log.Errorf("Panic error %v: %v", r.URL.Path, e)
			SendError(w, e.Error(), http.StatusInternalServerError)
		case string:
			log.Errorf("Panic string %v: %v", r.URL.Path, e)
			SendError(w, e, http.StatusInternalServerError)
		default:
			log.Errorf("Unrecognized panic %v: %v", r.URL.Path, rec)
			SendError(w, "Unrecognized panic", http.StatusInternalServerError)
		}
	}()
	handler()
}

// Handle adds a route whose handler runs inside RunProtected
func Handle(log logs.Log, router *httprouter.Router, method, path string, handle httprouter.Handle) {
	router.Handle(method, path, func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		RunProtected(log, w, r, func() { handle(w, r, p) })
	})
}

func QueryValue(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// RequiredQueryValue panics with a 400 if the query value is missing or empty
func RequiredQueryValue(r *http.Request, key string) string {
	v := QueryValue(r, key)
	if v == "" {
		PanicBadRequestf("Must specify %v", key)
	}
	return v
}

// RequiredQueryInt panics with a 400 if the query value is missing or not an integer
func RequiredQueryInt(r *http.Request, key string) int {
	i, err := strconv.Atoi(RequiredQueryValue(r, key))
	if err != nil {
		PanicBadRequestf("Must specify an integer for %v", key)
	}
	return i
}

// QueryInt returns zero if the value is missing or not an integer
func QueryInt(r *http.Request, key string) int {
	i, _ := strconv.Atoi(QueryValue(r, key))
	return i
}

// ReadJSON decodes the request body into obj. The body may not exceed maxBodyBytes.
func ReadJSON(w http.ResponseWriter, r *http.Request, obj any, maxBodyBytes int64) {
	if r.Body == nil {
		Panic(http.StatusBadRequest, "Request body is empty")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(obj); err != nil {
		Panic(http.StatusBadRequest, "Failed to decode JSON: "+err.Error())
	}
}

func CacheNever(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "max-age=0")
}

// SendError is http.Error without the trailing newline
func SendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	w.Write([]byte(message))
}

func SendJSON(w http.ResponseWriter, obj any) {
	b, err := json.Marshal(obj)
	Check(err)
	SendBytes(w, "application/json", b)
}

func SendText(w http.ResponseWriter, text string) {
	SendBytes(w, "text/plain", []byte(text))
}

func SendOK(w http.ResponseWriter) {
	SendText(w, "OK")
}

// SendBytes sends raw content, such as an encoded image
func SendBytes(w http.ResponseWriter, contentType string, content []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Write(content)
}
