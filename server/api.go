package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/boxlabel/pkg/imagex"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/pkg/voc"
	"github.com/cyclopcam/boxlabel/pkg/www"
	"github.com/cyclopcam/boxlabel/server/dataset"
	"github.com/cyclopcam/boxlabel/server/render"
	"github.com/julienschmidt/httprouter"
)

const maxBodyBytes = 1024 * 1024

type viewportJSON struct {
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Fit    bool `json:"fit"` // Fit the content inside Width x Height, preserving aspect ratio

	// Videos only. The frame size, which the server cannot read itself.
	ContentWidth  int `json:"contentWidth"`
	ContentHeight int `json:"contentHeight"`
}

type labelJSON struct {
	Label string `json:"label"`
	Key   *int   `json:"key"` // Preset label shortcut (0..9), used when Label is empty
}

type folderJSON struct {
	Folder string `json:"folder"`
	Index  int    `json:"index"`
}

type convertJSON struct {
	Folder string `json:"folder"` // Defaults to the open folder
	Output string `json:"output"` // Defaults to the input folder
	OBB    *bool  `json:"obb"`    // Defaults to the session setting
}

type convertResultJSON struct {
	Converted      int               `json:"converted"`
	Skipped        int               `json:"skipped"`
	Lines          int               `json:"lines"`
	SkippedObjects int               `json:"skippedObjects"`
	Failed         map[string]string `json:"failed"`
}

func (s *Server) setupHttpRoutes() {
	r := s.httpRouter
	www.Handle(s.Log, r, "GET", "/api/ping", s.httpPing)
	www.Handle(s.Log, r, "GET", "/api/state", s.httpState)
	www.Handle(s.Log, r, "POST", "/api/viewport", s.httpViewport)
	www.Handle(s.Log, r, "POST", "/api/pointer/:action", s.httpPointer)
	www.Handle(s.Log, r, "POST", "/api/box/:index/label", s.httpSetLabel)
	www.Handle(s.Log, r, "POST", "/api/box/:index/delete", s.httpDeleteBox)
	www.Handle(s.Log, r, "POST", "/api/undo", s.httpUndo)
	www.Handle(s.Log, r, "POST", "/api/save", s.httpSave)
	www.Handle(s.Log, r, "POST", "/api/navigate/:cmd", s.httpNavigate)
	www.Handle(s.Log, r, "POST", "/api/folder", s.httpOpenFolder)
	www.Handle(s.Log, r, "POST", "/api/toggle/:flag", s.httpToggle)
	www.Handle(s.Log, r, "GET", "/api/preview", s.httpPreview)
	www.Handle(s.Log, r, "GET", "/api/ws", s.httpWebSocket)
	// Detection and conversion are expensive, so a runaway client must not hog the machine
	www.HandleLimited(s.Log, r, "POST", "/api/detect", 10, time.Minute, s.httpDetect)
	www.HandleLimited(s.Log, r, "POST", "/api/convert", 5, time.Minute, s.httpConvert)
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendText(w, "Greetings from boxlabel")
}

func (s *Server) httpState(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.lock.Lock()
	defer s.lock.Unlock()
	www.CacheNever(w)
	www.SendJSON(w, s.stateLocked())
}

func (s *Server) httpViewport(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	v := viewportJSON{}
	www.ReadJSON(w, r, &v, maxBodyBytes)
	if v.Width <= 0 || v.Height <= 0 {
		www.PanicBadRequestf("Viewport size must be positive, not %v x %v", v.Width, v.Height)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if v.ContentWidth > 0 && v.ContentHeight > 0 {
		s.mapper.SetContent(v.ContentWidth, v.ContentHeight)
	}
	if v.Fit {
		s.mapper.Fit(v.Width, v.Height)
	} else {
		s.mapper.SetScaled(v.Width, v.Height)
	}
	www.SendJSON(w, s.mapper)
}

// The pointer position is in display space, in the query (?x=&y=)
func (s *Server) httpPointer(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	p := nn.PointF{X: queryFloat(r, "x"), Y: queryFloat(r, "y")}
	s.lock.Lock()
	defer s.lock.Unlock()
	result, err := s.pointerLocked(params.ByName("action"), p)
	if err != nil {
		www.PanicNotFoundf("%v", err)
	}
	www.SendJSON(w, result)
}

func (s *Server) httpSetLabel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	index := pathInt(params, "index")
	req := labelJSON{}
	www.ReadJSON(w, r, &req, maxBodyBytes)
	s.lock.Lock()
	defer s.lock.Unlock()
	label := req.Label
	if label == "" && req.Key != nil {
		label = s.State.LabelForKey(*req.Key)
	}
	ev, err := s.engine.SetLabel(index, label)
	www.CheckClient(err)
	www.SendJSON(w, ev)
}

func (s *Server) httpDeleteBox(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	index := pathInt(params, "index")
	s.lock.Lock()
	defer s.lock.Unlock()
	if index < 0 || index >= s.engine.Len() {
		www.PanicNotFoundf("Box %v does not exist", index)
	}
	www.SendJSON(w, s.engine.Delete(index))
}

func (s *Server) httpUndo(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.lock.Lock()
	defer s.lock.Unlock()
	ev, ok := s.engine.Undo()
	if !ok {
		www.PanicConflictf("Nothing to undo")
	}
	www.SendJSON(w, ev)
}

func (s *Server) httpSave(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.current == "" {
		www.PanicConflictf("%v", errNoMedia)
	}
	www.Check(s.saveLocked())
	www.Check(s.saveSettingsLocked())
	www.SendOK(w)
}

func (s *Server) httpNavigate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cmd := dataset.Cmd(params.ByName("cmd"))
	switch cmd {
	case dataset.CmdNext, dataset.CmdPrev, dataset.CmdFirst, dataset.CmdLast, dataset.CmdSameIndex:
	default:
		www.PanicBadRequestf("Unknown navigation command '%v'", cmd)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.dataset == nil {
		www.PanicConflictf("No folder is open")
	}
	_, err := s.navigateLocked(r.Context(), cmd)
	www.Check(err)
	www.SendJSON(w, s.stateLocked())
}

func (s *Server) httpOpenFolder(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := folderJSON{}
	www.ReadJSON(w, r, &req, maxBodyBytes)
	if req.Folder == "" {
		www.PanicBadRequestf("Must specify folder")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.State.IsEdited() && s.current != "" {
		www.Check(s.saveLocked())
	}
	if err := s.openFolder(req.Folder, req.Index); err != nil {
		www.PanicBadRequestf("%v", err)
	}
	www.SendJSON(w, s.stateLocked())
}

func (s *Server) httpToggle(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var on bool
	switch params.ByName("flag") {
	case "obb":
		on = s.State.ToggleYOLOOBB()
	case "autosave":
		on = s.State.ToggleAutoSave()
	case "autodetect":
		on = s.State.ToggleAutoDetect()
	case "fps":
		on = s.State.ToggleShowFPS()
	default:
		www.PanicNotFoundf("Unknown flag '%v'", params.ByName("flag"))
	}
	www.SendJSON(w, map[string]bool{"on": on})
}

// Example: /api/preview?format=webp&quality=80&labels=1
func (s *Server) httpPreview(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := www.QueryValue(r, "format")
	if name == "" {
		name = "jpeg"
	}
	format, err := render.FormatFromName(name)
	www.CheckClient(err)
	labels := www.QueryValue(r, "labels") == "1"
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.current == "" || !imagex.IsImage(s.current) {
		www.PanicConflictf("No image is loaded")
	}
	b, err := s.previewLocked(format, www.QueryInt(r, "quality"), labels)
	www.Check(err)
	www.CacheNever(w)
	www.SendBytes(w, format.ContentType(), b)
}

func (s *Server) httpDetect(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.detector == nil {
		www.PanicConflictf("%v", errNoDetector)
	}
	if s.current == "" || !imagex.IsImage(s.current) {
		www.PanicConflictf("No image is loaded")
	}
	www.Check(s.detectLocked(r.Context()))
	www.SendJSON(w, s.stateLocked())
}

func (s *Server) httpConvert(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := convertJSON{}
	if r.ContentLength != 0 {
		www.ReadJSON(w, r, &req, maxBodyBytes)
	}
	s.lock.Lock()
	folder := req.Folder
	if folder == "" && s.dataset != nil {
		// Conversion reads annotations from disk, so flush the current file first
		if s.State.IsEdited() && s.current != "" {
			if err := s.saveLocked(); err != nil {
				s.lock.Unlock()
				www.Check(err)
			}
		}
		folder = s.annotationFolderLocked()
	}
	s.lock.Unlock()
	if folder == "" {
		www.PanicBadRequestf("Must specify folder")
	}
	obb := s.State.YOLOOBB()
	if req.OBB != nil {
		obb = *req.OBB
	}
	summary, err := s.Convert(r.Context(), folder, req.Output, obb)
	www.Check(err)
	res := convertResultJSON{
		Converted:      summary.Converted,
		Skipped:        summary.Skipped,
		Lines:          summary.Lines,
		SkippedObjects: summary.SkippedObjects,
		Failed:         map[string]string{},
	}
	for name, err := range summary.Failed {
		res.Failed[name] = err.Error()
	}
	www.SendJSON(w, res)
}

// Convert writes YOLO label files for every VOC file in folder
func (s *Server) Convert(ctx context.Context, folder, output string, obb bool) (*voc.Summary, error) {
	return voc.ConvertFolder(ctx, s.Log, folder, output, s.categories, voc.ConvertOptions{OBB: obb})
}

func (s *Server) annotationFolderLocked() string {
	if s.dataset.SaveFolder != "" {
		return s.dataset.SaveFolder
	}
	return s.dataset.Folder
}

func pathInt(params httprouter.Params, name string) int {
	v, err := strconv.Atoi(params.ByName(name))
	if err != nil {
		www.PanicBadRequestf("%v must be an integer", name)
	}
	return v
}

func queryFloat(r *http.Request, key string) float32 {
	v, err := strconv.ParseFloat(www.RequiredQueryValue(r, key), 32)
	if err != nil {
		www.PanicBadRequestf("%v must be a number", key)
	}
	return float32(v)
}
