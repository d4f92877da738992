package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/pkg/transform"
	"github.com/cyclopcam/boxlabel/pkg/viewport"
	"github.com/cyclopcam/boxlabel/pkg/voc"
	"github.com/cyclopcam/boxlabel/server/config"
	"github.com/cyclopcam/boxlabel/server/dataset"
	"github.com/cyclopcam/boxlabel/server/detect"
	"github.com/cyclopcam/boxlabel/server/log"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var _ transform.State = (*config.AppState)(nil)

// Server owns one annotation session (a folder of media, and the boxes of the current file),
// and exposes it over HTTP.
type Server struct {
	Log          logs.Log
	SettingsFile string
	Settings     *config.Settings
	State        *config.AppState

	detector   nn.ObjectDetector
	categories voc.CategoryMap

	// lock guards the session. Engine, mapper and dataset are single-owner, so every
	// handler takes this lock for the whole of its work.
	lock       sync.Mutex
	sessionLog *log.PrefixLogger
	mapper     *viewport.Mapper
	engine     *transform.Engine
	dataset    *dataset.Dataset
	current    string // Path of the loaded media file, or ""

	signalIn     chan os.Signal
	httpServer   *http.Server
	httpRouter   *httprouter.Router
	wsUpgrader   websocket.Upgrader
	shutdownOnce sync.Once
	stop         chan struct{}
	autoSaveDone chan struct{}
}

// NewServer loads settings, prepares the detector (if any), and opens the last used folder (if any)
func NewServer(logger logs.Log, settingsFile string) (*Server, error) {
	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid settings in %v: %w", settingsFile, err)
	}

	s := &Server{
		Log:          logger,
		SettingsFile: settingsFile,
		Settings:     settings,
		State:        config.NewAppState(settings),
		sessionLog:   log.NewPrefixLogger(logger, "Session:"),
		mapper:       viewport.NewMapper(),
		stop:         make(chan struct{}),
	}
	s.engine = transform.NewEngine(s.sessionLog, s.mapper, s.State)

	var classes []string
	s.categories, classes, err = LoadCategories(settings)
	if err != nil {
		return nil, err
	}

	s.detector, err = detect.New(context.Background(), logger, settings.Detector, classes)
	if err != nil {
		return nil, err
	}

	if settings.FolderPath != "" {
		if err := s.openFolder(settings.FolderPath, settings.FileIndex); err != nil {
			s.Log.Warnf("Unable to reopen %v: %v", settings.FolderPath, err)
		}
	}

	s.httpRouter = httprouter.New()
	s.setupHttpRoutes()
	return s, nil
}

// LoadCategories builds the label to YOLO class map from the model's class list (if any),
// with explicit categories from the settings taking precedence.
// The class list is returned too, for the detector.
func LoadCategories(settings *config.Settings) (voc.CategoryMap, []string, error) {
	cats := voc.CategoryMap{}
	classes := []string{}
	if settings.ModelPath != "" {
		var err error
		classes, err = nn.LoadClasses(settings.ModelPath)
		if err != nil {
			return nil, nil, fmt.Errorf("Error loading classes from %v: %w", settings.ModelPath, err)
		}
		cats = voc.CategoriesFromClasses(classes)
	}
	for label, id := range settings.Categories {
		cats[label] = id
	}
	return cats, classes, nil
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// StartAutoSave saves edited annotations on the configured period, until Shutdown.
// Auto save can be toggled at runtime, so the loop runs even while it is off.
func (s *Server) StartAutoSave() {
	period := s.State.AutoSavePeriod()
	s.autoSaveDone = make(chan struct{})
	go func() {
		defer close(s.autoSaveDone)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.autoSave()
			}
		}
	}()
	s.Log.Infof("Auto save every %v (on: %v)", period, s.State.AutoSave())
}

func (s *Server) autoSave() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.State.AutoSave() || !s.State.IsEdited() || s.current == "" {
		return
	}
	if err := s.saveLocked(); err != nil {
		s.sessionLog.Errorf("Auto save failed: %v", err)
	}
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

// Shutdown saves pending edits and settings, and stops the HTTP server
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.Log.Infof("Shutdown")
		if s.signalIn != nil {
			signal.Stop(s.signalIn)
			close(s.signalIn)
		}
		close(s.stop)
		if s.autoSaveDone != nil {
			<-s.autoSaveDone
		}
		s.Close()
		if s.httpServer != nil {
			s.Log.Infof("Closing HTTP server")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.Log.Warnf("Shutdown complete, with error: %v", err)
				return
			}
		}
		s.Log.Infof("Shutdown complete")
	})
}

// Close saves pending edits and the settings file, and releases the detector
func (s *Server) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.State.IsEdited() && s.current != "" {
		if err := s.saveLocked(); err != nil {
			s.sessionLog.Errorf("Failed to save on close: %v", err)
		}
	}
	if err := s.saveSettingsLocked(); err != nil {
		s.Log.Errorf("%v", err)
	}
	if s.detector != nil {
		s.detector.Close()
		s.detector = nil
	}
}

func (s *Server) saveSettingsLocked() error {
	s.State.Apply(s.Settings)
	if s.dataset != nil {
		s.Settings.FolderPath = s.dataset.Folder
		s.Settings.FileIndex = s.dataset.Index
	}
	return s.Settings.Save(s.SettingsFile)
}
