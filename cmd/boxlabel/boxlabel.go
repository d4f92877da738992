package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/boxlabel/pkg/imagex"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/pkg/voc"
	"github.com/cyclopcam/boxlabel/server"
	"github.com/cyclopcam/boxlabel/server/config"
	"github.com/cyclopcam/boxlabel/server/dataset"
	"github.com/cyclopcam/boxlabel/server/detect"
	"github.com/cyclopcam/boxlabel/server/render"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("boxlabel", "Annotate images with bounding boxes, and export them for YOLO training")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Settings file", Default: config.DefaultFilename})

	serveCmd := parser.NewCommand("serve", "Run the annotation server")
	port := serveCmd.String("p", "port", &argparse.Options{Help: "Listen address", Default: ":8080"})
	folder := serveCmd.String("f", "folder", &argparse.Options{Help: "Folder of images to annotate (overrides the settings file)", Default: ""})

	convertCmd := parser.NewCommand("convert", "Convert a folder of VOC XML files to YOLO label files")
	convertIn := convertCmd.String("i", "input", &argparse.Options{Help: "Folder of XML files", Required: true})
	convertOut := convertCmd.String("o", "output", &argparse.Options{Help: "Output folder (default is the input folder)", Default: ""})
	convertOBB := convertCmd.Flag("", "obb", &argparse.Options{Help: "Write rotated boxes as oriented bounding boxes (default from the settings file)", Default: false})
	convertNoOBB := convertCmd.Flag("", "no-obb", &argparse.Options{Help: "Write rotated boxes as axis aligned boxes, even if the settings file enables OBB", Default: false})
	convertWorkers := convertCmd.Int("w", "workers", &argparse.Options{Help: "Files converted concurrently (0 = number of CPUs)", Default: 0})

	detectCmd := parser.NewCommand("detect", "Run the configured detector on images that have no annotations")
	detectIn := detectCmd.String("i", "input", &argparse.Options{Help: "Image file or folder", Required: true})
	detectOverwrite := detectCmd.Flag("", "overwrite", &argparse.Options{Help: "Replace existing annotations", Default: false})

	previewCmd := parser.NewCommand("preview", "Draw the annotations of an image into a new image")
	previewIn := previewCmd.String("i", "input", &argparse.Options{Help: "Image file", Required: true})
	previewOut := previewCmd.String("o", "output", &argparse.Options{Help: "Output image (.png, .jpg or .webp)", Required: true})
	previewQuality := previewCmd.Int("q", "quality", &argparse.Options{Help: "JPEG or WebP quality (0 = default, lossless for WebP)", Default: 0})
	previewLabels := previewCmd.Flag("l", "labels", &argparse.Options{Help: "Draw labels", Default: false})

	checkCmd := parser.NewCommand("check", "Validate the settings file and print the category map")

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	switch {
	case serveCmd.Happened():
		err = serve(logger, *configFile, *port, *folder)
	case convertCmd.Happened():
		err = convert(logger, *configFile, *convertIn, *convertOut, *convertOBB, *convertNoOBB, *convertWorkers)
	case detectCmd.Happened():
		err = detectImages(logger, *configFile, *detectIn, *detectOverwrite)
	case previewCmd.Happened():
		err = preview(logger, *configFile, *previewIn, *previewOut, *previewQuality, *previewLabels)
	case checkCmd.Happened():
		err = check(logger, *configFile)
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func serve(logger logs.Log, configFile, port, folder string) error {
	if folder != "" {
		settings, err := config.LoadSettings(configFile)
		if err != nil {
			return err
		}
		settings.FolderPath = folder
		settings.FileIndex = 0
		if err := settings.Save(configFile); err != nil {
			return err
		}
	}
	srv, err := server.NewServer(logger, configFile)
	if err != nil {
		return err
	}
	srv.ListenForKillSignals()
	srv.StartAutoSave()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	err = srv.ListenHTTP(port)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	srv.Shutdown()
	return err
}

func loadSettings(configFile string) (*config.Settings, error) {
	settings, err := config.LoadSettings(configFile)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid settings in %v: %w", configFile, err)
	}
	return settings, nil
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// obbMode lets an explicit --obb or --no-obb override the settings file
func obbMode(setting, on, off bool) (bool, error) {
	switch {
	case on && off:
		return false, errors.New("--obb and --no-obb cannot be used together")
	case on:
		return true, nil
	case off:
		return false, nil
	}
	return setting, nil
}

func convert(logger logs.Log, configFile, input, output string, obbOn, obbOff bool, workers int) error {
	settings, err := loadSettings(configFile)
	if err != nil {
		return err
	}
	obb, err := obbMode(settings.YOLOOBBFormat, obbOn, obbOff)
	if err != nil {
		return err
	}
	cats, _, err := server.LoadCategories(settings)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return fmt.Errorf("No categories. Set model_path or categories in %v", configFile)
	}
	ctx, cancel := interruptible()
	defer cancel()
	summary, err := voc.ConvertFolder(ctx, logger, input, output, cats, voc.ConvertOptions{OBB: obb, Workers: workers})
	if err != nil {
		return err
	}
	logger.Infof("Converted %v files (%v lines), skipped %v files and %v objects", summary.Converted, summary.Lines, summary.Skipped, summary.SkippedObjects)
	for name, ferr := range summary.Failed {
		logger.Errorf("%v: %v", name, ferr)
	}
	if len(summary.Failed) != 0 {
		return fmt.Errorf("%v files failed", len(summary.Failed))
	}
	return nil
}

func detectImages(logger logs.Log, configFile, input string, overwrite bool) error {
	settings, err := loadSettings(configFile)
	if err != nil {
		return err
	}
	_, classes, err := server.LoadCategories(settings)
	if err != nil {
		return err
	}
	det, err := detect.New(context.Background(), logger, settings.Detector, classes)
	if err != nil {
		return err
	}
	if det == nil {
		return fmt.Errorf("No detector configured in %v", configFile)
	}
	defer det.Close()

	files := []string{input}
	if st, err := os.Stat(input); err == nil && st.IsDir() {
		names, err := imagex.ListMedia(input)
		if err != nil {
			return err
		}
		files = files[:0]
		for _, name := range names {
			if imagex.IsImage(name) {
				files = append(files, filepath.Join(input, name))
			}
		}
	}

	ctx, cancel := interruptible()
	defer cancel()
	params := nn.NewDetectionParams()
	if settings.Detector.Threshold > 0 {
		params.ProbabilityThreshold = settings.Detector.Threshold
	}
	for _, file := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		xmlPath := imagex.AnnotationPath(file, settings.SaveFolder)
		if _, err := os.Stat(xmlPath); err == nil && !overwrite {
			logger.Infof("%v already annotated", file)
			continue
		}
		img, err := imagex.Load(file)
		if err != nil {
			return err
		}
		boxes, err := detect.Boxes(ctx, logger, det, img, params)
		if err != nil {
			return fmt.Errorf("%v: %w", file, err)
		}
		b := img.Bounds()
		if err := dataset.SaveAnnotations(file, xmlPath, b.Dx(), b.Dy(), boxes); err != nil {
			return err
		}
		logger.Infof("%v: %v boxes", file, len(boxes))
	}
	return nil
}

func preview(logger logs.Log, configFile, input, output string, quality int, labels bool) error {
	settings, err := loadSettings(configFile)
	if err != nil {
		return err
	}
	format, err := render.FormatFromName(filepath.Ext(output))
	if err != nil {
		return err
	}
	img, err := imagex.Load(input)
	if err != nil {
		return err
	}
	boxes, err := dataset.LoadAnnotations(logger, imagex.AnnotationPath(input, settings.SaveFolder))
	if err != nil && len(boxes) == 0 {
		return err
	}
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	drawn := render.Draw(img, boxes, render.Options{Focus: -1, ShowLabels: labels})
	if err := render.Encode(out, drawn, format, quality); err != nil {
		out.Close()
		return err
	}
	logger.Infof("Drew %v boxes into %v", len(boxes), output)
	return out.Close()
}

func check(logger logs.Log, configFile string) error {
	settings, err := loadSettings(configFile)
	if err != nil {
		return err
	}
	cats, _, err := server.LoadCategories(settings)
	if err != nil {
		return err
	}
	logger.Infof("Settings in %v are valid", configFile)
	logger.Infof("Folder: %v", settings.FolderPath)
	logger.Infof("Detector: %v", strings.TrimSpace(settings.Detector.Kind+" "+settings.Detector.URL))
	for _, name := range cats.Classes() {
		logger.Infof("Class %v: %v", cats[name], name)
	}
	return nil
}
