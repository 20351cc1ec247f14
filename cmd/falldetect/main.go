// falldetect is the demo program for the detection pipeline.  It runs a
// YOLOv8 model over a single image or a live camera feed, optionally with a
// pose model feeding the fall detector.
//
// Example usage:
//
//	# image detection on a PC with an ONNX model
//	falldetect -model yolov8n.onnx -image test.jpg -output result.jpg
//
//	# live camera detection on the board with fall alarm
//	falldetect -model yolov8n.rknn -pose-model yolov8n-pose.rknn -camera 0
//
//	# batch detection over an image directory with pooled NPU backends
//	falldetect -model yolov8n.rknn -dir ./images -pool 3
package main

import (
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	falldetect "github.com/edgevision/go-falldetect"
	"github.com/edgevision/go-falldetect/backend"
	"github.com/edgevision/go-falldetect/backend/rknn"
	"github.com/edgevision/go-falldetect/camera"
	"github.com/edgevision/go-falldetect/detector"
	"github.com/edgevision/go-falldetect/fall"
	"github.com/edgevision/go-falldetect/render"
)

func main() {

	modelFile := flag.String("model", "", "Path to the detection model file (.onnx or .rknn)")
	poseModelFile := flag.String("pose-model", "", "Optional path to a pose model file enabling fall detection")
	imgFile := flag.String("image", "", "Run detection over a single image file")
	imgDir := flag.String("dir", "", "Run detection over a directory of images through a backend pool")
	poolSize := flag.Int("pool", 2, "Number of pooled NPU backends for directory mode")
	camSource := flag.Int("camera", -1, "Run detection over the given camera device number")
	labelFile := flag.String("labels", "", "Optional label file, one label per line, defaults to COCO")
	conf := flag.Float64("conf", 0.25, "Confidence threshold")
	nms := flag.Float64("nms", 0.45, "NMS IoU threshold")
	camWidth := flag.Int("width", 1280, "Camera capture width")
	camHeight := flag.Int("height", 720, "Camera capture height")
	outFile := flag.String("output", "result.jpg", "Output image file for image mode")
	show := flag.Bool("show", false, "Show a preview window in camera mode")
	fontFile := flag.String("font", "", "Optional TTF font for the fall alarm banner")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *modelFile == "" {
		log.Error("no model file specified")
		flag.Usage()
		os.Exit(1)
	}

	cfg := falldetect.COCOConfig()
	cfg.BoxThreshold = float32(*conf)
	cfg.NMSThreshold = float32(*nms)
	cfg.Validate(log)

	labels := falldetect.COCOLabels

	if *labelFile != "" {
		var err error
		labels, err = falldetect.LoadLabels(*labelFile)

		if err != nil {
			log.Error("error loading labels", "error", err)
			os.Exit(1)
		}
	}

	if *imgDir != "" {
		runDir(log, cfg, labels, *modelFile, *imgDir, *poolSize)
		return
	}

	be, err := backend.Open(*modelFile, cfg, rknn.CoreAuto)

	if err != nil {
		log.Error("error opening model", "model", *modelFile, "error", err)
		os.Exit(1)
	}

	det := detector.New(be, cfg, labels)
	defer det.Close()

	var poseDet *detector.PoseDetector
	var fallDet *fall.Detector

	if *poseModelFile != "" {

		poseCfg := falldetect.COCOConfig()
		poseCfg.ClassNum = 1
		poseCfg.BoxThreshold = 0.5
		poseCfg.NMSThreshold = 0.4

		poseBackend, err := backend.Open(*poseModelFile, poseCfg, rknn.CoreAuto)

		if err != nil {
			log.Error("error opening pose model", "model", *poseModelFile, "error", err)
			os.Exit(1)
		}

		poseDet = detector.NewPose(poseBackend, poseCfg, 17)
		defer poseDet.Close()

		fallCfg := fall.DefaultConfig()
		fallCfg.Validate(log)
		fallDet = fall.NewDetector(fallCfg)
	}

	var banner *render.Banner

	if *fontFile != "" {
		banner, err = render.NewBanner(*fontFile, 28)

		if err != nil {
			log.Error("error loading banner font", "font", *fontFile, "error", err)
			os.Exit(1)
		}

		defer banner.Close()
	}

	switch {
	case *imgFile != "":
		runImage(log, det, *imgFile, *outFile)

	case *camSource >= 0:
		runCamera(log, det, poseDet, fallDet, banner, *camSource, *camWidth, *camHeight, *show)

	default:
		log.Warn("specify an input source with -image, -dir or -camera")
		flag.Usage()
		os.Exit(1)
	}
}

// pooledBackend borrows a pool member per forward pass so directory workers
// share the NPU cores.  Closing is the pool owner's responsibility.
type pooledBackend struct {
	pool *rknn.Pool
}

func (p *pooledBackend) Run(canvas gocv.Mat) ([]falldetect.Tensor, error) {

	be := p.pool.Get()
	defer p.pool.Return(be)

	return be.Run(canvas)
}

func (p *pooledBackend) Close() error {
	return nil
}

// runDir detects objects in every image of a directory, spreading the work
// over a pool of NPU backends.
func runDir(log *slog.Logger, cfg falldetect.Config, labels []string,
	modelFile, dir string, poolSize int) {

	if !strings.EqualFold(filepath.Ext(modelFile), ".rknn") {
		log.Error("directory mode pools NPU backends and requires an RKNN model",
			"model", modelFile)
		os.Exit(1)
	}

	files, err := os.ReadDir(dir)

	if err != nil {
		log.Error("error reading image directory", "dir", dir, "error", err)
		os.Exit(1)
	}

	pool, err := rknn.NewPool(poolSize, modelFile, nil)

	if err != nil {
		log.Error("error creating backend pool", "error", err)
		os.Exit(1)
	}

	defer pool.Close()

	names := make(chan string, len(files))

	for _, file := range files {
		if !file.IsDir() {
			names <- filepath.Join(dir, file.Name())
		}
	}

	close(names)

	start := time.Now()

	var wg sync.WaitGroup

	for i := 0; i < pool.Size(); i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			det := detector.New(&pooledBackend{pool: pool}, cfg, labels)
			defer det.Close()

			for name := range names {

				img := gocv.IMRead(name, gocv.IMReadColor)

				if img.Empty() {
					log.Warn("skipping unreadable image", "image", name)
					img.Close()
					continue
				}

				dets, err := det.Detect(img)
				img.Close()

				if err != nil {
					log.Warn("detection failed", "image", name, "error", err)
					continue
				}

				if dets == nil {
					log.Info("no objects detected", "image", name)
					continue
				}

				log.Info("objects detected", "image", name, "count", len(dets.Items))
			}
		}()
	}

	wg.Wait()

	log.Info("directory processed", "dir", dir, "elapsed", time.Since(start).String())
}

// runImage detects objects in a single image file and writes an annotated
// copy to outFile.
func runImage(log *slog.Logger, det *detector.Detector, imgFile, outFile string) {

	img := gocv.IMRead(imgFile, gocv.IMReadColor)

	if img.Empty() {
		log.Error("error reading image", "image", imgFile)
		os.Exit(1)
	}

	defer img.Close()

	dets, err := det.Detect(img)

	if err != nil {
		log.Error("detection failed", "error", err)
		os.Exit(1)
	}

	if dets == nil {
		log.Info("no objects detected")
		return
	}

	log.Info("objects detected", "count", len(dets.Items))

	for _, d := range dets.Items {
		log.Info("detection", "label", d.Label, "score", fmt.Sprintf("%.2f", d.Score))
	}

	render.DetectionBoxes(&img, dets.Items, render.DefaultFont(), 2)

	if ok := gocv.IMWrite(outFile, img); !ok {
		log.Error("error writing output image", "output", outFile)
		os.Exit(1)
	}

	log.Info("result saved", "output", outFile)
}

// runCamera detects objects over a live camera feed, optionally feeding the
// fall detector with pose keypoints.
func runCamera(log *slog.Logger, det *detector.Detector,
	poseDet *detector.PoseDetector, fallDet *fall.Detector,
	banner *render.Banner, source, width, height int, show bool) {

	camCfg := camera.DefaultConfig()
	camCfg.Source = source
	camCfg.Width = width
	camCfg.Height = height

	cam := camera.New(camCfg, log)

	if err := cam.Start(); err != nil {
		log.Error("error starting camera", "error", err)
		os.Exit(1)
	}

	defer cam.Close()

	var window *gocv.Window

	if show {
		window = gocv.NewWindow("falldetect")
		defer window.Close()
	}

	log.Info("camera running", "source", source)

	fps := camera.NewFPSCounter(0)

	for {
		frame, ok := cam.Read()

		if !ok {
			continue
		}

		dets, err := det.Detect(frame)

		if err != nil {
			// a failed frame does not stop the loop, skip and continue
			log.Warn("detection failed, skipping frame", "error", err)
			frame.Close()
			continue
		}

		objects := 0

		if dets != nil {
			objects = len(dets.Items)
			render.DetectionBoxes(&frame, dets.Items, render.DefaultFont(), 2)
		}

		fps.Tick()

		gocv.PutText(&frame,
			fmt.Sprintf("FPS: %.1f | Objects: %d", fps.FPS(), objects),
			image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, render.Green, 2)

		if poseDet != nil {

			_, keyPoints, err := poseDet.Detect(frame)

			if err != nil {
				log.Warn("pose detection failed, skipping frame", "error", err)
				frame.Close()
				continue
			}

			if len(keyPoints) > 0 {

				render.PoseKeyPoints(&frame, keyPoints, 2)

				// fall detection tracks the first detected person
				isFall, angle := fallDet.Detect(keyPoints[0])

				if isFall {
					log.Warn("fall detected", "angle", fmt.Sprintf("%.1f", angle))

					if banner != nil {
						if err := banner.Draw(&frame, "FALL DETECTED", render.Red, render.White); err != nil {
							log.Warn("banner draw failed", "error", err)
						}
					} else {
						// below the FPS overlay
						gocv.PutText(&frame, "FALL DETECTED", image.Pt(10, 80),
							gocv.FontHersheySimplex, 1.2, render.Red, 3)
					}
				}
			}
		}

		if window != nil {
			window.IMShow(frame)

			if window.WaitKey(1) == 'q' {
				frame.Close()
				break
			}
		}

		frame.Close()
	}
}
