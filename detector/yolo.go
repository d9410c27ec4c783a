package detector

import (
	"errors"
	"fmt"
	"github.com/swdee/go-framewatch/postprocess"
	"github.com/swdee/go-framewatch/preprocess"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"sync"
)

// Task is the kind of YOLO model loaded
type Task string

const (
	// TaskDetect is an object detection model
	TaskDetect Task = "detect"
	// TaskPose is a pose estimation model outputting keypoints
	TaskPose Task = "pose"
)

// Config describes the model to load
type Config struct {
	// Model is the path to the YOLOv8 ONNX file
	Model string `yaml:"model"`
	// Labels is an optional text file of class names, one per line
	Labels string `yaml:"labels"`
	Task   Task   `yaml:"task"`
	// InputSize is the square model input resolution
	InputSize int `yaml:"input_size"`
	// Classes overrides the number of classes the model was trained with
	Classes int `yaml:"classes"`
	// Pool is the number of network instances
	Pool    int    `yaml:"pool"`
	Backend string `yaml:"backend"`
	Target  string `yaml:"target"`
	// Slice enables sliced inference when set
	Slice *SliceConfig `yaml:"slice"`
}

// Validate fills in defaults and checks the configuration
func (c *Config) Validate() error {

	if c.Model == "" {
		return errors.New("detector model file not set")
	}

	switch c.Task {
	case "":
		c.Task = TaskDetect
	case TaskDetect, TaskPose:
	default:
		return fmt.Errorf("unknown detector task %q", c.Task)
	}

	if c.InputSize <= 0 {
		c.InputSize = 640
	}

	if c.Pool <= 0 {
		c.Pool = 1
	}

	if c.Slice != nil {
		if err := c.Slice.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// params returns the post processing parameters for the task
func (c *Config) params() postprocess.YOLOv8Params {

	p := postprocess.YOLOv8COCOParams()

	if c.Task == TaskPose {
		p = postprocess.YOLOv8PoseCOCOParams()
	}

	if c.Classes > 0 {
		p.ObjectClassNum = c.Classes
	}

	return p
}

// YOLO runs YOLOv8 ONNX models with the OpenCV DNN module
type YOLO struct {
	pool   *NetPool
	post   *postprocess.YOLOv8
	labels []string
	input  image.Point

	mu       sync.Mutex
	// resizers holds one letterbox resizer per source size, sliced
	// inference alternates between the tile and full frame sizes
	resizers map[image.Point]*preprocess.Resizer
	closed   bool
}

// maxResizers bounds the resizer cache across resolution changes
const maxResizers = 8

// New returns the detector described by cfg, a YOLO model optionally
// wrapped for sliced inference
func New(cfg Config) (Detector, error) {

	y, err := NewYOLO(cfg)

	if err != nil {
		return nil, err
	}

	if cfg.Slice == nil {
		return y, nil
	}

	s, err := NewSliced(y, *cfg.Slice)

	if err != nil {
		y.Close()
		return nil, err
	}

	return s, nil
}

// NewYOLO loads the model described by cfg
func NewYOLO(cfg Config) (*YOLO, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var labels []string

	if cfg.Labels != "" {
		var err error
		labels, err = postprocess.LoadLabels(cfg.Labels)

		if err != nil {
			return nil, fmt.Errorf("error loading labels: %w", err)
		}
	}

	pool, err := NewNetPool(cfg.Pool, cfg.Model, cfg.Backend, cfg.Target)

	if err != nil {
		return nil, fmt.Errorf("error creating network pool: %w", err)
	}

	return &YOLO{
		pool:   pool,
		post:   postprocess.NewYOLOv8(cfg.params()),
		labels: labels,
		input:  image.Pt(cfg.InputSize, cfg.InputSize),

		resizers: make(map[image.Point]*preprocess.Resizer),
	}, nil
}

// Labels returns the class names loaded with the model
func (y *YOLO) Labels() []string {
	return y.labels
}

// Detect runs inference on a BGR image
func (y *YOLO) Detect(img gocv.Mat, conf, iou float32) ([]postprocess.Detection, error) {

	if img.Empty() {
		return nil, errors.New("empty image")
	}

	blob, lb, err := y.prepare(img)

	if err != nil {
		return nil, err
	}

	defer blob.Close()

	net := y.pool.Get()
	defer y.pool.Return(net)

	net.SetInput(blob, "")
	out := net.Forward("")
	defer out.Close()

	dims := out.Size()

	if len(dims) != 3 || dims[1] != y.post.Rows() {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	data, err := out.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading output tensor: %w", err)
	}

	dets, err := y.post.Decode(data, dims[2], lb, conf, iou)

	if err != nil {
		return nil, fmt.Errorf("error decoding output: %w", err)
	}

	return postprocess.WithClassNames(dets, y.labels), nil
}

// prepare letterboxes the image into a normalised RGB input blob
func (y *YOLO) prepare(img gocv.Mat) (gocv.Mat, postprocess.Letterbox, error) {

	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return gocv.Mat{}, nil, errors.New("detector closed")
	}

	r := y.resizerFor(image.Pt(img.Cols(), img.Rows()))

	padded := gocv.NewMat()
	defer padded.Close()

	r.LetterBoxResize(img, &padded, color.RGBA{R: 114, G: 114, B: 114, A: 255})

	blob := gocv.BlobFromImage(padded, 1.0/255.0, y.input,
		gocv.NewScalar(0, 0, 0, 0), true, false)

	return blob, r, nil
}

// resizerFor returns the cached resizer for the source size, creating it on
// first use.  y.mu must be held.
func (y *YOLO) resizerFor(size image.Point) *preprocess.Resizer {

	if r, ok := y.resizers[size]; ok {
		return r
	}

	if y.resizers == nil {
		y.resizers = make(map[image.Point]*preprocess.Resizer)
	}

	if len(y.resizers) >= maxResizers {
		y.closeResizers()
	}

	r := preprocess.NewResizer(size.X, size.Y, y.input.X, y.input.Y)
	y.resizers[size] = r

	return r
}

// closeResizers releases and forgets all cached resizers.  y.mu must be held.
func (y *YOLO) closeResizers() error {

	var errs []error

	for size, r := range y.resizers {
		errs = append(errs, r.Close())
		delete(y.resizers, size)
	}

	return errors.Join(errs...)
}

// Close releases the networks
func (y *YOLO) Close() error {

	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return nil
	}

	y.closed = true
	y.pool.Close()

	return y.closeResizers()
}
