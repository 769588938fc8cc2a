// Package camera provides the gocv-backed frame source for the capture
// session and the overlay renderer used for preview frames.
package camera

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"invoicecam/internal/config"
	"invoicecam/internal/logger"
	"invoicecam/internal/service/capture"

	"gocv.io/x/gocv"
)

// Source opens the configured capture device or stream URL.
type Source struct {
	device  string
	width   int
	height  int
	quality int
	logger  *logger.Logger
}

// NewSource creates a Source from the camera settings in config.
func NewSource(config *config.Config, logger *logger.Logger) *Source {
	return &Source{
		device:  config.CameraDevice,
		width:   config.FrameWidth,
		height:  config.FrameHeight,
		quality: config.JPEGQuality,
		logger:  logger,
	}
}

// Open opens the device at the ideal resolution and proves playback by
// reading a first frame.
func (s *Source) Open(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	device := parseDevice(s.device)
	if id, ok := device.(int); ok {
		if err := checkDeviceNode(devicePath(id)); err != nil {
			return nil, err
		}
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", s.device, err, capture.ErrDeviceUnavailable)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %s: %w", s.device, capture.ErrDeviceUnavailable)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(s.width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(s.height))

	stream := &Stream{
		capture: vc,
		mat:     gocv.NewMat(),
		quality: s.quality,
	}

	if _, err := stream.Read(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("first frame from %s: %v: %w", s.device, err, capture.ErrPlayback)
	}

	s.logger.Info("Camera %s opened at %dx%d", s.device,
		int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight)))
	return stream, nil
}

// Stream is an open gocv capture. Frames are read into a reused Mat.
type Stream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	quality int
	closed  bool
}

// Read grabs the current frame and JPEG encodes it. An empty Mat yields an
// empty frame rather than an error.
func (s *Stream) Read() (capture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return capture.Frame{}, fmt.Errorf("read from closed stream")
	}

	if ok := s.capture.Read(&s.mat); !ok {
		return capture.Frame{}, fmt.Errorf("cannot read frame")
	}

	now := time.Now()
	if s.mat.Empty() {
		return capture.Frame{CapturedAt: now}, nil
	}

	data, err := encodeJPEG(s.mat, s.quality)
	if err != nil {
		return capture.Frame{}, err
	}

	return capture.Frame{
		Data:       data,
		Width:      s.mat.Cols(),
		Height:     s.mat.Rows(),
		CapturedAt: now,
	}, nil
}

// Close releases the capture device. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	matErr := s.mat.Close()
	if err := s.capture.Close(); err != nil {
		return err
	}
	return matErr
}

func encodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %v", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// parseDevice returns an int for numeric device ids and the string otherwise.
func parseDevice(device string) interface{} {
	if id, err := strconv.Atoi(device); err == nil && id >= 0 {
		return id
	}
	return device
}

func devicePath(id int) string {
	return fmt.Sprintf("/dev/video%d", id)
}

// checkDeviceNode maps access problems on a local device node to capture
// errors. Platforms without device nodes are left to OpenVideoCapture.
func checkDeviceNode(path string) error {
	if _, err := os.Stat("/dev"); err != nil {
		return nil
	}

	f, err := os.Open(path)
	switch {
	case err == nil:
		f.Close()
		return nil
	case os.IsPermission(err):
		return fmt.Errorf("%s: %w", path, capture.ErrPermissionDenied)
	case os.IsNotExist(err):
		return fmt.Errorf("%s: %w", path, capture.ErrDeviceUnavailable)
	default:
		return fmt.Errorf("%s: %v: %w", path, err, capture.ErrDeviceUnavailable)
	}
}
