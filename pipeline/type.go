package pipeline

import (
	"sync"
	"time"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/archive"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/service/data"
	"github.com/khaledhikmat/crackwatch/service/inference"
	"github.com/khaledhikmat/crackwatch/service/notifier"
)

type ServicesFactory struct {
	CfgSvc       config.IService
	DataSvc      data.IService
	InferenceSvc inference.IService
	ArchiveSvc   archive.IService
	NotifierSvc  notifier.IService
}

// FrameSource is a continuous capture device. Open fails fast with
// model.ErrDeviceUnavailable; Read returns model.ErrEndOfStream once the
// device has nothing more to give; Close may be called any number of times.
type FrameSource interface {
	Open() error
	Read() (model.Frame, error)
	Close() error
	Name() string
}

// SourceFactory builds a fresh, unopened source for each session.
type SourceFactory func(params config.FramerParameters) FrameSource

type AlertData struct {
	SessionID  string
	Image      model.ArchivedImage
	Data       []byte
	Detections []model.Detection
	Timestamp  time.Time
}

// guardedSource serialises Read and Close so a Stop racing an in-flight
// Read never touches a released device.
type guardedSource struct {
	inner  FrameSource
	mu     sync.Mutex
	closed bool
}

func guard(src FrameSource) FrameSource {
	if g, ok := src.(*guardedSource); ok {
		return g
	}
	return &guardedSource{inner: src}
}

func (g *guardedSource) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return model.ErrDeviceUnavailable
	}
	return g.inner.Open()
}

func (g *guardedSource) Read() (model.Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return model.Frame{}, model.ErrEndOfStream
	}
	return g.inner.Read()
}

func (g *guardedSource) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.inner.Close()
}

func (g *guardedSource) Name() string {
	return g.inner.Name()
}

// trySend never blocks the caller; a full or nil stream drops the value.
func trySend(stream chan interface{}, v interface{}) bool {
	select {
	case stream <- v:
		return true
	default:
		return false
	}
}
