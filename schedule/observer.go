package schedule

import (
	"time"

	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/job"
)

// FrameEvent describes a frame that has been handed to the sink.
type FrameEvent struct {
	// Index is the frame number.
	Index int

	// Written is the number of frames written so far in this run, including
	// this one. Total is the number of frames the run will write.
	Written, Total int

	// Elapsed is the time since the previous frame was written, or since the
	// run started for the first frame.
	Elapsed time.Duration

	// Assembled is the time between opening the frame and writing it.
	Assembled time.Duration
}

// Observer receives scheduler events. Callbacks run on the control
// goroutine, so they must return quickly.
type Observer interface {
	// OnSubmit is called after the backend accepted j.
	OnSubmit(j job.Job, t backend.Ticket)

	// OnRetrieve is called after the result of j was composited.
	OnRetrieve(j job.Job, t backend.Ticket)

	// OnFrame is called after a frame was written.
	OnFrame(e FrameEvent)
}

// ObserverFuncs adapts optional functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Submit   func(j job.Job, t backend.Ticket)
	Retrieve func(j job.Job, t backend.Ticket)
	Frame    func(e FrameEvent)
}

func (o ObserverFuncs) OnSubmit(j job.Job, t backend.Ticket) {
	if o.Submit != nil {
		o.Submit(j, t)
	}
}

func (o ObserverFuncs) OnRetrieve(j job.Job, t backend.Ticket) {
	if o.Retrieve != nil {
		o.Retrieve(j, t)
	}
}

func (o ObserverFuncs) OnFrame(e FrameEvent) {
	if o.Frame != nil {
		o.Frame(e)
	}
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (os Observers) OnSubmit(j job.Job, t backend.Ticket) {
	for _, o := range os {
		o.OnSubmit(j, t)
	}
}

func (os Observers) OnRetrieve(j job.Job, t backend.Ticket) {
	for _, o := range os {
		o.OnRetrieve(j, t)
	}
}

func (os Observers) OnFrame(e FrameEvent) {
	for _, o := range os {
		o.OnFrame(e)
	}
}

// Stats summarizes a run.
type Stats struct {
	// Submitted is the number of jobs the backend accepted.
	Submitted int

	// Retrieved is the number of tiles composited.
	Retrieved int

	// FramesWritten is the number of frames handed to the sink.
	FramesWritten int

	// MaxDepth is the largest number of jobs in flight at once.
	MaxDepth int

	// Duration is the wall time of the run.
	Duration time.Duration
}
