package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/jackcount/internal/app"
	"github.com/okian/jackcount/internal/domain/model"
	"github.com/okian/jackcount/internal/domain/pose"
	"github.com/okian/jackcount/internal/domain/repetition"
	"github.com/okian/jackcount/internal/domain/types"
	"github.com/okian/jackcount/internal/simulate"
	"github.com/okian/jackcount/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func frame(session, id string, seq int64, kind simulate.Kind) model.Frame {
	return model.Frame{
		FrameID:    id,
		SessionID:  session,
		Seq:        seq,
		CapturedAt: t0.Add(time.Duration(seq) * time.Second),
		Keypoints:  simulate.Pose(kind, nil, 0),
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// recordingPublisher keeps every result and can block until released.
type recordingPublisher struct {
	mu      sync.Mutex
	results []types.FrameResult
	entered chan struct{}
	release chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, r types.FrameResult) error {
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
	return nil
}

func (p *recordingPublisher) snapshot() []types.FrameResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.FrameResult(nil), p.results...)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that has not been started", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx := context.Background()

		Convey("Then every operation reports ErrNotStarted", func() {
			So(svc.Started(), ShouldBeFalse)
			_, err := svc.StartSession(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Sessions(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.ProcessFrame(ctx, frame("s", "", 0, simulate.KindDown))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Enqueue(ctx, frame("s", "", 0, simulate.KindDown))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Then stats carry the configuration only", func() {
			st := svc.GetStats(ctx)
			So(st.Workers, ShouldEqual, 2)
			So(st.Threshold, ShouldEqual, 0.4)
			So(st.CadenceUnit, ShouldEqual, "per_second")
			So(st.QueueCapacity, ShouldEqual, 0)
		})

		Convey("Then Stop is a no-op", func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("When it is started twice and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Started(), ShouldBeTrue)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it reports stopped", func() {
				So(svc.Started(), ShouldBeFalse)
				_, err := svc.StartSession(ctx)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Sessions(t *testing.T) {
	Convey("Given a started service limited to two sessions", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1), service.WithMaxSessions(2))
		So(svc.Start(ctx), ShouldBeNil)

		a, err := svc.StartSession(ctx)
		So(err, ShouldBeNil)
		b, err := svc.StartSession(ctx)
		So(err, ShouldBeNil)

		Convey("Then new sessions start indeterminate with unique ids", func() {
			So(a.ID, ShouldNotEqual, b.ID)
			So(a.State, ShouldEqual, "indeterminate")
			So(a.Count, ShouldEqual, 0)
			So(a.CadenceUnit, ShouldEqual, "per_second")
			So(a.Anchor, ShouldBeNil)
		})

		Convey("Then a third session is refused", func() {
			_, err := svc.StartSession(ctx)
			So(errors.Is(err, service.ErrSessionLimit), ShouldBeTrue)
		})

		Convey("Then sessions are listed in creation order", func() {
			vs, err := svc.Sessions(ctx)
			So(err, ShouldBeNil)
			So(vs, ShouldHaveLength, 2)
			So(svc.GetStats(ctx).ActiveSessions, ShouldEqual, 2)
		})

		Convey("When a session is stopped", func() {
			So(svc.StopSession(ctx, a.ID), ShouldBeNil)

			Convey("Then it is gone and its slot is free", func() {
				_, err := svc.Session(ctx, a.ID)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
				So(errors.Is(svc.StopSession(ctx, a.ID), service.ErrNotFound), ShouldBeTrue)
				_, err = svc.StartSession(ctx)
				So(err, ShouldBeNil)
			})
		})

		Convey("Then unknown sessions cannot be reset", func() {
			_, err := svc.ResetSession(ctx, "missing")
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Reset(func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_ProcessFrame(t *testing.T) {
	Convey("Given a started service with one session", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		v, err := svc.StartSession(ctx)
		So(err, ShouldBeNil)

		Convey("When down, up and down frames are processed", func() {
			var results []types.FrameResult
			for i, k := range []simulate.Kind{simulate.KindDown, simulate.KindUp, simulate.KindDown} {
				res, err := svc.ProcessFrame(ctx, frame(v.ID, "", int64(i*2), k))
				So(err, ShouldBeNil)
				results = append(results, res)
			}

			Convey("Then the count moves 0, 0, 1", func() {
				So(results[0].Count, ShouldEqual, 0)
				So(results[1].Count, ShouldEqual, 0)
				So(results[2].Count, ShouldEqual, 1)
				So(results[2].Counted, ShouldBeTrue)
				So(results[2].Outcome, ShouldEqual, string(repetition.OutcomeRepetition))
			})

			Convey("Then cadence uses the frame timestamps", func() {
				// anchor at seq 2, completion at seq 4
				So(results[2].Cadence, ShouldEqual, 0.5)
				got, err := svc.Session(ctx, v.ID)
				So(err, ShouldBeNil)
				So(got.Cadence, ShouldEqual, 0.5)
				So(got.Anchor, ShouldNotBeNil)
				So(got.Anchor.Equal(t0.Add(2*time.Second)), ShouldBeTrue)
				So(got.Frames, ShouldEqual, 3)
				So(got.State, ShouldEqual, "down")
				So(got.Previous, ShouldEqual, "up")
			})

			Convey("Then reset returns the session to its initial state", func() {
				got, err := svc.ResetSession(ctx, v.ID)
				So(err, ShouldBeNil)
				So(got.Count, ShouldEqual, 0)
				So(got.Frames, ShouldEqual, 0)
				So(got.State, ShouldEqual, "indeterminate")
				So(got.Anchor, ShouldBeNil)
			})

			Convey("Then stats count the frames and the repetition", func() {
				st := svc.GetStats(ctx)
				So(st.FramesProcessed, ShouldEqual, 3)
				So(st.Repetitions, ShouldEqual, 1)
			})
		})

		Convey("When an occluded frame is processed", func() {
			res, err := svc.ProcessFrame(ctx, frame(v.ID, "", 0, simulate.KindOccluded))

			Convey("Then it is rejected without error and counted as such", func() {
				So(err, ShouldBeNil)
				So(res.Confident, ShouldBeFalse)
				So(res.Rejected, ShouldResemble, []string{"left_ankle", "right_ankle"})
				got, _ := svc.Session(ctx, v.ID)
				So(got.Rejected, ShouldEqual, 1)
				So(got.State, ShouldEqual, "indeterminate")
			})
		})

		Convey("When a frame has too few keypoints", func() {
			f := frame(v.ID, "", 0, simulate.KindDown)
			f.Keypoints = f.Keypoints[:pose.COCOKeypointCount-1]

			Convey("Then it is an invalid frame", func() {
				_, err := svc.ProcessFrame(ctx, f)
				So(errors.Is(err, service.ErrInvalidFrame), ShouldBeTrue)
				_, err = svc.Enqueue(ctx, f)
				So(errors.Is(err, service.ErrInvalidFrame), ShouldBeTrue)
			})
		})

		Convey("When a frame has more than 17 keypoints", func() {
			f := frame(v.ID, "", 0, simulate.KindDown)
			f.Keypoints = append(f.Keypoints, pose.Keypoint{X: 1, Y: 1, Score: 1})

			Convey("Then both ingest paths reject it", func() {
				_, err := svc.Submit(ctx, f)
				So(errors.Is(err, service.ErrInvalidFrame), ShouldBeTrue)
				_, err = svc.Enqueue(ctx, f)
				So(errors.Is(err, service.ErrInvalidFrame), ShouldBeTrue)
			})
		})

		Convey("When the session does not exist", func() {
			_, err := svc.ProcessFrame(ctx, frame("missing", "", 0, simulate.KindDown))

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Reset(func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service with one session", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		v, err := svc.StartSession(ctx)
		So(err, ShouldBeNil)

		Convey("When the same frame id is submitted twice", func() {
			first, err := svc.Submit(ctx, frame(v.ID, "f1", 0, simulate.KindDown))
			So(err, ShouldBeNil)
			second, err := svc.Submit(ctx, frame(v.ID, "f1", 0, simulate.KindDown))
			So(err, ShouldBeNil)

			Convey("Then only the first is applied", func() {
				So(first.Duplicate, ShouldBeFalse)
				So(second.Duplicate, ShouldBeTrue)
				So(second.Outcome, ShouldEqual, service.OutcomeDuplicate)
				got, _ := svc.Session(ctx, v.ID)
				So(got.Frames, ShouldEqual, 1)
				So(svc.GetStats(ctx).Duplicates, ShouldEqual, 1)
			})
		})

		Convey("When a frame that completed a repetition is resubmitted", func() {
			_, err := svc.Submit(ctx, frame(v.ID, "f0", 0, simulate.KindDown))
			So(err, ShouldBeNil)
			_, err = svc.Submit(ctx, frame(v.ID, "f2", 2, simulate.KindUp))
			So(err, ShouldBeNil)
			done, err := svc.Submit(ctx, frame(v.ID, "f4", 4, simulate.KindDown))
			So(err, ShouldBeNil)
			again, err := svc.Submit(ctx, frame(v.ID, "f4", 4, simulate.KindDown))
			So(err, ShouldBeNil)

			Convey("Then the duplicate reports the current session instead of zeroes", func() {
				So(done.Count, ShouldEqual, 1)
				So(again.Duplicate, ShouldBeTrue)
				So(again.Count, ShouldEqual, 1)
				So(again.State, ShouldEqual, "down")
				So(again.Cadence, ShouldAlmostEqual, done.Cadence)
				So(again.Counted, ShouldBeFalse)
			})
		})

		Convey("When the same frame id is used by another session", func() {
			w, err := svc.StartSession(ctx)
			So(err, ShouldBeNil)
			_, err = svc.Submit(ctx, frame(v.ID, "f1", 0, simulate.KindDown))
			So(err, ShouldBeNil)
			res, err := svc.Submit(ctx, frame(w.ID, "f1", 0, simulate.KindDown))

			Convey("Then it is not a duplicate", func() {
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When an invalid frame is submitted with an id", func() {
			bad := frame(v.ID, "f2", 0, simulate.KindDown)
			bad.Keypoints = nil
			_, err := svc.Submit(ctx, bad)
			So(errors.Is(err, service.ErrInvalidFrame), ShouldBeTrue)

			Convey("Then the id can be reused by a corrected frame", func() {
				res, err := svc.Submit(ctx, frame(v.ID, "f2", 0, simulate.KindDown))
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When the session is unknown", func() {
			_, err := svc.Submit(ctx, frame("missing", "f3", 0, simulate.KindDown))

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Reset(func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_Enqueue(t *testing.T) {
	Convey("Given a started service with a publisher", t, func() {
		ctx := context.Background()
		pub := &recordingPublisher{}
		svc := service.New(service.WithWorkerCount(2), service.WithPublisher(pub))
		So(svc.Start(ctx), ShouldBeNil)
		v, err := svc.StartSession(ctx)
		So(err, ShouldBeNil)

		Convey("When a full cycle is enqueued", func() {
			for i, k := range []simulate.Kind{simulate.KindDown, simulate.KindUp, simulate.KindDown} {
				dup, err := svc.Enqueue(ctx, frame(v.ID, string(k)+"-"+string(rune('a'+i)), int64(i), k))
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
			}

			Convey("Then the workers apply it in order and publish each result", func() {
				So(waitFor(func() bool { return len(pub.snapshot()) == 3 }), ShouldBeTrue)
				got, err := svc.Session(ctx, v.ID)
				So(err, ShouldBeNil)
				So(got.Count, ShouldEqual, 1)
				results := pub.snapshot()
				So(results[2].Counted, ShouldBeTrue)
				So(results[2].SessionID, ShouldEqual, v.ID)
			})

			Convey("Then a repeated id is reported as a duplicate", func() {
				dup, err := svc.Enqueue(ctx, frame(v.ID, "down-a", 0, simulate.KindDown))
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("When the session is unknown", func() {
			_, err := svc.Enqueue(ctx, frame("missing", "x", 0, simulate.KindDown))

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Reset(func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service whose only worker is blocked", t, func() {
		ctx := context.Background()
		pub := &recordingPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithPublisher(pub),
		)
		So(svc.Start(ctx), ShouldBeNil)
		v, err := svc.StartSession(ctx)
		So(err, ShouldBeNil)

		_, err = svc.Enqueue(ctx, frame(v.ID, "f1", 0, simulate.KindDown))
		So(err, ShouldBeNil)
		<-pub.entered
		_, err = svc.Enqueue(ctx, frame(v.ID, "f2", 1, simulate.KindUp))
		So(err, ShouldBeNil)

		Convey("When the queue is full", func() {
			_, err := svc.Enqueue(ctx, frame(v.ID, "f3", 2, simulate.KindDown))

			Convey("Then ErrBackpressure is returned and the id is forgotten", func() {
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
				close(pub.release)
				So(waitFor(func() bool { return svc.GetStats(ctx).QueueSize == 0 }), ShouldBeTrue)
				So(waitFor(func() bool {
					dup, err := svc.Enqueue(ctx, frame(v.ID, "f3", 2, simulate.KindDown))
					return err == nil && !dup
				}), ShouldBeTrue)
				So(waitFor(func() bool { return len(pub.snapshot()) == 3 }), ShouldBeTrue)
				got, _ := svc.Session(ctx, v.ID)
				So(got.Count, ShouldEqual, 1)
			})
		})

		Reset(func() {
			select {
			case <-pub.release:
			default:
				close(pub.release)
			}
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_Stop_DrainsQueue(t *testing.T) {
	Convey("Given frames queued behind a slow publisher", t, func() {
		ctx := context.Background()
		pub := &recordingPublisher{release: make(chan struct{})}
		svc := service.New(service.WithWorkerCount(1), service.WithPublisher(pub))
		So(svc.Start(ctx), ShouldBeNil)
		v, err := svc.StartSession(ctx)
		So(err, ShouldBeNil)
		for i := 0; i < 5; i++ {
			_, err := svc.Enqueue(ctx, frame(v.ID, "", int64(i), simulate.KindDown))
			So(err, ShouldBeNil)
		}

		Convey("When Stop runs", func() {
			go func() {
				time.Sleep(20 * time.Millisecond)
				close(pub.release)
			}()
			err := svc.Stop(ctx)

			Convey("Then every queued frame was applied first", func() {
				So(err, ShouldBeNil)
				So(pub.snapshot(), ShouldHaveLength, 5)
				So(svc.GetStats(ctx).FramesProcessed, ShouldEqual, 5)
			})
		})
	})
}
