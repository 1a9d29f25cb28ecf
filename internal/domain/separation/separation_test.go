package separation_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/stemai/internal/domain/energy"
	"github.com/okian/stemai/internal/domain/model"
	"github.com/okian/stemai/internal/domain/separation"
)

var labels = []string{"drums", "bass", "melody", "vocals"}

type stubSeparator struct {
	out    model.StemSet
	closed atomic.Bool
}

func (s *stubSeparator) Separate(context.Context, model.Signal) (model.StemSet, error) {
	return s.out, nil
}

func (s *stubSeparator) Close() error {
	s.closed.Store(true)
	return nil
}

func TestSimulated(t *testing.T) {
	convey.Convey("Given a simulated separator with gains", t, func() {
		sim := separation.NewSimulated(labels,
			separation.WithGains(map[string]float64{"drums": 0.5, "bass": 0.3, "melody": 0.4, "vocals": 0.6}, 0),
			separation.WithLatencyRange(0, 0),
		)
		in := model.MustSignal([]float64{1, -1, 1, -1}, 44100, 2)

		convey.Convey("When a mix is separated", func() {
			stems, err := sim.Separate(context.Background(), in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(stems.Labels(), convey.ShouldResemble, []string{"bass", "drums", "melody", "vocals"})

			convey.Convey("Then stems keep length, rate and channels", func() {
				for _, s := range stems {
					convey.So(s.Len(), convey.ShouldEqual, in.Len())
					convey.So(s.SampleRate(), convey.ShouldEqual, 44100)
					convey.So(s.Channels(), convey.ShouldEqual, 2)
				}
			})

			convey.Convey("Then the distribution follows the gains", func() {
				d, err := energy.Distribution(stems)
				convey.So(err, convey.ShouldBeNil)
				convey.So(d["vocals"], convey.ShouldAlmostEqual, 100*0.6/1.8, 1e-9)
				convey.So(d["bass"], convey.ShouldAlmostEqual, 100*0.3/1.8, 1e-9)
			})
		})

		convey.Convey("When a label has no configured gain", func() {
			convey.So(sim.Gain("piano"), convey.ShouldEqual, 0.5)
		})
	})

	convey.Convey("Given a slow simulated separator", t, func() {
		sim := separation.NewSimulated(labels, separation.WithLatencyRange(time.Second, 2*time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		convey.Convey("Then a cancelled context aborts the call", func() {
			_, err := sim.Separate(ctx, model.MustSignal([]float64{1}, 8000, 1))
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}

func TestHandle(t *testing.T) {
	in := model.MustSignal([]float64{0.1, 0.2}, 44100, 1)

	convey.Convey("Given a handle over a lazily built model", t, func() {
		var builds atomic.Int32
		stub := &stubSeparator{out: model.StemSet{
			"drums": in, "bass": in, "melody": in, "vocals": in, "guitar": in,
		}}
		h := separation.NewHandle(func(context.Context) (separation.Separator, error) {
			builds.Add(1)
			return stub, nil
		}, labels)

		convey.Convey("Then nothing is built until first use", func() {
			convey.So(builds.Load(), convey.ShouldEqual, 0)
		})

		convey.Convey("When separating twice", func() {
			_, err := h.Separate(context.Background(), in)
			convey.So(err, convey.ShouldBeNil)
			stems, err := h.Separate(context.Background(), in)
			convey.So(err, convey.ShouldBeNil)

			convey.So(builds.Load(), convey.ShouldEqual, 1)
			convey.So(stems, convey.ShouldHaveLength, 4)
			convey.So(stems, convey.ShouldNotContainKey, "guitar")
		})

		convey.Convey("When closed", func() {
			_, _ = h.Separate(context.Background(), in)
			convey.So(h.Close(), convey.ShouldBeNil)
			convey.So(stub.closed.Load(), convey.ShouldBeTrue)

			_, err := h.Separate(context.Background(), in)
			convey.So(errors.Is(err, separation.ErrClosed), convey.ShouldBeTrue)
			convey.So(h.Close(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a model that fails to load", t, func() {
		h := separation.NewHandle(func(context.Context) (separation.Separator, error) {
			return nil, errors.New("weights missing")
		}, labels)

		convey.Convey("Then every call reports it unavailable", func() {
			_, err := h.Separate(context.Background(), in)
			convey.So(errors.Is(err, separation.ErrUnavailable), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "weights missing")
		})
	})

	convey.Convey("Given a model whose first load fails", t, func() {
		var builds atomic.Int32
		stub := &stubSeparator{out: model.StemSet{"drums": in, "bass": in, "melody": in, "vocals": in}}
		h := separation.NewHandle(func(context.Context) (separation.Separator, error) {
			if builds.Add(1) == 1 {
				return nil, errors.New("weights still downloading")
			}
			return stub, nil
		}, labels)

		convey.Convey("Then a later call loads it and keeps it", func() {
			_, err := h.Separate(context.Background(), in)
			convey.So(errors.Is(err, separation.ErrUnavailable), convey.ShouldBeTrue)

			stems, err := h.Separate(context.Background(), in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(stems, convey.ShouldHaveLength, 4)

			_, err = h.Separate(context.Background(), in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(builds.Load(), convey.ShouldEqual, 2)
		})
	})

	convey.Convey("Given a model that drops a stem", t, func() {
		h := separation.NewHandle(func(context.Context) (separation.Separator, error) {
			return &stubSeparator{out: model.StemSet{"drums": in}}, nil
		}, labels)

		convey.Convey("Then the output is rejected", func() {
			_, err := h.Separate(context.Background(), in)
			convey.So(errors.Is(err, separation.ErrBadOutput), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a model that changes the sample rate", t, func() {
		other := model.MustSignal([]float64{0.1}, 22050, 1)
		h := separation.NewHandle(func(context.Context) (separation.Separator, error) {
			return &stubSeparator{out: model.StemSet{"drums": other, "bass": other, "melody": other, "vocals": other}}, nil
		}, labels)

		convey.Convey("Then the output is rejected", func() {
			_, err := h.Separate(context.Background(), in)
			convey.So(errors.Is(err, separation.ErrBadOutput), convey.ShouldBeTrue)
		})
	})
}
