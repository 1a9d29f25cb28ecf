package model

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestNewSignal(t *testing.T) {
	convey.Convey("Given raw samples", t, func() {
		raw := []float64{0.1, 0.2, 0.3, 0.4}

		convey.Convey("When a stereo signal is built", func() {
			s, err := NewSignal(raw, 44100, 2)
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Frames(), convey.ShouldEqual, 2)
			convey.So(s.Len(), convey.ShouldEqual, 4)

			convey.Convey("Then later writes to the input do not leak in", func() {
				raw[0] = 9
				convey.So(s.At(0), convey.ShouldEqual, 0.1)
			})

			convey.Convey("Then Samples returns a copy", func() {
				cp := s.Samples()
				cp[1] = 9
				convey.So(s.At(1), convey.ShouldEqual, 0.2)
			})
		})

		convey.Convey("When the sample rate is not positive", func() {
			_, err := NewSignal(raw, 0, 1)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When samples do not fill whole frames", func() {
			_, err := NewSignal(raw, 44100, 3)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When channels is zero it is treated as mono", func() {
			s, err := NewSignal(raw, 8000, 0)
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Channels(), convey.ShouldEqual, 1)
		})
	})
}

func TestStemSet(t *testing.T) {
	convey.Convey("Given a stem set", t, func() {
		ss := StemSet{
			"vocals": MustSignal([]float64{1}, 44100, 1),
			"bass":   MustSignal([]float64{1}, 44100, 1),
		}

		convey.Convey("Then labels are sorted", func() {
			convey.So(ss.Labels(), convey.ShouldResemble, []string{"bass", "vocals"})
		})

		convey.Convey("Then the shared sample rate is reported", func() {
			r, err := ss.SampleRate()
			convey.So(err, convey.ShouldBeNil)
			convey.So(r, convey.ShouldEqual, 44100)
		})

		convey.Convey("When one stem disagrees on sample rate", func() {
			ss["drums"] = MustSignal([]float64{1}, 22050, 1)
			_, err := ss.SampleRate()
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestJobStatus(t *testing.T) {
	convey.Convey("Terminal states are succeeded and failed", t, func() {
		convey.So(JobQueued.Terminal(), convey.ShouldBeFalse)
		convey.So(JobRunning.Terminal(), convey.ShouldBeFalse)
		convey.So(JobSucceeded.Terminal(), convey.ShouldBeTrue)
		convey.So(JobFailed.Terminal(), convey.ShouldBeTrue)
	})
}
