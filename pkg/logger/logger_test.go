package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the default initializer", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Then the global logger is available", func() {
			So(Get(), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})
	})
}

func TestLoggerJSONFormat(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWith(&buf, "json"), ShouldBeNil)

		Convey("When logging with fields", func() {
			Get().Info(context.Background(), "stems written", String("job", "abc"), Int("stems", 4))

			Convey("Then a JSON record carries message, fields and source", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "stems written")
				So(rec["job"], ShouldEqual, "abc")
				So(rec["stems"], ShouldEqual, float64(4))
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})
	})

	Convey("Given an unknown format", t, func() {
		err := InitWith(&bytes.Buffer{}, "xml")

		Convey("Then initialization fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	Convey("Given a text logger at warn level", t, func() {
		var buf bytes.Buffer
		So(InitWith(&buf, "text"), ShouldBeNil)
		So(SetLevelString("warn"), ShouldBeNil)
		defer func() { _ = SetLevelString("info") }()

		Convey("When logging below and at the threshold", func() {
			ctx := context.Background()
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "visible")

			Convey("Then only the warning is written", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
				So(buf.String(), ShouldContainSubstring, "visible")
			})
		})

		Convey("When an invalid level is parsed", func() {
			Convey("Then an error is returned", func() {
				So(SetLevelString("verbose"), ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerNamedAndWith(t *testing.T) {
	Convey("Given a text logger", t, func() {
		var buf bytes.Buffer
		So(InitWith(&buf, "text"), ShouldBeNil)

		Convey("When logging through a named child carrying fields", func() {
			Named("worker").With(String("worker_id", "w-1")).Info(context.Background(), "job done")

			Convey("Then the group and the fields appear", func() {
				out := buf.String()
				So(strings.Contains(out, "worker_id=w-1"), ShouldBeTrue)
				So(out, ShouldContainSubstring, "worker.source=")
			})
		})
	})
}
