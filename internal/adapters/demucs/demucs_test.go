package demucs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/stemai/internal/adapters/demucs"
	"github.com/okian/stemai/internal/domain/model"
	"github.com/okian/stemai/internal/domain/separation"
	"github.com/okian/stemai/pkg/logger"
)

const fakeDemucs = `#!/bin/sh
out="$4"
in="$5"
dir="$out/$2/input"
mkdir -p "$dir"
for s in drums bass other vocals; do cp "$in" "$dir/$s.wav"; done
`

const brokenDemucs = `#!/bin/sh
echo "loading model" >&2
echo "CUDA out of memory" >&2
exit 1
`

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demucs")
	if err := os.WriteFile(path, []byte(body), 0o700); err != nil { //nolint:gosec // test helper
		t.Fatal(err)
	}
	return path
}

func TestSeparator(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs /bin/sh")
	}
	labels := []string{"drums", "bass", "melody", "vocals"}
	in := model.MustSignal([]float64{0.5, -0.5, 0.25, -0.25}, 44100, 2)

	convey.Convey("Given a demucs binary that writes four stems", t, func() {
		bin := writeScript(t, fakeDemucs)
		h := separation.NewHandle(demucs.Factory(
			demucs.WithBinary(bin),
			demucs.WithModel("htdemucs"),
			demucs.WithStemMap(map[string]string{"other": "melody"}),
			demucs.WithWorkDir(t.TempDir()),
		), labels)
		defer func() { _ = h.Close() }()

		convey.Convey("When a mix is separated", func() {
			stems, err := h.Separate(context.Background(), in)

			convey.Convey("Then model names are mapped to labels", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stems.Labels(), convey.ShouldResemble, []string{"bass", "drums", "melody", "vocals"})
				convey.So(stems["melody"].Channels(), convey.ShouldEqual, 2)
				convey.So(stems["melody"].At(0), convey.ShouldAlmostEqual, 0.5, 1e-4)
			})
		})
	})

	convey.Convey("Given two model stems mapped to one label", t, func() {
		bin := writeScript(t, fakeDemucs)
		sep := demucs.New(
			demucs.WithBinary(bin),
			demucs.WithStemMap(map[string]string{"other": "rest", "bass": "rest"}),
			demucs.WithWorkDir(t.TempDir()),
		)

		convey.Convey("Then their samples are summed", func() {
			stems, err := sep.Separate(context.Background(), in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(stems, convey.ShouldHaveLength, 3)
			convey.So(stems["rest"].At(0), convey.ShouldAlmostEqual, 1.0, 1e-4)
		})
	})

	convey.Convey("Given a demucs binary that fails", t, func() {
		sep := demucs.New(demucs.WithBinary(writeScript(t, brokenDemucs)), demucs.WithWorkDir(t.TempDir()))

		convey.Convey("Then the last stderr line is reported", func() {
			_, err := sep.Separate(context.Background(), in)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "CUDA out of memory")
			convey.So(err.Error(), convey.ShouldNotContainSubstring, "loading model")
		})
	})

	convey.Convey("Given no demucs binary", t, func() {
		h := separation.NewHandle(demucs.Factory(demucs.WithBinary(filepath.Join(t.TempDir(), "missing"))), labels)

		convey.Convey("Then the model is unavailable", func() {
			_, err := h.Separate(context.Background(), in)
			convey.So(errors.Is(err, separation.ErrUnavailable), convey.ShouldBeTrue)
		})
	})
}
