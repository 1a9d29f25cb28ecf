package stemclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/stemai/internal/adapters/audiofile"
	"github.com/okian/stemai/internal/domain/energy"
	"github.com/okian/stemai/internal/domain/model"
	"github.com/okian/stemai/internal/stemclient"
	"github.com/okian/stemai/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeService answers like the separation API: one job that succeeds after
// a couple of polls.
func fakeService(t *testing.T, polls int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var seen atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /separations", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "missing_file", "message": err.Error()})
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) == "busy" {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "backpressure", "message": "job queue full"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "j1", "status": "queued", "file_name": hdr.Filename})
	})
	mux.HandleFunc("GET /separations/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "j1" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "not_found", "message": "no such job"})
			return
		}
		if seen.Add(1) < polls {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "j1", "status": "running"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "j1",
			"status": "succeeded",
			"distribution": []map[string]any{
				{"label": "vocals", "percent": 60.0},
				{"label": "drums", "percent": 40.0},
			},
			"stems": []map[string]string{
				{"label": "vocals", "url": "/separations/j1/stems/vocals", "download_url": "/separations/j1/stems/vocals?download=1"},
				{"label": "drums", "url": "/separations/j1/stems/drums", "download_url": "/separations/j1/stems/drums?download=1"},
			},
		})
	})
	mux.HandleFunc("GET /separations/{id}/stems/{label}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF-" + r.PathValue("label")))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &seen
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClient(t *testing.T) {
	convey.Convey("Given a client pointed at the service", t, func() {
		srv, _ := fakeService(t, 3)
		c := stemclient.New(srv.URL, stemclient.WithPollInterval(5*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		convey.Convey("When uploading and waiting", func() {
			job, err := c.Upload(ctx, writeInput(t, "audio"))
			convey.So(err, convey.ShouldBeNil)
			convey.So(job.ID, convey.ShouldEqual, "j1")
			convey.So(job.FileName, convey.ShouldEqual, "song.mp3")

			done, err := c.Wait(ctx, job.ID)

			convey.Convey("Then the finished job is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(done.Status, convey.ShouldEqual, model.JobSucceeded)
				convey.So(done.Distribution[0].Label, convey.ShouldEqual, "vocals")
			})

			convey.Convey("And stems can be downloaded", func() {
				out := t.TempDir()
				paths, err := c.DownloadStems(ctx, done, out)
				convey.So(err, convey.ShouldBeNil)
				convey.So(paths, convey.ShouldHaveLength, 2)
				data, err := os.ReadFile(filepath.Join(out, "drums.wav"))
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual, "RIFF-drums")
			})
		})

		convey.Convey("When the service sheds load", func() {
			_, err := c.Upload(ctx, writeInput(t, "busy"))
			convey.So(stemclient.IsBackpressure(err), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "job queue full")
		})

		convey.Convey("When the job is unknown", func() {
			_, err := c.Get(ctx, "nope")
			var apiErr *stemclient.APIError
			convey.So(errors.As(err, &apiErr), convey.ShouldBeTrue)
			convey.So(apiErr.Status, convey.ShouldEqual, http.StatusNotFound)
			convey.So(apiErr.Code, convey.ShouldEqual, "not_found")
		})

		convey.Convey("When the input file is missing", func() {
			_, err := c.Upload(ctx, filepath.Join(t.TempDir(), "missing.mp3"))
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When a job has no stems", func() {
			_, err := c.DownloadStems(ctx, stemclient.Job{ID: "j1"}, t.TempDir())
			convey.So(errors.Is(err, stemclient.ErrNoStems), convey.ShouldBeTrue)
		})
	})
}

func TestRenderBars(t *testing.T) {
	convey.Convey("Given a ranked distribution", t, func() {
		var buf bytes.Buffer
		err := stemclient.RenderBars(&buf, []energy.Share{
			{Label: "vocals", Percent: 57.142857},
			{Label: "bass", Percent: 0},
		}, 10)

		convey.Convey("Then each stem gets a scaled bar and a one-decimal label", func() {
			convey.So(err, convey.ShouldBeNil)
			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			convey.So(lines, convey.ShouldHaveLength, 3)
			convey.So(lines[0], convey.ShouldStartWith, "vocals ")
			convey.So(strings.Count(lines[0], "█"), convey.ShouldEqual, 6)
			convey.So(lines[0], convey.ShouldEndWith, " 57.1%")
			convey.So(strings.Count(lines[1], "█"), convey.ShouldEqual, 0)
			convey.So(lines[1], convey.ShouldEndWith, "  0.0%")
			convey.So(lines[2], convey.ShouldContainSubstring, "Percentage of Total Energy (%)")
		})
	})
}

func TestAnalyzeDir(t *testing.T) {
	convey.Convey("Given a directory of stems", t, func() {
		dir := t.TempDir()
		write := func(label string, samples []float64) {
			path := filepath.Join(dir, audiofile.StemFileName(label))
			if err := audiofile.WriteWAVFile(path, model.MustSignal(samples, 8000, 1)); err != nil {
				t.Fatal(err)
			}
		}

		convey.Convey("When the stems carry signal", func() {
			write("drums", []float64{0.4, -0.4, 0.4, -0.4})
			write("bass", []float64{0, 0, 0, 0})
			write("melody", []float64{0.2, -0.2, 0.2, -0.2})
			write("vocals", []float64{0.8, -0.8, 0.8, -0.8})

			shares, energies, err := stemclient.AnalyzeDir(dir)

			convey.Convey("Then the distribution is ranked", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(energies, convey.ShouldHaveLength, 4)
				convey.So(shares[0].Label, convey.ShouldEqual, "vocals")
				convey.So(shares[0].Percent, convey.ShouldAlmostEqual, 57.14, 0.05)
				convey.So(shares[3].Label, convey.ShouldEqual, "bass")
				convey.So(shares[3].Percent, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When every stem is silent", func() {
			write("drums", []float64{0, 0})
			_, _, err := stemclient.AnalyzeDir(dir)
			convey.So(errors.Is(err, energy.ErrDegenerateInput), convey.ShouldBeTrue)
		})

		convey.Convey("When the directory is empty", func() {
			_, _, err := stemclient.AnalyzeDir(dir)
			convey.So(errors.Is(err, stemclient.ErrNoStems), convey.ShouldBeTrue)
		})
	})
}
