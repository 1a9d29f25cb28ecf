package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/stemai/internal/adapters/audiofile"
	"github.com/okian/stemai/internal/config"
	"github.com/okian/stemai/internal/domain/model"
	"github.com/okian/stemai/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func setTestEnv(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	values := map[string]string{
		"STEMAI_ADDR":                     ":0",
		"STEMAI_SAMPLE_RATE":              "8000",
		"STEMAI_UPLOAD_DIR":               filepath.Join(root, "uploads"),
		"STEMAI_OUTPUT_DIR":               filepath.Join(root, "stems"),
		"STEMAI_WORKER_COUNT":             "2",
		"STEMAI_SIMULATED_LATENCY_MIN_MS": "0",
		"STEMAI_SIMULATED_LATENCY_MAX_MS": "0",
	}
	for k, v := range values {
		t.Setenv(k, v)
	}
}

func toneUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	samples := make([]float64, 800)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/8000)
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audiofile.WriteWAVFile(path, model.MustSignal(samples, 8000, 1)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path) //nolint:gosec // test temp file
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "tone.wav")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a configured application", t, func() {
		setTestEnv(t)
		ctx := context.Background()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		svc, err := buildService(ctx, cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newMux(ctx, cfg, svc))
		defer srv.Close()

		convey.Convey("When a WAV file is uploaded over HTTP", func() {
			body, ct := toneUpload(t)
			resp, err := http.Post(srv.URL+"/separations", ct, body) //nolint:noctx // test
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)

			var created struct {
				ID string `json:"id"`
			}
			convey.So(json.NewDecoder(resp.Body).Decode(&created), convey.ShouldBeNil)

			convey.Convey("Then the job succeeds with a ranked distribution", func() {
				var job struct {
					Status       string `json:"status"`
					Distribution []struct {
						Label   string  `json:"label"`
						Percent float64 `json:"percent"`
					} `json:"distribution"`
				}
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					r, err := http.Get(srv.URL + "/separations/" + created.ID) //nolint:noctx // test
					convey.So(err, convey.ShouldBeNil)
					_ = json.NewDecoder(r.Body).Decode(&job)
					_ = r.Body.Close()
					if job.Status == "succeeded" || job.Status == "failed" {
						break
					}
					time.Sleep(20 * time.Millisecond)
				}

				convey.So(job.Status, convey.ShouldEqual, "succeeded")
				convey.So(job.Distribution, convey.ShouldHaveLength, 4)
				convey.So(job.Distribution[0].Label, convey.ShouldEqual, "vocals")
				convey.So(job.Distribution[0].Percent, convey.ShouldAlmostEqual, 33.333, 0.01)

				sum := 0.0
				for _, s := range job.Distribution {
					sum += s.Percent
				}
				convey.So(sum, convey.ShouldAlmostEqual, 100, 1e-6)

				convey.Convey("And the front end, docs and stems are served", func() {
					for _, path := range []string{"/", "/api-docs", "/openapi.yaml", "/separations/" + created.ID + "/stems/drums"} {
						r, err := http.Get(srv.URL + path) //nolint:noctx // test
						convey.So(err, convey.ShouldBeNil)
						_ = r.Body.Close()
						convey.So(r.StatusCode, convey.ShouldEqual, http.StatusOK)
					}
				})
			})
		})
	})
}

func TestNewSeparator(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then the simulated backend is built with the configured labels", func() {
			h, err := newSeparator(cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(h.Labels(), convey.ShouldResemble, cfg.StemLabels)
		})

		convey.Convey("Then the demucs backend is built lazily", func() {
			cfg.Separator = config.SeparatorDemucs
			cfg.DemucsBin = "/nonexistent/demucs"
			h, err := newSeparator(cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(h.Labels(), convey.ShouldResemble, cfg.StemLabels)
		})

		convey.Convey("Then an unknown backend is rejected", func() {
			cfg.Separator = "spleeter"
			_, err := newSeparator(cfg, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the metrics updaters run until their context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			svc, err := buildService(ctx, config.New(ctx), logger.Get())
			convey.So(err, convey.ShouldBeNil)

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("When updating metrics directly", func() {
			svc, err := buildService(context.Background(), config.New(context.Background()), logger.Get())
			convey.So(err, convey.ShouldBeNil)

			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
