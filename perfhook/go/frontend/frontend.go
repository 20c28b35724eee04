// Package frontend serves the perfhook web endpoints: Travis notifications
// come in on /notify and the benchmark history goes out on /data.
package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.perfhook.dev/infra/go/httputils"
	"go.perfhook.dev/infra/go/metrics2"
	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/go/sklog"
	"go.perfhook.dev/infra/go/webhook"
	"go.perfhook.dev/infra/perfhook/go/aggregator"
	"go.perfhook.dev/infra/perfhook/go/config"
	"go.perfhook.dev/infra/perfhook/go/dispatcher"
	"go.perfhook.dev/infra/perfhook/go/notification"
	"go.perfhook.dev/infra/perfhook/go/resultstore"
)

// maxNotifyBodyBytes limits the size of a notification request body.
const maxNotifyBodyBytes = 1 << 20

// emptyData is returned from /data when the history can't be produced.
var emptyData = []byte("[]")

// dataCors lets dashboards on other origins read /data.
func dataCors(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(h)
}

// Frontend is the perfhook web server.
type Frontend struct {
	cfg        *config.InstanceConfig
	verifier   *webhook.RSAVerifier
	dispatcher *dispatcher.Dispatcher
	aggregator *aggregator.Aggregator

	accepted metrics2.Counter
	rejected metrics2.Counter
}

// New returns a Frontend for cfg. Benchmark runners are started from ctx,
// see dispatcher.New.
func New(ctx context.Context, cfg *config.InstanceConfig) (*Frontend, error) {
	verifier, err := notification.NewVerifier(cfg.PublicKeyFile)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	runner, err := cfg.RunnerCommand()
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	d, err := dispatcher.New(ctx, dispatcher.Options{
		ResultsDir:    cfg.ResultsDir,
		PrimaryBranch: cfg.PrimaryBranch,
		Runner:        runner,
	})
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return &Frontend{
		cfg:        cfg,
		verifier:   verifier,
		dispatcher: d,
		aggregator: aggregator.New(resultstore.NewLocal(cfg.ResultsDir), cfg.MeasurementFormat),
		accepted:   metrics2.GetCounter("perfhook_notify", map[string]string{"result": "accepted"}),
		rejected:   metrics2.GetCounter("perfhook_notify", map[string]string{"result": "rejected"}),
	}, nil
}

// GetHandler returns the http.Handler for all the endpoints.
func (f *Frontend) GetHandler() http.Handler {
	router := chi.NewRouter()
	router.Post("/notify", f.notifyHandler)
	router.With(dataCors).Get("/data", f.dataHandler)
	if f.cfg.ResourcesDir != "" {
		router.Handle("/*", http.HandlerFunc(httputils.MakeResourceHandler(f.cfg.ResourcesDir)))
	}

	var h http.Handler = router
	h = httputils.LoggingGzipRequestResponse(h)
	h = httputils.XFrameOptionsDeny(h)
	return httputils.Healthz(h)
}

// Serve the endpoints on port. Only returns on error.
func (f *Frontend) Serve(port string) error {
	sklog.Infof("Ready to serve on %s", port)
	server := &http.Server{
		Addr:              port,
		Handler:           f.GetHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

// reject answers a notification with an empty 403. The reason is only logged.
func (f *Frontend) reject(w http.ResponseWriter, err error) {
	sklog.Warningf("Rejected notification: %s", err)
	f.rejected.Inc(1)
	w.WriteHeader(http.StatusForbidden)
}

func (f *Frontend) notifyHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNotifyBodyBytes)
	if err := r.ParseForm(); err != nil {
		f.reject(w, skerr.Wrapf(err, "parsing form"))
		return
	}
	payload := []byte(r.PostForm.Get(notification.PayloadFormField))
	if err := f.verifier.VerifyRequest(r, notification.SignatureHeader, payload); err != nil {
		f.reject(w, err)
		return
	}
	if err := notification.CheckRepo(r.Header.Get(notification.RepoSlugHeader), f.cfg.AllowedRepos); err != nil {
		f.reject(w, err)
		return
	}
	n, err := notification.Decode(payload)
	if err != nil {
		f.reject(w, err)
		return
	}
	f.accepted.Inc(1)
	outcome, err := f.dispatcher.Dispatch(r.Context(), n)
	if err != nil {
		// The notification was valid, a runner that fails to start is our
		// problem and not Travis's.
		sklog.Errorf("Dispatch failed: %s", err)
	} else if outcome.Started {
		sklog.Infof("Started run %s for %s into %q", outcome.RunID, outcome.Commit, outcome.Path)
	}
	w.WriteHeader(http.StatusOK)
}

func (f *Frontend) dataHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body := emptyData
	benches, err := f.aggregator.Load(r.Context())
	if err != nil {
		sklog.Errorf("Failed to load results: %s", err)
	} else if b, err := json.Marshal(benches); err != nil {
		sklog.Errorf("Failed to encode results: %s", err)
	} else {
		body = b
	}
	if _, err := w.Write(body); err != nil && !errors.Is(err, context.Canceled) {
		sklog.Errorf("Failed to write response: %s", err)
	}
}
