// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics is the process-wide Prometheus registry. Every counter
// and gauge the rest of the tree touches is declared here and registered
// once at init time, so a component only ever needs to reach for the
// package-level vars below.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Object-store operation kinds, used as the "op" label on
// ObjectRequestsTotal.
const (
	OpHead = "head"
	OpList = "list"
	OpGet  = "get"
)

var (
	Registry = prometheus.NewRegistry()

	ObjectRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objfuse_object_requests_total",
			Help: "Object-store requests issued, by operation (head/list/get).",
		},
		[]string{"op"},
	)

	BytesReadTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "objfuse_bytes_read_total",
		Help: "Bytes returned to readers across all open files.",
	})

	PrefetchWindowBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "objfuse_prefetch_window_bytes",
		Help: "Sum of outstanding (in-flight plus buffered) prefetch bytes across open files.",
	})
)

func init() {
	Registry.MustRegister(ObjectRequestsTotal, BytesReadTotal, PrefetchWindowBytes)
}

// Server serves the registry on an internal HTTP listener. A zero-value
// Server is not started until Serve is called.
type Server struct {
	srv *http.Server
}

// Serve starts listening on addr in the background and returns once the
// listener is bound, so the caller can log the chosen address (useful when
// addr has a ":0" port). Call Shutdown to stop it.
func Serve(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux}
	s := &Server{srv: srv}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ObjectRequestsTotal.WithLabelValues("metrics_server_error").Inc()
		}
	}()

	return s, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Addr reports the bound listener address; only meaningful after Serve.
func (s *Server) Addr() string {
	if s == nil || s.srv == nil {
		return ""
	}
	return s.srv.Addr
}
