package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vox_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vox_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"route"})

	transcriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vox_transcriptions_total",
		Help: "Transcription attempts by outcome",
	}, []string{"outcome"})

	wordsTranscribed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vox_words_transcribed_total",
		Help: "Words returned to clients",
	})

	engineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vox_engine_latency_seconds",
		Help:    "Speech engine latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	licenseActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vox_license_activations_total",
		Help: "License activation attempts by outcome",
	}, []string{"outcome"})

	registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vox_registrations_total",
		Help: "Accounts created",
	})
)
