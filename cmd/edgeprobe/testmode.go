package main

import (
	"log"

	"github.com/google/uuid"

	"github.com/shortontech/edgeprobe/internal/detection"
	"github.com/shortontech/edgeprobe/internal/probe"
	"github.com/shortontech/edgeprobe/internal/report"
)

// sampleResponse is a recorded set of response headers for a known site
type sampleResponse struct {
	target  string
	headers map[string]string
}

// sampleResponses covers each classifier path: header match with POP
// extraction, server-only fallback, and no headers at all.
func sampleResponses() []sampleResponse {
	return []sampleResponse{
		{
			target: "https://www.cloudflare.com/",
			headers: map[string]string{
				"server":          "cloudflare",
				"cf-ray":          "8f3c2a1b9d7e4c21-SJC",
				"cf-cache-status": "HIT",
				"age":             "1200",
			},
		},
		{
			target: "https://vercel.com/",
			headers: map[string]string{
				"server":         "Vercel",
				"x-vercel-id":    "iad1::sfo1::" + uuid.New().String()[:8] + "-1718000000000",
				"x-vercel-cache": "MISS",
			},
		},
		{
			target: "https://www.fastly.com/",
			headers: map[string]string{
				"x-served-by":         "cache-iad-kiad7000025-IAD, cache-lhr7331-LHR",
				"x-fastly-request-id": uuid.New().String(),
				"x-cache":             "MISS, HIT",
			},
		},
		{
			target: "https://aws.amazon.com/",
			headers: map[string]string{
				"server":       "CloudFront",
				"x-amz-cf-id":  uuid.New().String(),
				"x-amz-cf-pop": "FRA56-P4",
				"x-cache":      "Hit from cloudfront",
			},
		},
		{
			target: "https://nginx.org/",
			headers: map[string]string{
				"server": "nginx/1.27.0",
				"age":    "30",
			},
		},
		{
			target:  "https://bare.example/",
			headers: map[string]string{},
		},
	}
}

// runTestMode pushes one report per sample through p so the configured sinks
// receive traffic without network access.
func runTestMode(p *probe.Prober) []report.Report {
	samples := sampleResponses()
	log.Printf("TEST MODE: emitting %d sample reports", len(samples))

	reports := make([]report.Report, 0, len(samples))
	for _, s := range samples {
		rep := p.Classify(s.target, detection.HeaderSetFromMap(s.headers))
		log.Printf("TEST MODE: %s -> %s (cache=%s pop=%s)", rep.Target, rep.Result.Provider, rep.Result.Cache, rep.Result.POP)
		reports = append(reports, rep)
	}
	return reports
}
