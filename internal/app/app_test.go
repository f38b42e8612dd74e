package app_test

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"contest_lifecycle/internal/domain/lifecycle"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func contestBoundaries() lifecycle.EventBoundaries {
	return lifecycle.EventBoundaries{
		Start:             day("2026-02-01"),
		FirstReviewStart:  day("2026-02-01"),
		FirstReviewEnd:    day("2026-03-15"),
		SecondReviewStart: day("2026-03-16"),
		SecondReviewEnd:   day("2026-03-31"),
		End:               day("2026-04-30"),
	}
}

// transitionCount reads contest_lifecycle_transitions_total for one series.
func transitionCount(kind lifecycle.Kind, outcome string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		panic(err)
	}
	for _, mf := range families {
		if mf.GetName() != "contest_lifecycle_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["kind"] == string(kind) && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
