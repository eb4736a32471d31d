package core

import "time"

// Metrics records domain events.
type Metrics interface {
	StepTransition(status string)
	GradingSucceeded(graderType string, took time.Duration)
	GradingFailed(graderType, kind string)
	CertificateIssued()
}

type nopMetrics struct{}

var _ Metrics = nopMetrics{}

func NewNopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) StepTransition(string)                  {}
func (nopMetrics) GradingSucceeded(string, time.Duration) {}
func (nopMetrics) GradingFailed(string, string)           {}
func (nopMetrics) CertificateIssued()                     {}
