package oraclesvc

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/grading"
)

// HTTP posts the grading context as JSON to a grading endpoint answering with a grading result.
type HTTP struct {
	client   *resty.Client
	endpoint string
	logger   core.Logger
}

var _ grading.Oracle = (*HTTP)(nil) // interface compliance check

func NewHTTP(conf core.GradingConfig, logger core.Logger) *HTTP {
	return &HTTP{
		client:   newClient("", conf.Timeout),
		endpoint: conf.EndpointURL,
		logger:   logger,
	}
}

func (o *HTTP) Grade(ctx context.Context, gc grading.Context) (grading.Result, error) {
	res, err := o.client.R().
		SetContext(ctx).
		SetBody(gc).
		Post(o.endpoint)
	if err != nil {
		return grading.Result{}, requestError(ctx, err)
	}
	if res.IsError() {
		o.logger.Warn("grading endpoint error", "status", res.StatusCode(), "body", truncate(res.Body()))
		return grading.Result{}, statusError(res)
	}
	return grading.ParseResult(res.Body())
}
