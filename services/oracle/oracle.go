package oraclesvc

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/grading"
)

const (
	BackendOpenAI   = "openai"
	BackendHTTP     = "http"
	BackendDisabled = "disabled"

	maxErrorBody = 512
)

// New returns the oracle selected by the grading backend setting.
func New(conf *core.Config, logger core.Logger) (grading.Oracle, error) {
	switch conf.Grading.Backend {
	case BackendOpenAI:
		if conf.Grading.OpenAIKey == "" {
			return nil, errors.New("grading.openaiKey is required by the openai backend")
		}
		return NewOpenAI(conf.Grading, logger), nil
	case BackendHTTP:
		if conf.Grading.EndpointURL == "" {
			return nil, errors.New("grading.endpointURL is required by the http backend")
		}
		return NewHTTP(conf.Grading, logger), nil
	case BackendDisabled, "":
		return Disabled{}, nil
	}
	return nil, errors.Errorf("unknown grading backend %q", conf.Grading.Backend)
}

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}

// requestError classifies a failed round trip as a timeout or a transport failure.
func requestError(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &core.GradingOracleError{Kind: core.OracleTimeout, Err: err}
	}
	return &core.GradingOracleError{Kind: core.OracleTransport, Err: err}
}

func statusError(res *resty.Response) error {
	return &core.GradingOracleError{
		Kind:       core.OracleStatus,
		StatusCode: res.StatusCode(),
		Body:       truncate(res.Body()),
		Err:        errors.New(http.StatusText(res.StatusCode())),
	}
}

// Disabled refuses every grading request.
type Disabled struct{}

var _ grading.Oracle = Disabled{} // interface compliance check

func (Disabled) Grade(context.Context, grading.Context) (grading.Result, error) {
	return grading.Result{}, &core.GradingOracleError{Kind: core.OracleDisabled, Err: errors.New("ai grading is disabled")}
}
