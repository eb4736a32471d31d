package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/darasa/core"
)

// Logger writes structured logs through zap and reports them to Rollbar when enabled.
type Logger struct {
	sugar   *zap.SugaredLogger
	rollbar bool
}

var _ core.Logger = (*Logger)(nil) // interface compliance check

// New returns a named Logger; Rollbar reporting is enabled outside of debug and test modes.
func New(name string, conf *core.Config) *Logger {
	var (
		z   *zap.Logger
		err error
	)
	if conf.Debug {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		z = zap.NewExample()
	}

	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	enabled := !(conf.Debug || conf.TestMode) && conf.RollbarToken != ""
	rollbar.SetEnabled(enabled)

	return &Logger{
		sugar:   z.Named(name).Sugar().With("build", conf.Build),
		rollbar: enabled,
	}
}

// NewNop returns a Logger discarding everything.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// prepare splits args into zap key/values and Rollbar extras.
// A lone error (or one keyed "error") is reported as the Rollbar error.
func (l *Logger) prepare(args []interface{}) ([]interface{}, error, map[string]interface{}) {
	var rerr error
	kvs := make([]interface{}, 0, len(args)+1)
	extras := make(map[string]interface{})

	for i := 0; i < len(args); i++ {
		if err, ok := args[i].(error); ok {
			rerr = err
			kvs = append(kvs, zap.Error(err))
			continue
		}
		k := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			kvs = append(kvs, "extra", args[i])
			extras["extra"] = args[i]
			break
		}
		v := args[i+1]
		i++
		if err, ok := v.(error); ok && k == "error" {
			rerr = err
			kvs = append(kvs, zap.Error(err))
			continue
		}
		kvs = append(kvs, k, v)
		extras[k] = v
	}
	return kvs, rerr, extras
}

func (l *Logger) report(send func(...interface{}), msg string, err error, extras map[string]interface{}) {
	if !l.rollbar {
		return
	}
	args := []interface{}{msg, extras}
	if err != nil {
		args = append(args, err)
	}
	send(args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	kvs, _, _ := l.prepare(args)
	l.sugar.Debugw(msg, kvs...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	kvs, err, extras := l.prepare(args)
	l.sugar.Infow(msg, kvs...)
	l.report(rollbar.Info, msg, err, extras)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	kvs, err, extras := l.prepare(args)
	l.sugar.Warnw(msg, kvs...)
	l.report(rollbar.Warning, msg, err, extras)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	kvs, err, extras := l.prepare(args)
	l.sugar.Errorw(msg, kvs...)
	l.report(rollbar.Error, msg, err, extras)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	kvs, err, extras := l.prepare(args)
	l.report(rollbar.Critical, msg, err, extras)
	rollbar.Wait()
	l.sugar.Fatalw(msg, kvs...)
}
