// Package jobs agenda as execuções periódicas dos workers (cron).
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapta o zap à interface de log do cron
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

// Run executa fn no agendamento spec ("@every 10m", "0 3 * * *") até ctx ser
// cancelado. Uma execução ainda em andamento faz a próxima ser pulada.
// Com runNow, fn roda uma vez antes do primeiro disparo.
func Run(ctx context.Context, log *zap.Logger, name, spec string, runNow bool, fn func(context.Context)) error {
	cl := cronLogger{s: log.Sugar().With("job", name)}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, func() { fn(ctx) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}

	if runNow {
		fn(ctx)
	}
	c.Start()
	log.Info("scheduler started", zap.String("job", name), zap.String("spec", spec))

	<-ctx.Done()
	// espera a execução corrente terminar
	<-c.Stop().Done()
	log.Info("scheduler stopped", zap.String("job", name))
	return nil
}
