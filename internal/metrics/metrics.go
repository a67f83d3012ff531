package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	OperationsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modest_mail_operations_in_flight",
		Help: "Number of mail operations currently in the operation queue",
	})
	OperationsAdded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modest_mail_operations_added_total",
		Help: "Total number of mail operations added to the queue",
	}, []string{"type"})
	OperationsRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modest_mail_operations_removed_total",
		Help: "Total number of mail operations removed from the queue, by final status",
	}, []string{"type", "status"})
	ContractViolations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modest_mail_operation_contract_violations_total",
		Help: "Operations that ended unsuccessfully without attaching an error",
	}, []string{"type"})
	QueueEmpty = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modest_queue_empty_total",
		Help: "Number of times the operation queue was observed empty after a removal",
	})
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modest_queue_events_dropped_total",
		Help: "Queue events dropped because a subscriber channel was full",
	})
	AccountUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modest_account_updates_total",
		Help: "Account updates scheduled by the poller",
	}, []string{"account"})
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modest_messages_sent_total",
		Help: "Outbox messages delivered, by result",
	}, []string{"account", "result"})
)

func init() {
	prometheus.MustRegister(OperationsInFlight)
	prometheus.MustRegister(OperationsAdded)
	prometheus.MustRegister(OperationsRemoved)
	prometheus.MustRegister(ContractViolations)
	prometheus.MustRegister(QueueEmpty)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(AccountUpdates)
	prometheus.MustRegister(MessagesSent)
}

// Serve exposes the default registry on addr until ctx is done.
func Serve(ctx context.Context, addr string, log *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infow("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
