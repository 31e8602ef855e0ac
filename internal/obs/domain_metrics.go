package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersPricedTotal counts order pricing outcomes.
	OrdersPricedTotal *prometheus.CounterVec
	// WalletTransactionsTotal counts ledger transaction outcomes by type.
	WalletTransactionsTotal *prometheus.CounterVec
	// WalletRetriesTotal counts optimistic-lock retries on wallet updates.
	WalletRetriesTotal prometheus.Counter
	// SequenceIssuedTotal counts document numbers issued by document type.
	SequenceIssuedTotal *prometheus.CounterVec
	// InvoicesGeneratedTotal counts generated invoices.
	InvoicesGeneratedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersPricedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_priced_total",
			Help:      "Count of order pricing outcomes.",
		}, []string{"result"})
		WalletTransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_transactions_total",
			Help:      "Count of wallet ledger transaction outcomes.",
		}, []string{"type", "result"})
		WalletRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_version_retries_total",
			Help:      "Number of optimistic-lock retries during wallet updates.",
		})
		SequenceIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_numbers_issued_total",
			Help:      "Count of document sequence numbers issued.",
		}, []string{"doc_type"})
		InvoicesGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_generated_total",
			Help:      "Number of invoices generated.",
		})

		mustRegisterCollector(reg, OrdersPricedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersPricedTotal = v
			}
		})
		mustRegisterCollector(reg, WalletTransactionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WalletTransactionsTotal = v
			}
		})
		mustRegisterCollector(reg, WalletRetriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				WalletRetriesTotal = v
			}
		})
		mustRegisterCollector(reg, SequenceIssuedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SequenceIssuedTotal = v
			}
		})
		mustRegisterCollector(reg, InvoicesGeneratedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				InvoicesGeneratedTotal = v
			}
		})
	})
}

// ObserveWalletTransaction records a ledger transaction outcome. Safe to
// call before metrics registration.
func ObserveWalletTransaction(txType, result string) {
	if WalletTransactionsTotal != nil {
		WalletTransactionsTotal.WithLabelValues(txType, result).Inc()
	}
}

// ObserveWalletRetry records an optimistic-lock retry.
func ObserveWalletRetry() {
	if WalletRetriesTotal != nil {
		WalletRetriesTotal.Inc()
	}
}

// ObserveOrderPriced records an order pricing outcome.
func ObserveOrderPriced(result string) {
	if OrdersPricedTotal != nil {
		OrdersPricedTotal.WithLabelValues(result).Inc()
	}
}

// ObserveSequenceIssued records a document number issue.
func ObserveSequenceIssued(docType string) {
	if SequenceIssuedTotal != nil {
		SequenceIssuedTotal.WithLabelValues(docType).Inc()
	}
}

// ObserveInvoiceGenerated records a generated invoice.
func ObserveInvoiceGenerated() {
	if InvoicesGeneratedTotal != nil {
		InvoicesGeneratedTotal.Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
