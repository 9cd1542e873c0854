package metrics

// PaymentMetrics counts payment workflow outcomes for the process.
type PaymentMetrics struct {
	StatusChecks       Counter
	StatusUpdates      Counter
	ConcurrentConflict Counter
	IllegalTransitions Counter
	Verifications      Counter
	SimulationsTotal   Counter
	SimulationSuccess  Counter
	SimulationFailed   Counter
	SimulationPending  Counter
	Confirmations      Counter
	Cancellations      Counter
	WebhooksReceived   Counter
	WebhooksDuplicate  Counter
	WebhooksFailed     Counter
}

func NewPaymentMetrics() *PaymentMetrics {
	return &PaymentMetrics{}
}

func (m *PaymentMetrics) Snapshot() map[string]uint64 {
	if m == nil {
		return map[string]uint64{}
	}
	return map[string]uint64{
		"payment_status_checks_total":        m.StatusChecks.Load(),
		"payment_status_updates_total":       m.StatusUpdates.Load(),
		"payment_concurrent_conflicts_total": m.ConcurrentConflict.Load(),
		"payment_illegal_transitions_total":  m.IllegalTransitions.Load(),
		"payment_verifications_total":        m.Verifications.Load(),
		"payment_simulations_total":          m.SimulationsTotal.Load(),
		"payment_simulations_success_total":  m.SimulationSuccess.Load(),
		"payment_simulations_failed_total":   m.SimulationFailed.Load(),
		"payment_simulations_pending_total":  m.SimulationPending.Load(),
		"payment_confirmations_total":        m.Confirmations.Load(),
		"payment_cancellations_total":        m.Cancellations.Load(),
		"payment_webhooks_received_total":    m.WebhooksReceived.Load(),
		"payment_webhooks_duplicate_total":   m.WebhooksDuplicate.Load(),
		"payment_webhooks_failed_total":      m.WebhooksFailed.Load(),
	}
}
