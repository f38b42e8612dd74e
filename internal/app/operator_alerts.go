// internal/app/operator_alerts.go
package app

import (
	"context"
	"fmt"
	"strings"

	"contest_lifecycle/internal/domain/lifecycle"
	domainTelegram "contest_lifecycle/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// OperatorAlerter sends batch summaries to the operator's chat.
type OperatorAlerter struct {
	client domainTelegram.Client
	chatID int64
	logger logrus.FieldLogger
}

func NewOperatorAlerter(client domainTelegram.Client, operatorChatID int64, logger logrus.FieldLogger) *OperatorAlerter {
	return &OperatorAlerter{client: client, chatID: operatorChatID, logger: logger}
}

// ReportBatch implements Reporter. Send failures are logged, never returned.
func (a *OperatorAlerter) ReportBatch(_ context.Context, result *BatchResult) {
	if a.chatID == 0 {
		a.logger.Warn("Operator chat ID not configured. Cannot send batch alert.")
		return
	}
	if err := a.client.SendMessage(a.chatID, FormatBatchSummary(result), nil); err != nil {
		a.logger.WithError(err).WithField("run_id", result.RunID).Error("Failed to send batch alert to operator")
	}
}

// FormatBatchSummary renders a result as plain text, one line per sweep.
func FormatBatchSummary(result *BatchResult) string {
	var b strings.Builder
	status := "OK"
	if !result.AllSucceeded {
		status = "PARTIAL FAILURE"
	}
	fmt.Fprintf(&b, "Batch %s: %s (%d ms)\n", result.RunID, status, result.TotalDurationMs)
	for _, kind := range lifecycle.SweepOrder {
		rep, ok := result.Sweeps[kind]
		if !ok {
			continue
		}
		if !rep.Succeeded {
			fmt.Fprintf(&b, "- %s: failed: %s\n", kind, rep.Error)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d updated, %d notified, %d errors\n",
			kind, rep.Result.Updated, rep.Result.Notified, len(rep.Result.Errors))
	}
	return strings.TrimRight(b.String(), "\n")
}
