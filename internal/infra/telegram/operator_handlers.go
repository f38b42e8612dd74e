// internal/infra/telegram/operator_handlers.go
package telegram

import (
	"context"
	"strings"

	"contest_lifecycle/internal/app"
	"contest_lifecycle/internal/infra/metrics"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// BatchRunner runs one orchestrated batch.
type BatchRunner interface {
	RunAll(ctx context.Context) *app.BatchResult
}

// Registrar is the part of *telebot.Bot the handlers need.
type Registrar interface {
	Handle(endpoint interface{}, h telebot.HandlerFunc, m ...telebot.MiddlewareFunc)
}

const unauthorizedReply = "Error: you are not allowed to run this command."

// RegisterOperatorCommands registers /start, /help and /run_batch.
// Only the admin may use them.
func RegisterOperatorCommands(ctx context.Context, b Registrar, runner BatchRunner, adminTelegramID int64, baseLogger logrus.FieldLogger) {
	opLogger := baseLogger.WithField("handler_group", "operator")

	b.Handle("/start", adminOnly("/start", adminTelegramID, opLogger, func(c telebot.Context, _ logrus.FieldLogger) error {
		return c.Send("Lifecycle runner is up. Use /help for the list of commands.")
	}))

	b.Handle("/help", adminOnly("/help", adminTelegramID, opLogger, func(c telebot.Context, _ logrus.FieldLogger) error {
		var helpText strings.Builder
		helpText.WriteString("Operator commands:\n\n")
		helpText.WriteString("`/run_batch`\n - Run every enabled sweep now and report the result.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}))

	b.Handle("/run_batch", adminOnly("/run_batch", adminTelegramID, opLogger, func(c telebot.Context, logCtx logrus.FieldLogger) error {
		// Shutdown does not cut a running batch short.
		result := runner.RunAll(context.WithoutCancel(ctx))
		outcome := "success"
		if !result.AllSucceeded {
			outcome = "partial"
		}
		metrics.RecordTrigger("telegram", outcome)
		logCtx.WithFields(logrus.Fields{
			"run_id":        result.RunID,
			"all_succeeded": result.AllSucceeded,
		}).Info("Batch run finished on operator request")
		return c.Send(app.FormatBatchSummary(result))
	}))
}

func adminOnly(command string, adminTelegramID int64, logger logrus.FieldLogger, next func(telebot.Context, logrus.FieldLogger) error) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		logCtx := logger.WithFields(logrus.Fields{"command": command, "sender_id": sender.ID})
		logCtx.Info("Command received")

		if sender.ID != adminTelegramID {
			logCtx.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}
		return next(c, logCtx)
	}
}
