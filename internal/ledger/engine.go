package ledger

import (
	"context"
	"errors"

	"xarajat/internal/command"
	"xarajat/internal/core"
	applog "xarajat/internal/log"
	"xarajat/internal/report"
)

// ErrorKind classifies a failed command for reply selection and alerting.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindParse is a malformed command the user can correct.
	KindParse
	// KindNotFound is a delete of a missing or foreign id.
	KindNotFound
	// KindStorage is a persistence failure; the only kind worth alerting on.
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindParse:
		return applog.ErrorTypeParse
	case KindNotFound:
		return applog.ErrorTypeNotFound
	default:
		return applog.ErrorTypeStorage
	}
}

// Classify maps an error returned by the parser, Service or Generator to its kind.
func Classify(err error) ErrorKind {
	var perr *command.ParseError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &perr),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory):
		return KindParse
	case errors.Is(err, core.ErrNotFound):
		return KindNotFound
	default:
		return KindStorage
	}
}

// Engine is the text boundary of the ledger: one line in, one reply out.
type Engine struct {
	service *Service
	reports *report.Generator
}

func NewEngine(service *Service, reports *report.Generator) *Engine {
	return &Engine{service: service, reports: reports}
}

// Handle parses and executes text on behalf of userID and returns the reply.
// It never fails; every error becomes a reply and storage errors are logged
// through the context logger, which is expected to carry the user id.
func (e *Engine) Handle(ctx context.Context, userID int64, text string) string {
	cmd, err := command.Parse(text)
	if err == nil {
		var reply string
		if reply, err = e.execute(ctx, userID, cmd); err == nil {
			return reply
		}
	}
	return e.fail(ctx, cmd.Kind, err)
}

func (e *Engine) execute(ctx context.Context, userID int64, cmd command.Command) (string, error) {
	switch cmd.Kind {
	case command.Start:
		return msgWelcome, nil
	case command.Help:
		return msgHelp, nil
	case command.Add:
		added, err := e.service.Add(ctx, userID, cmd.Amount, cmd.Category)
		if err != nil {
			return "", err
		}
		applog.FromContext(ctx).InfoContext(ctx, "Expense added",
			applog.NewFields().WithExpense(added.ID, added.Amount.String(), added.Category).ToSlice()...)
		return renderAdded(added), nil
	case command.List:
		expenses, err := e.service.List(ctx, userID)
		if err != nil {
			return "", err
		}
		return renderList(expenses), nil
	case command.Total:
		totals, err := e.service.Total(ctx, userID)
		if err != nil {
			return "", err
		}
		return renderTotal(totals), nil
	case command.Delete:
		deleted, err := e.service.Delete(ctx, userID, cmd.ID)
		if err != nil {
			return "", err
		}
		applog.FromContext(ctx).InfoContext(ctx, "Expense deleted",
			applog.NewFields().WithExpense(deleted.ID, deleted.Amount.String(), deleted.Category).ToSlice()...)
		return renderDeleted(deleted), nil
	case command.Daily:
		d, err := e.reports.Daily(ctx, userID)
		if err != nil {
			return "", err
		}
		return renderDaily(d), nil
	case command.Monthly:
		m, err := e.reports.Monthly(ctx, userID, cmd.Month)
		if err != nil {
			return "", err
		}
		return renderMonthly(m), nil
	default:
		return msgUnknown, nil
	}
}

func (e *Engine) fail(ctx context.Context, kind command.Kind, err error) string {
	logger := applog.FromContext(ctx)

	switch Classify(err) {
	case KindParse:
		logger.DebugContext(ctx, "Malformed command", applog.FieldCommand, kind.String(), applog.FieldError, err)
		return parseReply(err)
	case KindNotFound:
		return msgNotFound
	}

	logger.LogError(ctx, "Command failed", err, applog.ErrorTypeStorage,
		applog.NewFields().WithOperation(kind.String()))

	switch kind {
	case command.Add:
		return msgAddFailed
	case command.List:
		return msgListFailed
	case command.Total:
		return msgTotalFailed
	case command.Delete:
		return msgDeleteFailed
	case command.Daily:
		return msgDailyFailed
	case command.Monthly:
		return msgMonthlyFailed
	default:
		return msgGenericFailed
	}
}

func parseReply(err error) string {
	var perr *command.ParseError
	if errors.As(err, &perr) {
		switch perr.Reason {
		case command.AddAmount:
			return msgAddAmount
		case command.DeleteFormat:
			return msgDeleteFormat
		}
		return msgAddFormat
	}
	if errors.Is(err, core.ErrInvalidAmount) {
		return msgAddAmount
	}
	return msgAddFormat
}
