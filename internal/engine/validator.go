package engine

import (
	"context"
	"log"

	"rulegate/internal/metadata"
	"rulegate/internal/settings"
)

// RuleLister is the read side of the rule store used during validation.
type RuleLister interface {
	ListForTable(ctx context.Context, table string, activeOnly bool) ([]*metadata.Rule, error)
}

// Outcome is the result of validating one save request.
type Outcome struct {
	Valid     bool          `json:"valid"`
	Errors    []ErrorDetail `json:"errors,omitempty"`
	Checked   int           `json:"rulesChecked"`
	Triggered int           `json:"rulesTriggered"`
}

// Validator runs the configured rules against a submitted record. Logging
// and notification are best-effort side channels: their failures are
// reported in the server log but never change the validation outcome.
type Validator struct {
	Settings settings.Loader
	Rules    RuleLister
	Logs     LogAppender
	Notifier Notifier
}

func NewValidator(cfg settings.Loader, rules RuleLister, logs LogAppender, notifier Notifier) *Validator {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Validator{Settings: cfg, Rules: rules, Logs: logs, Notifier: notifier}
}

// Validate checks a record about to be saved to table. Rules run in their
// configured order; every triggered rule is audited, and the save is valid
// only when no triggered rule found its required field empty.
func (v *Validator) Validate(ctx context.Context, table string, recordNum int64, record RecordContext, user *metadata.UserContext) (*Outcome, error) {
	cfg := v.Settings.Load()

	if !cfg.Enabled {
		return &Outcome{Valid: true}, nil
	}
	if cfg.IsExcluded(table) {
		if cfg.DebugMode {
			log.Printf("validation skipped: table %s is excluded", table)
		}
		return &Outcome{Valid: true}, nil
	}

	rules, err := v.Rules.ListForTable(ctx, table, true)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Valid: true, Checked: len(rules)}

	type triggeredRule struct {
		rule   *metadata.Rule
		result RuleResult
	}
	var triggered []triggeredRule

	for _, rule := range rules {
		result := EvaluateRule(rule, record)
		if !result.Triggered {
			continue
		}
		outcome.Triggered++
		triggered = append(triggered, triggeredRule{rule: rule, result: result})

		if result.HasError {
			outcome.Valid = false
			outcome.Errors = append(outcome.Errors, ErrorDetail{
				Field:   rule.RequiredField,
				Message: result.ErrorMessage,
			})
		}
		if cfg.DebugMode {
			log.Printf("rule %q on %s record %d: triggered=%v blocked=%v",
				rule.RuleName, table, recordNum, result.Triggered, result.HasError)
		}
	}

	actor := ""
	if user != nil {
		actor = user.ID
	}

	// wasBlocked is per rule: a triggered rule whose required field was
	// filled logs a pass even when another rule blocked the save.
	for _, t := range triggered {
		entry := &metadata.LogEntry{
			TableName:     table,
			RecordNum:     recordNum,
			RuleNum:       t.rule.Num,
			RuleName:      t.rule.RuleName,
			ErrorMessage:  t.result.ErrorMessage,
			TriggerField:  t.rule.TriggerField,
			TriggerValue:  t.result.TriggerValue,
			RequiredField: t.rule.RequiredField,
			RequiredValue: t.result.RequiredValue,
			WasBlocked:    t.result.HasError,
			CreatedBy:     actor,
		}
		if err := v.Logs.Append(ctx, entry); err != nil {
			log.Printf("WARN: audit log append failed for %s record %d: %v", table, recordNum, err)
		}
	}

	if !outcome.Valid && cfg.EmailNotifications && cfg.NotificationEmail != "" {
		n := &BlockedNotification{
			To:        cfg.NotificationEmail,
			TableName: table,
			RecordNum: recordNum,
			User:      user,
		}
		for _, t := range triggered {
			n.RuleNames = append(n.RuleNames, t.rule.RuleName)
			if t.result.HasError {
				n.Errors = append(n.Errors, t.result.ErrorMessage)
			}
		}
		if err := v.Notifier.NotifyBlocked(ctx, n); err != nil {
			log.Printf("WARN: blocked-save notification failed: %v", err)
		}
	}

	return outcome, nil
}
