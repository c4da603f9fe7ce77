package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/clawlite/internal/clawerr"
)

// expressionKind distinguishes the three grammars spec §3 allows for a
// CronJob's expression field.
type expressionKind int

const (
	kindEvery expressionKind = iota
	kindAt
	kindFiveField
)

type parsedExpression struct {
	kind   expressionKind
	every  time.Duration
	at     time.Time
	cron   string
}

// parseExpression validates and classifies a CronJob expression string.
// Grammar: "every <N seconds>" | "at <RFC3339 timestamp>" | 5-field cron.
func parseExpression(expr string, now time.Time) (*parsedExpression, error) {
	trimmed := strings.TrimSpace(expr)

	switch {
	case strings.HasPrefix(trimmed, "every "):
		nStr := strings.TrimSpace(strings.TrimPrefix(trimmed, "every "))
		n, err := strconv.Atoi(nStr)
		if err != nil || n <= 0 {
			return nil, clawerr.New(clawerr.CronExpressionInvalid, fmt.Sprintf("invalid 'every' interval %q", expr))
		}
		return &parsedExpression{kind: kindEvery, every: time.Duration(n) * time.Second}, nil

	case strings.HasPrefix(trimmed, "at "):
		tsStr := strings.TrimSpace(strings.TrimPrefix(trimmed, "at "))
		ts, err := time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, clawerr.New(clawerr.CronExpressionInvalid, fmt.Sprintf("invalid 'at' timestamp %q", expr))
		}
		if !ts.After(now) {
			return nil, clawerr.New(clawerr.CronExpressionInvalid, fmt.Sprintf("'at' timestamp %q is not in the future", expr))
		}
		return &parsedExpression{kind: kindAt, at: ts}, nil

	default:
		if !gronx.IsValid(trimmed) {
			return nil, clawerr.New(clawerr.CronExpressionInvalid, fmt.Sprintf("invalid cron expression %q", expr))
		}
		return &parsedExpression{kind: kindFiveField, cron: trimmed}, nil
	}
}

// nextFireAfter computes the next fire time strictly after ref, interpreting
// 5-field cron expressions in loc (spec §9 open question: cron fields are
// read in scheduler.timezone, next_fire_at is persisted as UTC).
func (p *parsedExpression) nextFireAfter(ref time.Time, loc *time.Location) (time.Time, error) {
	switch p.kind {
	case kindEvery:
		return ref.Add(p.every).UTC(), nil
	case kindAt:
		return p.at.UTC(), nil
	case kindFiveField:
		local := ref.In(loc)
		next, err := gronx.NextTickAfter(p.cron, local, false)
		if err != nil {
			return time.Time{}, clawerr.Wrap(clawerr.CronExpressionInvalid, "compute next cron tick", err)
		}
		return next.UTC(), nil
	default:
		return time.Time{}, clawerr.New(clawerr.CronExpressionInvalid, "unknown expression kind")
	}
}

// isOneShot reports whether this expression fires at most once (kindAt),
// matching spec §3's "at T fires at most once, then deleted" invariant.
func (p *parsedExpression) isOneShot() bool {
	return p.kind == kindAt
}
