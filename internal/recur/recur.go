// Package recur resolves recurrence expressions for recurring tasks. The
// next occurrence of a recurring task becomes its derived deadline, which the
// planner's deadline tier then ranks like any other deadline.
package recur

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser parses standard 5-field cron expressions (minute hour dom month dow).
type Parser struct {
	parser cron.Parser
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Next computes the first firing of expr strictly after from.
func (p *Parser) Next(expr string, from time.Time) (time.Time, error) {
	schedule, err := p.parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse recurrence %q: %w", expr, err)
	}
	return schedule.Next(from), nil
}

// Validate reports whether expr is a parseable recurrence expression.
func (p *Parser) Validate(expr string) error {
	if _, err := p.parser.Parse(expr); err != nil {
		return fmt.Errorf("parse recurrence %q: %w", expr, err)
	}
	return nil
}
