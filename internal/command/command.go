// Package command turns a raw chat line into a typed ledger command.
package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"xarajat/internal/core"
)

// Kind identifies which ledger operation a command requests.
type Kind int

const (
	Unknown Kind = iota
	Start
	Help
	Add
	List
	Total
	Delete
	Daily
	Monthly
)

// Marker prefixes every command word.
const Marker = "/"

var kinds = map[string]Kind{
	"start":   Start,
	"help":    Help,
	"add":     Add,
	"list":    List,
	"total":   Total,
	"delete":  Delete,
	"daily":   Daily,
	"monthly": Monthly,
}

var names = [...]string{"unknown", "start", "help", "add", "list", "total", "delete", "daily", "monthly"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(names) {
		return "unknown"
	}
	return names[k]
}

// Command is a parsed request. Only the fields relevant to Kind are set.
type Command struct {
	Kind Kind

	// Add
	Amount   decimal.Decimal
	Category string

	// Delete
	ID int64

	// Monthly; zero means the current month.
	Month time.Month
}

// Reason classifies a malformed command.
type Reason int

const (
	AddFormat Reason = iota + 1
	AddAmount
	DeleteFormat
)

// ParseError reports a recognized command with unusable arguments.
type ParseError struct {
	Kind   Kind
	Reason Reason
	Input  string
}

func (e *ParseError) Error() string {
	switch e.Reason {
	case AddFormat:
		return fmt.Sprintf("malformed add command %q: want /add <amount> <category>", e.Input)
	case AddAmount:
		return fmt.Sprintf("malformed add command %q: amount is not a positive number", e.Input)
	case DeleteFormat:
		return fmt.Sprintf("malformed delete command %q: want /delete <id>", e.Input)
	default:
		return fmt.Sprintf("malformed %s command %q", e.Kind, e.Input)
	}
}

// Parse interprets text. Unrecognized input yields an Unknown command and a
// nil error; a recognized command with bad arguments yields a *ParseError.
func Parse(text string) (Command, error) {
	word, rest, _ := strings.Cut(text, " ")
	kind := lookup(word)

	switch kind {
	case Add:
		return parseAdd(text, rest)
	case Delete:
		return parseDelete(text, rest)
	case Monthly:
		return Command{Kind: Monthly, Month: parseMonth(rest)}, nil
	default:
		return Command{Kind: kind}, nil
	}
}

// lookup resolves the leading token. "/add@SomeBot" is treated as "/add".
func lookup(word string) Kind {
	if !strings.HasPrefix(word, Marker) {
		return Unknown
	}
	word = strings.TrimPrefix(word, Marker)
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	return kinds[word]
}

func parseAdd(text, rest string) (Command, error) {
	parts := strings.SplitN(rest, " ", 2)
	if rest == "" || len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return Command{Kind: Add}, &ParseError{Kind: Add, Reason: AddFormat, Input: text}
	}
	amount, err := core.ParseAmount(parts[0])
	if err != nil {
		return Command{Kind: Add}, &ParseError{Kind: Add, Reason: AddAmount, Input: text}
	}
	return Command{Kind: Add, Amount: amount, Category: parts[1]}, nil
}

func parseDelete(text, rest string) (Command, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Command{Kind: Delete}, &ParseError{Kind: Delete, Reason: DeleteFormat, Input: text}
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return Command{Kind: Delete}, &ParseError{Kind: Delete, Reason: DeleteFormat, Input: text}
	}
	return Command{Kind: Delete, ID: id}, nil
}

// parseMonth accepts a month name or a number 1-12; anything else is zero.
func parseMonth(rest string) time.Month {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0
	}
	if m, ok := core.LookupMonth(fields[0]); ok {
		return m
	}
	if n, err := strconv.Atoi(fields[0]); err == nil && n >= 1 && n <= 12 {
		return time.Month(n)
	}
	return 0
}
