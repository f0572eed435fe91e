// Package meta handles REPL meta-commands (:help, :schema, :explain,
// :history, :env, :clear).
package meta

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/planner"
	"github.com/matthewbaird/filterspec/internal/repl/session"
	"github.com/matthewbaird/filterspec/internal/schema"
)

// ErrUnknownCommand is returned for meta-commands the handler does not know.
var ErrUnknownCommand = errors.New("meta: unknown command")

// Explainer renders the statement a plan would run.
type Explainer interface {
	ExplainPlan(plan *planner.QueryPlan) (*executor.Statement, error)
}

// Handler dispatches meta-commands.
type Handler struct {
	registry  *schema.Registry
	planner   *planner.Planner
	explainer Explainer
}

// New creates a meta-command handler.
func New(registry *schema.Registry, p *planner.Planner, explainer Explainer) *Handler {
	return &Handler{registry: registry, planner: p, explainer: explainer}
}

// Result is the output of a meta-command execution.
type Result struct {
	Output string `json:"output"`
	Clear  bool   `json:"clear,omitempty"` // Signal frontend to clear screen
}

// Execute runs a meta-command. rest is the raw text after the command name,
// used by commands that take a statement rather than words.
func (h *Handler) Execute(sess *session.Session, command string, args []string, rest string) (*Result, error) {
	switch command {
	case "help":
		return h.help(args)
	case "clear":
		return &Result{Clear: true}, nil
	case "env":
		return h.env(sess)
	case "history":
		return h.history(sess, args)
	case "schema":
		return h.schemaCmd(args)
	case "explain":
		return h.explain(rest)
	default:
		return nil, errors.WithHint(
			errors.Wrapf(ErrUnknownCommand, ":%s", command),
			"type :help for available commands",
		)
	}
}

const helpText = `FQL - Filter Query Language

Queries:
  find <entity> [clauses]  Search for entities
  count <entity> [where]   Count matching entities

Clauses (any order):
  where <term> [and|or <term> ...]   Filter results
  order by <field> [asc|desc], ...   Sort results
  limit <n>                          Limit result count
  offset <n>                         Skip first n results

Terms:
  <path> <op> <value>          =, !=, >, <, >=, <=
  <path> like "text"           substring match ignoring case (ilike is a synonym)
  <path> like_cs "text"        case-sensitive substring match
  <path> is [not] null
  <path> in ["a", "b"]
  join [inner|left|right] <relation>
  fetch [inner|left|right] <relation>
  call <fn>(<path>, ...) with (<value>, ...)

"and" puts the following terms in the AND group, "or" in the OR group.
The result is (all AND terms) AND (any OR term).

Meta-commands:
  :help [topic]      Show help
  :schema [entity]   Show entity schema
  :explain <query>   Show the SQL a query runs
  :history [clear]   Show or clear command history
  :env               Show session info
  :clear             Clear the screen

Examples:
  find person where status = "ACTIVE" order by name limit 10
  find person where company.city = "Oslo" and orders.total > 100
  count person where age >= 30 or email is null
  find person where call match_keyword(bio) with ("go", "sql") fetch company`

func (h *Handler) help(args []string) (*Result, error) {
	if len(args) > 0 {
		return h.helpTopic(strings.ToLower(args[0]))
	}
	return &Result{Output: helpText}, nil
}

func (h *Handler) helpTopic(topic string) (*Result, error) {
	switch topic {
	case "find":
		return &Result{Output: "find <entity> [where ...] [order by ...] [limit N] [offset N]"}, nil
	case "count":
		return &Result{Output: "count <entity> [where ...]\n\nReturns the number of matching entities."}, nil
	case "where":
		return &Result{Output: "where <term> [and|or <term> ...]\n\n" +
			"Terms joined by \"and\" must all hold; terms after \"or\" form a group of\n" +
			"which at least one must hold. There are no parentheses."}, nil
	case "like", "ilike", "like_cs":
		return &Result{Output: "<path> like \"text\"     matches values containing text, ignoring case\n" +
			"<path> ilike \"text\"    the same as like\n" +
			"<path> like_cs \"text\"  the same, case-sensitive"}, nil
	case "join", "fetch":
		return &Result{Output: "join [inner|left|right] <relation>\nfetch [inner|left|right] <relation>\n\n" +
			"join adds a join to the query; fetch also loads the related rows into each result.\n" +
			"Paths like company.city join the relation implicitly."}, nil
	case "call":
		return &Result{Output: "call <fn>(<path>, ...) with (<value>, ...)\n\n" +
			"Holds when the SQL function returns true. Registered functions: match_keyword."}, nil
	default:
		return &Result{Output: fmt.Sprintf("No help available for '%s'", topic)}, nil
	}
}

func (h *Handler) env(sess *session.Session) (*Result, error) {
	out := fmt.Sprintf("Session: %s\nCreated: %s\nLast active: %s\nHistory entries: %d",
		sess.ID,
		sess.CreatedAt.Format("2006-01-02 15:04:05"),
		sess.LastActiveAt.Format("2006-01-02 15:04:05"),
		len(sess.History()))
	return &Result{Output: out}, nil
}

func (h *Handler) history(sess *session.Session, args []string) (*Result, error) {
	if len(args) > 0 && strings.EqualFold(args[0], "clear") {
		sess.ClearHistory()
		return &Result{Output: "History cleared"}, nil
	}
	entries := sess.History()
	if len(entries) == 0 {
		return &Result{Output: "(no history)"}, nil
	}

	var b strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&b, "%3d  %s\n", i+1, entry)
	}
	return &Result{Output: b.String()}, nil
}

func (h *Handler) schemaCmd(args []string) (*Result, error) {
	if len(args) == 0 {
		names := h.registry.EntityNames()
		return &Result{Output: fmt.Sprintf("Entities (%d):\n  %s", len(names), strings.Join(names, "\n  "))}, nil
	}

	entityName := strings.ToLower(args[0])
	es := h.registry.Entity(entityName)
	if es == nil {
		err := errors.Newf("unknown entity '%s'", entityName)
		if s := schema.SuggestFrom(entityName, h.registry.EntityNames(), 2); s != "" {
			err = errors.WithHint(err, "did you mean '"+s+"'?")
		}
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Entity: %s", es.Name)
	if es.EntName != "" {
		fmt.Fprintf(&b, " (%s)", es.EntName)
	}
	fmt.Fprintf(&b, "\nTable: %s\n", es.Table)

	fmt.Fprintf(&b, "\nFields:\n")
	for _, fname := range es.FieldOrder {
		fm := es.Fields[fname]
		opt := ""
		if fm.Optional {
			opt = " (optional)"
		}
		extra := ""
		if fm.Type == schema.FieldEnum && len(fm.EnumValues) > 0 {
			data, _ := json.Marshal(fm.EnumValues)
			extra = " values=" + string(data)
		}
		fmt.Fprintf(&b, "  %-20s %s%s%s\n", fname, fm.Type, opt, extra)
	}

	if len(es.EdgeOrder) > 0 {
		fmt.Fprintf(&b, "\nRelations:\n")
		for _, ename := range es.EdgeOrder {
			em := es.Edges[ename]
			kind := "to-many"
			if em.Unique() {
				kind = "to-one"
			}
			fmt.Fprintf(&b, "  %-20s -> %s (%s, %s)\n", ename, em.Target, em.Cardinality, kind)
		}
	}

	return &Result{Output: b.String()}, nil
}

func (h *Handler) explain(rest string) (*Result, error) {
	if strings.TrimSpace(rest) == "" {
		return nil, errors.WithHint(errors.New("explain needs a query"), "example: :explain find person where age > 30")
	}
	plan, err := h.planner.PlanString(rest)
	if err != nil {
		return nil, err
	}
	stmt, err := h.explainer.ExplainPlan(plan)
	if err != nil {
		return nil, err
	}
	args, _ := json.Marshal(stmt.Args)
	return &Result{Output: stmt.SQL + "\nargs: " + string(args)}, nil
}
