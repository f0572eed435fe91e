package cli

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/matthewbaird/filterspec/internal/fql"
	"github.com/matthewbaird/filterspec/internal/planner"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <fql>",
		Short: "Run a find or count statement",
		Example: `  filterspec query 'find person where status = "ACTIVE" or age > 40 order by name'
  filterspec query --format json 'count person where tags.label = "go"'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, plan, err := prepare(cmd.Context(), rootOpts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.exec.Execute(cmd.Context(), plan)
			if err != nil {
				return err
			}
			out := &output{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return out.result(a.exec.Registry().Entity(plan.Entity), result)
		},
	}
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <fql>",
		Short: "Print the SQL a statement runs without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, plan, err := prepare(cmd.Context(), rootOpts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			stmt, err := a.exec.ExplainPlan(plan)
			if err != nil {
				return err
			}
			out := &output{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return out.statement(stmt)
		},
	}
}

// prepare parses and plans one statement. Meta-commands belong to the REPL.
func prepare(ctx context.Context, opts *RootOptions, input string) (*app, *planner.QueryPlan, error) {
	stmt, err := fql.ParseOne(input)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := stmt.(*fql.MetaCmdStmt); ok {
		return nil, nil, errors.WithHint(
			errors.New("meta-commands are only available in the REPL"),
			"connect to /api/repl/ws on a running server",
		)
	}

	a, err := openApp(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	plan, err := planner.New(a.exec.Registry()).Plan(stmt)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, plan, nil
}
