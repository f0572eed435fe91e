package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matthewbaird/filterspec/internal/executor"
	"github.com/matthewbaird/filterspec/internal/schema"
)

// output writes results in the selected format.
type output struct {
	format string
	w      io.Writer
}

func (o *output) json(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) result(es *schema.EntitySchema, res *executor.Result) error {
	if o.format == "json" {
		if res.Count != nil {
			return o.json(map[string]any{"entity": es.Name, "count": *res.Count})
		}
		rows := res.Rows
		if rows == nil {
			rows = []executor.Row{}
		}
		return o.json(map[string]any{"entity": es.Name, "rows": rows, "total": len(rows)})
	}

	if res.Count != nil {
		_, err := fmt.Fprintf(o.w, "%d\n", *res.Count)
		return err
	}
	if len(res.Rows) == 0 {
		_, err := fmt.Fprintln(o.w, "(0 rows)")
		return err
	}

	columns := rowColumns(es, res.Rows)
	tw := tabwriter.NewWriter(o.w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = cell(row[c])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	noun := "rows"
	if len(res.Rows) == 1 {
		noun = "row"
	}
	_, err := fmt.Fprintf(o.w, "(%d %s)\n", len(res.Rows), noun)
	return err
}

func (o *output) statement(stmt *executor.Statement) error {
	if o.format == "json" {
		return o.json(stmt)
	}
	args, err := json.Marshal(stmt.Args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(o.w, "%s\nargs: %s\n", stmt.SQL, args)
	return err
}

// rowColumns lists the primary key, the fields in schema order, then any
// fetched edges present in the rows.
func rowColumns(es *schema.EntitySchema, rows []executor.Row) []string {
	cols := []string{es.ID}
	for _, name := range es.FieldOrder {
		if name != es.ID {
			cols = append(cols, name)
		}
	}
	for _, name := range es.EdgeOrder {
		if _, ok := rows[0][name]; ok {
			cols = append(cols, name)
		}
	}
	return cols
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case executor.Row, []executor.Row:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
