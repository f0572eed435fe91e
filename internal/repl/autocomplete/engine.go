// Package autocomplete provides context-aware completions for FQL.
package autocomplete

import (
	"strings"

	"github.com/matthewbaird/filterspec/internal/fql"
	"github.com/matthewbaird/filterspec/internal/schema"
)

// CompletionItem is a single autocomplete suggestion.
type CompletionItem struct {
	Label      string `json:"label"`
	Kind       string `json:"kind"` // "verb", "entity", "field", "edge", "operator", "keyword", "value", "command", "function"
	Detail     string `json:"detail,omitempty"`
	InsertText string `json:"insert_text,omitempty"`
}

// Engine completes from the in-memory schema registry.
type Engine struct {
	registry  *schema.Registry
	functions []string
}

// New creates an autocomplete engine backed by the given registry. functions
// are the names offered after "call".
func New(registry *schema.Registry, functions ...string) *Engine {
	return &Engine{registry: registry, functions: functions}
}

var (
	verbs        = []string{"find", "count"}
	clauses      = []string{"where", "order", "limit", "offset"}
	countClauses = []string{"where"}
	operators    = []string{"=", "!=", ">", "<", ">=", "<=", "like", "ilike", "like_cs", "in", "is"}
	termStarts   = []string{"join", "fetch", "call"}
	joinTypes    = []string{"inner", "left", "right"}
	metaCommands = []string{":help", ":schema", ":explain", ":history", ":env", ":clear"}
)

// Complete returns autocomplete suggestions for the given FQL text and cursor position.
func (e *Engine) Complete(text string, cursor int) []CompletionItem {
	if cursor < 0 || cursor > len(text) {
		cursor = len(text)
	}
	prefix := text[:cursor]

	tokens, _ := fql.NewLexer(prefix).Tokenize()
	if len(tokens) > 0 && tokens[len(tokens)-1].Type == fql.TokenEOF {
		tokens = tokens[:len(tokens)-1]
	}

	// A token that ends at the cursor is still being typed; trailing
	// whitespace means it is complete.
	typing := len(tokens) > 0 && strings.TrimRight(prefix, " \t\r\n;") == prefix

	if len(tokens) > 0 && tokens[len(tokens)-1].Type == fql.TokenString {
		last := tokens[len(tokens)-1]
		if unterminated(prefix, last) {
			return e.completeStringValue(tokens, strings.ToLower(last.Literal))
		}
		if typing {
			return nil
		}
	}

	return e.contextualComplete(tokens, typing)
}

func (e *Engine) contextualComplete(tokens []fql.Token, typing bool) []CompletionItem {
	partial := ""
	if len(tokens) > 0 && typing {
		last := tokens[len(tokens)-1]
		switch {
		case last.Type == fql.TokenMetaCmd || isWord(last.Type):
			partial = strings.ToLower(last.Literal)
			tokens = tokens[:len(tokens)-1]
		case last.Type == fql.TokenInt || last.Type == fql.TokenFloat:
			return nil
		}
	}

	if len(tokens) == 0 {
		items := e.completeVerbs(partial)
		return append(items, e.completeMetaCmds(partial)...)
	}

	first := tokens[0]
	if first.Type == fql.TokenMetaCmd {
		if strings.EqualFold(first.Literal, ":schema") && len(tokens) == 1 {
			return e.completeEntities(partial)
		}
		if strings.EqualFold(first.Literal, ":explain") {
			return e.contextualCompleteRest(tokens[1:], partial)
		}
		return nil
	}
	return e.contextualCompleteRest(tokens, partial)
}

func (e *Engine) contextualCompleteRest(tokens []fql.Token, partial string) []CompletionItem {
	if len(tokens) == 0 {
		return e.completeVerbs(partial)
	}
	first := tokens[0]
	if !first.Type.IsVerb() {
		return nil
	}
	if len(tokens) == 1 {
		return e.completeEntities(partial)
	}
	es := e.registry.Entity(strings.ToLower(tokens[1].Literal))
	if es == nil {
		return nil
	}
	if len(tokens) == 2 {
		if first.Type == fql.TokenCount {
			return filterItems(countClauses, partial, "keyword")
		}
		return filterItems(clauses, partial, "keyword")
	}
	return e.completeInClauseContext(first.Type, tokens[2:], es, partial)
}

func (e *Engine) completeInClauseContext(verb fql.TokenType, tokens []fql.Token, es *schema.EntitySchema, partial string) []CompletionItem {
	last := tokens[len(tokens)-1]

	switch last.Type {
	case fql.TokenWhere, fql.TokenAnd, fql.TokenOr:
		items := e.completePaths(es, partial)
		return append(items, filterItems(termStarts, partial, "keyword")...)

	case fql.TokenJoin, fql.TokenFetch:
		items := filterItems(joinTypes, partial, "keyword")
		return append(items, e.completeEdges(es, partial)...)

	case fql.TokenInner, fql.TokenLeft, fql.TokenRight:
		return e.completeEdges(es, partial)

	case fql.TokenCall:
		return filterItems(e.functions, partial, "function")

	case fql.TokenDot:
		if target := e.pathTarget(es, pathBefore(tokens, len(tokens)-1)); target != nil {
			return e.completeFields(target, partial)
		}

	case fql.TokenIdent:
		switch prevKeyword(tokens) {
		case fql.TokenWhere, fql.TokenAnd, fql.TokenOr:
			return e.completeOperators(partial)
		case fql.TokenJoin, fql.TokenFetch, fql.TokenInner, fql.TokenLeft, fql.TokenRight:
			return e.completeAfterTerm(verb, partial)
		case fql.TokenBy:
			items := filterItems([]string{"asc", "desc"}, partial, "keyword")
			return append(items, e.completeAfterOrder(partial)...)
		}

	case fql.TokenIs:
		return filterItems([]string{"not", "null"}, partial, "keyword")

	case fql.TokenNot:
		return filterItems([]string{"null"}, partial, "keyword")

	case fql.TokenEQ, fql.TokenNEQ, fql.TokenGT, fql.TokenLT, fql.TokenGTE, fql.TokenLTE:
		if fm := e.fieldAt(es, pathBefore(tokens, len(tokens)-1)); fm != nil && fm.Type == schema.FieldEnum {
			return e.completeEnumValues(fm, partial)
		}

	case fql.TokenLBrack:
		if fm := e.fieldAt(es, pathBefore(tokens, len(tokens)-2)); fm != nil && fm.Type == schema.FieldEnum {
			return e.completeEnumValues(fm, partial)
		}

	case fql.TokenString, fql.TokenInt, fql.TokenFloat, fql.TokenBool, fql.TokenNull, fql.TokenRBrack, fql.TokenRParen:
		if inList(tokens) {
			return nil
		}
		return e.completeAfterTerm(verb, partial)

	case fql.TokenOrder:
		return filterItems([]string{"by"}, partial, "keyword")

	case fql.TokenBy:
		return e.completeFields(es, partial)

	case fql.TokenComma:
		if prevKeyword(tokens) == fql.TokenBy {
			return e.completeFields(es, partial)
		}

	case fql.TokenAsc, fql.TokenDesc:
		return e.completeAfterOrder(partial)
	}
	return nil
}

// ── Completion providers ────────────────────────────────────────────────────

func (e *Engine) completeVerbs(partial string) []CompletionItem {
	return filterItems(verbs, partial, "verb")
}

func (e *Engine) completeMetaCmds(partial string) []CompletionItem {
	return filterItems(metaCommands, partial, "command")
}

func (e *Engine) completeEntities(partial string) []CompletionItem {
	return filterItems(e.registry.EntityNames(), partial, "entity")
}

func (e *Engine) completeOperators(partial string) []CompletionItem {
	return filterItems(operators, partial, "operator")
}

func (e *Engine) completeAfterTerm(verb fql.TokenType, partial string) []CompletionItem {
	words := []string{"and", "or"}
	if verb == fql.TokenFind {
		words = append(words, "order", "limit", "offset")
	}
	return filterItems(words, partial, "keyword")
}

func (e *Engine) completeAfterOrder(partial string) []CompletionItem {
	return filterItems([]string{"limit", "offset"}, partial, "keyword")
}

// completePaths offers the entity's fields and relations, the first segment
// of any where-path.
func (e *Engine) completePaths(es *schema.EntitySchema, partial string) []CompletionItem {
	items := e.completeFields(es, partial)
	return append(items, e.completeEdges(es, partial)...)
}

func (e *Engine) completeFields(es *schema.EntitySchema, partial string) []CompletionItem {
	var items []CompletionItem
	for _, name := range es.FieldOrder {
		if partial == "" || strings.HasPrefix(strings.ToLower(name), partial) {
			items = append(items, CompletionItem{
				Label:  name,
				Kind:   "field",
				Detail: es.Fields[name].Type.String(),
			})
		}
	}
	return items
}

func (e *Engine) completeEdges(es *schema.EntitySchema, partial string) []CompletionItem {
	var items []CompletionItem
	for _, name := range es.EdgeOrder {
		if partial == "" || strings.HasPrefix(strings.ToLower(name), partial) {
			em := es.Edges[name]
			items = append(items, CompletionItem{
				Label:  name,
				Kind:   "edge",
				Detail: em.Target + " (" + string(em.Cardinality) + ")",
			})
		}
	}
	return items
}

func (e *Engine) completeEnumValues(fm *schema.FieldMeta, partial string) []CompletionItem {
	var items []CompletionItem
	for _, v := range fm.EnumValues {
		if partial == "" || strings.HasPrefix(strings.ToLower(v), partial) {
			items = append(items, CompletionItem{
				Label:      v,
				Kind:       "value",
				InsertText: "\"" + v + "\"",
			})
		}
	}
	return items
}

// completeStringValue completes an unterminated string after a comparison
// operator or inside an in-list.
func (e *Engine) completeStringValue(tokens []fql.Token, partial string) []CompletionItem {
	if len(tokens) < 3 || !tokens[0].Type.IsVerb() {
		return nil
	}
	es := e.registry.Entity(strings.ToLower(tokens[1].Literal))
	if es == nil {
		return nil
	}
	end := len(tokens) - 1
	for end > 0 && (tokens[end-1].Type == fql.TokenComma || tokens[end-1].Type == fql.TokenString || tokens[end-1].Type == fql.TokenLBrack) {
		end--
	}
	switch {
	case end > 0 && isComparisonOp(tokens[end-1].Type):
		end--
	case end > 0 && tokens[end-1].Type == fql.TokenIn:
		end--
	default:
		return nil
	}
	if fm := e.fieldAt(es, pathBefore(tokens, end)); fm != nil && fm.Type == schema.FieldEnum {
		return e.completeEnumValues(fm, partial)
	}
	return nil
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func filterItems(candidates []string, partial, kind string) []CompletionItem {
	var items []CompletionItem
	for _, c := range candidates {
		if partial == "" || strings.HasPrefix(strings.ToLower(c), partial) {
			items = append(items, CompletionItem{
				Label: c,
				Kind:  kind,
			})
		}
	}
	return items
}

// isWord reports whether t is typed as a word and may be a partial
// identifier or keyword.
func isWord(t fql.TokenType) bool {
	if t == fql.TokenIdent || t == fql.TokenBool || t == fql.TokenNull {
		return true
	}
	return t >= fql.TokenFind && t <= fql.TokenWith
}

func prevKeyword(tokens []fql.Token) fql.TokenType {
	for i := len(tokens) - 1; i >= 0; i-- {
		switch t := tokens[i].Type; t {
		case fql.TokenWhere, fql.TokenAnd, fql.TokenOr, fql.TokenBy,
			fql.TokenJoin, fql.TokenFetch, fql.TokenInner, fql.TokenLeft, fql.TokenRight:
			return t
		}
	}
	return fql.TokenEOF
}

// pathBefore returns the dotted path whose last token ends just before
// tokens[end].
func pathBefore(tokens []fql.Token, end int) []string {
	var parts []string
	i := end - 1
	for i >= 0 && tokens[i].Type == fql.TokenIdent {
		parts = append([]string{strings.ToLower(tokens[i].Literal)}, parts...)
		if i == 0 || tokens[i-1].Type != fql.TokenDot {
			break
		}
		i -= 2
	}
	return parts
}

// pathTarget follows relation names from es and returns the entity the last
// one points at.
func (e *Engine) pathTarget(es *schema.EntitySchema, rels []string) *schema.EntitySchema {
	for _, name := range rels {
		if es == nil {
			return nil
		}
		em := es.Edge(name)
		if em == nil {
			return nil
		}
		es = e.registry.Entity(em.Target)
	}
	return es
}

func (e *Engine) fieldAt(es *schema.EntitySchema, parts []string) *schema.FieldMeta {
	if len(parts) == 0 {
		return nil
	}
	owner := e.pathTarget(es, parts[:len(parts)-1])
	if owner == nil {
		return nil
	}
	return owner.Field(parts[len(parts)-1])
}

// inList reports whether an in-list opened in tokens is still open.
func inList(tokens []fql.Token) bool {
	for i := len(tokens) - 1; i >= 0; i-- {
		switch tokens[i].Type {
		case fql.TokenRBrack:
			return false
		case fql.TokenRParen:
			return false
		case fql.TokenLBrack:
			return true
		case fql.TokenLParen:
			return i > 0 && tokens[i-1].Type == fql.TokenIn
		}
	}
	return false
}

// unterminated reports whether the string token is missing its closing quote.
func unterminated(source string, tok fql.Token) bool {
	if tok.Pos >= len(source) {
		return true
	}
	quote := source[tok.Pos]
	return strings.LastIndexByte(source[tok.Pos+1:], quote) < 0
}

func isComparisonOp(t fql.TokenType) bool {
	return t == fql.TokenEQ || t == fql.TokenNEQ ||
		t == fql.TokenGT || t == fql.TokenLT ||
		t == fql.TokenGTE || t == fql.TokenLTE
}
