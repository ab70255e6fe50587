package questions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Catalog resolves question definitions grouped by command and follow-up branch.
type Catalog interface {
	// QuestionsForCommand returns the ordered questions bound to a command.
	QuestionsForCommand(ctx context.Context, command string) ([]Question, error)
	// FollowUpsFor returns questions branched off a specific answered option.
	FollowUpsFor(ctx context.Context, parentKey string, optionID int64) ([]Question, error)
	// Commands returns the distinct catalog-defined commands (the allow-list).
	Commands(ctx context.Context) ([]string, error)
}

const questionColumns = `id, key, question, answer_type, min_value, max_value,
	category, show, is_positive, display_name, cadence, command, graph_type,
	parent_key, parent_option_id`

// SQLCatalog implements Catalog over the questions and question_options tables.
type SQLCatalog struct {
	db *sqlx.DB
}

// NewSQLCatalog wraps a live database handle.
func NewSQLCatalog(db *sqlx.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

func (c *SQLCatalog) QuestionsForCommand(ctx context.Context, command string) ([]Question, error) {
	command = strings.TrimSpace(command)
	query := `SELECT ` + questionColumns + ` FROM questions WHERE command = $1 ORDER BY position, id`
	var list []Question
	if err := c.db.SelectContext(ctx, &list, query, command); err != nil {
		return nil, fmt.Errorf("catalog: questions for command %q: %w", command, err)
	}
	if err := c.attachOptions(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *SQLCatalog) FollowUpsFor(ctx context.Context, parentKey string, optionID int64) ([]Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE parent_key = $1 AND parent_option_id = $2 ORDER BY position, id`
	var list []Question
	if err := c.db.SelectContext(ctx, &list, query, parentKey, optionID); err != nil {
		return nil, fmt.Errorf("catalog: follow-ups for %s/%d: %w", parentKey, optionID, err)
	}
	if err := c.attachOptions(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *SQLCatalog) Commands(ctx context.Context) ([]string, error) {
	var list []string
	query := `SELECT DISTINCT command FROM questions WHERE command IS NOT NULL AND command <> ''`
	if err := c.db.SelectContext(ctx, &list, query); err != nil {
		return nil, fmt.Errorf("catalog: commands: %w", err)
	}
	sort.Strings(list)
	return list, nil
}

// QuestionsFiltered serves the read API: optional category and visibility filters.
func (c *SQLCatalog) QuestionsFiltered(ctx context.Context, category string, visibleOnly bool) ([]Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var (
		where []string
		args  []interface{}
	)
	if visibleOnly {
		where = append(where, "show = TRUE")
	}
	if category != "" {
		args = append(args, category)
		where = append(where, fmt.Sprintf("category = (SELECT id FROM category WHERE name = $%d)", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY position, id"

	var list []Question
	if err := c.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("catalog: filtered questions: %w", err)
	}
	if err := c.attachOptions(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Categories lists visualization categories for the read API.
func (c *SQLCatalog) Categories(ctx context.Context) ([]Category, error) {
	var list []Category
	const query = `SELECT id, name, priority, description FROM category ORDER BY priority, id`
	if err := c.db.SelectContext(ctx, &list, query); err != nil {
		return nil, fmt.Errorf("catalog: categories: %w", err)
	}
	return list, nil
}

func (c *SQLCatalog) attachOptions(ctx context.Context, list []Question) error {
	if len(list) == 0 {
		return nil
	}
	keys := make([]string, 0, len(list))
	for _, q := range list {
		keys = append(keys, q.Key)
	}

	query, args, err := sqlx.In(`SELECT id, question_key, name FROM question_options WHERE question_key IN (?) ORDER BY position, id`, keys)
	if err != nil {
		return fmt.Errorf("catalog: options query: %w", err)
	}
	query = c.db.Rebind(query)

	var opts []QuestionOption
	if err := c.db.SelectContext(ctx, &opts, query, args...); err != nil {
		return fmt.Errorf("catalog: options for %d questions: %w", len(list), err)
	}

	byKey := make(map[string][]QuestionOption, len(list))
	for _, opt := range opts {
		byKey[opt.OwnerQuestionKey] = append(byKey[opt.OwnerQuestionKey], opt)
	}
	for i := range list {
		list[i].Options = byKey[list[i].Key]
	}
	return nil
}
