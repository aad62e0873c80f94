// Package store provides a SQLite-backed Database implementation for
// local development and single-node deployments.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"mithoo/internal/core"
	"mithoo/internal/persistence"
)

// Store represents the SQLite-based datastore.
type Store struct {
	db   *sql.DB
	path string
}

var _ persistence.Database = (*Store)(nil)

// NewStore opens (or creates) the SQLite database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "mithoo.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	conversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		article_id TEXT NOT NULL DEFAULT '',
		messages TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME,
		updated_at DATETIME
	);`

	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		word_count INTEGER NOT NULL DEFAULT 0,
		research_data TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`

	preferencesTable := `
	CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		custom_gemini_key TEXT NOT NULL DEFAULT ''
	);`

	trainingTable := `
	CREATE TABLE IF NOT EXISTS fine_tuning_data (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		training_text TEXT NOT NULL,
		model_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'training',
		created_at DATETIME
	);`

	agentSessionsTable := `
	CREATE TABLE IF NOT EXISTS agent_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		plan TEXT NOT NULL DEFAULT '[]',
		final_result TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'completed',
		created_at DATETIME
	);`

	tables := []string{conversationsTable, articlesTable, preferencesTable, trainingTable, agentSessionsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

func (s *Store) Conversations() persistence.ConversationRepository { return &conversationRepo{s.db} }
func (s *Store) Articles() persistence.ArticleRepository           { return &articleRepo{s.db} }
func (s *Store) Preferences() persistence.PreferenceRepository     { return &preferenceRepo{s.db} }
func (s *Store) Training() persistence.TrainingRepository          { return &trainingRepo{s.db} }
func (s *Store) Agents() persistence.AgentRepository               { return &agentRepo{s.db} }

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type conversationRepo struct {
	db *sql.DB
}

func (r *conversationRepo) Get(ctx context.Context, id string) (*core.Conversation, error) {
	var conv core.Conversation
	var messages string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, article_id, messages, created_at, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.UserID, &conv.ArticleID, &messages, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &persistence.StoreUnavailableError{Op: "get conversation", Err: err}
	}
	if err := json.Unmarshal([]byte(messages), &conv.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepo) Create(ctx context.Context, conv *core.Conversation) error {
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, article_id, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.ArticleID, string(messages), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "create conversation", Err: err}
	}
	return nil
}

func (r *conversationRepo) Save(ctx context.Context, conv *core.Conversation) error {
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE conversations SET messages = ?, updated_at = ? WHERE id = ?`,
		string(messages), conv.UpdatedAt, conv.ID)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "save conversation", Err: err}
	}
	return nil
}

type articleRepo struct {
	db *sql.DB
}

func (r *articleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	var article core.Article
	var research sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, word_count, research_data, created_at, updated_at
		FROM articles WHERE id = ?`, id).
		Scan(&article.ID, &article.UserID, &article.Title, &article.Content,
			&article.WordCount, &research, &article.CreatedAt, &article.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &persistence.StoreUnavailableError{Op: "get article", Err: err}
	}
	if research.Valid && research.String != "" {
		article.ResearchData = &core.ResearchData{}
		if err := json.Unmarshal([]byte(research.String), article.ResearchData); err != nil {
			return nil, fmt.Errorf("failed to decode research data: %w", err)
		}
	}
	return &article, nil
}

func (r *articleRepo) Create(ctx context.Context, article *core.Article) error {
	var research sql.NullString
	if article.ResearchData != nil {
		b, err := json.Marshal(article.ResearchData)
		if err != nil {
			return fmt.Errorf("failed to encode research data: %w", err)
		}
		research = sql.NullString{String: string(b), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO articles (id, user_id, title, content, word_count, research_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID, article.UserID, article.Title, article.Content,
		article.WordCount, research, article.CreatedAt, article.UpdatedAt)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "create article", Err: err}
	}
	return nil
}

func (r *articleRepo) UpdateContent(ctx context.Context, id, userID, content string, wordCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE articles SET content = ?, word_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`,
		content, wordCount, id, userID)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "update article content", Err: err}
	}
	return nil
}

func (r *articleRepo) UpdateResearch(ctx context.Context, id, userID string, data *core.ResearchData) error {
	research, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode research data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE articles SET research_data = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`,
		string(research), id, userID)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "update article research", Err: err}
	}
	return nil
}

type preferenceRepo struct {
	db *sql.DB
}

func (r *preferenceRepo) Get(ctx context.Context, userID string) (*core.Preferences, error) {
	var prefs core.Preferences
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, custom_gemini_key FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&prefs.UserID, &prefs.CustomGeminiKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &persistence.StoreUnavailableError{Op: "get preferences", Err: err}
	}
	return &prefs, nil
}

func (r *preferenceRepo) Save(ctx context.Context, prefs *core.Preferences) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, custom_gemini_key)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET custom_gemini_key = excluded.custom_gemini_key`,
		prefs.UserID, prefs.CustomGeminiKey)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "save preferences", Err: err}
	}
	return nil
}

type trainingRepo struct {
	db *sql.DB
}

func (r *trainingRepo) Create(ctx context.Context, data *core.TrainingData) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fine_tuning_data (id, user_id, training_text, model_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		data.ID, data.UserID, data.TrainingText, data.ModelName, string(data.Status), data.CreatedAt)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "create training record", Err: err}
	}
	return nil
}

func (r *trainingRepo) UpdateStatus(ctx context.Context, id string, status core.TrainingStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE fine_tuning_data SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "update training status", Err: err}
	}
	return nil
}

func (r *trainingRepo) LatestCompleted(ctx context.Context, userID string) (*core.TrainingData, error) {
	var data core.TrainingData
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, training_text, model_name, status, created_at
		FROM fine_tuning_data
		WHERE user_id = ? AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT 1`, userID).
		Scan(&data.ID, &data.UserID, &data.TrainingText, &data.ModelName, &status, &data.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &persistence.StoreUnavailableError{Op: "get latest training record", Err: err}
	}
	data.Status = core.TrainingStatus(status)
	return &data, nil
}

type agentRepo struct {
	db *sql.DB
}

func (r *agentRepo) Create(ctx context.Context, session *core.AgentSession) error {
	plan, err := json.Marshal(session.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (id, user_id, prompt, plan, final_result, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Prompt, string(plan),
		session.FinalResult, session.Status, session.CreatedAt)
	if err != nil {
		return &persistence.StoreUnavailableError{Op: "create agent session", Err: err}
	}
	return nil
}

func (r *agentRepo) ListByUser(ctx context.Context, userID string) ([]core.AgentSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, prompt, plan, final_result, status, created_at
		FROM agent_sessions
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, &persistence.StoreUnavailableError{Op: "list agent sessions", Err: err}
	}
	defer rows.Close()

	var sessions []core.AgentSession
	for rows.Next() {
		var session core.AgentSession
		var plan string
		if err := rows.Scan(&session.ID, &session.UserID, &session.Prompt, &plan,
			&session.FinalResult, &session.Status, &session.CreatedAt); err != nil {
			return nil, &persistence.StoreUnavailableError{Op: "scan agent session", Err: err}
		}
		if err := json.Unmarshal([]byte(plan), &session.Plan); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, &persistence.StoreUnavailableError{Op: "list agent sessions", Err: err}
	}
	return sessions, nil
}
