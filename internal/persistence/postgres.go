package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"mithoo/internal/core"
)

// PostgresDB implements Database on top of PostgreSQL.
type PostgresDB struct {
	db            *sql.DB
	conversations *postgresConversationRepo
	articles      *postgresArticleRepo
	preferences   *postgresPreferenceRepo
	training      *postgresTrainingRepo
	agents        *postgresAgentRepo
}

// NewPostgresDB opens a connection pool and verifies connectivity.
func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresDB{
		db:            db,
		conversations: &postgresConversationRepo{db: db},
		articles:      &postgresArticleRepo{db: db},
		preferences:   &postgresPreferenceRepo{db: db},
		training:      &postgresTrainingRepo{db: db},
		agents:        &postgresAgentRepo{db: db},
	}, nil
}

func (p *PostgresDB) Conversations() ConversationRepository { return p.conversations }
func (p *PostgresDB) Articles() ArticleRepository           { return p.articles }
func (p *PostgresDB) Preferences() PreferenceRepository     { return p.preferences }
func (p *PostgresDB) Training() TrainingRepository          { return p.training }
func (p *PostgresDB) Agents() AgentRepository               { return p.agents }

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func createSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			article_id TEXT NOT NULL DEFAULT '',
			messages   JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_article ON conversations(article_id)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			content       TEXT NOT NULL DEFAULT '',
			word_count    INTEGER NOT NULL DEFAULT 0,
			research_data JSONB,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_user ON articles(user_id)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id           TEXT PRIMARY KEY,
			custom_gemini_key TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS fine_tuning_data (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			training_text TEXT NOT NULL,
			model_name    TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'training',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fine_tuning_user ON fine_tuning_data(user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS agent_sessions (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			prompt       TEXT NOT NULL,
			plan         JSONB NOT NULL DEFAULT '[]',
			final_result TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'completed',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_sessions_user ON agent_sessions(user_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type postgresConversationRepo struct {
	db *sql.DB
}

func (r *postgresConversationRepo) Get(ctx context.Context, id string) (*core.Conversation, error) {
	var conv core.Conversation
	var messages []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, article_id, messages, created_at, updated_at
		FROM conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.UserID, &conv.ArticleID, &messages, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreUnavailableError{Op: "get conversation", Err: err}
	}
	if err := json.Unmarshal(messages, &conv.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return &conv, nil
}

func (r *postgresConversationRepo) Create(ctx context.Context, conv *core.Conversation) error {
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, article_id, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.ID, conv.UserID, conv.ArticleID, messages, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return &StoreUnavailableError{Op: "create conversation", Err: err}
	}
	return nil
}

func (r *postgresConversationRepo) Save(ctx context.Context, conv *core.Conversation) error {
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE conversations SET messages = $1, updated_at = $2 WHERE id = $3`,
		messages, conv.UpdatedAt, conv.ID)
	if err != nil {
		return &StoreUnavailableError{Op: "save conversation", Err: err}
	}
	return nil
}

type postgresArticleRepo struct {
	db *sql.DB
}

func (r *postgresArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	var article core.Article
	var research []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, word_count, research_data, created_at, updated_at
		FROM articles WHERE id = $1`, id).
		Scan(&article.ID, &article.UserID, &article.Title, &article.Content,
			&article.WordCount, &research, &article.CreatedAt, &article.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreUnavailableError{Op: "get article", Err: err}
	}
	if len(research) > 0 {
		article.ResearchData = &core.ResearchData{}
		if err := json.Unmarshal(research, article.ResearchData); err != nil {
			return nil, fmt.Errorf("failed to decode research data: %w", err)
		}
	}
	return &article, nil
}

func (r *postgresArticleRepo) Create(ctx context.Context, article *core.Article) error {
	var research []byte
	if article.ResearchData != nil {
		var err error
		research, err = json.Marshal(article.ResearchData)
		if err != nil {
			return fmt.Errorf("failed to encode research data: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO articles (id, user_id, title, content, word_count, research_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		article.ID, article.UserID, article.Title, article.Content,
		article.WordCount, nullableJSON(research), article.CreatedAt, article.UpdatedAt)
	if err != nil {
		return &StoreUnavailableError{Op: "create article", Err: err}
	}
	return nil
}

func (r *postgresArticleRepo) UpdateContent(ctx context.Context, id, userID, content string, wordCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE articles SET content = $1, word_count = $2, updated_at = now()
		WHERE id = $3 AND user_id = $4`,
		content, wordCount, id, userID)
	if err != nil {
		return &StoreUnavailableError{Op: "update article content", Err: err}
	}
	return nil
}

func (r *postgresArticleRepo) UpdateResearch(ctx context.Context, id, userID string, data *core.ResearchData) error {
	research, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode research data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE articles SET research_data = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3`,
		research, id, userID)
	if err != nil {
		return &StoreUnavailableError{Op: "update article research", Err: err}
	}
	return nil
}

type postgresPreferenceRepo struct {
	db *sql.DB
}

func (r *postgresPreferenceRepo) Get(ctx context.Context, userID string) (*core.Preferences, error) {
	var prefs core.Preferences
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, custom_gemini_key FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&prefs.UserID, &prefs.CustomGeminiKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreUnavailableError{Op: "get preferences", Err: err}
	}
	return &prefs, nil
}

func (r *postgresPreferenceRepo) Save(ctx context.Context, prefs *core.Preferences) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, custom_gemini_key)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET custom_gemini_key = EXCLUDED.custom_gemini_key`,
		prefs.UserID, prefs.CustomGeminiKey)
	if err != nil {
		return &StoreUnavailableError{Op: "save preferences", Err: err}
	}
	return nil
}

type postgresTrainingRepo struct {
	db *sql.DB
}

func (r *postgresTrainingRepo) Create(ctx context.Context, data *core.TrainingData) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fine_tuning_data (id, user_id, training_text, model_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		data.ID, data.UserID, data.TrainingText, data.ModelName, data.Status, data.CreatedAt)
	if err != nil {
		return &StoreUnavailableError{Op: "create training record", Err: err}
	}
	return nil
}

func (r *postgresTrainingRepo) UpdateStatus(ctx context.Context, id string, status core.TrainingStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE fine_tuning_data SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return &StoreUnavailableError{Op: "update training status", Err: err}
	}
	return nil
}

func (r *postgresTrainingRepo) LatestCompleted(ctx context.Context, userID string) (*core.TrainingData, error) {
	var data core.TrainingData
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, training_text, model_name, status, created_at
		FROM fine_tuning_data
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT 1`, userID).
		Scan(&data.ID, &data.UserID, &data.TrainingText, &data.ModelName, &data.Status, &data.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreUnavailableError{Op: "get latest training record", Err: err}
	}
	return &data, nil
}

// nullableJSON maps an empty payload to SQL NULL.
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

type postgresAgentRepo struct {
	db *sql.DB
}

func (r *postgresAgentRepo) Create(ctx context.Context, session *core.AgentSession) error {
	plan, err := json.Marshal(session.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (id, user_id, prompt, plan, final_result, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.Prompt, plan,
		session.FinalResult, session.Status, session.CreatedAt)
	if err != nil {
		return &StoreUnavailableError{Op: "create agent session", Err: err}
	}
	return nil
}

func (r *postgresAgentRepo) ListByUser(ctx context.Context, userID string) ([]core.AgentSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, prompt, plan, final_result, status, created_at
		FROM agent_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, &StoreUnavailableError{Op: "list agent sessions", Err: err}
	}
	defer rows.Close()

	var sessions []core.AgentSession
	for rows.Next() {
		var session core.AgentSession
		var plan []byte
		if err := rows.Scan(&session.ID, &session.UserID, &session.Prompt, &plan,
			&session.FinalResult, &session.Status, &session.CreatedAt); err != nil {
			return nil, &StoreUnavailableError{Op: "scan agent session", Err: err}
		}
		if err := json.Unmarshal(plan, &session.Plan); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreUnavailableError{Op: "list agent sessions", Err: err}
	}
	return sessions, nil
}
