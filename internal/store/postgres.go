package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/veriscope/authenticity-engine/internal/db"
	"github.com/veriscope/authenticity-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the request-path store operations.
var preparedStatements = map[string]string{
	"upsert_consensus": `INSERT INTO consensus_records
		(media_id, media_type, overall_authenticity_score, ai_generated_probability, deepfake_probability, manipulation_probability,
		 verdict, verdict_confidence, providers_analyzed, providers_agreed, recommendation, requires_human_review, analyzed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (media_id, media_type) DO UPDATE SET
		 overall_authenticity_score = EXCLUDED.overall_authenticity_score,
		 ai_generated_probability = EXCLUDED.ai_generated_probability,
		 deepfake_probability = EXCLUDED.deepfake_probability,
		 manipulation_probability = EXCLUDED.manipulation_probability,
		 verdict = EXCLUDED.verdict,
		 verdict_confidence = EXCLUDED.verdict_confidence,
		 providers_analyzed = EXCLUDED.providers_analyzed,
		 providers_agreed = EXCLUDED.providers_agreed,
		 recommendation = EXCLUDED.recommendation,
		 requires_human_review = EXCLUDED.requires_human_review,
		 analyzed_at = EXCLUDED.analyzed_at,
		 updated_at = EXCLUDED.updated_at`,
	"get_consensus": `SELECT overall_authenticity_score, ai_generated_probability, deepfake_probability, manipulation_probability,
		 verdict, verdict_confidence, providers_analyzed, providers_agreed, recommendation, requires_human_review, analyzed_at
		FROM consensus_records WHERE media_id = $1 AND media_type = $2`,
	"list_provider_results": `SELECT provider, ai_generated_score, deepfake_score, face_swap_score, voice_clone_score, manipulation_score,
		 confidence, verdict, gan_detected, gan_model, diffusion_detected, diffusion_model, raw_response, request_duration_ms, analyzed_at
		FROM provider_results WHERE media_id = $1 AND media_type = $2
		ORDER BY analyzed_at DESC, provider ASC`,
	"upsert_moderation_state": `INSERT INTO moderation_states
		(media_id, ai_detection_score, ai_detection_confidence, deepfake_detected, manipulation_detected, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (media_id) DO UPDATE SET
		 ai_detection_score = EXCLUDED.ai_detection_score,
		 ai_detection_confidence = EXCLUDED.ai_detection_confidence,
		 deepfake_detected = EXCLUDED.deepfake_detected,
		 manipulation_detected = EXCLUDED.manipulation_detected,
		 updated_at = EXCLUDED.updated_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare the request-path statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS provider_results (
	id                  TEXT PRIMARY KEY,
	media_id            TEXT NOT NULL,
	media_type          TEXT NOT NULL,
	provider            TEXT NOT NULL,
	ai_generated_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	deepfake_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	face_swap_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	voice_clone_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	manipulation_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
	verdict             TEXT NOT NULL,
	gan_detected        BOOLEAN NOT NULL DEFAULT false,
	gan_model           TEXT,
	diffusion_detected  BOOLEAN NOT NULL DEFAULT false,
	diffusion_model     TEXT,
	raw_response        JSONB,
	request_duration_ms BIGINT NOT NULL DEFAULT 0,
	analyzed_at         TIMESTAMPTZ NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_provider_results_media ON provider_results(media_id, media_type);
CREATE INDEX IF NOT EXISTS idx_provider_results_analyzed_at ON provider_results(analyzed_at);
CREATE INDEX IF NOT EXISTS idx_provider_results_provider ON provider_results(provider);

CREATE TABLE IF NOT EXISTS consensus_records (
	media_id                   TEXT NOT NULL,
	media_type                 TEXT NOT NULL,
	overall_authenticity_score DOUBLE PRECISION NOT NULL,
	ai_generated_probability   DOUBLE PRECISION NOT NULL,
	deepfake_probability       DOUBLE PRECISION NOT NULL,
	manipulation_probability   DOUBLE PRECISION NOT NULL,
	verdict                    TEXT NOT NULL,
	verdict_confidence         DOUBLE PRECISION NOT NULL,
	providers_analyzed         INTEGER NOT NULL,
	providers_agreed           INTEGER NOT NULL,
	recommendation             TEXT NOT NULL,
	requires_human_review      BOOLEAN NOT NULL,
	analyzed_at                TIMESTAMPTZ NOT NULL,
	updated_at                 TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (media_id, media_type)
);

CREATE INDEX IF NOT EXISTS idx_consensus_records_analyzed_at ON consensus_records(analyzed_at);
CREATE INDEX IF NOT EXISTS idx_consensus_records_review ON consensus_records(requires_human_review);

CREATE TABLE IF NOT EXISTS moderation_states (
	media_id                TEXT PRIMARY KEY,
	ai_detection_score      DOUBLE PRECISION NOT NULL,
	ai_detection_confidence DOUBLE PRECISION NOT NULL,
	deepfake_detected       BOOLEAN NOT NULL,
	manipulation_detected   BOOLEAN NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// providerResultColumns is the COPY column list for provider_results.
var providerResultColumns = []string{
	"id", "media_id", "media_type", "provider",
	"ai_generated_score", "deepfake_score", "face_swap_score", "voice_clone_score", "manipulation_score",
	"confidence", "verdict", "gan_detected", "gan_model", "diffusion_detected", "diffusion_model",
	"raw_response", "request_duration_ms", "analyzed_at", "created_at",
}

func (s *PostgresStore) AppendProviderResults(ctx context.Context, ref model.MediaRef, results []model.ProviderResult) error {
	if len(results) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		var raw []byte
		if len(r.RawResponse) > 0 {
			raw = r.RawResponse
		}
		rows = append(rows, []any{
			uuid.New().String(), ref.MediaID, string(ref.MediaType), r.Provider,
			r.AIGeneratedScore, r.DeepfakeScore, r.FaceSwapScore, r.VoiceCloneScore, r.ManipulationScore,
			r.Confidence, string(r.Verdict), r.GANDetected, nullIfEmpty(r.GANModel), r.DiffusionDetected, nullIfEmpty(r.DiffusionModel),
			raw, r.RequestDurationMS, r.AnalyzedAt, now,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "provider_results", providerResultColumns, rows)
	return eris.Wrap(err, "postgres: append provider results")
}

func (s *PostgresStore) UpsertConsensus(ctx context.Context, ref model.MediaRef, rec model.ConsensusRecord) error {
	_, err := s.pool.Exec(ctx, preparedStatements["upsert_consensus"],
		ref.MediaID, string(ref.MediaType),
		rec.OverallAuthenticityScore, rec.AIGeneratedProbability, rec.DeepfakeProbability, rec.ManipulationProbability,
		string(rec.Verdict), rec.VerdictConfidence, rec.ProvidersAnalyzed, rec.ProvidersAgreed,
		string(rec.Recommendation), rec.RequiresHumanReview, rec.AnalyzedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert consensus %s", ref.MediaID)
}

func (s *PostgresStore) UpsertModerationState(ctx context.Context, mediaID string, digest model.ModerationDigest) error {
	_, err := s.pool.Exec(ctx, preparedStatements["upsert_moderation_state"],
		mediaID, digest.AIDetectionScore, digest.AIDetectionConfidence,
		digest.DeepfakeDetected, digest.ManipulationDetected, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert moderation state %s", mediaID)
}

func (s *PostgresStore) GetConsensus(ctx context.Context, mediaID string, mediaType model.MediaType) (*model.ConsensusRecord, error) {
	var rec model.ConsensusRecord
	err := s.pool.QueryRow(ctx, preparedStatements["get_consensus"], mediaID, string(mediaType)).Scan(
		&rec.OverallAuthenticityScore, &rec.AIGeneratedProbability, &rec.DeepfakeProbability, &rec.ManipulationProbability,
		&rec.Verdict, &rec.VerdictConfidence, &rec.ProvidersAnalyzed, &rec.ProvidersAgreed,
		&rec.Recommendation, &rec.RequiresHumanReview, &rec.AnalyzedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get consensus %s", mediaID)
	}
	return &rec, nil
}

func (s *PostgresStore) ListProviderResults(ctx context.Context, mediaID string, mediaType model.MediaType) ([]model.ProviderResult, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_provider_results"], mediaID, string(mediaType))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list provider results %s", mediaID)
	}
	defer rows.Close()

	var results []model.ProviderResult
	for rows.Next() {
		var r model.ProviderResult
		var ganModel, diffusionModel *string
		var raw []byte
		if err := rows.Scan(
			&r.Provider, &r.AIGeneratedScore, &r.DeepfakeScore, &r.FaceSwapScore, &r.VoiceCloneScore, &r.ManipulationScore,
			&r.Confidence, &r.Verdict, &r.GANDetected, &ganModel, &r.DiffusionDetected, &diffusionModel,
			&raw, &r.RequestDurationMS, &r.AnalyzedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider result")
		}
		if ganModel != nil {
			r.GANModel = *ganModel
		}
		if diffusionModel != nil {
			r.DiffusionModel = *diffusionModel
		}
		if len(raw) > 0 {
			r.RawResponse = raw
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list provider results iterate")
}

func (s *PostgresStore) CountAnalyses(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM consensus_records WHERE analyzed_at >= $1`,
		since,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count analyses")
}

func (s *PostgresStore) VerdictCounts(ctx context.Context, since time.Time) (map[model.Verdict]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT verdict, COUNT(*) FROM consensus_records WHERE analyzed_at >= $1 GROUP BY verdict`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: verdict counts")
	}
	defer rows.Close()

	counts := make(map[model.Verdict]int)
	for rows.Next() {
		var v string
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan verdict count")
		}
		counts[model.Verdict(v)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: verdict counts iterate")
}

func (s *PostgresStore) RecommendationCounts(ctx context.Context, since time.Time) (map[model.Recommendation]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT recommendation, COUNT(*) FROM consensus_records WHERE analyzed_at >= $1 GROUP BY recommendation`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recommendation counts")
	}
	defer rows.Close()

	counts := make(map[model.Recommendation]int)
	for rows.Next() {
		var rec string
		var n int
		if err := rows.Scan(&rec, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recommendation count")
		}
		counts[model.Recommendation(rec)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: recommendation counts iterate")
}

func (s *PostgresStore) HumanReviewCount(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM consensus_records WHERE analyzed_at >= $1 AND requires_human_review`,
		since,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: human review count")
}

func (s *PostgresStore) ProviderActivity(ctx context.Context, since time.Time) ([]ProviderActivity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, COUNT(*), COALESCE(AVG(request_duration_ms), 0)::float8
		 FROM provider_results WHERE analyzed_at >= $1
		 GROUP BY provider ORDER BY provider`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: provider activity")
	}
	defer rows.Close()

	var activity []ProviderActivity
	for rows.Next() {
		var a ProviderActivity
		if err := rows.Scan(&a.Provider, &a.Results, &a.AvgLatencyMS); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider activity")
		}
		activity = append(activity, a)
	}
	return activity, eris.Wrap(rows.Err(), "postgres: provider activity iterate")
}

func (s *PostgresStore) RecentConsensus(ctx context.Context, limit int) ([]model.ConsensusSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT media_id, media_type, verdict, recommendation, overall_authenticity_score, requires_human_review, analyzed_at
		 FROM consensus_records ORDER BY analyzed_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent consensus")
	}
	defer rows.Close()

	var summaries []model.ConsensusSummary
	for rows.Next() {
		var cs model.ConsensusSummary
		if err := rows.Scan(&cs.MediaID, &cs.MediaType, &cs.Verdict, &cs.Recommendation,
			&cs.OverallAuthenticityScore, &cs.RequiresHumanReview, &cs.AnalyzedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan consensus summary")
		}
		summaries = append(summaries, cs)
	}
	return summaries, eris.Wrap(rows.Err(), "postgres: recent consensus iterate")
}

// nullIfEmpty maps an empty string to SQL NULL so the optional model-name
// columns stay NULL instead of collecting empty strings.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
