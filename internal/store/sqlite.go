package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/veriscope/authenticity-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS provider_results (
	id                  TEXT PRIMARY KEY,
	media_id            TEXT NOT NULL,
	media_type          TEXT NOT NULL,
	provider            TEXT NOT NULL,
	ai_generated_score  REAL NOT NULL DEFAULT 0,
	deepfake_score      REAL NOT NULL DEFAULT 0,
	face_swap_score     REAL NOT NULL DEFAULT 0,
	voice_clone_score   REAL NOT NULL DEFAULT 0,
	manipulation_score  REAL NOT NULL DEFAULT 0,
	confidence          REAL NOT NULL DEFAULT 0,
	verdict             TEXT NOT NULL,
	gan_detected        INTEGER NOT NULL DEFAULT 0,
	gan_model           TEXT,
	diffusion_detected  INTEGER NOT NULL DEFAULT 0,
	diffusion_model     TEXT,
	raw_response        TEXT,
	request_duration_ms INTEGER NOT NULL DEFAULT 0,
	analyzed_at         DATETIME NOT NULL,
	created_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provider_results_media ON provider_results(media_id, media_type);
CREATE INDEX IF NOT EXISTS idx_provider_results_analyzed_at ON provider_results(analyzed_at);
CREATE INDEX IF NOT EXISTS idx_provider_results_provider ON provider_results(provider);

CREATE TABLE IF NOT EXISTS consensus_records (
	media_id                   TEXT NOT NULL,
	media_type                 TEXT NOT NULL,
	overall_authenticity_score REAL NOT NULL,
	ai_generated_probability   REAL NOT NULL,
	deepfake_probability       REAL NOT NULL,
	manipulation_probability   REAL NOT NULL,
	verdict                    TEXT NOT NULL,
	verdict_confidence         REAL NOT NULL,
	providers_analyzed         INTEGER NOT NULL,
	providers_agreed           INTEGER NOT NULL,
	recommendation             TEXT NOT NULL,
	requires_human_review      INTEGER NOT NULL,
	analyzed_at                DATETIME NOT NULL,
	updated_at                 DATETIME NOT NULL,
	PRIMARY KEY (media_id, media_type)
);

CREATE INDEX IF NOT EXISTS idx_consensus_records_analyzed_at ON consensus_records(analyzed_at);

CREATE TABLE IF NOT EXISTS moderation_states (
	media_id                TEXT PRIMARY KEY,
	ai_detection_score      REAL NOT NULL,
	ai_detection_confidence REAL NOT NULL,
	deepfake_detected       INTEGER NOT NULL,
	manipulation_detected   INTEGER NOT NULL,
	updated_at              DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendProviderResults(ctx context.Context, ref model.MediaRef, results []model.ProviderResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, r := range results {
		var raw any
		if len(r.RawResponse) > 0 {
			raw = string(r.RawResponse)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO provider_results
			 (id, media_id, media_type, provider,
			  ai_generated_score, deepfake_score, face_swap_score, voice_clone_score, manipulation_score,
			  confidence, verdict, gan_detected, gan_model, diffusion_detected, diffusion_model,
			  raw_response, request_duration_ms, analyzed_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), ref.MediaID, string(ref.MediaType), r.Provider,
			r.AIGeneratedScore, r.DeepfakeScore, r.FaceSwapScore, r.VoiceCloneScore, r.ManipulationScore,
			r.Confidence, string(r.Verdict), r.GANDetected, nullIfEmpty(r.GANModel), r.DiffusionDetected, nullIfEmpty(r.DiffusionModel),
			raw, r.RequestDurationMS, r.AnalyzedAt, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert provider result %s", r.Provider)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit append")
}

func (s *SQLiteStore) UpsertConsensus(ctx context.Context, ref model.MediaRef, rec model.ConsensusRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consensus_records
		 (media_id, media_type, overall_authenticity_score, ai_generated_probability, deepfake_probability, manipulation_probability,
		  verdict, verdict_confidence, providers_analyzed, providers_agreed, recommendation, requires_human_review, analyzed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (media_id, media_type) DO UPDATE SET
		  overall_authenticity_score = excluded.overall_authenticity_score,
		  ai_generated_probability = excluded.ai_generated_probability,
		  deepfake_probability = excluded.deepfake_probability,
		  manipulation_probability = excluded.manipulation_probability,
		  verdict = excluded.verdict,
		  verdict_confidence = excluded.verdict_confidence,
		  providers_analyzed = excluded.providers_analyzed,
		  providers_agreed = excluded.providers_agreed,
		  recommendation = excluded.recommendation,
		  requires_human_review = excluded.requires_human_review,
		  analyzed_at = excluded.analyzed_at,
		  updated_at = excluded.updated_at`,
		ref.MediaID, string(ref.MediaType),
		rec.OverallAuthenticityScore, rec.AIGeneratedProbability, rec.DeepfakeProbability, rec.ManipulationProbability,
		string(rec.Verdict), rec.VerdictConfidence, rec.ProvidersAnalyzed, rec.ProvidersAgreed,
		string(rec.Recommendation), rec.RequiresHumanReview, rec.AnalyzedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert consensus %s", ref.MediaID)
}

func (s *SQLiteStore) UpsertModerationState(ctx context.Context, mediaID string, digest model.ModerationDigest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO moderation_states
		 (media_id, ai_detection_score, ai_detection_confidence, deepfake_detected, manipulation_detected, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (media_id) DO UPDATE SET
		  ai_detection_score = excluded.ai_detection_score,
		  ai_detection_confidence = excluded.ai_detection_confidence,
		  deepfake_detected = excluded.deepfake_detected,
		  manipulation_detected = excluded.manipulation_detected,
		  updated_at = excluded.updated_at`,
		mediaID, digest.AIDetectionScore, digest.AIDetectionConfidence,
		digest.DeepfakeDetected, digest.ManipulationDetected, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert moderation state %s", mediaID)
}

func (s *SQLiteStore) GetConsensus(ctx context.Context, mediaID string, mediaType model.MediaType) (*model.ConsensusRecord, error) {
	var rec model.ConsensusRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT overall_authenticity_score, ai_generated_probability, deepfake_probability, manipulation_probability,
		  verdict, verdict_confidence, providers_analyzed, providers_agreed, recommendation, requires_human_review, analyzed_at
		 FROM consensus_records WHERE media_id = ? AND media_type = ?`,
		mediaID, string(mediaType),
	).Scan(
		&rec.OverallAuthenticityScore, &rec.AIGeneratedProbability, &rec.DeepfakeProbability, &rec.ManipulationProbability,
		&rec.Verdict, &rec.VerdictConfidence, &rec.ProvidersAnalyzed, &rec.ProvidersAgreed,
		&rec.Recommendation, &rec.RequiresHumanReview, &rec.AnalyzedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get consensus %s", mediaID)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListProviderResults(ctx context.Context, mediaID string, mediaType model.MediaType) ([]model.ProviderResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, ai_generated_score, deepfake_score, face_swap_score, voice_clone_score, manipulation_score,
		  confidence, verdict, gan_detected, gan_model, diffusion_detected, diffusion_model, raw_response, request_duration_ms, analyzed_at
		 FROM provider_results WHERE media_id = ? AND media_type = ?
		 ORDER BY analyzed_at DESC, provider ASC`,
		mediaID, string(mediaType),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list provider results %s", mediaID)
	}
	defer rows.Close()

	var results []model.ProviderResult
	for rows.Next() {
		var r model.ProviderResult
		var ganModel, diffusionModel, raw sql.NullString
		if err := rows.Scan(
			&r.Provider, &r.AIGeneratedScore, &r.DeepfakeScore, &r.FaceSwapScore, &r.VoiceCloneScore, &r.ManipulationScore,
			&r.Confidence, &r.Verdict, &r.GANDetected, &ganModel, &r.DiffusionDetected, &diffusionModel,
			&raw, &r.RequestDurationMS, &r.AnalyzedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider result")
		}
		r.GANModel = ganModel.String
		r.DiffusionModel = diffusionModel.String
		if raw.Valid {
			r.RawResponse = []byte(raw.String)
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list provider results iterate")
}

func (s *SQLiteStore) CountAnalyses(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consensus_records WHERE analyzed_at >= ?`,
		since,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count analyses")
}

func (s *SQLiteStore) VerdictCounts(ctx context.Context, since time.Time) (map[model.Verdict]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT verdict, COUNT(*) FROM consensus_records WHERE analyzed_at >= ? GROUP BY verdict`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: verdict counts")
	}
	defer rows.Close()

	counts := make(map[model.Verdict]int)
	for rows.Next() {
		var v string
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verdict count")
		}
		counts[model.Verdict(v)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: verdict counts iterate")
}

func (s *SQLiteStore) RecommendationCounts(ctx context.Context, since time.Time) (map[model.Recommendation]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recommendation, COUNT(*) FROM consensus_records WHERE analyzed_at >= ? GROUP BY recommendation`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recommendation counts")
	}
	defer rows.Close()

	counts := make(map[model.Recommendation]int)
	for rows.Next() {
		var rec string
		var n int
		if err := rows.Scan(&rec, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation count")
		}
		counts[model.Recommendation(rec)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: recommendation counts iterate")
}

func (s *SQLiteStore) HumanReviewCount(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consensus_records WHERE analyzed_at >= ? AND requires_human_review = 1`,
		since,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: human review count")
}

func (s *SQLiteStore) ProviderActivity(ctx context.Context, since time.Time) ([]ProviderActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COUNT(*), COALESCE(AVG(request_duration_ms), 0)
		 FROM provider_results WHERE analyzed_at >= ?
		 GROUP BY provider ORDER BY provider`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: provider activity")
	}
	defer rows.Close()

	var activity []ProviderActivity
	for rows.Next() {
		var a ProviderActivity
		if err := rows.Scan(&a.Provider, &a.Results, &a.AvgLatencyMS); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider activity")
		}
		activity = append(activity, a)
	}
	return activity, eris.Wrap(rows.Err(), "sqlite: provider activity iterate")
}

func (s *SQLiteStore) RecentConsensus(ctx context.Context, limit int) ([]model.ConsensusSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT media_id, media_type, verdict, recommendation, overall_authenticity_score, requires_human_review, analyzed_at
		 FROM consensus_records ORDER BY analyzed_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent consensus")
	}
	defer rows.Close()

	var summaries []model.ConsensusSummary
	for rows.Next() {
		var cs model.ConsensusSummary
		if err := rows.Scan(&cs.MediaID, &cs.MediaType, &cs.Verdict, &cs.Recommendation,
			&cs.OverallAuthenticityScore, &cs.RequiresHumanReview, &cs.AnalyzedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan consensus summary")
		}
		summaries = append(summaries, cs)
	}
	return summaries, eris.Wrap(rows.Err(), "sqlite: recent consensus iterate")
}
