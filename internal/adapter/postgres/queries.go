package postgres

const queryCreateScores = `
	CREATE TABLE IF NOT EXISTS nlqeval_scores (
		id          BIGSERIAL PRIMARY KEY,
		run_id      UUID        NOT NULL,
		sample_id   TEXT        NOT NULL,
		scorer      TEXT        NOT NULL,
		value       TEXT,
		answer      TEXT,
		explanation TEXT,
		duration_ms BIGINT      NOT NULL DEFAULT 0,
		error       TEXT,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS nlqeval_scores_run_idx ON nlqeval_scores (run_id);
`

const queryInsertScore = `
	INSERT INTO nlqeval_scores (run_id, sample_id, scorer, value, answer, explanation, duration_ms, error)
	VALUES ($1::uuid, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)`

const queryRunScores = `
	SELECT sample_id,
	       scorer,
	       COALESCE(value, '')       AS value,
	       COALESCE(answer, '')      AS answer,
	       COALESCE(explanation, '') AS explanation
	FROM nlqeval_scores
	WHERE run_id = $1::uuid AND error IS NULL
	ORDER BY id`
