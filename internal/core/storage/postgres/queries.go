package postgres

// SQL for the engine's tables. All mutation statements are single atomic
// upserts or conditional updates. No statement here reads a value into Go
// and writes it back.

const (
	// queryAppendEvent appends one choice event.
	// The composite key (user_id, id) makes client retries idempotent.
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for duplicates.
	// RETURNING retrieves the auto-generated ingest_seq for cursor pagination.
	queryAppendEvent = `
		INSERT INTO choice_events (
			id, user_id, story_id, chapter_id,
			decision_point_id, choice_id, choice_text,
			occurred_at, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, id) DO NOTHING
		RETURNING ingest_seq
	`

	// queryRetrieveByDecisionAfterCursor fetches events for one decision
	// point after a cursor (ingest_seq) in strict total order. Cursoring on
	// the monotonic sequence keeps pagination restartable with no batch
	// boundary loss.
	queryRetrieveByDecisionAfterCursor = `
		SELECT
			ingest_seq, id, user_id, story_id, chapter_id,
			decision_point_id, choice_id, choice_text,
			occurred_at, ingested_at
		FROM choice_events
		WHERE story_id = $1
		  AND chapter_id = $2
		  AND decision_point_id = $3
		  AND ingest_seq > $4
		ORDER BY ingest_seq ASC
		LIMIT $5
	`

	// queryIncrementTally is the hot path: an atomic upsert increment.
	// The database evaluates selection_count + 1 under the row lock, so
	// concurrent increments never lose updates.
	queryIncrementTally = `
		INSERT INTO decision_tallies (
			partition_id, story_id, chapter_id, decision_point_id,
			choice_id, selection_count, previous_window_count, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, 1, 0, $6)
		ON CONFLICT (story_id, chapter_id, decision_point_id, choice_id)
		DO UPDATE SET
			selection_count = decision_tallies.selection_count + 1,
			updated_at      = EXCLUDED.updated_at
		RETURNING selection_count, previous_window_count, updated_at
	`

	queryGetTally = `
		SELECT selection_count, previous_window_count, updated_at
		FROM decision_tallies
		WHERE story_id = $1
		  AND chapter_id = $2
		  AND decision_point_id = $3
		  AND choice_id = $4
	`

	queryTalliesForDecision = `
		SELECT choice_id, selection_count, previous_window_count, updated_at
		FROM decision_tallies
		WHERE story_id = $1
		  AND chapter_id = $2
		  AND decision_point_id = $3
		ORDER BY selection_count DESC, choice_id ASC
	`

	querySnapshotWindow = `
		UPDATE decision_tallies
		SET previous_window_count = selection_count, updated_at = $5
		WHERE story_id = $1
		  AND chapter_id = $2
		  AND decision_point_id = $3
		  AND choice_id = $4
	`

	querySnapshotAll = `
		UPDATE decision_tallies
		SET previous_window_count = selection_count, updated_at = $1
	`

	// queryUpsertCompletion creates or advances the per-reader completion row.
	// paths_completed_count increments on every replay, not just new endings.
	// total_endings only moves when the caller knows a positive total, so a
	// temporarily unknown story structure never clobbers a stored total.
	queryUpsertCompletion = `
		INSERT INTO path_completions (
			user_id, story_id, total_endings,
			paths_completed_count, all_endings_badge_awarded, updated_at
		)
		VALUES ($1, $2, $3, 1, FALSE, $4)
		ON CONFLICT (user_id, story_id)
		DO UPDATE SET
			paths_completed_count = path_completions.paths_completed_count + 1,
			total_endings = CASE
				WHEN EXCLUDED.total_endings > 0 THEN EXCLUDED.total_endings
				ELSE path_completions.total_endings
			END,
			updated_at = EXCLUDED.updated_at
	`

	queryInsertDiscoveredEnding = `
		INSERT INTO path_completion_endings (user_id, story_id, ending_id, discovered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, story_id, ending_id) DO NOTHING
	`

	// queryAwardBadge is the one-way latch flip: set TRUE where currently
	// FALSE and the discovered set covers the known endings. The row lock
	// taken by the upsert above serializes concurrent completions for the
	// same (user, story), so exactly one transaction sees rows affected = 1.
	queryAwardBadge = `
		UPDATE path_completions
		SET all_endings_badge_awarded = TRUE, updated_at = $3
		WHERE user_id = $1
		  AND story_id = $2
		  AND NOT all_endings_badge_awarded
		  AND total_endings > 0
		  AND (
			SELECT COUNT(*)
			FROM path_completion_endings e
			WHERE e.user_id = $1 AND e.story_id = $2
		  ) >= total_endings
	`

	querySelectCompletion = `
		SELECT total_endings, paths_completed_count, all_endings_badge_awarded, updated_at
		FROM path_completions
		WHERE user_id = $1 AND story_id = $2
	`

	querySelectDiscoveredEndings = `
		SELECT ending_id
		FROM path_completion_endings
		WHERE user_id = $1 AND story_id = $2
		ORDER BY ending_id ASC
	`
)
