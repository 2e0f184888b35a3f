package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/okian/cupping/internal/adapters/repository"
	"github.com/okian/cupping/internal/domain/model"
)

// sessionColumns lists columns returned by session SELECT queries.
var sessionColumns = []string{
	"id", "creator_id", "group_id", "name", "status", "created_at", "event_date", "ended_at",
	"random_samples_order", "open_sample_name", "single_user_session", "invite_all_teammates",
}

var testColumns = []string{"id", "session_id", "pack_id", "user_id", "created_at"}

// pgTx implements repository.Tx on a *sql.Tx.
type pgTx struct {
	tx       *sql.Tx
	writable bool
}

func (t *pgTx) exec(ctx context.Context, b sq.Sqlizer, what string) (sql.Result, error) {
	if !t.writable {
		return nil, repository.ErrReadOnly
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", what, err)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, what)
	}
	return res, nil
}

func (t *pgTx) query(ctx context.Context, b sq.Sqlizer, what string) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", what, err)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return rows, nil
}

// GetSession loads the session row, locking it for update in read-write units.
func (t *pgTx) GetSession(ctx context.Context, id string) (model.Session, error) {
	qb := psq.Select(sessionColumns...).From("cupping_sessions").Where(sq.Eq{"id": id})
	if t.writable {
		qb = qb.Suffix("FOR UPDATE")
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return model.Session{}, fmt.Errorf("building session query: %w", err)
	}

	var s model.Session
	var status string
	var eventDate, endedAt sql.NullTime
	err = t.tx.QueryRowContext(ctx, query, args...).Scan(
		&s.ID, &s.CreatorID, &s.GroupID, &s.Settings.Name, &status, &s.CreatedAt, &eventDate, &endedAt,
		&s.Settings.RandomSamplesOrder, &s.Settings.OpenSampleNameCupping,
		&s.Settings.SingleUserSession, &s.Settings.InviteAllTeammates,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("scanning session: %w", err)
	}
	if s.Status, err = model.ParseStatus(status); err != nil {
		return model.Session{}, fmt.Errorf("scanning session: %w", err)
	}
	if eventDate.Valid {
		s.EventDate = &eventDate.Time
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}

	if s.Packs, err = t.sessionPacks(ctx, id); err != nil {
		return model.Session{}, err
	}
	if s.InviteeIDs, err = t.invitees(ctx, id); err != nil {
		return model.Session{}, err
	}
	return s, nil
}

func (t *pgTx) sessionPacks(ctx context.Context, sessionID string) ([]model.ConnectedPack, error) {
	rows, err := t.query(ctx, psq.Select("pack_id", "hidden_name", "position").
		From("cupping_session_packs").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("position"), "querying session packs")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var packs []model.ConnectedPack
	for rows.Next() {
		var p model.ConnectedPack
		if err := rows.Scan(&p.PackID, &p.HiddenName, &p.Position); err != nil {
			return nil, fmt.Errorf("scanning session pack: %w", err)
		}
		packs = append(packs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session packs: %w", err)
	}
	return packs, nil
}

func (t *pgTx) invitees(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := t.query(ctx, psq.Select("user_id").
		From("cupping_invitations").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("position"), "querying invitations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning invitation: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invitations: %w", err)
	}
	return ids, nil
}

// InsertSession writes the session row, its packs and its invitations.
func (t *pgTx) InsertSession(ctx context.Context, s model.Session) error {
	_, err := t.exec(ctx, psq.Insert("cupping_sessions").Columns(sessionColumns...).Values(
		s.ID, s.CreatorID, s.GroupID, s.Settings.Name, string(s.Status), s.CreatedAt, s.EventDate, s.EndedAt,
		s.Settings.RandomSamplesOrder, s.Settings.OpenSampleNameCupping,
		s.Settings.SingleUserSession, s.Settings.InviteAllTeammates,
	), "inserting session")
	if err != nil {
		return err
	}

	if len(s.Packs) > 0 {
		ib := psq.Insert("cupping_session_packs").Columns("session_id", "pack_id", "position", "hidden_name")
		for _, p := range s.Packs {
			ib = ib.Values(s.ID, p.PackID, p.Position, p.HiddenName)
		}
		if _, err := t.exec(ctx, ib, "inserting session packs"); err != nil {
			return err
		}
	}

	if len(s.InviteeIDs) > 0 {
		ib := psq.Insert("cupping_invitations").Columns("session_id", "user_id", "position")
		for i, id := range s.InviteeIDs {
			ib = ib.Values(s.ID, id, i)
		}
		ib = ib.Suffix("ON CONFLICT (session_id, user_id) DO NOTHING")
		if _, err := t.exec(ctx, ib, "inserting invitations"); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus writes status and end timestamp.
func (t *pgTx) UpdateStatus(ctx context.Context, id string, status model.Status, endedAt *time.Time) error {
	res, err := t.exec(ctx, psq.Update("cupping_sessions").
		Set("status", string(status)).
		Set("ended_at", endedAt).
		Where(sq.Eq{"id": id}), "updating session status")
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListTests returns all tests of a session.
func (t *pgTx) ListTests(ctx context.Context, sessionID string) ([]model.Test, error) {
	return t.listTests(ctx, sq.Eq{"session_id": sessionID}, sq.Eq{"t.session_id": sessionID})
}

// ListUserTests returns the tests of one user in a session.
func (t *pgTx) ListUserTests(ctx context.Context, sessionID, userID string) ([]model.Test, error) {
	return t.listTests(ctx,
		sq.Eq{"session_id": sessionID, "user_id": userID},
		sq.Eq{"t.session_id": sessionID, "t.user_id": userID},
	)
}

func (t *pgTx) listTests(ctx context.Context, testFilter, ratingFilter sq.Eq) ([]model.Test, error) {
	rows, err := t.query(ctx, psq.Select(testColumns...).
		From("cupping_tests").
		Where(testFilter).
		OrderBy("created_at", "id"), "querying tests")
	if err != nil {
		return nil, err
	}
	var tests []model.Test
	index := make(map[string]int)
	for rows.Next() {
		var x model.Test
		if err := rows.Scan(&x.ID, &x.SessionID, &x.PackID, &x.UserID, &x.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning test: %w", err)
		}
		index[x.ID] = len(tests)
		tests = append(tests, x)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterating tests: %w", err)
	}
	_ = rows.Close()
	if len(tests) == 0 {
		return nil, nil
	}

	rrows, err := t.query(ctx, psq.Select("r.test_id", "r.property", "r.intensity", "r.quality", "r.comment").
		From("cupping_property_ratings r").
		Join("cupping_tests t ON t.id = r.test_id").
		Where(ratingFilter).
		OrderBy("r.test_id", "r.position"), "querying ratings")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rrows.Close() }()
	for rrows.Next() {
		var testID, property string
		var r model.PropertyRating
		if err := rrows.Scan(&testID, &property, &r.Intensity, &r.Quality, &r.Comment); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		r.Property = model.Property(property)
		if i, ok := index[testID]; ok {
			tests[i].Ratings = append(tests[i].Ratings, r)
		}
	}
	if err := rrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ratings: %w", err)
	}
	return tests, nil
}

// InsertTests writes tests and their ratings in two multi-row statements.
func (t *pgTx) InsertTests(ctx context.Context, tests []model.Test) error {
	if len(tests) == 0 {
		return nil
	}
	ib := psq.Insert("cupping_tests").Columns(testColumns...)
	rb := psq.Insert("cupping_property_ratings").
		Columns("test_id", "position", "property", "intensity", "quality", "comment")
	var ratings int
	for _, x := range tests {
		ib = ib.Values(x.ID, x.SessionID, x.PackID, x.UserID, x.CreatedAt)
		for i, r := range x.Ratings {
			rb = rb.Values(x.ID, i, string(r.Property), r.Intensity, r.Quality, r.Comment)
			ratings++
		}
	}
	if _, err := t.exec(ctx, ib, "inserting tests"); err != nil {
		return err
	}
	if ratings == 0 {
		return nil
	}
	_, err := t.exec(ctx, rb, "inserting ratings")
	return err
}

// DeleteResults removes results; property rows cascade.
func (t *pgTx) DeleteResults(ctx context.Context, sessionID string) error {
	_, err := t.exec(ctx, psq.Delete("cupping_results").Where(sq.Eq{"session_id": sessionID}), "deleting results")
	return err
}

// InsertResults writes results and their property aggregates.
func (t *pgTx) InsertResults(ctx context.Context, results []model.AggregateResult) error {
	if len(results) == 0 {
		return nil
	}
	ib := psq.Insert("cupping_results").Columns("id", "session_id", "pack_id", "position", "overall_score")
	pb := psq.Insert("cupping_property_results").Columns(
		"result_id", "position", "property", "avg_intensity", "avg_quality",
		"chief_intensity", "chief_quality", "comments")
	var props int
	for pos, r := range results {
		ib = ib.Values(r.ID, r.SessionID, r.PackID, pos, r.OverallScore)
		for i, p := range r.Properties {
			comments, err := json.Marshal(commentsOrEmpty(p.Comments))
			if err != nil {
				return fmt.Errorf("marshaling comments: %w", err)
			}
			pb = pb.Values(r.ID, i, string(p.Property), p.AvgIntensity, p.AvgQuality,
				p.ChiefIntensity, p.ChiefQuality, comments)
			props++
		}
	}
	if _, err := t.exec(ctx, ib, "inserting results"); err != nil {
		return err
	}
	if props == 0 {
		return nil
	}
	_, err := t.exec(ctx, pb, "inserting property results")
	return err
}

// ListResults returns the results of a session in pack order.
func (t *pgTx) ListResults(ctx context.Context, sessionID string) ([]model.AggregateResult, error) {
	rows, err := t.query(ctx, psq.Select("id", "session_id", "pack_id", "overall_score").
		From("cupping_results").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("position"), "querying results")
	if err != nil {
		return nil, err
	}
	var results []model.AggregateResult
	index := make(map[string]int)
	for rows.Next() {
		var r model.AggregateResult
		if err := rows.Scan(&r.ID, &r.SessionID, &r.PackID, &r.OverallScore); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		index[r.ID] = len(results)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	_ = rows.Close()
	if len(results) == 0 {
		return nil, nil
	}

	prows, err := t.query(ctx, psq.Select(
		"p.result_id", "p.property", "p.avg_intensity", "p.avg_quality",
		"p.chief_intensity", "p.chief_quality", "p.comments").
		From("cupping_property_results p").
		Join("cupping_results r ON r.id = p.result_id").
		Where(sq.Eq{"r.session_id": sessionID}).
		OrderBy("p.result_id", "p.position"), "querying property results")
	if err != nil {
		return nil, err
	}
	defer func() { _ = prows.Close() }()
	for prows.Next() {
		var resultID, property string
		var comments []byte
		var p model.PropertyAggregate
		if err := prows.Scan(&resultID, &property, &p.AvgIntensity, &p.AvgQuality,
			&p.ChiefIntensity, &p.ChiefQuality, &comments); err != nil {
			return nil, fmt.Errorf("scanning property result: %w", err)
		}
		p.Property = model.Property(property)
		p.Comments = []string{}
		if len(comments) > 0 {
			if err := json.Unmarshal(comments, &p.Comments); err != nil {
				return nil, fmt.Errorf("decoding comments: %w", err)
			}
		}
		if i, ok := index[resultID]; ok {
			results[i].Properties = append(results[i].Properties, p)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property results: %w", err)
	}
	return results, nil
}

func commentsOrEmpty(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}
