package repository

import (
	"context"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
)

// ScoreRepository defines CRM access for VESPA results records.
type ScoreRepository interface {
	ListByConnections(ctx context.Context, recordIDs, emails []string) ([]knack.Record, error)
}

type scoreRepository struct {
	client *knack.Client
}

// NewScoreRepository instantiates a Knack-backed score repository.
func NewScoreRepository(client *knack.Client) ScoreRepository {
	return &scoreRepository{client: client}
}

// ListByConnections fetches score records matching any of the given record
// IDs or e-mails. Both join keys are queried together because student
// records carry whichever the upstream data happened to populate.
func (r *scoreRepository) ListByConnections(ctx context.Context, recordIDs, emails []string) ([]knack.Record, error) {
	rules := make([]knack.Rule, 0, len(recordIDs)+len(emails))
	for _, id := range recordIDs {
		rules = append(rules, knack.Rule{Field: "id", Operator: "is", Value: id})
	}
	for _, email := range emails {
		rules = append(rules, knack.Rule{Field: knack.FieldScoreEmail, Operator: "is", Value: email})
	}

	if len(rules) == 0 {
		return nil, nil
	}

	q := knack.Query{
		Filters: []any{knack.RuleGroup{Match: "or", Rules: rules}},
	}

	return r.client.GetAllRecords(ctx, knack.ObjectVESPAResults, q)
}
