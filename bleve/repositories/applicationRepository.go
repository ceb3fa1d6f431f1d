package repositories

import (
	"context"
	"strings"
	search_models "wildlife-licensing-backend/bleve/models"
	"wildlife-licensing-backend/db/models"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const applicationsIndex = "applications"

var applicationSearchFields = []string{"lodgement_number", "applicant", "applicant_email", "activities", "purposes"}

type applicationDocument struct {
	ID                 string   `json:"id"`
	SubmitterKey       string   `json:"submitter_key"`
	LodgementNumber    string   `json:"lodgement_number"`
	ApplicationType    string   `json:"application_type"`
	CustomerStatus     string   `json:"customer_status"`
	Applicant          string   `json:"applicant"`
	ApplicantEmail     string   `json:"applicant_email"`
	Activities         []string `json:"activities"`
	ProcessingStatuses []string `json:"processing_statuses"`
	Purposes           []string `json:"purposes"`
}

// submitterKey drops the dashes so the analyzer keeps the id as one token.
func submitterKey(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

func (r *BleveRepository) applicants(ctx context.Context, apps []models.Application) map[uuid.UUID]models.User {
	ids := make([]uuid.UUID, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.SubmitterID)
	}
	byID := make(map[uuid.UUID]models.User, len(ids))
	if r.users == nil || len(ids) == 0 {
		return byID
	}
	users, err := r.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		r.logger.Warn("Failed to resolve applicants for search index", zap.Error(err))
		return byID
	}
	for _, user := range users {
		byID[user.ID] = user
	}
	return byID
}

func toDocument(app *models.Application, applicant *models.User) applicationDocument {
	doc := applicationDocument{
		ID:              app.ID.String(),
		SubmitterKey:    submitterKey(app.SubmitterID),
		ApplicationType: string(app.ApplicationType),
		CustomerStatus:  string(app.CustomerStatus),
	}
	if app.LodgementNumber != nil {
		doc.LodgementNumber = *app.LodgementNumber
	}
	if applicant != nil {
		doc.Applicant = applicant.FullName()
		doc.ApplicantEmail = applicant.Email
	}
	for i := range app.SelectedActivities {
		activity := &app.SelectedActivities[i]
		doc.Activities = append(doc.Activities, activity.Name())
		doc.ProcessingStatuses = append(doc.ProcessingStatuses, string(activity.ProcessingStatus))
		for j := range activity.ProposedPurposes {
			doc.Purposes = append(doc.Purposes, activity.ProposedPurposes[j].Name())
		}
	}
	return doc
}

// IndexApplication adds or refreshes the search document of one application.
func (r *BleveRepository) IndexApplication(ctx context.Context, app *models.Application) error {
	var applicant *models.User
	if user, ok := r.applicants(ctx, []models.Application{*app})[app.SubmitterID]; ok {
		applicant = &user
	}
	if err := r.indexer.IndexDocument(applicationsIndex, app.ID.String(), toDocument(app, applicant)); err != nil {
		r.logger.Error("Failed to index application into Bleve", zap.Error(err), zap.String("application_id", app.ID.String()))
		return err
	}
	return nil
}

// ApplicationChanged keeps the index in step with committed changes.
func (r *BleveRepository) ApplicationChanged(ctx context.Context, app *models.Application) {
	_ = r.IndexApplication(ctx, app)
}

// IndexExistingApplications bulk indexes applications into the Bleve
// "applications" index.
func (r *BleveRepository) IndexExistingApplications(ctx context.Context, apps []models.Application) error {
	if len(apps) == 0 {
		r.logger.Info("No existing applications to index into Bleve.")
		return nil
	}
	applicants := r.applicants(ctx, apps)
	docs := make(map[string]interface{}, len(apps))
	for i := range apps {
		var applicant *models.User
		if user, ok := applicants[apps[i].SubmitterID]; ok {
			applicant = &user
		}
		docs[apps[i].ID.String()] = toDocument(&apps[i], applicant)
	}
	if err := r.indexer.BulkIndexDocuments(applicationsIndex, docs); err != nil {
		r.logger.Error("Failed to bulk index existing applications into Bleve", zap.Error(err))
		return err
	}
	return nil
}

func (r *BleveRepository) DeleteApplication(applicationID string) error {
	return r.indexer.DeleteDocument(applicationsIndex, applicationID)
}

// SearchApplications ranks exact matches above prefix matches above fuzzy
// matches across the searchable fields. A non-nil submitterID restricts
// hits to that submitter's applications.
func (r *BleveRepository) SearchApplications(queryString string, size int, submitterID *uuid.UUID) (*search_models.SearchResponse, error) {
	queryString = strings.TrimSpace(queryString)
	term := strings.ToLower(queryString)

	booleanQuery := bleve.NewBooleanQuery()
	for _, field := range applicationSearchFields {
		match := bleve.NewMatchQuery(queryString)
		match.SetField(field)
		match.SetBoost(3.0)
		booleanQuery.AddShould(match)

		prefix := bleve.NewPrefixQuery(term)
		prefix.SetField(field)
		prefix.SetBoost(2.0)
		booleanQuery.AddShould(prefix)

		fuzzy := bleve.NewFuzzyQuery(term)
		fuzzy.SetField(field)
		fuzzy.SetFuzziness(1)
		fuzzy.SetBoost(1.0)
		booleanQuery.AddShould(fuzzy)
	}
	booleanQuery.SetMinShould(1)
	if submitterID != nil {
		owner := bleve.NewTermQuery(submitterKey(*submitterID))
		owner.SetField("submitter_key")
		booleanQuery.AddMust(owner)
	}

	result, err := r.indexer.SearchIndex(applicationsIndex, booleanQuery, size)
	if err != nil {
		return nil, err
	}
	response := &search_models.SearchResponse{Total: result.Total, Hits: make([]search_models.SearchHit, 0, len(result.Hits))}
	for _, hit := range result.Hits {
		response.Hits = append(response.Hits, search_models.SearchHit{ID: hit.ID, Score: hit.Score, Fields: hit.Fields})
	}
	return response, nil
}
