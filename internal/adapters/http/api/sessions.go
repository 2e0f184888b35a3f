package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/cupping/internal/app"
	"github.com/okian/cupping/internal/domain/model"
)

// SessionsHandler serves the cupping session routes.
type SessionsHandler struct {
	sessions Sessions
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessions Sessions) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

type packRefRequest struct {
	PackID     string `json:"pack_id"`
	HiddenName string `json:"hidden_name,omitempty"`
}

// createSessionRequest mirrors the OpenAPI schema for POST /v1/sessions.
type createSessionRequest struct {
	Name               string           `json:"name"`
	EventDate          *time.Time       `json:"event_date,omitempty"`
	RandomSamplesOrder bool             `json:"random_samples_order"`
	OpenSampleName     *bool            `json:"open_sample_name,omitempty"`
	SingleUserSession  bool             `json:"single_user_session"`
	InviteAllTeammates bool             `json:"invite_all_teammates"`
	Packs              []packRefRequest `json:"packs"`
	InviteeIDs         []string         `json:"invitee_ids,omitempty"`
}

func (req createSessionRequest) input(id identity) service.CreateSessionInput {
	open := true
	if req.OpenSampleName != nil {
		open = *req.OpenSampleName
	}
	in := service.CreateSessionInput{
		CreatorID: id.UserID,
		GroupID:   id.GroupID,
		Settings: model.Settings{
			Name:                  req.Name,
			RandomSamplesOrder:    req.RandomSamplesOrder,
			OpenSampleNameCupping: open,
			SingleUserSession:     req.SingleUserSession,
			InviteAllTeammates:    req.InviteAllTeammates,
		},
		EventDate:  req.EventDate,
		InviteeIDs: req.InviteeIDs,
	}
	for _, p := range req.Packs {
		in.Packs = append(in.Packs, service.PackRef{PackID: p.PackID, HiddenName: p.HiddenName})
	}
	return in
}

type transitionRequest struct {
	Status string `json:"status"`
}

type ratingDTO struct {
	Property  string `json:"property"`
	Intensity int    `json:"intensity"`
	Quality   int    `json:"quality"`
	Comment   string `json:"comment,omitempty"`
}

type testRequest struct {
	PackID  string      `json:"pack_id"`
	Ratings []ratingDTO `json:"ratings"`
}

type recordTestsRequest struct {
	Tests []testRequest `json:"tests"`
}

func (req recordTestsRequest) inputs() []model.TestInput {
	out := make([]model.TestInput, 0, len(req.Tests))
	for _, t := range req.Tests {
		in := model.TestInput{PackID: t.PackID}
		for _, r := range t.Ratings {
			in.Ratings = append(in.Ratings, model.PropertyRating{
				Property:  model.Property(r.Property),
				Intensity: r.Intensity,
				Quality:   r.Quality,
				Comment:   r.Comment,
			})
		}
		out = append(out, in)
	}
	return out
}

type sessionResponse struct {
	ID         string           `json:"id"`
	CreatorID  string           `json:"creator_id"`
	GroupID    string           `json:"group_id"`
	Status     model.Status     `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	EventDate  *time.Time       `json:"event_date,omitempty"`
	EndedAt    *time.Time       `json:"ended_at,omitempty"`
	Settings   settingsDTO      `json:"settings"`
	Packs      []packRefRequest `json:"packs"`
	InviteeIDs []string         `json:"invitee_ids"`
}

type settingsDTO struct {
	Name               string `json:"name"`
	RandomSamplesOrder bool   `json:"random_samples_order"`
	OpenSampleName     bool   `json:"open_sample_name"`
	SingleUserSession  bool   `json:"single_user_session"`
	InviteAllTeammates bool   `json:"invite_all_teammates"`
}

func toSettings(s model.Settings) settingsDTO {
	return settingsDTO{
		Name:               s.Name,
		RandomSamplesOrder: s.RandomSamplesOrder,
		OpenSampleName:     s.OpenSampleNameCupping,
		SingleUserSession:  s.SingleUserSession,
		InviteAllTeammates: s.InviteAllTeammates,
	}
}

func toSessionResponse(s model.Session) sessionResponse {
	resp := sessionResponse{
		ID:         s.ID,
		CreatorID:  s.CreatorID,
		GroupID:    s.GroupID,
		Status:     s.Status,
		CreatedAt:  s.CreatedAt,
		EventDate:  s.EventDate,
		EndedAt:    s.EndedAt,
		Settings:   toSettings(s.Settings),
		Packs:      make([]packRefRequest, 0, len(s.Packs)),
		InviteeIDs: s.InviteeIDs,
	}
	for _, p := range s.Packs {
		resp.Packs = append(resp.Packs, packRefRequest{PackID: p.PackID, HiddenName: p.HiddenName})
	}
	return resp
}

type packDTO struct {
	SampleName  string     `json:"sample_name"`
	CompanyName string     `json:"company_name,omitempty"`
	Origin      string     `json:"origin,omitempty"`
	Processing  string     `json:"processing,omitempty"`
	RoastDate   *time.Time `json:"roast_date,omitempty"`
	WeightG     int        `json:"weight_g,omitempty"`
}

type propertyResultDTO struct {
	Property       model.Property `json:"property"`
	AvgIntensity   int            `json:"avg_intensity"`
	AvgQuality     int            `json:"avg_quality"`
	ChiefIntensity int            `json:"chief_intensity"`
	ChiefQuality   int            `json:"chief_quality"`
	Comments       []string       `json:"comments"`
}

type resultDTO struct {
	OverallScore int                 `json:"overall_score"`
	Properties   []propertyResultDTO `json:"properties"`
}

type sampleDTO struct {
	PackID     string      `json:"pack_id"`
	Position   int         `json:"position"`
	HiddenName string      `json:"hidden_name,omitempty"`
	Pack       *packDTO    `json:"pack,omitempty"`
	Ratings    []ratingDTO `json:"ratings"`
	Result     *resultDTO  `json:"result,omitempty"`
}

// viewResponse flattens every view variant. ViewerStatus tells which one it is.
type viewResponse struct {
	ID           string             `json:"id"`
	GroupID      string             `json:"group_id"`
	CreatorID    string             `json:"creator_id"`
	Name         string             `json:"name"`
	Status       model.Status       `json:"status"`
	ViewerStatus model.ViewerStatus `json:"viewer_status"`
	CreatedAt    time.Time          `json:"created_at"`
	EventDate    *time.Time         `json:"event_date,omitempty"`
	EndedAt      *time.Time         `json:"ended_at,omitempty"`
	Settings     settingsDTO        `json:"settings"`
	CanStart     bool               `json:"can_start"`
	CanEnd       bool               `json:"can_end"`
	Samples      []sampleDTO        `json:"samples,omitempty"`
}

func toViewResponse(v service.SessionView) viewResponse {
	h := v.Meta()
	resp := viewResponse{
		ID:           h.SessionID,
		GroupID:      h.GroupID,
		CreatorID:    h.CreatorID,
		Name:         h.Name,
		Status:       h.Status,
		ViewerStatus: h.ViewerStatus,
		CreatedAt:    h.CreatedAt,
		EventDate:    h.EventDate,
		EndedAt:      h.EndedAt,
		Settings:     toSettings(h.Settings),
		CanStart:     h.CanStart,
		CanEnd:       h.CanEnd,
	}
	switch v := v.(type) {
	case service.InProgressView:
		for _, s := range v.Samples {
			resp.Samples = append(resp.Samples, toSample(s))
		}
	case service.EndedView:
		for _, s := range v.Samples {
			dto := toSample(s.Sample)
			dto.Result = toResult(s.Result)
			resp.Samples = append(resp.Samples, dto)
		}
	}
	return resp
}

func toSample(s service.Sample) sampleDTO {
	dto := sampleDTO{
		PackID:     s.PackID,
		Position:   s.Position,
		HiddenName: s.HiddenName,
		Ratings:    make([]ratingDTO, 0, len(s.Ratings)),
	}
	if s.Pack != nil {
		dto.Pack = &packDTO{
			SampleName:  s.Pack.Sample.Name,
			CompanyName: s.Pack.Sample.CompanyName,
			Origin:      s.Pack.Sample.Origin,
			Processing:  s.Pack.Sample.Processing,
			RoastDate:   s.Pack.RoastDate,
			WeightG:     s.Pack.WeightG,
		}
	}
	for _, r := range s.Ratings {
		dto.Ratings = append(dto.Ratings, ratingDTO{
			Property:  string(r.Property),
			Intensity: r.Intensity,
			Quality:   r.Quality,
			Comment:   r.Comment,
		})
	}
	return dto
}

func toResult(r model.AggregateResult) *resultDTO {
	dto := &resultDTO{
		OverallScore: r.OverallScore,
		Properties:   make([]propertyResultDTO, 0, len(r.Properties)),
	}
	for _, p := range r.Properties {
		comments := p.Comments
		if comments == nil {
			comments = []string{}
		}
		dto.Properties = append(dto.Properties, propertyResultDTO{
			Property:       p.Property,
			AvgIntensity:   p.AvgIntensity,
			AvgQuality:     p.AvgQuality,
			ChiefIntensity: p.ChiefIntensity,
			ChiefQuality:   p.ChiefQuality,
			Comments:       comments,
		})
	}
	return dto
}

// HandleCreate handles POST /v1/sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if id.GroupID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingGroup)
		return
	}
	var req createSessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	sess, err := h.sessions.CreateSession(r.Context(), req.input(id))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// HandleView handles GET /v1/sessions/{id} requests.
func (h *SessionsHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.ViewSession(r.Context(), identityFrom(r.Context()).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(view))
}

// HandleGetStatus handles GET /v1/sessions/{id}/status requests.
func (h *SessionsHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.GetStatus(r.Context(), identityFrom(r.Context()).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.ViewerStatus{"viewer_status": st})
}

// HandleTransition handles PUT /v1/sessions/{id}/status requests.
func (h *SessionsHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	// Unknown targets are not reachable from any status; the engine reports
	// them as invalid transitions.
	target := model.Status(req.Status)
	sess, err := h.sessions.TransitionStatus(r.Context(), identityFrom(r.Context()).UserID, chi.URLParam(r, "id"), target)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// HandleRecordTests handles POST /v1/sessions/{id}/tests requests.
func (h *SessionsHandler) HandleRecordTests(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if id.GroupID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingGroup)
		return
	}
	var req recordTestsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	n, err := h.sessions.RecordTests(r.Context(), id.UserID, chi.URLParam(r, "id"), id.GroupID, req.inputs())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"recorded": n})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
