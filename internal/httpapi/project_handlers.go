package httpapi

import (
	"context"
	"net/http"

	"tinytrack.org/internal/audit"
	"tinytrack.org/internal/notify"
	"tinytrack.org/internal/tracker"
)

type createProjectRequest struct {
	Name            string   `json:"name"`
	Visibility      int      `json:"visibility"`
	DefaultAssignee string   `json:"default_assignee"`
	MemberIDs       []string `json:"member_ids"`
}

type updateProjectRequest struct {
	Name            string   `json:"name"`
	Visibility      *int     `json:"visibility"`
	DefaultAssignee *string  `json:"default_assignee"`
	KanbanTagIDs    []string `json:"kanban_tag_ids"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

type setNotifyRequest struct {
	Preference string `json:"preference"`
}

type noteRequest struct {
	Body string `json:"body"`
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.svc.CreateProject(r.Context(), actor, tracker.CreateProjectInput{
		Name:            req.Name,
		Visibility:      tracker.Visibility(req.Visibility),
		DefaultAssignee: req.DefaultAssignee,
		MemberIDs:       req.MemberIDs,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/projects/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	projects, err := a.svc.ListProjects(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": projects})
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	p, err := a.svc.GetProject(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in := tracker.UpdateProjectInput{
		Name:            req.Name,
		DefaultAssignee: req.DefaultAssignee,
		KanbanTagIDs:    req.KanbanTagIDs,
	}
	if req.Visibility != nil {
		v := tracker.Visibility(*req.Visibility)
		in.Visibility = &v
	}
	p, err := a.svc.UpdateProject(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleArchiveProject(w http.ResponseWriter, r *http.Request) {
	a.projectStatusChange(w, r, a.svc.ArchiveProject)
}

func (a *API) handleReopenProject(w http.ResponseWriter, r *http.Request) {
	a.projectStatusChange(w, r, a.svc.ReopenProject)
}

func (a *API) projectStatusChange(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, actor tracker.User, projectID string) error) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := change(r.Context(), actor, r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := a.svc.DeleteProject(r.Context(), actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventProjectErased, map[string]any{
		"project_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddMember(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	m := tracker.Member{UserID: req.UserID, RoleID: req.RoleID}
	if err := a.svc.AddMember(r.Context(), actor, r.PathValue("id"), m); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := a.svc.RemoveMember(r.Context(), actor, r.PathValue("id"), r.PathValue("userID")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSetMemberNotify(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req setNotifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err = a.svc.SetMemberNotify(r.Context(), actor, r.PathValue("id"), r.PathValue("userID"), notify.Preference(req.Preference))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleProjectActivity(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acts, err := a.svc.ProjectActivity(r.Context(), actor, r.PathValue("id"), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": acts})
}

func (a *API) handleListNotes(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	notes, err := a.svc.ListNotes(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": notes})
}

func (a *API) handleAddNote(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	n, err := a.svc.AddNote(r.Context(), actor, r.PathValue("id"), req.Body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (a *API) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	n, err := a.svc.UpdateNote(r.Context(), actor, r.PathValue("id"), req.Body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := a.svc.DeleteNote(r.Context(), actor, r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
