package httpapi

import (
	"context"
	"net/http"

	"tinytrack.org/internal/tracker"
)

type createIssueRequest struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	AssignedTo string   `json:"assigned_to"`
	TimeQuote  int64    `json:"time_quote"`
	TagIDs     []string `json:"tag_ids"`
}

type reassignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

type tagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}

type commentRequest struct {
	Body string `json:"body"`
}

func (a *API) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req createIssueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	is, err := a.svc.CreateIssue(r.Context(), actor, r.PathValue("id"), tracker.CreateIssueInput{
		Title:      req.Title,
		Body:       req.Body,
		AssignedTo: req.AssignedTo,
		TimeQuote:  req.TimeQuote,
		TagIDs:     req.TagIDs,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/issues/"+is.ID)
	writeJSON(w, http.StatusCreated, is)
}

func (a *API) handleListIssues(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	issues, err := a.svc.ListIssues(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": issues})
}

func (a *API) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	is, err := a.svc.GetIssue(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, is)
}

func (a *API) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := a.svc.DeleteIssue(r.Context(), actor, r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleReassignIssue(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req reassignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	is, err := a.svc.ReassignIssue(r.Context(), actor, r.PathValue("id"), req.AssigneeID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, is)
}

func (a *API) handleCloseIssue(w http.ResponseWriter, r *http.Request) {
	a.issueTransition(w, r, a.svc.CloseIssue)
}

func (a *API) handleReopenIssue(w http.ResponseWriter, r *http.Request) {
	a.issueTransition(w, r, a.svc.ReopenIssue)
}

func (a *API) handleLockQuote(w http.ResponseWriter, r *http.Request) {
	a.issueTransition(w, r, a.svc.LockQuote)
}

func (a *API) handleUnlockQuote(w http.ResponseWriter, r *http.Request) {
	a.issueTransition(w, r, a.svc.UnlockQuote)
}

func (a *API) issueTransition(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, actor tracker.User, issueID string) (tracker.Issue, error)) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	is, err := change(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, is)
}

func (a *API) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req tagsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	is, err := a.svc.UpdateTags(r.Context(), actor, r.PathValue("id"), req.TagIDs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, is)
}

func (a *API) handleIssueActivity(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	acts, err := a.svc.IssueActivity(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": acts})
}

func (a *API) handleListComments(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	comments, err := a.svc.ListComments(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": comments})
}

func (a *API) handleAddComment(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.svc.CommentOnIssue(r.Context(), actor, r.PathValue("id"), req.Body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.svc.UpdateComment(r.Context(), actor, r.PathValue("id"), req.Body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := a.svc.DeleteComment(r.Context(), actor, r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createTagRequest struct {
	Name      string `json:"name"`
	ParentID  string `json:"parent_id"`
	BgColor   string `json:"bgcolor"`
	RoleLimit int    `json:"role_limit"`
	Group     bool   `json:"group"`
}

type updateTagRequest struct {
	Name      string `json:"name"`
	BgColor   string `json:"bgcolor"`
	RoleLimit *int   `json:"role_limit"`
}

func (a *API) handleListTags(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var tags []tracker.Tag
	if group := r.URL.Query().Get("group"); group != "" {
		tags, err = a.svc.ListTagGroup(r.Context(), actor, group)
	} else {
		tags, err = a.svc.ListTags(r.Context(), actor)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": tags})
}

func (a *API) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req createTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.svc.CreateTag(r.Context(), actor, tracker.Tag{
		Name:      req.Name,
		ParentID:  req.ParentID,
		BgColor:   req.BgColor,
		RoleLimit: req.RoleLimit,
		Group:     req.Group,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req updateTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	roleLimit := -1
	if req.RoleLimit != nil {
		roleLimit = *req.RoleLimit
	}
	t, err := a.svc.UpdateTag(r.Context(), actor, r.PathValue("id"), req.Name, req.BgColor, roleLimit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
