package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/notedhq/noted/pkg/model"
	"github.com/notedhq/noted/pkg/store"
)

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil
}

// requireMember loads the group only when the caller belongs to it.
// Non-members get the same not-found as missing groups so the API does not
// reveal which groups exist.
func (s *server) requireMember(w http.ResponseWriter, r *http.Request) (model.Group, int64, bool) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return model.Group{}, 0, false
	}
	groupID, ok := pathID(r, "id")
	if !ok {
		apiError(w, http.StatusNotFound, "group not found")
		return model.Group{}, 0, false
	}

	member, err := s.store.IsMember(r.Context(), groupID, userID)
	if err != nil {
		log.Printf("Failed to check membership: %v", err)
		apiError(w, http.StatusInternalServerError, "internal error")
		return model.Group{}, 0, false
	}
	if !member {
		apiError(w, http.StatusNotFound, "group not found")
		return model.Group{}, 0, false
	}

	group, err := s.store.GroupByID(r.Context(), groupID)
	if err != nil {
		apiError(w, http.StatusNotFound, "group not found")
		return model.Group{}, 0, false
	}
	return group, userID, true
}

func (s *server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	groups, err := s.store.GroupsForUser(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to list groups: %v", err)
		apiError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

type groupCreateRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Goal        string `json:"goal"`
	Description string `json:"description"`
}

func (s *server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req groupCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := s.store.CreateGroup(r.Context(), userID, req.Name, req.Goal, req.Description)
	if err != nil {
		log.Printf("Failed to create group: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, _, ok := s.requireMember(w, r)
	if !ok {
		return
	}

	members, err := s.store.Members(r.Context(), group.ID)
	if err != nil {
		log.Printf("Failed to list members: %v", err)
		apiError(w, http.StatusInternalServerError, "internal error")
		return
	}
	group.Members = members
	writeJSON(w, http.StatusOK, group)
}

type groupUpdateRequest struct {
	Name        *string `json:"name"`
	Goal        *string `json:"goal"`
	Description *string `json:"description"`
}

func (s *server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	group, userID, ok := s.requireMember(w, r)
	if !ok {
		return
	}
	if group.OwnerID != userID {
		apiError(w, http.StatusNotFound, "group not found")
		return
	}

	var req groupUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := s.store.UpdateGroup(r.Context(), group.ID, req.Name, req.Goal, req.Description)
	if err != nil {
		log.Printf("Failed to update group: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to update group")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	group, userID, ok := s.requireMember(w, r)
	if !ok {
		return
	}
	if group.OwnerID != userID {
		apiError(w, http.StatusNotFound, "group not found")
		return
	}

	if err := s.store.DeleteGroup(r.Context(), group.ID); err != nil {
		log.Printf("Failed to delete group: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID, ok := pathID(r, "id")
	if !ok {
		apiError(w, http.StatusNotFound, "group not found")
		return
	}

	err := s.store.AddMember(r.Context(), groupID, userID)
	if errors.Is(err, store.ErrNotFound) {
		apiError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		log.Printf("Failed to join group: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to join group")
		return
	}

	group, err := s.store.GroupByID(r.Context(), groupID)
	if err != nil {
		apiError(w, http.StatusNotFound, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	group, userID, ok := s.requireMember(w, r)
	if !ok {
		return
	}
	if group.OwnerID == userID {
		apiError(w, http.StatusBadRequest, "owner cannot leave the group")
		return
	}

	if err := s.store.RemoveMember(r.Context(), group.ID, userID); err != nil {
		log.Printf("Failed to leave group: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to leave group")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	group, _, ok := s.requireMember(w, r)
	if !ok {
		return
	}

	messages, err := s.store.MessagesForGroup(r.Context(), group.ID)
	if err != nil {
		log.Printf("Failed to list messages: %v", err)
		apiError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type messageCreateRequest struct {
	Content string `json:"content" validate:"required"`
}

func (s *server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	group, userID, ok := s.requireMember(w, r)
	if !ok {
		return
	}

	var req messageCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.UserByID(r.Context(), userID)
	if err != nil {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	msg, err := s.saveAndBroadcast(r.Context(), group.ID, user.Sender(), req.Content)
	if err != nil {
		log.Printf("Failed to create message: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to create message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// saveAndBroadcast is the single persist-then-fan-out path shared by the
// REST message endpoint and the chat channel, so both produce the same
// canonical frame.
func (s *server) saveAndBroadcast(ctx context.Context, groupID int64, sender model.Sender, content string) (model.Message, error) {
	msg, err := s.store.AppendMessage(ctx, groupID, sender.ID, content)
	if err != nil {
		return model.Message{}, err
	}

	raw, err := json.Marshal(model.MessageEvent(msg, sender))
	if err != nil {
		return model.Message{}, err
	}
	s.hub.Broadcast(groupID, raw)
	return msg, nil
}

func (s *server) handleGroupPresence(w http.ResponseWriter, r *http.Request) {
	group, _, ok := s.requireMember(w, r)
	if !ok {
		return
	}

	if s.presence == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}

	users, err := s.presence.Users(r.Context(), group.ID)
	if err != nil {
		log.Printf("Failed to fetch presence for group %d: %v", group.ID, err)
		apiError(w, http.StatusInternalServerError, "failed to fetch presence")
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}
