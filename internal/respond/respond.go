// Package respond implements the uniform HTTP envelope of spec.md §6.
//
// The teacher's handlers call into a respond package (respond.OK,
// respond.Created, respond.Fail) whose source was not part of the retrieved
// snapshot; this reconstructs it from those call sites and extends it with
// the meta object spec.md's envelope requires.
package respond

import (
	"encoding/json"
	"net/http"
)

// Meta is the pagination block every envelope carries. Endpoints that don't
// paginate return it zeroed.
type Meta struct {
	Total        int  `json:"total"`
	Limit        int  `json:"limit"`
	Page         int  `json:"page"`
	TotalPages   int  `json:"total_pages"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
}

// Envelope is the uniform response body spec.md §6 requires.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
	Meta    Meta        `json:"meta"`
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data interface{}, message string) {
	write(w, http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// Created writes a 202 accepted envelope — the gateway's submission path
// never returns a 201 per spec.md §4.6 (202 is the success status for an
// accepted-for-async-delivery submission).
func Created(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusAccepted, Envelope{Success: true, Data: data, Message: "accepted"})
}

// Accepted is an alias of Created kept for readability at call sites that
// describe the 202 response as "accepted" rather than "created".
func Accepted(w http.ResponseWriter, data interface{}, message string) {
	write(w, http.StatusAccepted, Envelope{Success: true, Data: data, Message: message})
}

// Fail writes a failure envelope at the given status code.
func Fail(w http.ResponseWriter, status int, err error) {
	write(w, status, Envelope{Success: false, Error: err.Error(), Message: "error"})
}

// NotFound writes a 404 failure envelope.
func NotFound(w http.ResponseWriter, err error) {
	Fail(w, http.StatusNotFound, err)
}
