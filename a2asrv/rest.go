// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package a2asrv

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/internal/rest"
	"github.com/a2aproject/a2a-taskserver/log"
)

// RESTPathPrefix is the prefix of every route served by the handler returned from [NewRESTHandler].
const RESTPathPrefix = rest.PathPrefix

type restHandler struct {
	handler RequestHandler
	cfg     transportConfig
}

// NewRESTHandler creates an [http.Handler] serving the HTTP+JSON binding of the protocol.
// The tenant is read from the X-A2A-Tenant header or the tenant query parameter.
func NewRESTHandler(handler RequestHandler, opts ...TransportOption) http.Handler {
	h := &restHandler{handler: handler, cfg: newTransportConfig(opts)}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/message:send", h.handleSendMessage)
	mux.HandleFunc("POST /v1/message:stream", h.handleStreamMessage)
	mux.HandleFunc("GET /v1/tasks/{id}", h.handleGetTask)
	mux.HandleFunc("GET /v1/tasks", h.handleListTasks)
	mux.HandleFunc("POST /v1/tasks/{idAndAction}", h.handlePOSTTasks)
	mux.HandleFunc("POST /v1/tasks/{id}/pushNotificationConfigs", h.handleSetTaskPushConfig)
	mux.HandleFunc("GET /v1/tasks/{id}/pushNotificationConfigs/{configId}", h.handleGetTaskPushConfig)
	mux.HandleFunc("GET /v1/tasks/{id}/pushNotificationConfigs", h.handleListTaskPushConfig)
	mux.HandleFunc("DELETE /v1/tasks/{id}/pushNotificationConfigs/{configId}", h.handleDeleteTaskPushConfig)
	mux.HandleFunc("GET /v1/extendedAgentCard", h.handleGetExtendedAgentCard)
	mux.HandleFunc("/v1/", func(rw http.ResponseWriter, req *http.Request) {
		writeRESTError(req.Context(), rw, fmt.Errorf("%w: %s %s", a2a.ErrMethodNotFound, req.Method, req.URL.Path), "")
	})

	return mux
}

// requestContext attaches a CallContext built from the request headers and returns the tenant.
func requestContext(req *http.Request) (context.Context, string) {
	ctx, callCtx := WithCallContext(req.Context(), NewServiceParams(req.Header))
	if tenant := callCtx.ServiceParams().Tenant(); tenant != "" {
		return ctx, tenant
	}
	return ctx, req.URL.Query().Get("tenant")
}

func (h *restHandler) handleSendMessage(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	var params a2a.MessageSendParams
	if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
		writeRESTError(ctx, rw, fmt.Errorf("%w: %v", a2a.ErrParseError, err), "")
		return
	}
	params.Tenant = tenant

	result, err := h.handler.OnSendMessage(ctx, &params)
	if err != nil {
		var taskID a2a.TaskID
		if params.Message != nil {
			taskID = params.Message.TaskID
		}
		writeRESTError(ctx, rw, err, taskID)
		return
	}
	writeJSON(ctx, rw, http.StatusOK, result)
}

func (h *restHandler) handleStreamMessage(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	var params a2a.MessageSendParams
	if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
		writeRESTError(ctx, rw, fmt.Errorf("%w: %v", a2a.ErrParseError, err), "")
		return
	}
	params.Tenant = tenant
	h.handleStreamingRequest(ctx, rw, func(ctx context.Context) iter.Seq2[a2a.Event, error] {
		return h.handler.OnSendMessageStream(ctx, &params)
	})
}

func (h *restHandler) handleGetTask(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	taskID := a2a.TaskID(req.PathValue("id"))
	params := &a2a.TaskQueryParams{Tenant: tenant, ID: taskID}
	if raw := req.URL.Query().Get("historyLength"); raw != "" {
		historyLength, err := strconv.Atoi(raw)
		if err != nil {
			writeRESTError(ctx, rw, fmt.Errorf("%w: invalid historyLength", a2a.ErrInvalidParams), taskID)
			return
		}
		params.HistoryLength = &historyLength
	}

	result, err := h.handler.OnGetTask(ctx, params)
	if err != nil {
		writeRESTError(ctx, rw, err, taskID)
		return
	}
	writeJSON(ctx, rw, http.StatusOK, result)
}

func (h *restHandler) handleListTasks(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	query := req.URL.Query()
	request := &a2a.ListTasksRequest{
		Tenant:    tenant,
		ContextID: query.Get("contextId"),
		Status:    a2a.TaskState(query.Get("status")),
		PageToken: query.Get("pageToken"),
	}

	var err error
	parse := func(key string, target any) {
		val := query.Get(key)
		if val == "" || err != nil {
			return
		}
		switch t := target.(type) {
		case *int:
			*t, err = strconv.Atoi(val)
		case **int:
			var n int
			n, err = strconv.Atoi(val)
			*t = &n
		case *bool:
			*t, err = strconv.ParseBool(val)
		case **time.Time:
			var parsed time.Time
			parsed, err = time.Parse(time.RFC3339, val)
			*t = &parsed
		}
		if err != nil {
			err = fmt.Errorf("%w: invalid %s", a2a.ErrInvalidParams, key)
		}
	}
	parse("pageSize", &request.PageSize)
	parse("historyLength", &request.HistoryLength)
	parse("lastUpdatedAfter", &request.LastUpdatedAfter)
	parse("includeArtifacts", &request.IncludeArtifacts)
	if err != nil {
		writeRESTError(ctx, rw, err, "")
		return
	}

	result, err := h.handler.OnListTasks(ctx, request)
	if err != nil {
		writeRESTError(ctx, rw, err, "")
		return
	}
	writeJSON(ctx, rw, http.StatusOK, result)
}

func (h *restHandler) handlePOSTTasks(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	idAndAction := req.PathValue("idAndAction")

	if taskID, ok := strings.CutSuffix(idAndAction, ":cancel"); ok && taskID != "" {
		params := &a2a.TaskIDParams{Tenant: tenant, ID: a2a.TaskID(taskID)}
		result, err := h.handler.OnCancelTask(ctx, params)
		if err != nil {
			writeRESTError(ctx, rw, err, params.ID)
			return
		}
		writeJSON(ctx, rw, http.StatusOK, result)
		return
	}

	if taskID, ok := strings.CutSuffix(idAndAction, ":subscribe"); ok && taskID != "" {
		params := &a2a.TaskIDParams{Tenant: tenant, ID: a2a.TaskID(taskID)}
		h.handleStreamingRequest(ctx, rw, func(ctx context.Context) iter.Seq2[a2a.Event, error] {
			return h.handler.OnSubscribeToTask(ctx, params)
		})
		return
	}

	writeRESTError(ctx, rw, fmt.Errorf("%w: unknown task action", a2a.ErrMethodNotFound), "")
}

func (h *restHandler) handleStreamingRequest(ctx context.Context, rw http.ResponseWriter, events func(context.Context) iter.Seq2[a2a.Event, error]) {
	writeEventStream(ctx, rw, h.cfg.keepAlive, events, func(event a2a.Event, err error) ([]byte, error) {
		if err != nil {
			logRequestError(ctx, err)
			return json.Marshal(rest.ToRESTError(err, ""))
		}
		return json.Marshal(event)
	})
}

func (h *restHandler) handleSetTaskPushConfig(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	taskID := a2a.TaskID(req.PathValue("id"))
	var config a2a.PushConfig
	if err := json.NewDecoder(req.Body).Decode(&config); err != nil {
		writeRESTError(ctx, rw, fmt.Errorf("%w: %v", a2a.ErrParseError, err), taskID)
		return
	}

	result, err := h.handler.OnSetTaskPushConfig(ctx, &a2a.TaskPushConfig{Tenant: tenant, TaskID: taskID, Config: config})
	if err != nil {
		writeRESTError(ctx, rw, err, taskID)
		return
	}
	writeJSON(ctx, rw, http.StatusCreated, result)
}

func (h *restHandler) handleGetTaskPushConfig(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	params := &a2a.GetTaskPushConfigParams{
		Tenant:   tenant,
		TaskID:   a2a.TaskID(req.PathValue("id")),
		ConfigID: req.PathValue("configId"),
	}
	result, err := h.handler.OnGetTaskPushConfig(ctx, params)
	if err != nil {
		writeRESTError(ctx, rw, err, params.TaskID)
		return
	}
	writeJSON(ctx, rw, http.StatusOK, result)
}

func (h *restHandler) handleListTaskPushConfig(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	params := &a2a.ListTaskPushConfigParams{Tenant: tenant, TaskID: a2a.TaskID(req.PathValue("id"))}
	result, err := h.handler.OnListTaskPushConfig(ctx, params)
	if err != nil {
		writeRESTError(ctx, rw, err, params.TaskID)
		return
	}
	writeJSON(ctx, rw, http.StatusOK, result)
}

func (h *restHandler) handleDeleteTaskPushConfig(rw http.ResponseWriter, req *http.Request) {
	ctx, tenant := requestContext(req)
	params := &a2a.DeleteTaskPushConfigParams{
		Tenant:   tenant,
		TaskID:   a2a.TaskID(req.PathValue("id")),
		ConfigID: req.PathValue("configId"),
	}
	if err := h.handler.OnDeleteTaskPushConfig(ctx, params); err != nil {
		writeRESTError(ctx, rw, err, params.TaskID)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) handleGetExtendedAgentCard(rw http.ResponseWriter, req *http.Request) {
	ctx, _ := requestContext(req)
	result, err := h.handler.OnGetExtendedAgentCard(ctx)
	if err != nil {
		writeRESTError(ctx, rw, err, "")
		return
	}
	writeJSON(ctx, rw, http.StatusOK, result)
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Error(ctx, "failed to encode response", err)
	}
}

func writeRESTError(ctx context.Context, rw http.ResponseWriter, err error, taskID a2a.TaskID) {
	logRequestError(ctx, err)
	rest.WriteError(rw, err, taskID)
}

// logRequestError logs internal errors whose text is hidden from the client.
func logRequestError(ctx context.Context, err error) {
	if a2a.ErrorKind(err) == a2a.ErrInternalError {
		log.Error(ctx, "request failed", err)
	}
}
