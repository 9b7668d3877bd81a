package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/store"
)

func (s *Server) registerDashboardRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard/kpis", withLimiter(s.readLimiter, s.handleDashboardKPIs))
}

func (s *Server) registerHierarchyRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/hierarchy/{projectID}", withLimiter(s.readLimiter, s.handleHierarchy))
}

// kpiSampleLimit bounds every query this aggregate issues; it reports an
// exact count only up to this ceiling. Hierarchy traversal has its own,
// smaller bound, hierarchyDepthLimit.
const kpiSampleLimit = 500

func (s *Server) handleDashboardKPIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runningSubtasks, err := s.stores.Subtasks.ListByStatus(ctx, store.SubtaskStatusRunning, store.PageOpts{Limit: kpiSampleLimit})
	if err != nil {
		writeError(w, apierror.Unavailable("list running subtasks", err))
		return
	}
	pendingSubtasks, err := s.stores.Subtasks.ListByStatus(ctx, store.SubtaskStatusPending, store.PageOpts{Limit: kpiSampleLimit})
	if err != nil {
		writeError(w, apierror.Unavailable("list pending subtasks", err))
		return
	}

	agents, err := s.stores.Capacity.All(ctx)
	if err != nil {
		writeError(w, apierror.Unavailable("list agent capacity", err))
		return
	}
	var redCount, orangeCount int
	for _, a := range agents {
		switch a.Zone {
		case store.ZoneRed:
			redCount++
		case store.ZoneOrange:
			orangeCount++
		}
	}

	projects, err := s.stores.Projects.List(ctx, store.PageOpts{Limit: kpiSampleLimit})
	if err != nil {
		writeError(w, apierror.Unavailable("list projects", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"projects":          len(projects),
		"runningSubtasks":   len(runningSubtasks),
		"pendingSubtasks":   len(pendingSubtasks),
		"agentsInRedZone":   redCount,
		"agentsInOrangeZone": orangeCount,
		"sampleLimit":       kpiSampleLimit,
	})
}

// hierarchyDepthLimit bounds how many tasks/subtasks a single hierarchy
// walk will return, by an explicit LIMIT rather than an unbounded
// recursive query.
const hierarchyDepthLimit = 200

type hierarchyTask struct {
	*store.TaskData
	Subtasks []*store.SubtaskData `json:"subtasks"`
}

// handleHierarchy walks Project -> Session -> Request -> Task -> Subtask,
// capped at hierarchyDepthLimit tasks total, and is intended for
// visualization/debugging rather than a hot path.
func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("projectID"))
	if err != nil {
		writeError(w, apierror.Validation("invalid project id"))
		return
	}
	ctx := r.Context()

	project, err := s.stores.Projects.Get(ctx, projectID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, apierror.NotFound("project not found"))
			return
		}
		writeError(w, apierror.Unavailable("get project", err))
		return
	}

	sessions, err := s.stores.Sessions.List(ctx, projectID, store.PageOpts{Limit: hierarchyDepthLimit})
	if err != nil {
		writeError(w, apierror.Unavailable("list sessions", err))
		return
	}

	var sessionNodes []hierarchySession
	taskCount := 0
	for _, sess := range sessions {
		if taskCount >= hierarchyDepthLimit {
			break
		}
		requests, err := s.stores.Requests.ListBySession(ctx, sess.ID, store.PageOpts{Limit: hierarchyDepthLimit})
		if err != nil {
			writeError(w, apierror.Unavailable("list requests", err))
			return
		}
		var reqNodes []requestNode
		for _, rq := range requests {
			if taskCount >= hierarchyDepthLimit {
				break
			}
			tasks, err := s.stores.Tasks.ListByRequest(ctx, rq.ID)
			if err != nil {
				writeError(w, apierror.Unavailable("list tasks", err))
				return
			}
			var taskNodes []hierarchyTask
			for _, t := range tasks {
				if taskCount >= hierarchyDepthLimit {
					break
				}
				taskCount++
				subtasks, err := s.stores.Subtasks.ListByTask(ctx, t.ID)
				if err != nil {
					writeError(w, apierror.Unavailable("list subtasks", err))
					return
				}
				taskNodes = append(taskNodes, hierarchyTask{TaskData: t, Subtasks: subtasks})
			}
			reqNodes = append(reqNodes, requestNode{RequestData: rq, Tasks: taskNodes})
		}
		sessionNodes = append(sessionNodes, hierarchySession{SessionData: sess, Requests: reqNodes})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"project":   project,
		"sessions":  sessionNodes,
		"truncated": taskCount >= hierarchyDepthLimit,
	})
}

type requestNode struct {
	*store.RequestData
	Tasks []hierarchyTask `json:"tasks"`
}

type hierarchySession struct {
	*store.SessionData
	Requests []requestNode `json:"requests"`
}
